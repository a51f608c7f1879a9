package mind

import (
	"context"
	"fmt"
	"strings"

	"mindloop/internal/articulation"
	"mindloop/internal/entropy"
	"mindloop/internal/llm"
	"mindloop/internal/logging"
	"mindloop/internal/types"

	"github.com/samber/lo"
)

// Fallback thought scores.
const (
	FallbackConfidence = 0.3
	FallbackNovelty    = 0.5

	defaultThoughtScore = 0.5
)

// Subconscious is the SubconsciousPort backed by an llm.Client.
type Subconscious struct {
	client llm.Client
	words  *entropy.Pool
	cfg    Config
	parser *articulation.ResponseProcessor
}

// NewSubconscious creates the subconscious pass. words may be nil.
func NewSubconscious(client llm.Client, words *entropy.Pool, cfg Config) *Subconscious {
	if cfg.SeedWords <= 0 {
		cfg.SeedWords = 3
	}
	return &Subconscious{
		client: client,
		words:  words,
		cfg:    cfg,
		parser: articulation.NewResponseProcessor(),
	}
}

// Generate runs one subconscious call and validates the result.
func (s *Subconscious) Generate(ctx context.Context, in SubconsciousInput) (SubconsciousOutput, error) {
	timer := logging.StartTimer(logging.CategorySubconscious, "Generate")
	defer timer.Stop()

	seeds := s.words.Sample(s.cfg.SeedWords)
	system, user, err := BuildSubconsciousPrompt(in, seeds)
	if err != nil {
		return SubconsciousOutput{}, err
	}

	temp := in.Guidance.Temperature
	if temp == 0 {
		temp = types.DefaultTemperature
	}
	opts := []llm.CallOption{llm.WithTemperature(temp), llm.WithJSON()}
	if s.cfg.SubconsciousModel != "" {
		opts = append(opts, llm.WithModel(s.cfg.SubconsciousModel))
	}
	if s.cfg.SubconsciousMaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(s.cfg.SubconsciousMaxTokens))
	}

	logging.SubconsciousDebug("tick %d: seeds=%v temp=%.2f", in.Tick, seeds, temp)
	raw, err := s.client.CompleteWithSystem(ctx, system, user, opts...)
	if err != nil {
		logging.Get(logging.CategorySubconscious).Warn("tick %d: reasoning call failed: %v", in.Tick, err)
		return SubconsciousOutput{}, fmt.Errorf("subconscious call failed: %w", err)
	}

	out, err := ParseSubconscious(s.parser, in.Tick, in.Guidance.MaxIdeas, raw)
	if err != nil {
		logging.Get(logging.CategorySubconscious).Warn("tick %d: %v", in.Tick, err)
		return SubconsciousOutput{}, err
	}
	logging.Subconscious("tick %d: %d thought(s) mean_novelty=%.2f", in.Tick, len(out.Thoughts), out.Metrics.MeanNovelty)
	return out, nil
}

// =============================================================================
// WIRE FORMAT
// =============================================================================

type thoughtWire struct {
	ID           string   `json:"id"`
	Content      string   `json:"content"`
	Tags         []string `json:"tags"`
	Confidence   *float64 `json:"confidence"`
	Novelty      *float64 `json:"novelty"`
	RelatedGoals []string `json:"related_goals"`
}

type subconsciousWire struct {
	Thoughts  []thoughtWire `json:"thoughts"`
	RawStream string        `json:"raw_stream"`
	Metrics   *Metrics      `json:"metrics"`
}

// ParseSubconscious validates raw model output into a thought batch. Every
// thought is stamped with tick; blank thoughts are dropped and the batch is
// capped at maxIdeas when positive. A nil parser uses the shared one.
func ParseSubconscious(parser *articulation.ResponseProcessor, tick int64, maxIdeas int, raw string) (SubconsciousOutput, error) {
	var wire subconsciousWire
	var err error
	if parser != nil {
		_, err = parser.Process(raw, &wire)
	} else {
		err = articulation.Decode(raw, &wire)
	}
	if err != nil {
		return SubconsciousOutput{}, err
	}

	thoughts := make([]types.Thought, 0, len(wire.Thoughts))
	for _, w := range wire.Thoughts {
		content := strings.TrimSpace(w.Content)
		if content == "" {
			continue
		}
		id := strings.TrimSpace(w.ID)
		if id == "" {
			id = fmt.Sprintf("thought-%d-%d", tick, len(thoughts)+1)
		}
		thoughts = append(thoughts, types.Thought{
			ID:           id,
			Tick:         tick,
			Content:      content,
			Tags:         nonNil(w.Tags),
			Confidence:   score(w.Confidence),
			Novelty:      score(w.Novelty),
			RelatedGoals: nonNil(w.RelatedGoals),
		})
	}
	if maxIdeas > 0 && len(thoughts) > maxIdeas {
		thoughts = thoughts[:maxIdeas]
	}

	out := SubconsciousOutput{Thoughts: thoughts, RawStream: wire.RawStream}
	if wire.Metrics != nil {
		out.Metrics = Metrics{
			MeanNovelty:    types.Clamp01(wire.Metrics.MeanNovelty),
			MeanConfidence: types.Clamp01(wire.Metrics.MeanConfidence),
		}
	} else {
		out.Metrics = metricsOf(thoughts)
	}
	return out, nil
}

// FallbackSubconscious substitutes a single low-confidence thought for a
// failed pass. A ParseFault contributes a preview of its raw text as the
// content.
func FallbackSubconscious(tick int64, cause error) SubconsciousOutput {
	text := "(no subconscious output)"
	if pf, ok := articulation.AsParseFault(cause); ok && strings.TrimSpace(pf.Raw) != "" {
		text = truncateRunes(rawPreviewLen, pf.Raw)
	} else if cause != nil {
		text = fmt.Sprintf("(subconscious unavailable: %v)", cause)
	}
	return SubconsciousOutput{
		Thoughts: []types.Thought{{
			ID:           fmt.Sprintf("thought-fallback-%d", tick),
			Tick:         tick,
			Content:      text,
			Tags:         []string{types.TagFallback},
			Confidence:   FallbackConfidence,
			Novelty:      FallbackNovelty,
			RelatedGoals: []string{},
		}},
		RawStream: text,
		Metrics:   Metrics{MeanNovelty: FallbackNovelty, MeanConfidence: FallbackConfidence},
	}
}

func metricsOf(thoughts []types.Thought) Metrics {
	if len(thoughts) == 0 {
		return Metrics{}
	}
	n := float64(len(thoughts))
	return Metrics{
		MeanNovelty:    lo.SumBy(thoughts, func(t types.Thought) float64 { return t.Novelty }) / n,
		MeanConfidence: lo.SumBy(thoughts, func(t types.Thought) float64 { return t.Confidence }) / n,
	}
}

func score(v *float64) float64 {
	if v == nil {
		return defaultThoughtScore
	}
	return types.Clamp01(*v)
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

var _ SubconsciousPort = (*Subconscious)(nil)
