package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mindloop/internal/articulation"
	"mindloop/internal/config"
	"mindloop/internal/entropy"
	"mindloop/internal/governor"
	"mindloop/internal/guidance"
	"mindloop/internal/heartbeat"
	"mindloop/internal/ingest"
	"mindloop/internal/llm"
	"mindloop/internal/logging"
	"mindloop/internal/mind"
	"mindloop/internal/reconcile"
	"mindloop/internal/store"
	"mindloop/internal/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// runOptions holds the run command's flag overrides.
type runOptions struct {
	period      time.Duration
	idleTimeout time.Duration
	mode        string
	provider    string
}

var runOpts runOptions

// runCmd starts the heartbeat
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the heartbeat and read percepts from stdin",
	Long: `Starts the tick loop. Every period the mind:
  1. Gathers recent percepts, active goals and memory
  2. Runs the subconscious pass (divergent thoughts)
  3. Runs the conscious pass (decision)
  4. Applies memory/goal updates, speaks if decided, steers guidance
  5. Persists process state

Each non-blank stdin line is recorded as a user percept.`,
	Args: cobra.NoArgs,
	RunE: runHeartbeat,
}

func registerRunFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&runOpts.period, "period", 0, "Tick period (overrides heartbeat.period)")
	cmd.Flags().DurationVar(&runOpts.idleTimeout, "idle-timeout", 0, "Idle shutdown timeout (overrides heartbeat.idle_timeout)")
	cmd.Flags().StringVar(&runOpts.mode, "mode", "", "Speech mode: passive, cohost, teacher")
	cmd.Flags().StringVar(&runOpts.provider, "provider", "", "Reasoning provider: openai, ollama, gemini")
}

// applyRunFlags folds flag overrides into cfg and revalidates.
func applyRunFlags(cfg *config.Config, o runOptions) error {
	if o.period > 0 {
		cfg.Heartbeat.Period = o.period.String()
	}
	if o.idleTimeout > 0 {
		cfg.Heartbeat.IdleTimeout = o.idleTimeout.String()
	}
	if o.mode != "" {
		cfg.Speech.Mode = o.mode
	}
	if o.provider != "" {
		cfg.LLM.Provider = o.provider
	}
	return cfg.Validate()
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, ws, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg, runOpts); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	initLogging(ws, cfg)

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	_, err = startMind(ctx, cfg, resolveConfigPath(ws), s, os.Stdin, os.Stdout)
	return err
}

// startMind wires the heartbeat, the stdin ingestor and the config watcher,
// and blocks until the heartbeat exits. When the heartbeat returns, the other
// tasks are cancelled.
func startMind(ctx context.Context, cfg *config.Config, cfgPath string, s *store.Store, in io.Reader, out io.Writer) (heartbeat.ExitReason, error) {
	st, err := s.LoadProcessState()
	if err != nil {
		return "", fmt.Errorf("failed to load process state: %w", err)
	}
	st.Speech.Mode = types.SpeechMode(cfg.Speech.Mode)
	// A new session counts idle time from launch.
	st.Speech.LastUserWallTime = time.Time{}
	if st.Tick == 0 {
		seedGuidance(&st.Guidance, cfg.Guidance)
	}

	client, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		if errors.Is(err, llm.ErrNoAPIKey) {
			return "", fmt.Errorf("%w (set OPENAI_API_KEY or GEMINI_API_KEY, or use --provider ollama)", err)
		}
		return "", err
	}

	words, err := entropy.LoadPool(cfg.Store.WordFile)
	if err != nil {
		logger.Warn("Seed word pool unavailable, using fallback words", zap.Error(err))
		words = entropy.NewPool(nil)
	}

	mcfg := mind.ConfigFrom(cfg)
	deps := heartbeat.Deps{
		Store:        s,
		Subconscious: mind.NewSubconscious(client, words, mcfg),
		Conscious:    mind.NewConscious(client, mcfg),
		Reconciler:   reconcile.New(s),
		Speaker:      articulation.NewConsoleSpeaker(out),
		Governor:     governor.New(cfg.Heartbeat.UnsolicitedGap),
		Feedback:     guidance.NewFeedback(cfg.Guidance.MinTemperature, cfg.Guidance.MaxTemperature),
	}

	watcher := newModeWatcher(cfgPath, st.Speech.Mode)
	if watcher != nil {
		deps.Modes = watcher.Modes()
	}

	sched, err := heartbeat.New(deps, heartbeat.ConfigFrom(cfg.Heartbeat))
	if err != nil {
		return "", err
	}

	logger.Info("Starting heartbeat",
		zap.Int64("tick", st.Tick),
		zap.String("mode", string(st.Speech.Mode)),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("store", s.Path()))
	fmt.Fprintf(out, "[mindloop] heartbeat running (period=%s idle_timeout=%s mode=%s). Type to talk, Ctrl+C to stop.\n",
		cfg.Heartbeat.GetPeriod(), cfg.Heartbeat.GetIdleTimeout(), st.Speech.Mode)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	var reason heartbeat.ExitReason
	g.Go(func() error {
		defer cancel()
		var err error
		reason, err = sched.Run(gctx, &st)
		return err
	})

	// The stdin reader goroutine inside the ingestor may stay blocked on a
	// terminal read after shutdown; process exit reclaims it.
	ing := ingest.New(s, in, ingest.WithEcho(out))
	g.Go(func() error {
		if err := ing.Run(gctx); err != nil {
			logger.Warn("Percept ingestion stopped", zap.Error(err))
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error {
			if err := watcher.Run(gctx); err != nil {
				logger.Warn("Config watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	err = g.Wait()
	logger.Info("Heartbeat stopped",
		zap.String("reason", string(reason)),
		zap.Int64("tick", st.Tick))
	logging.Heartbeat("run finished: reason=%s tick=%d", reason, st.Tick)
	fmt.Fprintf(out, "[mindloop] stopped at tick %d (%s)\n", st.Tick, reason)
	return reason, err
}

// seedGuidance applies configured defaults to a fresh guidance record.
func seedGuidance(g *types.Guidance, gc config.GuidanceConfig) {
	if gc.DefaultTemperature > 0 {
		g.Temperature = gc.DefaultTemperature
	}
	if gc.Style != "" {
		g.Style = gc.Style
	}
	if gc.MaxIdeas > 0 {
		g.MaxIdeas = gc.MaxIdeas
	}
}

// newModeWatcher returns nil when the config file does not exist or the
// watcher cannot be created; speech mode then stays fixed for the run.
func newModeWatcher(path string, initial types.SpeechMode) *config.ModeWatcher {
	if _, err := os.Stat(path); err != nil {
		logging.BootDebug("no config file at %s, speech mode is fixed for this run", path)
		return nil
	}
	w, err := config.NewModeWatcher(path, initial)
	if err != nil {
		logger.Warn("Speech mode hot reload disabled", zap.Error(err))
		return nil
	}
	return w
}
