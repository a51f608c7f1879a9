// Package articulation turns raw model text into structured payloads and
// emits the mind's outbound speech.
package articulation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// PARSE FAULT
// =============================================================================

// ParseFault reports model output that held no decodable JSON object.
// Raw carries the original text so callers can build a fallback from it.
type ParseFault struct {
	Raw string
	Err error
}

func (e *ParseFault) Error() string {
	return fmt.Sprintf("malformed model response (%d bytes): %v", len(e.Raw), e.Err)
}

func (e *ParseFault) Unwrap() error { return e.Err }

// AsParseFault reports whether err is (or wraps) a ParseFault.
func AsParseFault(err error) (*ParseFault, bool) {
	var pf *ParseFault
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}

// errNotObject rejects top-level JSON that is valid but not an object.
var errNotObject = errors.New("payload is not a JSON object")

// =============================================================================
// RESPONSE PROCESSOR
// =============================================================================

// Parse methods, in the order they are attempted.
const (
	MethodJSON          = "json"
	MethodJSONMarkdown  = "json_markdown"
	MethodJSONExtracted = "json_extracted"
)

// ResponseProcessor decodes model output into caller-supplied structs:
// direct JSON first, then a markdown-fenced block, then any object embedded
// in surrounding prose.
type ResponseProcessor struct {
	AllowMarkdownWrapped bool
	AllowEmbedded        bool

	mu    sync.Mutex
	stats ProcessorStats
}

// ProcessorStats tracks parsing outcomes for monitoring.
type ProcessorStats struct {
	TotalProcessed   int
	SuccessfulParses int
	ExtractedParses  int
	Faults           int
}

// NewResponseProcessor creates a processor with every strategy enabled.
func NewResponseProcessor() *ResponseProcessor {
	return &ResponseProcessor{
		AllowMarkdownWrapped: true,
		AllowEmbedded:        true,
	}
}

// Process decodes raw into dst and reports which strategy succeeded. On
// failure it returns a *ParseFault and dst may be partially written.
func (rp *ResponseProcessor) Process(raw string, dst any) (string, error) {
	method, err := rp.process(raw, dst)

	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.stats.TotalProcessed++
	switch {
	case err != nil:
		rp.stats.Faults++
	case method == MethodJSONExtracted:
		rp.stats.ExtractedParses++
		rp.stats.SuccessfulParses++
	default:
		rp.stats.SuccessfulParses++
	}
	return method, err
}

func (rp *ResponseProcessor) process(raw string, dst any) (string, error) {
	body, method, err := rp.locate(raw)
	if err != nil {
		return "", &ParseFault{Raw: raw, Err: err}
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return "", &ParseFault{Raw: raw, Err: err}
	}
	return method, nil
}

// locate finds the JSON object in raw without decoding it.
func (rp *ResponseProcessor) locate(raw string) (string, string, error) {
	// 1. Direct JSON
	firstErr := checkObject(raw)
	if firstErr == nil {
		return raw, MethodJSON, nil
	}

	// 2. Markdown-wrapped JSON
	if rp.AllowMarkdownWrapped {
		if body, ok := stripFence(raw); ok && checkObject(body) == nil {
			return body, MethodJSONMarkdown, nil
		}
	}

	// 3. JSON embedded in prose, first valid object wins
	if rp.AllowEmbedded {
		for _, candidate := range scanObjects(raw) {
			if checkObject(candidate) == nil {
				return candidate, MethodJSONExtracted, nil
			}
		}
	}

	return "", "", firstErr
}

// Stats returns a snapshot of processing statistics.
func (rp *ResponseProcessor) Stats() ProcessorStats {
	rp.mu.Lock()
	defer rp.mu.Unlock()
	return rp.stats
}

// checkObject requires s to be exactly one JSON object.
func checkObject(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("empty response")
	}
	if s[0] != '{' {
		return errNotObject
	}
	if !json.Valid([]byte(s)) {
		return errors.New("invalid JSON object")
	}
	return nil
}

// stripFence unwraps a ```json ... ``` block.
func stripFence(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return "", false
	}
	s = strings.TrimPrefix(s, "```")
	// Drop an info string such as "json" on the opening fence line.
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{}") {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(strings.TrimPrefix(s, "json"), "JSON")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s), true
}

var defaultProcessor = NewResponseProcessor()

// Decode runs the shared ResponseProcessor over raw.
func Decode(raw string, dst any) error {
	_, err := defaultProcessor.Process(raw, dst)
	return err
}
