package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mindloop/internal/config"
	"mindloop/internal/heartbeat"
	"mindloop/internal/store"
	"mindloop/internal/types"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// setupWorkspace points the CLI globals at a fresh initialized workspace that
// uses the pure-Go sqlite driver.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "OLLAMA_URL", "MINDLOOP_DB", "MINDLOOP_MODE"} {
		t.Setenv(k, "")
	}

	logger = zap.NewNop()
	ws := t.TempDir()
	workspace = ws
	configPath = ""
	t.Cleanup(func() {
		workspace = ""
		configPath = ""
	})

	require.NoError(t, runInit(&cobra.Command{}, []string{}))

	path := config.DefaultConfigPath(ws)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.Store.Driver = config.DriverSQLite
	require.NoError(t, cfg.Save(path))
	return ws
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, _, err := openWorkspaceStore()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInitCmd(t *testing.T) {
	ws := setupWorkspace(t)

	assert.FileExists(t, config.DefaultConfigPath(ws))
	wordFile := filepath.Join(ws, config.WorkspaceDirName, "random_words.txt")
	assert.FileExists(t, wordFile)
	assert.FileExists(t, filepath.Join(ws, config.WorkspaceDirName, "mindloop.db"))

	// Re-running keeps user edits.
	require.NoError(t, os.WriteFile(wordFile, []byte("custom\n"), 0644))
	require.NoError(t, runInit(&cobra.Command{}, []string{}))

	data, err := os.ReadFile(wordFile)
	require.NoError(t, err)
	assert.Equal(t, "custom\n", string(data))

	cfg, err := config.Load(config.DefaultConfigPath(ws))
	require.NoError(t, err)
	assert.Equal(t, config.DriverSQLite, cfg.Store.Driver, "init must not overwrite an existing config")
}

func TestGoalCommands(t *testing.T) {
	setupWorkspace(t)

	goalPriority = 0.8
	defer func() { goalPriority = 0.5 }()
	require.NoError(t, runGoalAdd(&cobra.Command{}, []string{"learn", "the", "user's", "name"}))
	require.NoError(t, runGoalList(&cobra.Command{}, nil))

	s := openTestStore(t)
	goals, err := s.LoadGoals()
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "learn the user's name", goals[0].Description)
	assert.Equal(t, types.GoalActive, goals[0].Status)
	assert.InDelta(t, 0.8, goals[0].Priority, 1e-9)
	s.Close()

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&goalStatus, "status", "", "")
	cmd.Flags().Float64Var(&goalPriority, "priority", 0.5, "")
	require.NoError(t, cmd.Flags().Set("status", "DONE"))
	require.NoError(t, runGoalSet(cmd, []string{goals[0].ID}))

	s = openTestStore(t)
	goals, err = s.LoadGoals()
	require.NoError(t, err)
	assert.Equal(t, types.GoalDone, goals[0].Status)
	assert.InDelta(t, 0.8, goals[0].Priority, 1e-9, "unset fields are untouched")
}

func TestGoalCommands_Rejects(t *testing.T) {
	setupWorkspace(t)

	assert.Error(t, runGoalAdd(&cobra.Command{}, []string{"   "}))

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&goalStatus, "status", "", "")
	cmd.Flags().Float64Var(&goalPriority, "priority", 0.5, "")
	assert.ErrorContains(t, runGoalSet(cmd, []string{"goal-x"}), "nothing to change")

	require.NoError(t, cmd.Flags().Set("status", "finished"))
	assert.ErrorContains(t, runGoalSet(cmd, []string{"goal-x"}), "invalid goal status")
}

func TestMemoryCommands(t *testing.T) {
	setupWorkspace(t)

	memoryType, memoryImportance = "Preference", 1.7
	defer func() { memoryType, memoryImportance = "semantic", 0.5 }()
	require.NoError(t, runMemoryAdd(&cobra.Command{}, []string{"likes", "jazz"}))
	require.NoError(t, runMemoryList(&cobra.Command{}, nil))

	s := openTestStore(t)
	items, err := s.LoadMemory()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, types.MemoryPreference, items[0].Type)
	assert.Equal(t, "likes jazz", items[0].Content)
	assert.Equal(t, 1.0, items[0].Importance)
	assert.NotEmpty(t, items[0].ID)
	s.Close()

	require.NoError(t, runMemoryForget(&cobra.Command{}, []string{items[0].ID, "mem-unknown"}))

	s = openTestStore(t)
	items, err = s.LoadMemory()
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMemoryAdd_RejectsUnknownType(t *testing.T) {
	setupWorkspace(t)

	memoryType = "gossip"
	defer func() { memoryType = "semantic" }()
	assert.ErrorContains(t, runMemoryAdd(&cobra.Command{}, []string{"x"}), "invalid memory type")
}

func TestStatus(t *testing.T) {
	setupWorkspace(t)
	require.NoError(t, runGoalAdd(&cobra.Command{}, []string{"stay curious"}))
	require.NoError(t, showStatus(&cobra.Command{}, nil))

	s := openTestStore(t)
	_, err := s.RecordPercept(types.SourceUser, "hello", []string{"cli"})
	require.NoError(t, err)

	snap, err := collectStatus(s)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Percepts)
	assert.Equal(t, 1, snap.ActiveGoals)
	assert.Len(t, snap.Goals, 1)
	assert.Equal(t, 0, snap.Memory)

	var buf bytes.Buffer
	renderStatus(&buf, snap)
	out := buf.String()
	assert.Contains(t, out, "mindloop status")
	assert.Contains(t, out, "Temperature")
	assert.Contains(t, out, "1/1")
}

func TestApplyRunFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	err := applyRunFlags(cfg, runOptions{
		period:      250 * time.Millisecond,
		idleTimeout: 5 * time.Second,
		mode:        "teacher",
		provider:    "ollama",
	})
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Heartbeat.GetPeriod())
	assert.Equal(t, 5*time.Second, cfg.Heartbeat.GetIdleTimeout())
	assert.Equal(t, "teacher", cfg.Speech.Mode)
	assert.Equal(t, "ollama", cfg.LLM.Provider)

	assert.Error(t, applyRunFlags(config.DefaultConfig(), runOptions{mode: "shouty"}))
	assert.Error(t, applyRunFlags(config.DefaultConfig(), runOptions{provider: "carrier-pigeon"}))
}

// syncBuffer is written by the speaker and the ingestor concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeReasoner serves /chat/completions for both passes.
func fakeReasoner(t *testing.T, subCalls, consCalls *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		var content string
		if strings.Contains(req.Messages[0].Content, "CONSCIOUS EXECUTIVE") {
			n := consCalls.Add(1)
			content = `{"action":"SPEAK","user_message":{"content":"hello from the loop"},` +
				`"internal":{"notes":"greet","memory_updates":{"add":[{"type":"episodic","content":"user said hi"}]}}}`
			if n > 1 {
				content = `{"action":"STAY_SILENT"}`
			}
		} else {
			n := subCalls.Add(1)
			content = fmt.Sprintf(`{"thoughts":[{"content":"idea %d","tags":["test"]}]}`, n)
		}

		resp := map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestStartMind_RunsUntilIdle(t *testing.T) {
	ws := setupWorkspace(t)

	var subCalls, consCalls atomic.Int32
	srv := fakeReasoner(t, &subCalls, &consCalls)
	defer srv.Close()

	cfg, _, err := loadConfig()
	require.NoError(t, err)
	cfg.LLM.Provider = config.ProviderOpenAI
	cfg.LLM.BaseURL = srv.URL
	cfg.LLM.APIKey = "test-key"
	require.NoError(t, applyRunFlags(cfg, runOptions{period: 20 * time.Millisecond, idleTimeout: 150 * time.Millisecond}))

	s, err := store.Open(cfg.Store)
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	out := &syncBuffer{}
	reason, err := startMind(ctx, cfg, config.DefaultConfigPath(ws), s, strings.NewReader("hi there\n"), out)
	require.NoError(t, err)
	assert.Equal(t, heartbeat.ExitIdle, reason)

	st, err := s.LoadProcessState()
	require.NoError(t, err)
	assert.Greater(t, st.Tick, int64(0))
	assert.Equal(t, int64(subCalls.Load()), st.Tick, "one subconscious call per tick")
	assert.Equal(t, int64(consCalls.Load()), st.Tick, "one conscious call per tick")
	assert.NotEmpty(t, st.RecentThoughts)
	assert.Equal(t, types.ModeCohost, st.Speech.Mode)
	assert.Equal(t, int64(1), st.Speech.LastSpeakTick)

	percepts, err := s.RecentPercepts(5)
	require.NoError(t, err)
	require.Len(t, percepts, 1)
	assert.Equal(t, "hi there", percepts[0].Content)

	memory, err := s.LoadMemory()
	require.NoError(t, err)
	require.Len(t, memory, 1)
	assert.Equal(t, "user said hi", memory[0].Content)

	text := out.String()
	assert.Contains(t, text, "hello from the loop")
	assert.Contains(t, text, "Recorded percept from user: hi there")
	assert.Contains(t, text, "idle_timeout")
}

func TestStartMind_MissingKey(t *testing.T) {
	ws := setupWorkspace(t)

	cfg, _, err := loadConfig()
	require.NoError(t, err)
	cfg.LLM.APIKey = ""

	s, err := store.Open(cfg.Store)
	require.NoError(t, err)
	defer s.Close()

	_, err = startMind(context.Background(), cfg, config.DefaultConfigPath(ws), s, strings.NewReader(""), &syncBuffer{})
	assert.ErrorContains(t, err, "API key not configured")
}
