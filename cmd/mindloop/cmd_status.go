package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"mindloop/internal/store"
	"mindloop/internal/types"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// statusCmd shows the persisted mind state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tick, guidance, speech state and store counts",
	Args:  cobra.NoArgs,
	RunE:  showStatus,
}

var (
	statusTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#8BC34A"))
	statusLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#2196F3")).
				Width(24)
	statusBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2a3850")).
			Padding(0, 1)
)

// statusSnapshot is everything `status` displays.
type statusSnapshot struct {
	State        types.ProcessState
	Goals        []types.Goal
	Memory       int
	Percepts     int
	StorePath    string
	ActiveGoals  int
	LastThoughts []types.Thought
}

func showStatus(cmd *cobra.Command, args []string) error {
	s, _, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer s.Close()

	snap, err := collectStatus(s)
	if err != nil {
		return err
	}
	renderStatus(os.Stdout, snap)
	return nil
}

func collectStatus(s *store.Store) (statusSnapshot, error) {
	st, err := s.LoadProcessState()
	if err != nil {
		return statusSnapshot{}, fmt.Errorf("failed to load process state: %w", err)
	}
	goals, err := s.LoadGoals()
	if err != nil {
		return statusSnapshot{}, fmt.Errorf("failed to load goals: %w", err)
	}
	memory, err := s.LoadMemory()
	if err != nil {
		return statusSnapshot{}, fmt.Errorf("failed to load memory: %w", err)
	}
	percepts, err := s.Count(store.LogPercepts)
	if err != nil {
		return statusSnapshot{}, fmt.Errorf("failed to count percepts: %w", err)
	}

	last := st.RecentThoughts
	if len(last) > 3 {
		last = last[len(last)-3:]
	}
	return statusSnapshot{
		State:     st,
		Goals:     goals,
		Memory:    len(memory),
		Percepts:  percepts,
		StorePath: s.Path(),
		ActiveGoals: lo.CountBy(goals, func(g types.Goal) bool {
			return g.Status == types.GoalActive
		}),
		LastThoughts: last,
	}, nil
}

func renderStatus(w io.Writer, snap statusSnapshot) {
	st := snap.State
	row := func(label string, value any) string {
		return statusLabelStyle.Render(label) + fmt.Sprint(value)
	}

	tags := "none"
	if len(st.Guidance.FocusTags) > 0 {
		tags = strings.Join(st.Guidance.FocusTags, ", ")
	}

	lines := []string{
		statusTitleStyle.Render("mindloop status"),
		"",
		row("Tick", st.Tick),
		row("Store", snap.StorePath),
		"",
		statusTitleStyle.Render("Guidance"),
		row("Temperature", fmt.Sprintf("%.2f", st.Guidance.Temperature)),
		row("Focus tags", tags),
		row("Style", st.Guidance.Style),
		row("Max ideas", st.Guidance.MaxIdeas),
		"",
		statusTitleStyle.Render("Speech"),
		row("Mode", st.Speech.Mode),
		row("Last user tick", st.Speech.LastUserTick),
		row("Last speak tick", st.Speech.LastSpeakTick),
		row("Unsolicited count", st.Speech.UnsolicitedSpeakCount),
		"",
		statusTitleStyle.Render("Store"),
		row("Percepts", snap.Percepts),
		row("Goals (active/total)", fmt.Sprintf("%d/%d", snap.ActiveGoals, len(snap.Goals))),
		row("Memory items", snap.Memory),
		row("Recent thoughts", len(st.RecentThoughts)),
	}
	for _, t := range snap.LastThoughts {
		lines = append(lines, "  "+truncate(fmt.Sprintf("[t%d] %s", t.Tick, t.Content), 72))
	}

	fmt.Fprintln(w, statusBoxStyle.Render(strings.Join(lines, "\n")))
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
