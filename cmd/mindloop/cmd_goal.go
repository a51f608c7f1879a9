package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"mindloop/internal/reconcile"
	"mindloop/internal/types"

	"github.com/spf13/cobra"
)

var (
	goalPriority float64
	goalStatus   string
)

// goalCmd groups goal management
var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage the mind's goals",
}

var goalAddCmd = &cobra.Command{
	Use:   "add [description]",
	Short: "Add an active goal",
	Long: `Adds an active goal with a generated id. The heartbeat shows the
highest-priority active goals to both reasoning passes.

Example:
  mindloop goal add "learn the user's favourite music" --priority 0.8`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGoalAdd,
}

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all goals",
	Args:  cobra.NoArgs,
	RunE:  runGoalList,
}

var goalSetCmd = &cobra.Command{
	Use:   "set [goal-id]",
	Short: "Patch a goal's status or priority",
	Args:  cobra.ExactArgs(1),
	RunE:  runGoalSet,
}

func runGoalAdd(cmd *cobra.Command, args []string) error {
	desc := strings.TrimSpace(strings.Join(args, " "))
	if desc == "" {
		return fmt.Errorf("goal description is required")
	}

	s, _, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := s.AddGoal(desc, goalPriority)
	if err != nil {
		return fmt.Errorf("failed to add goal: %w", err)
	}
	fmt.Printf("Added goal %s (priority %.2f): %s\n", g.ID, g.Priority, g.Description)
	return nil
}

func runGoalList(cmd *cobra.Command, args []string) error {
	s, _, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer s.Close()

	goals, err := s.LoadGoals()
	if err != nil {
		return fmt.Errorf("failed to load goals: %w", err)
	}
	if len(goals) == 0 {
		fmt.Println("No goals. Add one with 'mindloop goal add'.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPRIORITY\tDESCRIPTION")
	for _, g := range goals {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", g.ID, g.Status, g.Priority, g.Description)
	}
	return tw.Flush()
}

// runGoalSet goes through the same patch path the conscious pass uses.
func runGoalSet(cmd *cobra.Command, args []string) error {
	var patch types.GoalPatch
	if cmd.Flags().Changed("status") {
		status := types.GoalStatus(strings.ToLower(goalStatus))
		if !status.Valid() {
			return fmt.Errorf("invalid goal status %q (valid: active, paused, done, dropped)", goalStatus)
		}
		patch.Status = &status
	}
	if cmd.Flags().Changed("priority") {
		p := goalPriority
		patch.Priority = &p
	}
	if patch.Empty() {
		return fmt.Errorf("nothing to change: pass --status or --priority")
	}

	s, _, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := reconcile.New(s).ApplyGoalUpdates([]types.GoalUpdate{{GoalID: args[0], Patch: patch}}); err != nil {
		return fmt.Errorf("failed to update goal: %w", err)
	}
	fmt.Printf("Updated goal %s\n", args[0])
	return nil
}
