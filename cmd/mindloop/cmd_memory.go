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
	memoryType       string
	memoryImportance float64
)

// memoryCmd groups durable memory management
var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit durable memory",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List memory items, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runMemoryList,
}

var memoryAddCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Add a memory item",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryAdd,
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget [memory-id...]",
	Short: "Delete memory items by id",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemoryForget,
}

func runMemoryList(cmd *cobra.Command, args []string) error {
	s, cfg, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer s.Close()

	items, err := s.RecentMemory(-1)
	if err != nil {
		return fmt.Errorf("failed to load memory: %w", err)
	}
	if len(items) == 0 {
		fmt.Println("Memory is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tIMPORTANCE\tCONTENT")
	for _, m := range items {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\n", m.ID, m.Type, m.Importance, truncate(m.Content, 80))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d items (the heartbeat shows the %d most recent)\n", len(items), cfg.Heartbeat.MemoryWindow)
	return nil
}

// runMemoryAdd and runMemoryForget go through the reconcile path the conscious
// pass uses.
func runMemoryAdd(cmd *cobra.Command, args []string) error {
	content := strings.TrimSpace(strings.Join(args, " "))
	if content == "" {
		return fmt.Errorf("memory content is required")
	}
	mt := types.MemoryType(strings.ToLower(memoryType))
	if !mt.Valid() {
		return fmt.Errorf("invalid memory type %q (valid: episodic, semantic, preference, meta)", memoryType)
	}

	s, _, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer s.Close()

	item := types.MemoryItem{Type: mt, Content: content, Importance: types.Clamp01(memoryImportance)}
	if err := reconcile.New(s).ApplyMemoryUpdates(types.MemoryUpdates{Add: []types.MemoryItem{item}}); err != nil {
		return fmt.Errorf("failed to add memory: %w", err)
	}
	fmt.Printf("Remembered (%s, importance %.2f): %s\n", mt, item.Importance, content)
	return nil
}

func runMemoryForget(cmd *cobra.Command, args []string) error {
	s, _, err := openWorkspaceStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if err := reconcile.New(s).ApplyMemoryUpdates(types.MemoryUpdates{Delete: args}); err != nil {
		return fmt.Errorf("failed to forget memory: %w", err)
	}
	fmt.Printf("Forgot %d item(s)\n", len(args))
	return nil
}
