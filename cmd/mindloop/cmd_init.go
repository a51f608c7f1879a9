package main

import (
	"fmt"
	"os"
	"path/filepath"

	"mindloop/internal/config"
	"mindloop/internal/entropy"
	"mindloop/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// initCmd prepares a workspace
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .mindloop directory, default config and seed word pool",
	Long: `Initializes a workspace for mindloop:
  1. Writes .mindloop/config.yaml with default settings
  2. Writes a starter seed word pool for the subconscious
  3. Creates the state database

Existing files are left untouched, so init is safe to re-run.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	cfgPath := resolveConfigPath(ws)

	if _, err := os.Stat(cfgPath); err == nil {
		fmt.Printf("Config already exists at %s\n", cfgPath)
	} else {
		if err := config.DefaultConfig().Save(cfgPath); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", cfgPath)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	cfg.ResolvePaths(ws)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	initLogging(ws, cfg)

	if _, err := os.Stat(cfg.Store.WordFile); err == nil {
		fmt.Printf("Seed word pool already exists at %s\n", cfg.Store.WordFile)
	} else {
		if err := entropy.WritePool(cfg.Store.WordFile, entropy.StarterWords); err != nil {
			return fmt.Errorf("failed to write seed words: %w", err)
		}
		fmt.Printf("Wrote %d starter seed words to %s\n", len(entropy.StarterWords), cfg.Store.WordFile)
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	logger.Info("Workspace initialized",
		zap.String("workspace", ws),
		zap.String("store", s.Path()))
	fmt.Printf("State store ready at %s\n", s.Path())
	fmt.Printf("\nNext: export OPENAI_API_KEY=... and run 'mindloop' in %s\n", filepath.Base(ws))
	return nil
}
