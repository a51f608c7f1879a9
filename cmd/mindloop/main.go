package main

import (
	"fmt"
	"os"
	"path/filepath"

	"mindloop/internal/config"
	"mindloop/internal/logging"
	"mindloop/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mindloop",
	Short: "mindloop - a continuously ticking two-pass mind",
	Long: `mindloop runs a cognitive heartbeat: once per period a divergent
subconscious pass proposes thoughts and a governing conscious pass decides
whether to speak, what to remember, and how to steer the next tick.

Lines typed on stdin become percepts. The loop stops on Ctrl+C or after the
idle timeout passes without user input.

Run without arguments to start the heartbeat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
	RunE: runHeartbeat,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: <workspace>/.mindloop/config.yaml)")

	registerRunFlags(rootCmd)
	registerRunFlags(runCmd)

	goalAddCmd.Flags().Float64Var(&goalPriority, "priority", 0.5, "Goal priority in [0,1]")
	goalSetCmd.Flags().StringVar(&goalStatus, "status", "", "New status: active, paused, done, dropped")
	goalSetCmd.Flags().Float64Var(&goalPriority, "priority", 0.5, "New priority in [0,1]")
	goalCmd.AddCommand(goalAddCmd)
	goalCmd.AddCommand(goalListCmd)
	goalCmd.AddCommand(goalSetCmd)

	memoryAddCmd.Flags().StringVar(&memoryType, "type", "semantic", "Memory type (episodic, semantic, preference, meta)")
	memoryAddCmd.Flags().Float64Var(&memoryImportance, "importance", 0.5, "Importance in [0,1]")
	memoryCmd.AddCommand(memoryListCmd)
	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryForgetCmd)

	// Add commands to root
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(goalCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

// resolveWorkspace returns the absolute workspace directory.
func resolveWorkspace() (string, error) {
	ws := workspace
	if ws == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		ws = cwd
	}
	abs, err := filepath.Abs(ws)
	if err != nil {
		return "", fmt.Errorf("invalid workspace %q: %w", ws, err)
	}
	return abs, nil
}

// resolveConfigPath returns the --config flag or the workspace default.
func resolveConfigPath(ws string) string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath(ws)
}

// loadConfig loads, anchors and validates the workspace configuration.
// Callers may adjust the result before calling Validate again.
func loadConfig() (*config.Config, string, error) {
	ws, err := resolveWorkspace()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(resolveConfigPath(ws))
	if err != nil {
		return nil, "", err
	}
	cfg.ResolvePaths(ws)
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, ws, nil
}

// initLogging starts category file logging for the workspace.
func initLogging(ws string, cfg *config.Config) {
	err := logging.Initialize(ws, logging.Options{
		DebugMode:  cfg.Logging.DebugMode,
		Level:      cfg.Logging.Level,
		JSONFormat: cfg.Logging.JSONFormat,
		Categories: cfg.Logging.Categories,
	})
	if err != nil {
		logger.Warn("File logging disabled", zap.Error(err))
	}
}

// openWorkspaceStore loads config and opens the durable store. The caller
// closes the store.
func openWorkspaceStore() (*store.Store, *config.Config, error) {
	cfg, ws, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	initLogging(ws, cfg)
	s, err := store.Open(cfg.Store)
	if err != nil {
		return nil, nil, err
	}
	return s, cfg, nil
}
