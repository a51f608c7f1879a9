// Package logging provides config-driven categorized file-based logging for mindloop.
// Logs are written to <workspace>/.mindloop/logs/ with one file per category.
// Logging is controlled by debug_mode - when false, nothing is written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	// Core system categories
	CategoryBoot  Category = "boot"  // Boot/initialization
	CategoryStore Category = "store" // Durable state store
	CategoryAPI   Category = "api"   // Reasoning service calls

	// Heartbeat categories
	CategoryHeartbeat    Category = "heartbeat"    // Tick scheduling, idle shutdown
	CategoryGovernor     Category = "governor"     // Speech governor transitions
	CategorySubconscious Category = "subconscious" // Divergent pass
	CategoryConscious    Category = "conscious"    // Governing pass
	CategoryReconcile    Category = "reconcile"    // Memory/goal patch application
	CategoryIngest       Category = "ingest"       // Percept ingestion
	CategoryTicks        Category = "ticks"        // Per-tick thought/decision summaries
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	JSONFormat bool
	Categories map[string]bool
}

// Logger wraps a zap logger bound to one category file.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
	file     *os.File
}

var (
	loggers   = make(map[Category]*Logger)
	loggersMu sync.RWMutex
	logsDir   string
	opts      Options
	level     = zapcore.InfoLevel
	optsMu    sync.RWMutex
)

// Initialize sets up the logging directory.
// Should be called once at startup with the workspace path.
func Initialize(workspace string, o Options) error {
	if workspace == "" {
		return fmt.Errorf("workspace path required")
	}

	CloseAll()

	optsMu.Lock()
	opts = o
	level = zapcore.InfoLevel
	if o.Level != "" {
		if lvl, err := zapcore.ParseLevel(o.Level); err == nil {
			level = lvl
		}
	}
	optsMu.Unlock()

	loggersMu.Lock()
	logsDir = filepath.Join(workspace, ".mindloop", "logs")
	loggersMu.Unlock()

	if !o.DebugMode {
		return nil // Silent no-op in production mode
	}

	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	boot := Get(CategoryBoot)
	boot.Info("=== mindloop logging initialized ===")
	boot.Info("Workspace: %s", workspace)
	boot.Info("Log level: %s", level)
	if len(o.Categories) > 0 {
		enabled := 0
		for cat, on := range o.Categories {
			if on {
				enabled++
			}
			boot.Debug("Category '%s': %v", cat, on)
		}
		boot.Info("Enabled categories: %d/%d", enabled, len(o.Categories))
	} else {
		boot.Info("All categories enabled (no category filter)")
	}

	return nil
}

// IsDebugMode returns whether file logging is enabled
func IsDebugMode() bool {
	optsMu.RLock()
	defer optsMu.RUnlock()
	return opts.DebugMode
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	optsMu.RLock()
	defer optsMu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Get returns (or creates) a logger for the given category.
// Returns a no-op logger if debug mode or the category is disabled.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category}
	}

	loggersMu.RLock()
	if l, ok := loggers[category]; ok {
		loggersMu.RUnlock()
		return l
	}
	dir := logsDir
	loggersMu.RUnlock()

	if dir == "" {
		return &Logger{category: category}
	}

	loggersMu.Lock()
	defer loggersMu.Unlock()

	// Double-check after acquiring write lock
	if l, ok := loggers[category]; ok {
		return l
	}

	date := time.Now().Format("2006-01-02")
	logPath := filepath.Join(dir, fmt.Sprintf("%s_%s.log", date, category))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[logging] Warning: could not open log file %s: %v\n", logPath, err)
		return &Logger{category: category}
	}

	l := &Logger{
		category: category,
		file:     file,
		sugar:    zap.New(newCore(file)).Sugar().With("cat", string(category)),
	}
	loggers[category] = l
	return l
}

func newCore(file *os.File) zapcore.Core {
	optsMu.RLock()
	jsonFormat, lvl := opts.JSONFormat, level
	optsMu.RUnlock()

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.TimeKey = "ts"

	var enc zapcore.Encoder
	if jsonFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zapcore.NewCore(enc, zapcore.AddSync(file), lvl)
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Debugf(format, args...)
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	if l.sugar == nil {
		return
	}
	l.sugar.Errorf(format, args...)
}

// With returns a child logger carrying structured key-value context.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	if l.sugar == nil {
		return l
	}
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// CloseAll flushes and closes all open log files (call at shutdown)
func CloseAll() {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	for _, l := range loggers {
		if l.sugar != nil {
			_ = l.sugar.Sync()
		}
		if l.file != nil {
			l.file.Close()
		}
	}
	loggers = make(map[Category]*Logger)
}

// =============================================================================
// CONVENIENCE FUNCTIONS - Quick logging without getting a logger first
// These are no-ops if the category is disabled
// =============================================================================

// Boot logs to the boot category
func Boot(format string, args ...interface{}) {
	Get(CategoryBoot).Info(format, args...)
}

// BootDebug logs debug to the boot category
func BootDebug(format string, args ...interface{}) {
	Get(CategoryBoot).Debug(format, args...)
}

// Store logs to the store category
func Store(format string, args ...interface{}) {
	Get(CategoryStore).Info(format, args...)
}

// StoreDebug logs debug to the store category
func StoreDebug(format string, args ...interface{}) {
	Get(CategoryStore).Debug(format, args...)
}

// API logs to the api category
func API(format string, args ...interface{}) {
	Get(CategoryAPI).Info(format, args...)
}

// APIDebug logs debug to the api category
func APIDebug(format string, args ...interface{}) {
	Get(CategoryAPI).Debug(format, args...)
}

// Heartbeat logs to the heartbeat category
func Heartbeat(format string, args ...interface{}) {
	Get(CategoryHeartbeat).Info(format, args...)
}

// HeartbeatDebug logs debug to the heartbeat category
func HeartbeatDebug(format string, args ...interface{}) {
	Get(CategoryHeartbeat).Debug(format, args...)
}

// Governor logs to the governor category
func Governor(format string, args ...interface{}) {
	Get(CategoryGovernor).Info(format, args...)
}

// GovernorDebug logs debug to the governor category
func GovernorDebug(format string, args ...interface{}) {
	Get(CategoryGovernor).Debug(format, args...)
}

// Subconscious logs to the subconscious category
func Subconscious(format string, args ...interface{}) {
	Get(CategorySubconscious).Info(format, args...)
}

// SubconsciousDebug logs debug to the subconscious category
func SubconsciousDebug(format string, args ...interface{}) {
	Get(CategorySubconscious).Debug(format, args...)
}

// Conscious logs to the conscious category
func Conscious(format string, args ...interface{}) {
	Get(CategoryConscious).Info(format, args...)
}

// ConsciousDebug logs debug to the conscious category
func ConsciousDebug(format string, args ...interface{}) {
	Get(CategoryConscious).Debug(format, args...)
}

// Reconcile logs to the reconcile category
func Reconcile(format string, args ...interface{}) {
	Get(CategoryReconcile).Info(format, args...)
}

// ReconcileDebug logs debug to the reconcile category
func ReconcileDebug(format string, args ...interface{}) {
	Get(CategoryReconcile).Debug(format, args...)
}

// Ingest logs to the ingest category
func Ingest(format string, args ...interface{}) {
	Get(CategoryIngest).Info(format, args...)
}

// IngestDebug logs debug to the ingest category
func IngestDebug(format string, args ...interface{}) {
	Get(CategoryIngest).Debug(format, args...)
}

// =============================================================================
// TIMING
// =============================================================================

// Timer measures one operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer begins timing an operation
func StartTimer(category Category, operation string) *Timer {
	return &Timer{
		category: category,
		op:       operation,
		start:    time.Now(),
	}
}

// Stop ends the timer and logs the duration
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s took %v (threshold: %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
