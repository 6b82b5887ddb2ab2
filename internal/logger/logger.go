package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is a no-op until Init runs, so library code and tests can log freely.
var Log = zap.NewNop().Sugar()

// Init initializes the global logger.
// If logPath is provided, logs are written to that file (overwriting it).
// Otherwise, they are written to stdout.
func Init(verbose bool, logPath string) {
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	writer, colored := openWriter(logPath)
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(colored)), writer, level)
	Log = zap.New(core).Sugar()
}

// For returns a child logger tagged with the component name.
func For(component string) *zap.SugaredLogger {
	return Log.Named(component)
}

// Sync flushes any buffered log entries.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func encoderConfig(colored bool) zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	cfg.EncodeCaller = nil
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	if colored {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}

// openWriter truncates logPath when set; color codes are only used on stdout.
func openWriter(logPath string) (zapcore.WriteSyncer, bool) {
	if logPath == "" {
		return zapcore.AddSync(os.Stdout), true
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		println("Failed to create log file: " + err.Error())
		return zapcore.AddSync(os.Stdout), true
	}
	return zapcore.AddSync(f), false
}
