package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

type LoggerOpts struct {
	Level        string
	IsProduction bool
	JSONConsole  bool // Whether to use JSON encoding for the console output
}

// Use zap WrapCore if interface is required
func NewZapLogger(opts LoggerOpts) (*zap.Logger, zap.AtomicLevel, error) {
	if opts.Level == "none" {
		return zap.NewNop(), zap.AtomicLevel{}, nil
	}
	level, err := zap.ParseAtomicLevel(opts.Level)
	if err != nil {
		return nil, level, err
	}
	var ecfg zapcore.EncoderConfig
	if opts.IsProduction {
		ecfg = zap.NewProductionEncoderConfig()
	} else {
		ecfg = zap.NewDevelopmentEncoderConfig()
	}
	ecfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	if opts.JSONConsole || !isTTY() {
		consoleEncoder = zapcore.NewJSONEncoder(ecfg)
	} else {
		ecfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		consoleEncoder = zapcore.NewConsoleEncoder(ecfg)
	}
	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), level)
	return zap.New(core), level, nil
}

type Logger struct {
	logger *zap.Logger
	level  zap.AtomicLevel
}

// New wrapped Zap logger.
func NewLogger(opts LoggerOpts) (Logger, error) {
	logger, level, err := NewZapLogger(opts)
	return Logger{logger, level}, err
}

func NewNoopLogger() Logger {
	return Logger{logger: zap.NewNop(), level: zap.AtomicLevel{}}
}

// Return usable Zap logger.
func (l Logger) Get() *zap.Logger {
	return l.logger
}

// Change the log level at runtime
func (l Logger) SetLevelStr(input string) error {
	level, err := zap.ParseAtomicLevel(input)
	if err != nil {
		return err
	}
	l.level.SetLevel(level.Level())
	return nil
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
