package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level      string
	Production bool
	// File enables a rotating JSON log file next to the console output.
	File string
}

func New(opts Options) (*zap.Logger, error) {
	var zapCfg zap.Config
	if opts.Production {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if opts.Level != "" {
		level, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	if opts.File == "" {
		return zapCfg.Build()
	}

	rotating := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    64,
		MaxBackups: 7,
		MaxAge:     7,
	}

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	if opts.Production {
		consoleEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), zapcore.AddSync(rotating), zapCfg.Level),
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapCfg.Level),
	)
	return zap.New(core, zap.AddCaller()), nil
}
