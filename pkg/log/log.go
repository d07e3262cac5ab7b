// Package log is the process wide zap logger
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// JournalStreamEnvVar is set by systemd when stderr is connected to the journal
const JournalStreamEnvVar = "JOURNAL_STREAM"

var (
	zapLog = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func Init(debug bool) {
	var config zap.Config

	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.EpochMillisTimeEncoder
	}

	// journald stamps every line itself
	if _, ok := os.LookupEnv(JournalStreamEnvVar); ok {
		config.EncoderConfig.TimeKey = zapcore.OmitKey
	}

	SetDebug(debug)
	config.Level = level

	// Skip one caller as thats our own log package
	logger, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}

	zapLog = logger
}

// SetDebug changes the level of an already built logger
func SetDebug(debug bool) {
	if debug {
		level.SetLevel(zapcore.DebugLevel)
		return
	}
	level.SetLevel(zapcore.InfoLevel)
}

// InitNop silences all output
func InitNop() {
	zapLog = zap.NewNop()
}

func Sync() {
	_ = zapLog.Sync()
}

func Debug(message string, fields ...zap.Field) {
	zapLog.Debug(message, fields...)
}

func Info(message string, fields ...zap.Field) {
	zapLog.Info(message, fields...)
}

func Warn(message string, fields ...zap.Field) {
	zapLog.Warn(message, fields...)
}

func Error(message string, fields ...zap.Field) {
	zapLog.Error(message, fields...)
}

func Fatal(message string, fields ...zap.Field) {
	zapLog.Fatal(message, fields...)
}

func Panic(message string, fields ...zap.Field) {
	zapLog.Panic(message, fields...)
}
