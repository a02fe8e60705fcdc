package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var zeroLogLevelMapping = map[string]zerolog.Level{
	"debug": zerolog.DebugLevel,
	"info":  zerolog.InfoLevel,
	"warn":  zerolog.WarnLevel,
	"error": zerolog.ErrorLevel,
	"fatal": zerolog.FatalLevel,
}

type zeroLogger struct {
	cfg    *LoggerConfig
	logger *zerolog.Logger
}

func newZeroLogger(cfg *LoggerConfig) *zeroLogger {
	l := &zeroLogger{cfg: cfg}
	l.Init()
	return l
}

func (l *zeroLogger) getLogLevel() zerolog.Level {
	level, exists := zeroLogLevelMapping[l.cfg.Level]
	if !exists {
		return zerolog.DebugLevel
	}
	return level
}

func (l *zeroLogger) Init() {
	if l.logger != nil {
		return
	}

	var w io.Writer = os.Stderr
	if l.cfg.FilePath != "" {
		w = &lumberjack.Logger{
			Filename:   filepath.Join(l.cfg.FilePath, fmt.Sprintf("%s.log", time.Now().Format("2006-01-02"))),
			MaxSize:    1,
			MaxAge:     20,
			LocalTime:  true,
			MaxBackups: 5,
			Compress:   true,
		}
	}
	if l.cfg.Encoding == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(w).
		Level(l.getLogLevel()).
		With().
		Timestamp().
		Str(string(AppName), "lounge").
		Str(string(LoggerName), "Zerolog").
		Logger()
	l.logger = &logger
}

func (l *zeroLogger) Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Debug().Fields(logParamsToZeroParams(withCategory(cat, sub, extra))).Msg(msg)
}

func (l *zeroLogger) Debugf(template string, args ...any) {
	l.logger.Debug().Msgf(template, args...)
}

func (l *zeroLogger) Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Info().Fields(logParamsToZeroParams(withCategory(cat, sub, extra))).Msg(msg)
}

func (l *zeroLogger) Infof(template string, args ...any) {
	l.logger.Info().Msgf(template, args...)
}

func (l *zeroLogger) Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Warn().Fields(logParamsToZeroParams(withCategory(cat, sub, extra))).Msg(msg)
}

func (l *zeroLogger) Warnf(template string, args ...any) {
	l.logger.Warn().Msgf(template, args...)
}

func (l *zeroLogger) Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Error().Fields(logParamsToZeroParams(withCategory(cat, sub, extra))).Msg(msg)
}

func (l *zeroLogger) Errorf(template string, args ...any) {
	l.logger.Error().Msgf(template, args...)
}

func (l *zeroLogger) Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Fatal().Fields(logParamsToZeroParams(withCategory(cat, sub, extra))).Msg(msg)
}

func (l *zeroLogger) Fatalf(template string, args ...any) {
	l.logger.Fatal().Msgf(template, args...)
}
