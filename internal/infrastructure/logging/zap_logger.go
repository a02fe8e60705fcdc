package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var zapLogLevelMapping = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
	"fatal": zapcore.FatalLevel,
}

type zapLogger struct {
	cfg    *LoggerConfig
	logger *zap.SugaredLogger
}

func newZapLogger(cfg *LoggerConfig) *zapLogger {
	l := &zapLogger{cfg: cfg}
	l.Init()
	return l
}

func (l *zapLogger) getLogLevel() zapcore.Level {
	level, exists := zapLogLevelMapping[l.cfg.Level]
	if !exists {
		return zapcore.DebugLevel
	}
	return level
}

func (l *zapLogger) Init() {
	if l.logger != nil {
		return
	}

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if l.cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(config)
	} else {
		encoder = zapcore.NewJSONEncoder(config)
	}

	core := zapcore.NewCore(encoder, zapWriter(l.cfg.FilePath), l.getLogLevel())
	logger := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)).Sugar()

	l.logger = logger.With(string(AppName), "lounge", string(LoggerName), "Zaplog")
}

func zapWriter(dir string) zapcore.WriteSyncer {
	if dir == "" {
		return zapcore.Lock(os.Stderr)
	}
	fileName := filepath.Join(dir, fmt.Sprintf("%s.log", time.Now().Format("2006-01-02")))
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    1,
		MaxAge:     20,
		LocalTime:  true,
		MaxBackups: 5,
		Compress:   true,
	})
}

func (l *zapLogger) Debug(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Debugw(msg, logParamsToZapParams(withCategory(cat, sub, extra))...)
}

func (l *zapLogger) Debugf(template string, args ...any) {
	l.logger.Debugf(template, args...)
}

func (l *zapLogger) Info(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Infow(msg, logParamsToZapParams(withCategory(cat, sub, extra))...)
}

func (l *zapLogger) Infof(template string, args ...any) {
	l.logger.Infof(template, args...)
}

func (l *zapLogger) Warn(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Warnw(msg, logParamsToZapParams(withCategory(cat, sub, extra))...)
}

func (l *zapLogger) Warnf(template string, args ...any) {
	l.logger.Warnf(template, args...)
}

func (l *zapLogger) Error(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Errorw(msg, logParamsToZapParams(withCategory(cat, sub, extra))...)
}

func (l *zapLogger) Errorf(template string, args ...any) {
	l.logger.Errorf(template, args...)
}

func (l *zapLogger) Fatal(cat Category, sub SubCategory, msg string, extra map[ExtraKey]any) {
	l.logger.Fatalw(msg, logParamsToZapParams(withCategory(cat, sub, extra))...)
}

func (l *zapLogger) Fatalf(template string, args ...any) {
	l.logger.Fatalf(template, args...)
}
