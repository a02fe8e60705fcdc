package logging

import "os"

type nopLogger struct{}

// NewNopLogger discards everything. Fatal still exits.
func NewNopLogger() Logger { return nopLogger{} }

func (nopLogger) Init() {}

func (nopLogger) Debug(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Debugf(string, ...any)                                 {}
func (nopLogger) Info(Category, SubCategory, string, map[ExtraKey]any)  {}
func (nopLogger) Infof(string, ...any)                                  {}
func (nopLogger) Warn(Category, SubCategory, string, map[ExtraKey]any)  {}
func (nopLogger) Warnf(string, ...any)                                  {}
func (nopLogger) Error(Category, SubCategory, string, map[ExtraKey]any) {}
func (nopLogger) Errorf(string, ...any)                                 {}

func (nopLogger) Fatal(Category, SubCategory, string, map[ExtraKey]any) { os.Exit(1) }
func (nopLogger) Fatalf(string, ...any)                                 { os.Exit(1) }
