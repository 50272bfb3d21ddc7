package table

import (
	"github.com/kasuganosora/doctable/pkg/doc"
)

// Package-level logger for conditions the API swallows by contract:
// unknown union variants on write, malformed sub-record payloads. Defaults
// to warnings on stdout.
var logger doc.Logger = doc.NewDefaultLogger(doc.LogWarn)

// SetLogger replaces the package logger. Pass a NoOpLogger to silence it.
func SetLogger(l doc.Logger) {
	if l == nil {
		l = doc.NewNoOpLogger()
	}
	logger = l
}

// GetLogger returns the current package logger.
func GetLogger() doc.Logger {
	return logger
}
