// Package logger provides structured logging for prockit using zerolog.
//
// It supports JSON and console output, log level configuration, and
// component-scoped loggers with structured fields. The library itself logs
// nothing unless a caller passes a logger through the process options or
// supervisor config; Nop returns the silent default.
//
// # Usage
//
//	log := logger.NewDefault("supervisor")
//	log.Info("child started", logger.Fields(logger.FieldPID, pid))
package logger
