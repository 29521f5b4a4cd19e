// Package log provides detailq's structured logging facade.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. It is backed by log/slog through a
// handler that feeds the package's own formatter and outputs, so every
// component renders the same way regardless of where the entry came from.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("detail"), log.Str("file", "/var/log/detail.work"))
//	l.Info("session opened", log.Int64("size", 4096))
//
// # Configuration
//
// ApplyConfig builds a logger from a declarative Config (text or JSON, console,
// file or null outputs, key redaction and per-message sampling).
//
// # Interop
//
// RedirectStdLog sends the standard library logger, which pebble writes to,
// through a Logger. ToStdLogger wraps a Logger for APIs that want *log.Logger.
package log
