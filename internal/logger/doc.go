// Package logger keeps one global zap logger and passes derived loggers
// through contexts.
//
// Builders, workers and transport handlers take a context and log through
// it, so the remote name and build counter attached with WithKV appear on
// every line of a build. The sink and encoding are chosen once per process
// with Configure or ConfigureTo.
package logger
