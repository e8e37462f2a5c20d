// Package log provides the logging abstraction used by pubship components.
//
// The Logger interface can be implemented by any logging library.
// Adapters are provided for zerolog plus a no-op logger for tests and
// for embedding pubship silently.
//
// Use the console adapter for CLI output:
//
//	logger := log.NewZerologConsole()
//
// Or wrap an existing zerolog.Logger:
//
//	logger := log.NewZerologAdapter(myLogger)
package log
