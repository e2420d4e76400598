// Package log builds the slog loggers used across politecrawl.
//
// Every logger returned here wraps its output handler in a RedactingHandler,
// which masks:
//   - HTTP credential headers (Authorization, Cookie, Set-Cookie)
//   - Keys that name a secret (password, token, session, ...)
//   - Bearer, Basic and JWT values logged under any key
//   - Proxy passwords and token-like query parameters inside URLs
//
// Even in verbose mode nothing above reaches the output.
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Debug("dispatching request", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=%2A%2A%2AREDACTED%2A%2A%2A
package log
