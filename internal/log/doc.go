// Package log provides secure logging functionality with automatic
// sanitization of sensitive information, built on top of the standard
// slog package.
//
// Scrape configurations may carry session cookies or authorization
// headers for gated pages, and fetched pages can be megabytes of HTML.
// The SecureHandler masks the former and truncates the latter so that
// verbose logs stay both safe to share and readable:
//   - HTTP credentials (Authorization, Cookie, X-Api-Key, ...) are masked
//   - Values matching token patterns (JWT, Bearer, Basic) are masked
//   - String values longer than 512 bytes are truncated
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//	logger.Info("request sent",
//	    "cookie", "session=abc123",  // masked
//	    "url", "https://example.com/books",
//	)
//	slog.SetDefault(logger)
package log
