// Package log builds slog loggers that mask secrets.
//
// Audits of authenticated sites pass cookies and auth headers to the
// crawler. SecureHandler masks them in every record:
//   - attributes named like credentials (cookie, authorization, token, ...)
//   - values shaped like secrets (JWTs, bearer and basic tokens, AWS keys)
//   - sensitive query parameters and passwords inside logged URLs
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Verbose: true})
//	logger.Info("fetched", "url", "https://example.com/?token=abc")
//	// url=https://example.com/?token=%2A%2A%2AREDACTED%2A%2A%2A
package log
