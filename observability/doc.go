// Package observability provides interfaces for logging and metrics collection
// in the go-vcider library.
//
// This package defines standard interfaces that allow users to integrate their
// own logging and metrics implementations with the vCider API client.
//
// # Logger Interface
//
// The Logger interface supports structured logging with key-value pairs:
//
//	logger := observability.NewSlogLogger(slog.Default())
//	client, err := vcider.NewWithConfig(ctx, &vcider.ClientConfig{
//		BaseURI: baseURI,
//		APIID:   apiID,
//		APIKey:  apiKey,
//		Logger:  logger,
//	})
//
// # MetricsRecorder Interface
//
// The MetricsRecorder interface tracks API client metrics: HTTP request count,
// status codes and duration, clock-resynchronization events, rate limiting
// waits, and error occurrences by type.
//
// # Default Behavior
//
// If no logger or metrics recorder is provided, the client uses no-op
// implementations that discard all events. This ensures zero overhead when
// observability is not needed.
package observability
