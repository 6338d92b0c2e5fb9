package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/Adithya-Monish-Kumar-K/wordfreq/pkg/kafka"
)

// RunFunc executes one run request.
type RunFunc func(ctx context.Context, req RunRequest) error

// RequestHandler decodes run requests and executes them with run. Malformed
// or invalid requests are logged and dropped so they are committed rather
// than redelivered; run failures are returned to the consumer.
func RequestHandler(run RunFunc) kafka.MessageHandler {
	logger := slog.Default().With("component", "run-request-handler")
	return func(ctx context.Context, key, value []byte) error {
		req, err := kafka.DecodeJSON[RunRequest](value)
		if err != nil {
			logger.Error("dropping malformed run request", "key", string(key), "error", err)
			return nil
		}
		if req.RequestID == "" {
			req.RequestID = ulid.Make().String()
		}
		if err := req.Validate(); err != nil {
			logger.Error("dropping invalid run request", "request_id", req.RequestID, "error", err)
			return nil
		}
		logger.Info("run requested",
			"request_id", req.RequestID,
			"kinds", req.Kinds,
			"paths", len(req.Paths),
			"replace", req.Replace,
		)
		if err := run(ctx, req); err != nil {
			return fmt.Errorf("run request %s: %w", req.RequestID, err)
		}
		return nil
	}
}
