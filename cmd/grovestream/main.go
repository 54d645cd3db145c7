// grovestream is a Lambda function that logs document changes from the
// DynamoDB stream of a grove table.
//
// GROVE_PATTERNS is a comma-separated list of uid patterns to follow
// (default "*"). LOG_LEVEL and LOG_FORMAT configure the log output.
package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/grove/internal/logging"
	"github.com/jacentio/grove/stream"
)

func main() {
	level, err := logging.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = slog.LevelInfo
	}
	format, err := logging.ParseFormat(os.Getenv("LOG_FORMAT"))
	if err != nil {
		format = logging.FormatJSON
	}
	logger := logging.New(logging.Config{Level: level, Format: format})

	h := newHandler(patterns(os.Getenv("GROVE_PATTERNS")), logger)
	lambda.Start(h.HandleEvent)
}

// patterns splits a comma-separated pattern list.
func patterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}

func newHandler(patterns []string, logger *slog.Logger) *stream.Handler {
	h := stream.NewHandler(logger)
	for _, p := range patterns {
		pattern := p
		h.Subscribe(pattern, func(ctx context.Context, c stream.Change) error {
			logger.InfoContext(ctx, "document changed",
				"pattern", pattern,
				"action", c.Action,
				"uid", c.UID,
			)
			return nil
		})
	}
	return h
}
