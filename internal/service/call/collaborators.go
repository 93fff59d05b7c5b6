package call

import (
	"context"

	"github.com/rs/zerolog"

	"ai-meeting-summary-service/internal/observability/logging"
)

// LogCompliance is a log-only ComplianceNotifier for deployments
// without a call-engine integration, mirroring the event publisher's
// disabled mode.
type LogCompliance struct {
	logger zerolog.Logger
}

// NewLogCompliance creates a log-only compliance notifier.
func NewLogCompliance() *LogCompliance {
	return &LogCompliance{logger: logging.WithComponent("compliance")}
}

func (c *LogCompliance) RecordingStarted(ctx context.Context, callID string) error {
	c.logger.Info().Str("callId", callID).Msg("Recording status: started")
	return nil
}

func (c *LogCompliance) RecordingStopped(ctx context.Context, callID string) error {
	c.logger.Info().Str("callId", callID).Msg("Recording status: stopped")
	return nil
}

// LogChatPublisher is a log-only ChatPublisher.
type LogChatPublisher struct {
	logger zerolog.Logger
}

// NewLogChatPublisher creates a log-only chat publisher.
func NewLogChatPublisher() *LogChatPublisher {
	return &LogChatPublisher{logger: logging.WithComponent("chat")}
}

func (p *LogChatPublisher) PostSessionLink(ctx context.Context, threadID, url string) error {
	p.logger.Info().
		Str("threadId", threadID).
		Str("url", url).
		Msg("Session link posted to meeting chat")
	return nil
}
