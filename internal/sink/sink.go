package sink

import (
	"go.uber.org/zap"

	"netwatch/internal/domain"
)

// Sink publishes engine events to the websocket hub. It implements
// domain.EventSink; all publishes are non-blocking.
type Sink struct {
	hub    *Hub
	logger *zap.Logger
}

func NewSink(hub *Hub, logger *zap.Logger) *Sink {
	return &Sink{
		hub:    hub,
		logger: logger.With(zap.String("component", "sink")),
	}
}

func (s *Sink) PublishPing(sample domain.Sample) {
	s.hub.Broadcast(domain.StreamPingUpdate, sample)
}

func (s *Sink) PublishSiteStatuses(statuses map[string]domain.SiteStatus) {
	s.hub.Broadcast(domain.StreamSiteStatusUpdate, statuses)
}

func (s *Sink) PublishNetworkChange(change domain.IdentityChange) {
	s.hub.Broadcast(domain.StreamNetworkChange, change)
}

// LogNotifier is the default notification delivery: it logs the message where
// an OS integration shim would raise a system notification. Delivery failure
// is impossible here, matching the fire-and-forget contract.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With(zap.String("component", "notifier"))}
}

func (n *LogNotifier) Notify(title, body string) error {
	n.logger.Info("notification",
		zap.String("title", title),
		zap.String("body", body))
	return nil
}
