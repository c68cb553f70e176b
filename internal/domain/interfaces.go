package domain

import (
	"context"
)

// Event stream names published through the EventSink.
const (
	StreamPingUpdate       = "ping-update"
	StreamSiteStatusUpdate = "site-status-update"
	StreamNetworkChange    = "network-change"
)

// Prober executes one latency measurement against a target. A failed probe is
// a valid Sample with absent latency, never an error.
type Prober interface {
	Probe(ctx context.Context, target string) Sample
}

// Resolver looks up the host's current public network identity.
type Resolver interface {
	Resolve(ctx context.Context) (Identity, error)
}

// EventSink receives live engine updates for delivery to the presentation
// layer. Implementations must not block the calling loop.
type EventSink interface {
	PublishPing(sample Sample)
	PublishSiteStatuses(statuses map[string]SiteStatus)
	PublishNetworkChange(change IdentityChange)
}

// Notifier delivers a fire-and-forget OS notification. Failures are logged by
// callers, never fatal.
type Notifier interface {
	Notify(title, body string) error
}

// MetricsCollector records engine activity.
type MetricsCollector interface {
	RecordProbe(sample Sample)
	RecordSiteCheck(url string, up bool)
	RecordIdentityChange(changeType ChangeType)
	RecordThresholdAlert(target string)
	RecordSnapshotPersist(success bool)
}
