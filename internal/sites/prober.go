package sites

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"netwatch/internal/domain"
)

// Prober performs lightweight reachability checks against a bounded set of
// external URLs. Every cycle checks all enabled monitors and publishes the
// whole status map as one snapshot, since the presentation layer renders it
// as a single list.
type Prober struct {
	interval time.Duration
	timeout  time.Duration
	client   *http.Client
	dial     func(ctx context.Context, network, addr string) (net.Conn, error)
	sink     domain.EventSink
	metrics  domain.MetricsCollector
	clock    clock.Clock
	logger   *zap.Logger

	mu       sync.RWMutex
	monitors []domain.SiteMonitor
	statuses map[string]domain.SiteStatus

	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

func NewProber(
	interval time.Duration,
	timeout time.Duration,
	sink domain.EventSink,
	metrics domain.MetricsCollector,
	clk clock.Clock,
	logger *zap.Logger,
) *Prober {
	dialer := &net.Dialer{}
	return &Prober{
		interval: interval,
		timeout:  timeout,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dial:     dialer.DialContext,
		sink:     sink,
		metrics:  metrics,
		clock:    clk,
		logger:   logger.With(zap.String("component", "sites")),
		statuses: make(map[string]domain.SiteStatus),
	}
}

// Add registers a monitor. The enabled set is capped at
// domain.MaxSiteMonitors; violations are rejected with the set unchanged.
func (p *Prober) Add(monitor domain.SiteMonitor) error {
	if err := validateURL(monitor.URL); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, m := range p.monitors {
		if m.URL == monitor.URL {
			return fmt.Errorf("site monitor for %s already exists", monitor.URL)
		}
	}

	if monitor.Enabled {
		enabled := 0
		for _, m := range p.monitors {
			if m.Enabled {
				enabled++
			}
		}
		if enabled >= domain.MaxSiteMonitors {
			return fmt.Errorf("at most %d enabled site monitors are supported", domain.MaxSiteMonitors)
		}
	}

	p.monitors = append(p.monitors, monitor)
	return nil
}

// Remove drops a monitor and its status.
func (p *Prober) Remove(rawURL string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, m := range p.monitors {
		if m.URL == rawURL {
			p.monitors = append(p.monitors[:i], p.monitors[i+1:]...)
			delete(p.statuses, rawURL)
			return nil
		}
	}
	return fmt.Errorf("no site monitor for %s", rawURL)
}

// Monitors lists configured monitors in insertion order.
func (p *Prober) Monitors() []domain.SiteMonitor {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.SiteMonitor(nil), p.monitors...)
}

// Statuses returns a copy of the current status map.
func (p *Prober) Statuses() map[string]domain.SiteStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]domain.SiteStatus, len(p.statuses))
	for url, status := range p.statuses {
		out[url] = status
	}
	return out
}

// Start launches the check loop.
func (p *Prober) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("site prober already started")
	}
	p.started = true

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (p *Prober) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	cancel()
	<-done
}

func (p *Prober) run(ctx context.Context) {
	defer close(p.done)

	for {
		p.CheckAll(ctx)

		timer := p.clock.Timer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// CheckAll checks every enabled monitor once and publishes the resulting
// status map through the event sink.
func (p *Prober) CheckAll(ctx context.Context) {
	for _, monitor := range p.Monitors() {
		if !monitor.Enabled {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		p.checkOne(ctx, monitor)
	}
	p.sink.PublishSiteStatuses(p.Statuses())
}

func (p *Prober) checkOne(ctx context.Context, monitor domain.SiteMonitor) {
	now := p.clock.Now()
	latency, err := p.measure(ctx, monitor.URL)
	up := err == nil

	if err != nil {
		p.logger.Debug("site check failed",
			zap.String("url", monitor.URL),
			zap.Error(err))
	}
	p.metrics.RecordSiteCheck(monitor.URL, up)

	p.mu.Lock()
	previous, known := p.statuses[monitor.URL]
	status := domain.SiteStatus{
		URL:       monitor.URL,
		IsUp:      up,
		LastCheck: now,
	}
	if up {
		status.Latency = &latency
	}
	if known {
		status.LastDown = previous.LastDown
	}
	if !up && (!known || previous.IsUp) {
		status.LastDown = &now
	}
	p.statuses[monitor.URL] = status
	p.mu.Unlock()
}

func (p *Prober) measure(ctx context.Context, rawURL string) (time.Duration, error) {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}
		start := time.Now()
		resp, err := p.client.Do(req)
		if err != nil {
			return 0, err
		}
		latency := time.Since(start)
		resp.Body.Close()
		// Any HTTP response means the site is reachable; correctness of the
		// response is not this check's concern.
		return latency, nil
	}

	addr := rawURL
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "443")
	}
	start := time.Now()
	conn, err := p.dial(checkCtx, "tcp", addr)
	if err != nil {
		return 0, err
	}
	latency := time.Since(start)
	conn.Close()
	return latency, nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("site monitor url is required")
	}
	if strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "https://") {
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid site monitor url %q: %w", rawURL, err)
		}
	}
	return nil
}
