package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/haikubridge/haikubridge/internal/senseme"
)

// defaultPollInterval is how often the poller refreshes device state
// when no interval is configured.
const defaultPollInterval = 30 * time.Second

// pollReads is the number of device round trips in one poll cycle.
const pollReads = 4

// Poller periodically reads the full fan state, replaces the cache, and
// publishes the result. It is what surfaces changes made outside the
// bridge: the fan's remote, the wall control, or the vendor app.
type Poller struct {
	device    Device
	cache     *StateCache
	publisher *Publisher
	interval  time.Duration

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// PollerConfig holds construction parameters for a Poller.
type PollerConfig struct {
	// Device is the fan to poll.
	Device Device

	// Cache receives full snapshots.
	Cache *StateCache

	// Publisher pushes each snapshot to MQTT.
	Publisher *Publisher

	// Interval between poll cycles. Zero means the 30 second default.
	Interval time.Duration
}

// NewPoller creates a poller. Call Start to begin polling.
func NewPoller(cfg PollerConfig) (*Poller, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Poller{
		device:    cfg.Device,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		interval:  interval,
		done:      make(chan struct{}),
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Start begins periodic polling. The first cycle runs immediately so
// the cache and the retained MQTT topics are primed before the first
// tick.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.pollLoop(ctx)
}

// Stop halts polling and waits for an in-flight cycle to finish.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.PollNow()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.PollNow()
		}
	}
}

// PollNow runs one poll cycle: read every attribute, replace the cache,
// publish. A failed read leaves its fields absent from the snapshot;
// when every read fails the cycle is skipped entirely so the cache
// keeps the last known state instead of an empty one.
func (p *Poller) PollNow() {
	snap, failures := p.readAll()

	if failures == pollReads {
		p.logger.Warn("poll failed, keeping last known state",
			"device", p.device.Name())
		return
	}

	p.cache.Replace(snap)

	if err := p.publisher.PublishSnapshot(snap); err != nil {
		p.logger.Warn("poll publish failed", "error", err)
	}

	p.logger.Debug("poll cycle complete", "failed_reads", failures)
}

// readAll reads the four attribute groups and assembles a snapshot.
func (p *Poller) readAll() (Snapshot, int) {
	snap := Snapshot{
		Name:      p.device.Name(),
		UpdatedAt: time.Now().UTC(),
	}
	failures := 0

	if state, err := p.device.GetPower(); err != nil {
		failures++
		p.logger.Debug("poll read failed", "field", KeyPower, "error", err)
	} else {
		snap.Power = &state
	}

	if raw, err := p.device.GetSpeed(); err != nil {
		failures++
		p.logger.Debug("poll read failed", "field", KeySpeed, "error", err)
	} else {
		snap.Speed = &raw
	}

	if state, err := p.device.GetWhoosh(); err != nil {
		failures++
		p.logger.Debug("poll read failed", "field", KeyWhoosh, "error", err)
	} else {
		snap.Whoosh = &state
	}

	if raw, err := p.device.GetLightLevel(); err != nil {
		failures++
		p.logger.Debug("poll read failed", "field", KeyLightLevel, "error", err)
	} else {
		power := senseme.PowerOff
		if raw > senseme.LightMin {
			power = senseme.PowerOn
		}
		snap.LightPower = &power
		snap.LightLevel = &raw
	}

	return snap, failures
}
