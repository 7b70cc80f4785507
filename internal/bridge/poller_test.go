package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/haikubridge/haikubridge/internal/infrastructure/mqtt"
	"github.com/haikubridge/haikubridge/internal/senseme"
)

// newTestPoller wires a poller over fakes. The interval is long enough
// that only explicit PollNow calls (or the initial cycle) run unless a
// test overrides it.
func newTestPoller(t *testing.T, dev *fakeDevice, broker *fakeBroker, interval time.Duration) (*Poller, *StateCache) {
	t.Helper()
	cache := NewStateCache()
	pub, err := NewPublisher(broker, mqtt.Topics{})
	if err != nil {
		t.Fatalf("NewPublisher failed: %v", err)
	}
	p, err := NewPoller(PollerConfig{
		Device:    dev,
		Cache:     cache,
		Publisher: pub,
		Interval:  interval,
	})
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}
	return p, cache
}

func TestPollerPollNow(t *testing.T) {
	dev := newFakeDevice()
	dev.power = senseme.PowerOn
	dev.speed = 4
	dev.light = 8
	broker := newFakeBroker(true)
	p, cache := newTestPoller(t, dev, broker, time.Hour)

	p.PollNow()

	snap, ok := cache.Read()
	if !ok {
		t.Fatal("cache should be populated after PollNow")
	}
	if snap.Name != "Living Room Fan" {
		t.Errorf("Name = %q, want Living Room Fan", snap.Name)
	}
	if snap.Power == nil || *snap.Power != senseme.PowerOn {
		t.Errorf("Power = %v, want ON", snap.Power)
	}
	if snap.Speed == nil || *snap.Speed != 4 {
		t.Errorf("Speed = %v, want 4", snap.Speed)
	}
	if snap.Whoosh == nil || *snap.Whoosh != senseme.PowerOff {
		t.Errorf("Whoosh = %v, want OFF", snap.Whoosh)
	}
	if snap.LightPower == nil || *snap.LightPower != senseme.PowerOn {
		t.Errorf("LightPower = %v, want ON", snap.LightPower)
	}
	if snap.LightLevel == nil || *snap.LightLevel != 8 {
		t.Errorf("LightLevel = %v, want 8", snap.LightLevel)
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("UpdatedAt should be stamped")
	}

	if got, _ := broker.payloadFor("haiku_fan/speed"); got != "57" {
		t.Errorf("haiku_fan/speed = %q, want 57", got)
	}
	if got, _ := broker.payloadFor("haiku_fan/light_level"); got != "50" {
		t.Errorf("haiku_fan/light_level = %q, want 50", got)
	}

	// 8 per-key messages plus the aggregate.
	if got := len(broker.messages()); got != 9 {
		t.Errorf("published %d messages, want 9", got)
	}
}

func TestPollerPartialFailureKeepsOtherFields(t *testing.T) {
	dev := newFakeDevice()
	dev.power = senseme.PowerOn
	dev.failOn("GetSpeed", errors.New("timeout"))
	broker := newFakeBroker(true)
	p, cache := newTestPoller(t, dev, broker, time.Hour)

	p.PollNow()

	snap, ok := cache.Read()
	if !ok {
		t.Fatal("cache should be populated despite one failed read")
	}
	if snap.Speed != nil {
		t.Error("failed read should leave its fields absent")
	}
	if snap.Power == nil || *snap.Power != senseme.PowerOn {
		t.Errorf("Power = %v, want ON", snap.Power)
	}

	aggregate, ok := broker.payloadFor("haiku_fan/state")
	if !ok {
		t.Fatal("missing aggregate publish")
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(aggregate), &fields); err != nil {
		t.Fatalf("aggregate payload is not valid JSON: %v", err)
	}
	if _, present := fields["speed"]; present {
		t.Error("aggregate should omit the failed read's fields")
	}
}

func TestPollerTotalFailureKeepsLastKnownState(t *testing.T) {
	dev := newFakeDevice()
	for _, method := range []string{"GetPower", "GetSpeed", "GetWhoosh", "GetLightLevel"} {
		dev.failOn(method, errors.New("unreachable"))
	}
	broker := newFakeBroker(true)
	p, cache := newTestPoller(t, dev, broker, time.Hour)

	previous := fullSnapshot()
	cache.Replace(previous)

	p.PollNow()

	snap, ok := cache.Read()
	if !ok {
		t.Fatal("cache should keep the previous snapshot")
	}
	if snap.Speed == nil || *snap.Speed != 4 {
		t.Errorf("Speed = %v, want the stale 4", snap.Speed)
	}
	if !snap.UpdatedAt.Equal(previous.UpdatedAt) {
		t.Error("a fully failed cycle must not touch the timestamp")
	}
	if len(broker.messages()) != 0 {
		t.Error("a fully failed cycle must not publish")
	}
}

func TestPollerTotalFailureEmptyCache(t *testing.T) {
	dev := newFakeDevice()
	for _, method := range []string{"GetPower", "GetSpeed", "GetWhoosh", "GetLightLevel"} {
		dev.failOn(method, errors.New("unreachable"))
	}
	broker := newFakeBroker(true)
	p, cache := newTestPoller(t, dev, broker, time.Hour)

	p.PollNow()

	if _, ok := cache.Read(); ok {
		t.Error("cache should stay empty when every read fails")
	}
}

func TestPollerStartRunsInitialCycle(t *testing.T) {
	dev := newFakeDevice()
	broker := newFakeBroker(true)
	p, cache := newTestPoller(t, dev, broker, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)
	defer p.Stop()

	waitFor(t, "initial poll cycle", func() bool {
		_, ok := cache.Read()
		return ok
	})
}

func TestPollerTicksAndStops(t *testing.T) {
	dev := newFakeDevice()
	broker := newFakeBroker(true)
	p, _ := newTestPoller(t, dev, broker, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p.Start(ctx)

	waitFor(t, "at least two poll cycles", func() bool {
		return dev.callCount("GetPower") >= 2
	})

	p.Stop()
	after := dev.callCount("GetPower")

	time.Sleep(60 * time.Millisecond)
	if dev.callCount("GetPower") != after {
		t.Error("poll cycles must stop after Stop")
	}

	p.Stop() // idempotent
}

func TestPollerContextCancelStopsLoop(t *testing.T) {
	dev := newFakeDevice()
	broker := newFakeBroker(true)
	p, cache := newTestPoller(t, dev, broker, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	defer p.Stop()

	waitFor(t, "initial poll cycle", func() bool {
		_, ok := cache.Read()
		return ok
	})

	cancel()
	time.Sleep(30 * time.Millisecond)
	after := dev.callCount("GetPower")

	time.Sleep(60 * time.Millisecond)
	if dev.callCount("GetPower") != after {
		t.Error("poll cycles must stop after context cancellation")
	}
}

func TestNewPollerValidation(t *testing.T) {
	dev := newFakeDevice()
	broker := newFakeBroker(true)
	cache := NewStateCache()
	pub, _ := NewPublisher(broker, mqtt.Topics{})

	if _, err := NewPoller(PollerConfig{Cache: cache, Publisher: pub}); err == nil {
		t.Error("NewPoller without device should fail")
	}
	if _, err := NewPoller(PollerConfig{Device: dev, Publisher: pub}); err == nil {
		t.Error("NewPoller without cache should fail")
	}
	if _, err := NewPoller(PollerConfig{Device: dev, Cache: cache}); err == nil {
		t.Error("NewPoller without publisher should fail")
	}

	p, err := NewPoller(PollerConfig{Device: dev, Cache: cache, Publisher: pub})
	if err != nil {
		t.Fatalf("NewPoller failed: %v", err)
	}
	if p.interval != defaultPollInterval {
		t.Errorf("interval = %v, want default %v", p.interval, defaultPollInterval)
	}
}
