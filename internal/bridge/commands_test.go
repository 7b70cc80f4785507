package bridge

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haikubridge/haikubridge/internal/infrastructure/mqtt"
)

// fakeSubscriber implements Subscriber for testing. Delivering a
// payload invokes the registered handler synchronously, the way the
// MQTT client's delivery loop would.
type fakeSubscriber struct {
	mu       sync.Mutex
	failFor  string
	handlers map[string]mqtt.MessageHandler
	qos      map[string]byte
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{
		handlers: make(map[string]mqtt.MessageHandler),
		qos:      make(map[string]byte),
	}
}

func (s *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topic == s.failFor {
		return errors.New("subscribe refused")
	}
	s.handlers[topic] = handler
	s.qos[topic] = qos
	return nil
}

func (s *fakeSubscriber) deliver(t *testing.T, topic, payload string) error {
	t.Helper()
	s.mu.Lock()
	handler, ok := s.handlers[topic]
	s.mu.Unlock()
	if !ok {
		t.Fatalf("no handler registered for %s", topic)
	}
	return handler(topic, []byte(payload))
}

func (s *fakeSubscriber) topicCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handlers)
}

func (s *fakeSubscriber) hasTopic(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handlers[topic]
	return ok
}

// newTestCommands wires a full ingress chain over fakes and starts it.
func newTestCommands(t *testing.T) (*Commands, *fakeDevice, *fakeSubscriber) {
	t.Helper()
	dev := newFakeDevice()
	broker := newFakeBroker(true)
	d, _ := newTestDispatcher(t, dev, broker)

	sub := newFakeSubscriber()
	cmds, err := NewCommands(CommandsConfig{
		Subscriber: sub,
		Dispatcher: d,
		Topics:     mqtt.Topics{},
		QoS:        1,
	})
	if err != nil {
		t.Fatalf("NewCommands failed: %v", err)
	}
	if err := cmds.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(cmds.Stop)
	return cmds, dev, sub
}

func TestCommandsStartSubscribesFourTopics(t *testing.T) {
	_, _, sub := newTestCommands(t)

	want := []string{
		"haiku_fan/power/set",
		"haiku_fan/speed/set",
		"haiku_fan/light_power/set",
		"haiku_fan/light_level/set",
	}
	for _, topic := range want {
		if !sub.hasTopic(topic) {
			t.Errorf("missing subscription for %s", topic)
		}
	}
	if sub.topicCount() != len(want) {
		t.Errorf("subscribed to %d topics, want %d", sub.topicCount(), len(want))
	}
	if sub.hasTopic("haiku_fan/whoosh/set") {
		t.Error("whoosh must not have a command topic")
	}
}

func TestCommandsPowerPayload(t *testing.T) {
	_, dev, sub := newTestCommands(t)

	if err := sub.deliver(t, "haiku_fan/power/set", "ON"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	waitFor(t, "SetPower(ON)", func() bool {
		return dev.callCount("SetPower(ON)") == 1
	})
}

func TestCommandsPowerPayloadCaseInsensitive(t *testing.T) {
	_, dev, sub := newTestCommands(t)

	if err := sub.deliver(t, "haiku_fan/power/set", " off "); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	waitFor(t, "SetPower(OFF)", func() bool {
		return dev.callCount("SetPower(OFF)") == 1
	})
}

func TestCommandsSpeedScaleHeuristic(t *testing.T) {
	tests := []struct {
		payload  string
		wantCall string
	}{
		{"0", "SetSpeed(0)"},   // raw
		{"7", "SetSpeed(7)"},   // raw max
		{"57", "SetSpeed(4)"},  // >7, treated as percent
		{"100", "SetSpeed(7)"}, // percent max
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			_, dev, sub := newTestCommands(t)

			if err := sub.deliver(t, "haiku_fan/speed/set", tt.payload); err != nil {
				t.Fatalf("deliver failed: %v", err)
			}
			waitFor(t, tt.wantCall, func() bool {
				return dev.callCount(tt.wantCall) == 1
			})
		})
	}
}

func TestCommandsLightLevelScaleHeuristic(t *testing.T) {
	tests := []struct {
		payload  string
		wantCall string
	}{
		{"16", "SetLightLevel(16)"}, // raw max
		{"50", "SetLightLevel(8)"},  // >16, treated as percent
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			_, dev, sub := newTestCommands(t)

			if err := sub.deliver(t, "haiku_fan/light_level/set", tt.payload); err != nil {
				t.Fatalf("deliver failed: %v", err)
			}
			waitFor(t, tt.wantCall, func() bool {
				return dev.callCount(tt.wantCall) == 1
			})
		})
	}
}

func TestCommandsMalformedPayloadRejected(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"power garbage", "haiku_fan/power/set", "BLAST"},
		{"speed not a number", "haiku_fan/speed/set", "fast"},
		{"speed empty", "haiku_fan/speed/set", ""},
		{"speed blank", "haiku_fan/speed/set", "   "},
		{"light_power numeric", "haiku_fan/light_power/set", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, dev, sub := newTestCommands(t)

			err := sub.deliver(t, tt.topic, tt.payload)
			if !errors.Is(err, ErrInvalidIntent) {
				t.Errorf("deliver error = %v, want ErrInvalidIntent", err)
			}
			if dev.callCount("Set") != 0 {
				t.Error("malformed payload should never reach the device")
			}
		})
	}
}

func TestCommandsOutOfRangeDroppedAsync(t *testing.T) {
	_, dev, sub := newTestCommands(t)

	// "-3" parses as a number, so delivery succeeds and the dispatcher
	// rejects it asynchronously.
	if err := sub.deliver(t, "haiku_fan/speed/set", "-3"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	if err := sub.deliver(t, "haiku_fan/speed/set", "7"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	waitFor(t, "SetSpeed(7)", func() bool {
		return dev.callCount("SetSpeed(7)") == 1
	})
	if dev.callCount("SetSpeed") != 1 {
		t.Errorf("SetSpeed calls = %d, want 1 (out-of-range command dropped)", dev.callCount("SetSpeed"))
	}
}

func TestCommandsStopDrainsInFlight(t *testing.T) {
	cmds, dev, sub := newTestCommands(t)

	if err := sub.deliver(t, "haiku_fan/power/set", "ON"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}

	cmds.Stop()

	if dev.callCount("SetPower(ON)") != 1 {
		t.Error("Stop should wait for the in-flight command's write")
	}

	// Deliveries after Stop are dropped without spawning work.
	if err := sub.deliver(t, "haiku_fan/power/set", "OFF"); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if dev.callCount("SetPower") != 1 {
		t.Error("commands delivered after Stop should be dropped")
	}

	cmds.Stop() // idempotent
}

func TestCommandsSubscribeFailure(t *testing.T) {
	dev := newFakeDevice()
	broker := newFakeBroker(true)
	d, _ := newTestDispatcher(t, dev, broker)

	sub := newFakeSubscriber()
	sub.failFor = "haiku_fan/speed/set"

	cmds, err := NewCommands(CommandsConfig{
		Subscriber: sub,
		Dispatcher: d,
		Topics:     mqtt.Topics{},
		QoS:        1,
	})
	if err != nil {
		t.Fatalf("NewCommands failed: %v", err)
	}
	defer cmds.Stop()

	err = cmds.Start()
	if err == nil {
		t.Fatal("Start should fail when a subscription is refused")
	}
	if !strings.Contains(err.Error(), "haiku_fan/speed/set") {
		t.Errorf("error %q should name the failing topic", err)
	}
}

func TestNewCommandsValidation(t *testing.T) {
	dev := newFakeDevice()
	broker := newFakeBroker(true)
	d, _ := newTestDispatcher(t, dev, broker)

	if _, err := NewCommands(CommandsConfig{Dispatcher: d}); err == nil {
		t.Error("NewCommands without subscriber should fail")
	}
	if _, err := NewCommands(CommandsConfig{Subscriber: newFakeSubscriber()}); err == nil {
		t.Error("NewCommands without dispatcher should fail")
	}
}

func TestParseIntentTable(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		payload string
		want    Intent
		wantErr bool
	}{
		{
			name:    "power on",
			field:   FieldPower,
			payload: "ON",
			want:    Intent{Field: FieldPower, State: "ON"},
		},
		{
			name:    "whoosh lowercase off",
			field:   FieldWhoosh,
			payload: "off",
			want:    Intent{Field: FieldWhoosh, State: "OFF"},
		},
		{
			name:    "speed raw boundary",
			field:   FieldSpeed,
			payload: "7",
			want:    Intent{Field: FieldSpeed, Level: 7, Scale: ScaleRaw},
		},
		{
			name:    "speed percent boundary",
			field:   FieldSpeed,
			payload: "8",
			want:    Intent{Field: FieldSpeed, Level: 8, Scale: ScalePercent},
		},
		{
			name:    "light raw boundary",
			field:   FieldLightLevel,
			payload: "16",
			want:    Intent{Field: FieldLightLevel, Level: 16, Scale: ScaleRaw},
		},
		{
			name:    "light percent boundary",
			field:   FieldLightLevel,
			payload: "17",
			want:    Intent{Field: FieldLightLevel, Level: 17, Scale: ScalePercent},
		},
		{
			name:    "speed float rejected",
			field:   FieldSpeed,
			payload: "3.5",
			wantErr: true,
		},
		{
			name:    "unknown field",
			field:   "direction",
			payload: "1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIntent(tt.field, []byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseIntent() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got != tt.want {
				t.Errorf("parseIntent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
