package bridge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/haikubridge/haikubridge/internal/infrastructure/mqtt"
	"github.com/haikubridge/haikubridge/internal/senseme"
)

// commandFields are the attributes that accept MQTT set commands.
// Whoosh has no command topic; it is set through the HTTP API only.
var commandFields = []Field{FieldPower, FieldSpeed, FieldLightPower, FieldLightLevel}

// Subscriber is the MQTT surface the command ingress consumes.
// *mqtt.Client satisfies it.
type Subscriber interface {
	// Subscribe registers a handler for a topic.
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Commands subscribes to the per-field command topics and turns MQTT
// payloads into dispatched intents. Each accepted command runs in its
// own goroutine so a slow fan round trip never blocks the broker's
// delivery loop.
type Commands struct {
	subscriber Subscriber
	dispatcher *Dispatcher
	topics     mqtt.Topics
	qos        byte

	// Shutdown coordination
	ctx       context.Context
	ctxCancel context.CancelFunc
	mu        sync.Mutex // guards stopped and wg.Add ordering against Stop
	stopped   bool
	wg        sync.WaitGroup
	stopOnce  sync.Once

	logger Logger
}

// CommandsConfig holds construction parameters for the command ingress.
type CommandsConfig struct {
	// Subscriber is the MQTT client to subscribe through.
	Subscriber Subscriber

	// Dispatcher executes parsed intents.
	Dispatcher *Dispatcher

	// Topics is the topic layout, shared with the publisher.
	Topics mqtt.Topics

	// QoS is the subscription QoS level.
	QoS byte
}

// NewCommands creates the command ingress. Call Start to subscribe.
func NewCommands(cfg CommandsConfig) (*Commands, error) {
	if cfg.Subscriber == nil {
		return nil, fmt.Errorf("subscriber is required")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	return &Commands{
		subscriber: cfg.Subscriber,
		dispatcher: cfg.Dispatcher,
		topics:     cfg.Topics,
		qos:        cfg.QoS,
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     noopLogger{},
	}, nil
}

// SetLogger sets the logger for the command ingress.
func (c *Commands) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Start subscribes to the {base}/{field}/set topic for every
// commandable field. Subscriptions survive broker reconnects; the MQTT
// client replays them on every connect.
func (c *Commands) Start() error {
	for _, field := range commandFields {
		field := field
		topic := c.topics.CommandSet(string(field))
		handler := func(_ string, payload []byte) error {
			return c.handle(field, payload)
		}
		if err := c.subscriber.Subscribe(topic, c.qos, handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		c.logger.Debug("subscribed to command topic", "topic", topic)
	}

	c.logger.Info("command ingress started", "topics", len(commandFields))
	return nil
}

// Stop drains in-flight commands. In-flight device writes complete;
// their settle waits are cut short by the cancelled context, so pending
// read-backs are skipped.
func (c *Commands) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()

		c.ctxCancel()
		c.wg.Wait()

		c.logger.Info("command ingress stopped")
	})
}

// handle parses one command payload and dispatches it asynchronously.
// Parse failures are returned to the MQTT client, which logs them with
// the topic attached; dispatch failures are logged here.
func (c *Commands) handle(field Field, payload []byte) error {
	intent, err := parseIntent(field, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		if _, err := c.dispatcher.Handle(c.ctx, intent); err != nil {
			c.logger.Error("command failed",
				"field", string(field),
				"payload", string(payload),
				"error", err)
			return
		}
		c.logger.Info("command applied",
			"field", string(field),
			"payload", string(payload))
	}()

	return nil
}

// parseIntent converts a raw MQTT payload into an intent.
//
// Switch fields accept ON or OFF, case-insensitive. Numeric fields
// accept a bare integer; a value above the field's raw maximum is
// treated as a percentage, so "57" means 57% while "4" means raw
// speed 4.
func parseIntent(field Field, payload []byte) (Intent, error) {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return Intent{}, fmt.Errorf("%w: empty payload", ErrInvalidIntent)
	}

	switch field {
	case FieldPower, FieldWhoosh, FieldLightPower:
		state, err := senseme.ParsePowerState(text)
		if err != nil {
			return Intent{}, fmt.Errorf("%w: %s payload %q", ErrInvalidIntent, field, text)
		}
		return Intent{Field: field, State: state}, nil

	case FieldSpeed:
		return numericIntent(field, text, senseme.SpeedMax)

	case FieldLightLevel:
		return numericIntent(field, text, senseme.LightMax)

	default:
		return Intent{}, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
}

func numericIntent(field Field, text string, rawMax int) (Intent, error) {
	level, err := strconv.Atoi(text)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %s payload %q is not a number", ErrInvalidIntent, field, text)
	}

	scale := ScaleRaw
	if level > rawMax {
		scale = ScalePercent
	}
	return Intent{Field: field, Level: level, Scale: scale}, nil
}
