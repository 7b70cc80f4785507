package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/haikubridge/haikubridge/internal/senseme"
)

// defaultSettleDelay is how long the dispatcher waits between writing a
// value and reading it back. The fan applies writes asynchronously; an
// immediate read returns the value being replaced.
const defaultSettleDelay = 1 * time.Second

// Dispatcher validates intents, writes them to the fan, and reconciles
// the observed result into the cache and out to MQTT. It is the single
// write path shared by the HTTP API and the MQTT command ingress.
//
// Thread Safety: Handle is safe for concurrent use; the underlying
// session serializes device round trips.
type Dispatcher struct {
	device    Device
	cache     *StateCache
	publisher *Publisher
	settle    time.Duration
	logger    Logger
}

// DispatcherConfig holds construction parameters for a Dispatcher.
type DispatcherConfig struct {
	// Device is the fan to drive.
	Device Device

	// Cache receives read-back patches.
	Cache *StateCache

	// Publisher pushes reconciled state to MQTT.
	Publisher *Publisher

	// SettleDelay overrides the write-to-read-back delay.
	// Zero means the 1 second default.
	SettleDelay time.Duration
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("device is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}

	settle := cfg.SettleDelay
	if settle <= 0 {
		settle = defaultSettleDelay
	}

	return &Dispatcher{
		device:    cfg.Device,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		settle:    settle,
		logger:    noopLogger{},
	}, nil
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Result reports the outcome of a dispatched intent.
type Result struct {
	// Field is the attribute that was written.
	Field Field

	// Snapshot holds the fields confirmed by read-back. It is empty
	// when the read-back failed; the write itself still succeeded.
	Snapshot Snapshot
}

// Handle validates the intent, writes it to the fan, waits for the
// settle delay, reads the affected attribute back, patches the cache,
// and publishes the confirmed fields.
//
// The read-back is authoritative: the fan snaps levels to its raw
// scale, so the confirmed value can differ from the requested one.
// A failed read-back is logged and reported as success with an empty
// Result.Snapshot. If ctx ends during the settle wait the write has
// already been sent; Handle returns ctx.Err() without reading back.
func (d *Dispatcher) Handle(ctx context.Context, intent Intent) (Result, error) {
	if err := d.apply(intent); err != nil {
		return Result{}, err
	}

	select {
	case <-time.After(d.settle):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	patch, err := d.readBack(intent.Field)
	if err != nil {
		d.logger.Warn("read-back failed",
			"field", string(intent.Field),
			"error", err)
		return Result{Field: intent.Field}, nil
	}

	d.cache.Patch(patch)

	if err := d.publisher.PublishFields(patch); err != nil {
		d.logger.Warn("state publish failed",
			"field", string(intent.Field),
			"error", err)
	}

	d.logger.Debug("intent applied", "field", string(intent.Field))

	return Result{Field: intent.Field, Snapshot: patch}, nil
}

// apply validates the intent and performs the device write.
func (d *Dispatcher) apply(intent Intent) error {
	switch intent.Field {
	case FieldPower:
		if err := validState(intent); err != nil {
			return err
		}
		return d.device.SetPower(intent.State)

	case FieldWhoosh:
		if err := validState(intent); err != nil {
			return err
		}
		return d.device.SetWhoosh(intent.State)

	case FieldLightPower:
		if err := validState(intent); err != nil {
			return err
		}
		return d.device.SetLightPower(intent.State)

	case FieldSpeed:
		raw, err := d.resolveLevel(intent, senseme.SpeedMin, senseme.SpeedMax, senseme.RawSpeedFromPercent)
		if err != nil {
			return err
		}
		return d.device.SetSpeed(raw)

	case FieldLightLevel:
		raw, err := d.resolveLevel(intent, senseme.LightMin, senseme.LightMax, senseme.RawLightFromPercent)
		if err != nil {
			return err
		}
		return d.device.SetLightLevel(raw)

	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, string(intent.Field))
	}
}

// validState rejects switch intents whose state is neither ON nor OFF.
func validState(intent Intent) error {
	if intent.State != senseme.PowerOn && intent.State != senseme.PowerOff {
		return fmt.Errorf("%w: %s state %q", ErrInvalidIntent, intent.Field, string(intent.State))
	}
	return nil
}

// resolveLevel converts an intent level to raw device units, validating
// against the field's scale bounds.
func (d *Dispatcher) resolveLevel(intent Intent, rawMin, rawMax int, fromPercent func(int) int) (int, error) {
	switch intent.Scale {
	case ScalePercent:
		if intent.Level < 0 || intent.Level > senseme.PercentMax {
			return 0, fmt.Errorf("%w: %s percent %d out of range 0-%d",
				ErrInvalidIntent, intent.Field, intent.Level, senseme.PercentMax)
		}
		raw := fromPercent(intent.Level)
		d.logger.Debug("percent converted to raw",
			"field", string(intent.Field),
			"percent", intent.Level,
			"raw", raw)
		return raw, nil

	case ScaleRaw, "":
		if intent.Level < rawMin || intent.Level > rawMax {
			return 0, fmt.Errorf("%w: %s level %d out of range %d-%d",
				ErrInvalidIntent, intent.Field, intent.Level, rawMin, rawMax)
		}
		return intent.Level, nil

	default:
		return 0, fmt.Errorf("%w: unknown scale %q", ErrInvalidIntent, string(intent.Scale))
	}
}

// readBack reads the attribute group the write touched. Light power and
// light level share one device read: the level determines both, so a
// single GET refreshes the pair consistently.
func (d *Dispatcher) readBack(field Field) (Snapshot, error) {
	now := time.Now().UTC()

	switch field {
	case FieldPower:
		state, err := d.device.GetPower()
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Power: &state, UpdatedAt: now}, nil

	case FieldSpeed:
		raw, err := d.device.GetSpeed()
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Speed: &raw, UpdatedAt: now}, nil

	case FieldWhoosh:
		state, err := d.device.GetWhoosh()
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Whoosh: &state, UpdatedAt: now}, nil

	case FieldLightPower, FieldLightLevel:
		raw, err := d.device.GetLightLevel()
		if err != nil {
			return Snapshot{}, err
		}
		power := senseme.PowerOff
		if raw > senseme.LightMin {
			power = senseme.PowerOn
		}
		return Snapshot{
			LightPower: &power,
			LightLevel: &raw,
			UpdatedAt:  now,
		}, nil

	default:
		return Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
}
