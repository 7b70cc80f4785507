package bridge

import (
	"time"

	"github.com/haikubridge/haikubridge/internal/senseme"
)

// Field identifies a controllable fan attribute. Field values double as
// MQTT command topic segments ({base}/{field}/set) and as state keys.
type Field string

// Controllable fields.
const (
	FieldPower      Field = "power"
	FieldSpeed      Field = "speed"
	FieldWhoosh     Field = "whoosh"
	FieldLightPower Field = "light_power"
	FieldLightLevel Field = "light_level"
)

// Scale says how a numeric intent level is expressed.
type Scale string

const (
	// ScaleRaw means the level is in device units (0-7 for speed,
	// 0-16 for light). An empty Scale is treated as raw.
	ScaleRaw Scale = "raw"

	// ScalePercent means the level is 0-100 and is converted to device
	// units before the write.
	ScalePercent Scale = "percent"
)

// Intent is a request to change one fan attribute. State carries the
// target for the switch-like fields (power, whoosh, light_power); Level
// and Scale carry the target for the numeric fields (speed,
// light_level).
type Intent struct {
	Field Field
	State senseme.PowerState
	Level int
	Scale Scale
}

// Snapshot is a point-in-time view of fan state in raw device units:
// speed 0-7, light level 0-16. Pointer fields are nil when the value
// has not been observed, which lets a partial read-back patch only the
// fields it refreshed. Percentage mirrors are derived at the MQTT edge
// by the Publisher, never stored.
type Snapshot struct {
	Name       string              `json:"name,omitempty"`
	Power      *senseme.PowerState `json:"power,omitempty"`
	Speed      *int                `json:"speed,omitempty"`
	Whoosh     *senseme.PowerState `json:"whoosh,omitempty"`
	LightPower *senseme.PowerState `json:"light_power,omitempty"`
	LightLevel *int                `json:"light_level,omitempty"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

// clone returns a deep copy so shared snapshots cannot be mutated
// through retained pointers.
func (s Snapshot) clone() Snapshot {
	out := s
	out.Power = copyState(s.Power)
	out.Speed = copyInt(s.Speed)
	out.Whoosh = copyState(s.Whoosh)
	out.LightPower = copyState(s.LightPower)
	out.LightLevel = copyInt(s.LightLevel)
	return out
}

func copyState(p *senseme.PowerState) *senseme.PowerState {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Device is the fan control surface the bridge drives.
// *senseme.Session satisfies it; tests substitute a fake.
type Device interface {
	Name() string
	IsConnected() bool
	GetPower() (senseme.PowerState, error)
	SetPower(state senseme.PowerState) error
	GetSpeed() (int, error)
	SetSpeed(speed int) error
	GetWhoosh() (senseme.PowerState, error)
	SetWhoosh(state senseme.PowerState) error
	GetLightLevel() (int, error)
	SetLightLevel(level int) error
	GetLightPower() (senseme.PowerState, error)
	SetLightPower(state senseme.PowerState) error
}

var _ Device = (*senseme.Session)(nil)

// Logger defines the logging interface used by the bridge components.
// *slog.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
