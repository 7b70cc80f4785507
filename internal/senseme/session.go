package senseme

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Defaults for device communication.
const (
	// DefaultPort is the UDP port Haiku controllers listen on.
	DefaultPort = 31415

	// defaultReceiveTimeout bounds each wait for a reply datagram.
	defaultReceiveTimeout = 5 * time.Second

	// readBufferSize is the reply read buffer size. Frames are short
	// ASCII strings; 1 KiB matches the controller's own datagram limit.
	readBufferSize = 1024

	// defaultLightMemory is the level restored by the first light
	// power-ON when no nonzero level has been observed yet.
	defaultLightMemory = LightMax
)

// PowerState is an ON/OFF switch token as the device represents it.
type PowerState string

// Switch tokens used on the wire.
const (
	PowerOn  PowerState = "ON"
	PowerOff PowerState = "OFF"
)

// ParsePowerState normalizes a textual switch token. Matching is
// case-insensitive with surrounding whitespace ignored; anything other
// than ON or OFF is rejected with ErrInvalidState.
func ParsePowerState(s string) (PowerState, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(PowerOn):
		return PowerOn, nil
	case string(PowerOff):
		return PowerOff, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidState, s)
	}
}

// Config holds device session settings.
type Config struct {
	// Host is the fan controller's address (IP or resolvable name).
	Host string

	// Port is the controller's UDP port. Default: 31415.
	Port int

	// Name is the device's protocol addressing prefix. Leave empty to
	// discover it during connect.
	Name string

	// ReceiveTimeout bounds each wait for a reply datagram.
	// Default: 5 seconds.
	ReceiveTimeout time.Duration
}

// Stats holds operational counters for the session.
type Stats struct {
	CommandsSent    uint64
	RepliesReceived uint64
	Timeouts        uint64
	ErrorsTotal     uint64
	Reconnects      uint64 // lazy (re)connections performed inside operations
	LastActivity    time.Time
	Connected       bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Session owns the UDP socket to one fan controller and serializes all
// command round trips over it.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//
// Concurrency model:
//   - The wire protocol has no correlation IDs, so a reply can only be
//     attributed to the most recently sent command. One mutex is held
//     for the entire reconnect/send/receive/decode cycle; at most one
//     command is ever in flight.
//   - Any transport fault (send error, timeout, undecodable reply)
//     drops the socket; the next operation reconnects transparently.
//     There are no automatic retries within an operation.
type Session struct {
	cfg Config

	// mu serializes complete command round trips and guards conn and
	// lightMemory.
	mu   sync.Mutex
	conn *net.UDPConn

	// lightMemory is the last observed nonzero light level, restored
	// by SetLightPower(ON). Always in [1,16]. Guarded by mu.
	lightMemory int

	// stateMu guards the connection flag and identity so health checks
	// and frame building never wait behind an in-flight round trip.
	stateMu   sync.RWMutex
	connected bool
	name      string

	closed atomic.Bool

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for cheap reads)
	commandsSent    atomic.Uint64
	repliesReceived atomic.Uint64
	timeouts        atomic.Uint64
	errorsTotal     atomic.Uint64
	reconnects      atomic.Uint64
	lastActivity    atomic.Int64 // Unix timestamp
}

// NewSession creates a session for the device described by cfg. No
// network I/O happens until Connect or the first typed operation.
func NewSession(cfg Config) *Session {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.ReceiveTimeout == 0 {
		cfg.ReceiveTimeout = defaultReceiveTimeout
	}
	return &Session{
		cfg:         cfg,
		lightMemory: defaultLightMemory,
	}
}

// Connect allocates the UDP socket and resolves the device identity.
//
// Identity discovery fails open: a fan that does not answer the
// discovery probe leaves the session connected with an empty name, and
// commands are sent with an empty prefix. Calling Connect is optional;
// the first operation connects lazily.
//
// Returns:
//   - error: Only when the address cannot be resolved or the socket
//     cannot be allocated.
func (s *Session) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connectLocked()
}

// connectLocked implements Connect. Callers must hold mu.
func (s *Session) connectLocked() error {
	if s.closed.Load() {
		return ErrClosed
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %w", ErrConnectFailed, s.cfg.Host, err)
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.conn = conn

	name := s.cfg.Name
	if name == "" {
		// Identity survives reconnects once discovered.
		name = s.Name()
	}
	if name == "" {
		discovered, derr := s.discoverLocked()
		if derr != nil {
			s.logWarn("device identity discovery failed, continuing with empty name", "error", derr)
			if s.conn == nil {
				// The failed probe dropped the socket; reopen it so the
				// session still comes up connected.
				conn, err := net.DialUDP("udp", nil, addr)
				if err != nil {
					return fmt.Errorf("%w: %w", ErrConnectFailed, err)
				}
				s.conn = conn
			}
		} else {
			name = discovered
		}
	}

	s.stateMu.Lock()
	s.connected = true
	s.name = name
	s.stateMu.Unlock()

	s.logInfo("session connected", "host", s.cfg.Host, "port", s.cfg.Port, "name", name)
	return nil
}

// discoverLocked asks the device for its identity using the broadcast
// discovery frame. Callers must hold mu.
func (s *Session) discoverLocked() (string, error) {
	reply, err := s.exchangeLocked(EncodeCommand("ALL", "DEVICE", "ID", "GET"))
	if err != nil {
		return "", err
	}
	fields, err := DecodeReply(reply)
	if err != nil {
		return "", err
	}
	name, err := ReplyField(fields, replyIdxName)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", fmt.Errorf("%w: empty device name", ErrMalformedReply)
	}
	return name, nil
}

// command runs one full locked round trip and decodes the reply.
func (s *Session) command(fields ...string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commandLocked(fields...)
}

// commandLocked implements command. Callers must hold mu.
//
// The whole sequence — lazy reconnect, frame build, send, receive,
// decode — runs under the session lock so the reply that arrives is
// attributed to the command just sent.
func (s *Session) commandLocked(fields ...string) ([]string, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if s.conn == nil {
		if err := s.connectLocked(); err != nil {
			return nil, err
		}
		s.reconnects.Add(1)
	}

	reply, err := s.exchangeLocked(EncodeCommand(s.Name(), fields...))
	if err != nil {
		return nil, err
	}

	decoded, err := DecodeReply(reply)
	if err != nil {
		// An undecodable reply leaves the pairing of commands and
		// replies in doubt; drop the socket so the next operation
		// starts clean.
		s.errorsTotal.Add(1)
		s.dropLocked()
		return nil, err
	}
	return decoded, nil
}

// exchangeLocked sends one frame and waits for one reply datagram.
// Callers must hold mu. Any transport fault drops the socket.
func (s *Session) exchangeLocked(frame string) (string, error) {
	if s.conn == nil {
		return "", ErrNotConnected
	}

	if err := s.conn.SetDeadline(time.Now().Add(s.cfg.ReceiveTimeout)); err != nil {
		s.errorsTotal.Add(1)
		s.dropLocked()
		return "", fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
	}

	s.logDebug("sending command", "frame", frame)
	if _, err := s.conn.Write([]byte(frame)); err != nil {
		s.errorsTotal.Add(1)
		s.dropLocked()
		return "", fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	s.commandsSent.Add(1)

	buf := make([]byte, readBufferSize)
	n, err := s.conn.Read(buf)
	if err != nil {
		s.dropLocked()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			s.timeouts.Add(1)
			return "", fmt.Errorf("%w: no reply within %s", ErrTimeout, s.cfg.ReceiveTimeout)
		}
		s.errorsTotal.Add(1)
		return "", fmt.Errorf("%w: %w", ErrReceiveFailed, err)
	}
	s.repliesReceived.Add(1)
	s.lastActivity.Store(time.Now().Unix())

	reply := strings.TrimSpace(string(buf[:n]))
	s.logDebug("received reply", "frame", reply)
	return reply, nil
}

// dropLocked tears down the socket so the next operation reconnects.
// Callers must hold mu.
func (s *Session) dropLocked() {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.stateMu.Lock()
	s.connected = false
	s.stateMu.Unlock()
}

// GetPower reads the fan motor's power state.
func (s *Session) GetPower() (PowerState, error) {
	fields, err := s.command("FAN", "PWR", "GET", "ACTUAL")
	if err != nil {
		return "", err
	}
	return replyState(fields, replyIdxPower)
}

// SetPower switches the fan motor. Any reply arriving before the
// deadline counts as acceptance; set replies carry no value.
func (s *Session) SetPower(state PowerState) error {
	norm, err := ParsePowerState(string(state))
	if err != nil {
		return err
	}
	_, err = s.command("FAN", "PWR", string(norm))
	return err
}

// GetSpeed reads the rotation speed on the raw 0-7 scale.
func (s *Session) GetSpeed() (int, error) {
	fields, err := s.command("FAN", "SPD", "GET", "ACTUAL")
	if err != nil {
		return 0, err
	}
	return replyIntInRange(fields, replyIdxActual, SpeedMin, SpeedMax)
}

// SetSpeed sets the rotation speed on the raw 0-7 scale. Out-of-range
// values are rejected without touching the device.
func (s *Session) SetSpeed(speed int) error {
	if speed < SpeedMin || speed > SpeedMax {
		return fmt.Errorf("%w: speed %d outside [%d,%d]", ErrValueOutOfRange, speed, SpeedMin, SpeedMax)
	}
	_, err := s.command("FAN", "SPD", "SET", strconv.Itoa(speed))
	return err
}

// GetWhoosh reads the whoosh mode state.
func (s *Session) GetWhoosh() (PowerState, error) {
	fields, err := s.command("FAN", "WHOOSH", "GET", "ACTUAL")
	if err != nil {
		return "", err
	}
	return replyState(fields, replyIdxActual)
}

// SetWhoosh switches the whoosh breeze-simulation mode.
func (s *Session) SetWhoosh(state PowerState) error {
	norm, err := ParsePowerState(string(state))
	if err != nil {
		return err
	}
	_, err = s.command("FAN", "WHOOSH", string(norm))
	return err
}

// GetLightLevel reads the light brightness on the raw 0-16 scale.
func (s *Session) GetLightLevel() (int, error) {
	fields, err := s.command("LIGHT", "LEVEL", "GET", "ACTUAL")
	if err != nil {
		return 0, err
	}
	return replyIntInRange(fields, replyIdxActual, LightMin, LightMax)
}

// SetLightLevel sets the light brightness on the raw 0-16 scale.
// Out-of-range values are rejected without touching the device.
func (s *Session) SetLightLevel(level int) error {
	if level < LightMin || level > LightMax {
		return fmt.Errorf("%w: light level %d outside [%d,%d]", ErrValueOutOfRange, level, LightMin, LightMax)
	}
	_, err := s.command("LIGHT", "LEVEL", "SET", strconv.Itoa(level))
	return err
}

// GetLightPower reports the light state derived from its level. The
// device has no separate light power attribute; nonzero means ON.
func (s *Session) GetLightPower() (PowerState, error) {
	level, err := s.GetLightLevel()
	if err != nil {
		return "", err
	}
	if level > LightMin {
		return PowerOn, nil
	}
	return PowerOff, nil
}

// SetLightPower switches the light by driving its brightness level.
//
// OFF first reads the current level and, when nonzero, stores it as
// the restore point, then sets the level to 0. ON sets the level to
// the stored restore point (full brightness until a nonzero level has
// been observed). The coupled read+write runs under the session lock
// so a concurrent operation cannot slip between them.
func (s *Session) SetLightPower(state PowerState) error {
	norm, err := ParsePowerState(string(state))
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if norm == PowerOff {
		if fields, gerr := s.commandLocked("LIGHT", "LEVEL", "GET", "ACTUAL"); gerr == nil {
			if level, lerr := replyIntInRange(fields, replyIdxActual, LightMin, LightMax); lerr == nil && level > LightMin {
				s.lightMemory = level
			}
		}
		_, err = s.commandLocked("LIGHT", "LEVEL", "SET", "0")
		return err
	}

	_, err = s.commandLocked("LIGHT", "LEVEL", "SET", strconv.Itoa(s.lightMemory))
	return err
}

// replyState extracts and validates an ON/OFF token from a reply.
func replyState(fields []string, index int) (PowerState, error) {
	token, err := ReplyField(fields, index)
	if err != nil {
		return "", err
	}
	state, err := ParsePowerState(token)
	if err != nil {
		return "", fmt.Errorf("%w: unexpected state token %q", ErrMalformedReply, token)
	}
	return state, nil
}

// replyIntInRange extracts an integer from a reply and rejects values
// outside the attribute's scale, so garbage is never cached upstream.
func replyIntInRange(fields []string, index, minVal, maxVal int) (int, error) {
	value, err := ReplyIntField(fields, index)
	if err != nil {
		return 0, err
	}
	if value < minVal || value > maxVal {
		return 0, fmt.Errorf("%w: value %d outside [%d,%d]", ErrMalformedReply, value, minVal, maxVal)
	}
	return value, nil
}

// Name returns the device identity used as the frame prefix. Empty
// until discovered.
func (s *Session) Name() string {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.name
}

// IsConnected reports whether the socket is allocated and the identity
// resolved. UDP gives no liveness guarantee; a connected session can
// still time out on the next command.
func (s *Session) IsConnected() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.connected
}

// Stats returns current operational statistics.
func (s *Session) Stats() Stats {
	return Stats{
		CommandsSent:    s.commandsSent.Load(),
		RepliesReceived: s.repliesReceived.Load(),
		Timeouts:        s.timeouts.Load(),
		ErrorsTotal:     s.errorsTotal.Load(),
		Reconnects:      s.reconnects.Load(),
		LastActivity:    time.Unix(s.lastActivity.Load(), 0),
		Connected:       s.IsConnected(),
	}
}

// SetLogger sets the logger for this session.
func (s *Session) SetLogger(logger Logger) {
	s.loggerMu.Lock()
	s.logger = logger
	s.loggerMu.Unlock()
}

// Close releases the socket. It waits for an in-flight round trip to
// finish or time out rather than interrupting it. Safe to call
// multiple times; operations after Close return ErrClosed.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	s.stateMu.Lock()
	s.connected = false
	s.stateMu.Unlock()

	s.logInfo("session closed")
	return nil
}

// logDebug logs a debug message if a logger is set.
func (s *Session) logDebug(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}

// logInfo logs an info message if a logger is set.
func (s *Session) logInfo(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logWarn logs a warning if a logger is set.
func (s *Session) logWarn(msg string, keysAndValues ...any) {
	s.loggerMu.RLock()
	logger := s.logger
	s.loggerMu.RUnlock()

	if logger != nil {
		logger.Warn(msg, keysAndValues...)
	}
}
