package senseme

import (
	"fmt"
	"strconv"
	"strings"
)

// Frame layout constants.
const (
	// fieldSep separates fields inside a frame. The protocol defines no
	// escape mechanism, so field values must never contain it.
	fieldSep = ";"

	// commandOpen and commandClose delimit outbound command frames.
	commandOpen  = "<"
	commandClose = ">"

	// replyOpen and replyClose delimit inbound reply frames.
	replyOpen  = "("
	replyClose = ")"
)

// Reply value positions. The device echoes a varying number of
// qualifier fields, so the index of the value depends on the command.
const (
	// replyIdxName is the device name in a discovery reply:
	// (Name;DEVICE;ID;...)
	replyIdxName = 0

	// replyIdxPower is the state token in a fan power reply:
	// (Name;FAN;PWR;ON)
	replyIdxPower = 3

	// replyIdxActual is the value in replies that echo an ACTUAL
	// qualifier: (Name;FAN;SPD;ACTUAL;4), (Name;LIGHT;LEVEL;ACTUAL;10)
	replyIdxActual = 4
)

// EncodeCommand builds an outbound command frame.
//
// The name is the device's addressing prefix (may be empty, in which
// case the frame starts with the separator). Fields are joined with
// `;` and wrapped in angle brackets:
//
//	EncodeCommand("Living Room Fan", "FAN", "SPD", "SET", "4")
//	→ "<Living Room Fan;FAN;SPD;SET;4>"
func EncodeCommand(name string, fields ...string) string {
	var b strings.Builder
	b.Grow(len(name) + len(fields)*8 + 2)
	b.WriteString(commandOpen)
	b.WriteString(name)
	for _, f := range fields {
		b.WriteString(fieldSep)
		b.WriteString(f)
	}
	b.WriteString(commandClose)
	return b.String()
}

// DecodeReply splits an inbound reply frame into its ordered fields.
//
// The frame must be wrapped in parentheses; surrounding whitespace is
// tolerated. Returns ErrMalformedReply when the delimiters are missing
// or nothing is inside them. Values are accessed positionally by the
// caller because the value index differs per command.
func DecodeReply(frame string) ([]string, error) {
	frame = strings.TrimSpace(frame)
	if len(frame) < 2 || !strings.HasPrefix(frame, replyOpen) || !strings.HasSuffix(frame, replyClose) {
		return nil, fmt.Errorf("%w: %q", ErrMalformedReply, frame)
	}
	inner := frame[1 : len(frame)-1]
	if inner == "" {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformedReply)
	}
	return strings.Split(inner, fieldSep), nil
}

// ReplyField returns the field at index, or ErrMalformedReply when the
// reply carries too few fields.
func ReplyField(fields []string, index int) (string, error) {
	if index < 0 || index >= len(fields) {
		return "", fmt.Errorf("%w: field %d missing (%d fields)", ErrMalformedReply, index, len(fields))
	}
	return fields[index], nil
}

// ReplyIntField parses the field at index as a decimal integer.
func ReplyIntField(fields []string, index int) (int, error) {
	raw, err := ReplyField(fields, index)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: field %d is not an integer: %q", ErrMalformedReply, index, raw)
	}
	return value, nil
}
