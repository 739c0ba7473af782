package protocol

import (
	"fmt"
	"strings"
)

// EndOfLine is the line terminator the plotter UI appends to messages sent
// to the board. Its text form is the terminator itself, byte for byte.
type EndOfLine int

const (
	NoLineEnding EndOfLine = iota
	NewLine
	CarriageReturn
	CarriageReturnNewLine
)

// EOL lists the text form of every EndOfLine, in declaration order.
var EOL = []string{"", "\n", "\r", "\r\n"}

// ParseEndOfLine maps an exact terminator string to its EndOfLine.
func ParseEndOfLine(s string) (EndOfLine, error) {
	for i, v := range EOL {
		if v == s {
			return EndOfLine(i), nil
		}
	}
	return 0, fmt.Errorf("unknown line ending %q", s)
}

func (e EndOfLine) valid() bool { return e >= NoLineEnding && e <= CarriageReturnNewLine }

// String returns the terminator literal ("" for NoLineEnding).
func (e EndOfLine) String() string {
	if !e.valid() {
		return fmt.Sprintf("EndOfLine(%d)", int(e))
	}
	return EOL[e]
}

// Name is a readable label for logs, since String may be empty or a control character.
func (e EndOfLine) Name() string {
	switch e {
	case NoLineEnding:
		return "none"
	case NewLine:
		return "nl"
	case CarriageReturn:
		return "cr"
	case CarriageReturnNewLine:
		return "crlf"
	default:
		return e.String()
	}
}

// EndOfLineByName is the inverse of Name.
func EndOfLineByName(name string) (EndOfLine, error) {
	for e := NoLineEnding; e <= CarriageReturnNewLine; e++ {
		if e.Name() == name {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown line ending name %q", name)
}

func (e EndOfLine) MarshalText() ([]byte, error) {
	if !e.valid() {
		return nil, fmt.Errorf("invalid line ending %d", int(e))
	}
	return []byte(EOL[e]), nil
}

func (e *EndOfLine) UnmarshalText(b []byte) error {
	v, err := ParseEndOfLine(string(b))
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// ContainsEOL reports whether s contains any of the EOL literals. The empty
// NoLineEnding literal is contained in every string, so this is always true;
// the plotter UI's line buffering relies on that. Use HasLineBreak to look for
// an actual terminator.
func ContainsEOL(s string) bool {
	for _, eol := range EOL {
		if strings.Contains(s, eol) {
			return true
		}
	}
	return false
}

// HasLineBreak reports whether s contains a "\n" or "\r".
func HasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}
