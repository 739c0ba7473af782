package protocol

import "fmt"

// DecodeError reports malformed JSON or a payload that does not match the
// expected shape.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return "decode plotter message: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// UnknownCommandError reports a command tag outside the set valid for the
// message direction.
type UnknownCommandError struct {
	Name string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Name)
}

// WrongCommandError reports a known command where a different one was
// required.
type WrongCommandError struct {
	Want CommandName
	Got  CommandName
}

func (e *WrongCommandError) Error() string {
	return fmt.Sprintf("%s command expected, got %s", e.Want, e.Got)
}
