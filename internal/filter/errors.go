package filter

import "fmt"

// ParseError reports a token that is not a valid hexadecimal number.
type ParseError struct {
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("'%s' is not valid hex number", e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RangeError reports a hex token whose value needs more than 32 bits.
type RangeError struct {
	Token string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("'%s' is over 32bit", e.Token)
}

// MalformedOutputError reports disassembler output without the
// address/encoding/mnemonic tab structure.
type MalformedOutputError struct {
	Line string
}

func (e *MalformedOutputError) Error() string {
	return "unexpected output format from disassembler"
}
