package filter

import (
	"encoding/binary"
	"errors"
	"strconv"
)

// Word is a 32-bit instruction word.
type Word uint32

// ParseWord parses a base-16 token without prefix. Tokens that are not hex
// yield a *ParseError and values that do not fit in 32 bits a *RangeError.
func ParseWord(token string) (Word, error) {
	v, err := strconv.ParseUint(token, 16, 32)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, &RangeError{Token: token}
		}
		return 0, &ParseError{Token: token, Err: err}
	}
	return Word(v), nil
}

// Bytes returns the little-endian encoding of w.
func (w Word) Bytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(w))
	return b
}
