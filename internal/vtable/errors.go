package vtable

import (
	"errors"
	"fmt"
)

// ErrVftableAlignmentAnomaly is returned by the secondary-typeinfo locator
// when it walks into a labeled symbol before finding a _ZTI reference —
// spec.md §4.5's "stupid edge case" guard against misreading padding as a
// typeinfo pointer.
var ErrVftableAlignmentAnomaly = errors.New("vftable alignment anomaly")

// ExtractError wraps a propagated failure with the virtual address it
// occurred at, so callers can report "a single textual message naming the
// failing address in hex" per spec.md §7, and still errors.Is/errors.As
// against the underlying sentinel.
type ExtractError struct {
	Addr uint64
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("0x%x: %v", e.Addr, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// wrapAt is a small helper so every propagation site doesn't repeat the
// ExtractError construction.
func wrapAt(addr uint64, err error) error {
	if err == nil {
		return nil
	}
	return &ExtractError{Addr: addr, Err: err}
}
