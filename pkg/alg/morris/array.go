package morris

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/Sumatoshi-tech/streamsketch/pkg/alg/sketch"
)

// ErrCounterIndex is returned when an Array is addressed outside [0, Len()).
var ErrCounterIndex = errors.New("morris: counter index out of range")

// Array is a bank of independent Morris registers, one byte each, sharing a
// single random source. It suits per-key event counts where a full counter
// per key would be too large.
type Array struct {
	rng         *rand.Rand
	registers   []uint8
	maxRegister uint8
}

// NewArray creates size registers that saturate at maxRegister.
func NewArray(size int, maxRegister uint8, opts ...Option) (*Array, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: morris array size must be positive, got %d",
			sketch.ErrInvalidConfiguration, size)
	}

	if err := validateMax(maxRegister); err != nil {
		return nil, err
	}

	return &Array{
		rng:         buildRand(opts),
		registers:   make([]uint8, size),
		maxRegister: maxRegister,
	}, nil
}

// Len returns the number of registers.
func (a *Array) Len() int {
	return len(a.registers)
}

// Increment records one event on register id.
func (a *Array) Increment(id int) error {
	if err := a.check(id); err != nil {
		return err
	}

	a.registers[id] = step(a.rng, a.registers[id], a.maxRegister)

	return nil
}

// Estimate returns the estimated event count of register id.
func (a *Array) Estimate(id int) (uint64, error) {
	if err := a.check(id); err != nil {
		return 0, err
	}

	return decode(a.registers[id]), nil
}

// Register returns the raw value of register id.
func (a *Array) Register(id int) (uint8, error) {
	if err := a.check(id); err != nil {
		return 0, err
	}

	return a.registers[id], nil
}

// Reset zeroes every register.
func (a *Array) Reset() {
	clear(a.registers)
}

func (a *Array) check(id int) error {
	if id < 0 || id >= len(a.registers) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrCounterIndex, id, len(a.registers))
	}

	return nil
}
