package client

import (
	"fmt"
	"strconv"

	"github.com/holiman/uint256"
)

// ParseAmount reads a base-10 token amount
func ParseAmount(raw string) (*uint256.Int, error) {
	amount, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return amount, nil
}

func ParsePoolID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pool id %q: %w", raw, err)
	}
	return id, nil
}

// FormatAmount prints a possibly absent amount
func FormatAmount(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}
