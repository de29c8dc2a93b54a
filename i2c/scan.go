package i2c

import (
	"context"
	"errors"

	"github.com/mklimuk/f1hal"
)

// Reserved 7-bit addresses are skipped by Scan.
const (
	FirstScanAddress = 0x08
	LastScanAddress  = 0x77
)

// Scan probes every non-reserved 7-bit address with an address-only
// transaction and returns those that acknowledged. Address NACKs are
// expected; any other failure stops the scan.
func Scan(ctx context.Context, t f1hal.Transactor) ([]f1hal.Address, error) {
	var found []f1hal.Address
	for a := FirstScanAddress; a <= LastScanAddress; a++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		addr := f1hal.SevenBit(uint8(a))
		err := t.Transaction(ctx, addr)
		switch {
		case err == nil:
			found = append(found, addr)
		case errors.Is(err, ErrNack):
		default:
			return found, err
		}
	}
	return found, nil
}
