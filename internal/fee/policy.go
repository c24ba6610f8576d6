package fee

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Mode selects how the platform fee relates to the amount the payer is
// charged.
type Mode string

const (
	// ModeAdded charges the payer requested+fee and credits the requested
	// amount in full.
	ModeAdded Mode = "added"
	// ModeDeducted charges the payer the requested amount and credits
	// requested-fee.
	ModeDeducted Mode = "deducted"
)

// Quote is the fee split computed once at order creation. The engine stores
// it on the pending order and reuses the exact values at settlement, so the
// rounding below is applied exactly once per order.
type Quote struct {
	Gross int64
	Fee   int64
	Net   int64
}

type Policy struct {
	mode    Mode
	percent decimal.Decimal
}

func NewPolicy(mode string, percent float64) (*Policy, error) {
	m := Mode(mode)
	if m != ModeAdded && m != ModeDeducted {
		return nil, fmt.Errorf("NewPolicy: unknown fee mode %q", mode)
	}
	if percent < 0 || percent >= 100 {
		return nil, fmt.Errorf("NewPolicy: fee percent %v out of range", percent)
	}
	return &Policy{mode: m, percent: decimal.NewFromFloat(percent)}, nil
}

func (p *Policy) Mode() Mode { return p.mode }

// Compute returns the gross/fee/net split for a requested amount in minor
// units. The fee is percent of the requested amount, rounded half-up to the
// minor unit. Pure and deterministic.
func (p *Policy) Compute(requested int64) Quote {
	fee := decimal.NewFromInt(requested).
		Mul(p.percent).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()

	switch p.mode {
	case ModeDeducted:
		return Quote{Gross: requested, Fee: fee, Net: requested - fee}
	default:
		return Quote{Gross: requested + fee, Fee: fee, Net: requested}
	}
}
