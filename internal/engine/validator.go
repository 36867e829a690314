package engine

import (
	"errors"
	"fmt"
)

// Chain length bounds.
const (
	MinLegs = 2
	MaxLegs = 6
)

// ErrValidation is the parent of every client-side request error. Callers
// classify with errors.Is(err, ErrValidation).
var ErrValidation = errors.New("validation failed")

// Sentinel errors returned by Validate and Service.Build.
var (
	ErrInvalidChainLength = fmt.Errorf("%w: chain must have %d to %d legs", ErrValidation, MinLegs, MaxLegs)
	ErrInvalidLeg         = fmt.Errorf("%w: invalid leg", ErrValidation)
	ErrInvalidDepth       = fmt.Errorf("%w: depth must be positive", ErrValidation)
)

// Validator performs structural checks on a leg chain before any data is
// fetched. It fails fast: the first failing check is returned. Currency
// continuity is left to Resolver.ResolveChain.
type Validator struct {
	minLegs int
	maxLegs int
}

// NewValidator creates a Validator with the standard chain bounds.
func NewValidator() *Validator {
	return &Validator{minLegs: MinLegs, maxLegs: MaxLegs}
}

// Validate returns nil when legs is a usable chain.
func (v *Validator) Validate(legs []Leg) error {
	if len(legs) < v.minLegs || len(legs) > v.maxLegs {
		return fmt.Errorf("%w: got %d", ErrInvalidChainLength, len(legs))
	}

	for i, leg := range legs {
		if err := v.validateLeg(leg); err != nil {
			return fmt.Errorf("%w: leg %d: %s", ErrInvalidLeg, i+1, err)
		}
	}
	return nil
}

func (v *Validator) validateLeg(leg Leg) error {
	if leg.Exchange == "" {
		return errors.New("exchange is required")
	}
	if leg.Symbol == "" {
		return errors.New("symbol is required")
	}
	if leg.Side != Buy && leg.Side != Sell {
		return errors.New("side must be 'buy' or 'sell'")
	}
	return nil
}
