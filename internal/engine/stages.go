package engine

import "github.com/shopspring/decimal"

// StageKind tags a post-composition pass.
type StageKind uint8

const (
	// StagePass leaves prices untouched; it records that a markup was
	// considered and deliberately not applied.
	StagePass StageKind = iota + 1
	// StageMarkup widens the ladder: asks × (1 + bps), bids × (1 − bps).
	StageMarkup
)

func (k StageKind) String() string {
	switch k {
	case StagePass:
		return "pass"
	case StageMarkup:
		return "markup"
	default:
		return "unknown"
	}
}

// Stage is a secondary markup such as KDV (VAT) applied to a composed book
// outside the Composer.
type Stage struct {
	Name string
	Kind StageKind
	Bps  decimal.Decimal
}

// MarkupStage returns a StageMarkup for positive bps and a StagePass
// otherwise.
func MarkupStage(name string, bps decimal.Decimal) Stage {
	if bps.IsPositive() {
		return Stage{Name: name, Kind: StageMarkup, Bps: bps}
	}
	return Stage{Name: name, Kind: StagePass, Bps: decimal.Zero}
}

// ApplyStages returns a copy of book with every stage applied in order and
// recorded in Stages. Amounts are never changed.
func ApplyStages(book SyntheticOrderbook, stages []Stage) SyntheticOrderbook {
	out := book
	out.Bids = append([]SyntheticLevel(nil), book.Bids...)
	out.Asks = append([]SyntheticLevel(nil), book.Asks...)
	out.Stages = append(append([]Stage(nil), book.Stages...), stages...)

	one := decimal.NewFromInt(1)
	for _, st := range stages {
		if st.Kind != StageMarkup {
			continue
		}
		r := st.Bps.Mul(bpsUnit)
		for i := range out.Asks {
			out.Asks[i].Price = out.Asks[i].Price.Mul(one.Add(r)).Round(Precision)
		}
		for i := range out.Bids {
			out.Bids[i].Price = out.Bids[i].Price.Mul(one.Sub(r)).Round(Precision)
		}
	}
	return out
}
