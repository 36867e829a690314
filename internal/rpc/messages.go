package rpc

import (
	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/engine"
)

// Leg is one hop of a requested chain.
type Leg struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
}

// BuildRequest asks for one synthetic book. Depth 0 uses the server default.
type BuildRequest struct {
	Legs  []Leg `json:"legs"`
	Depth int32 `json:"depth"`
}

// Level is a synthetic rung. Decimals travel as strings to keep precision.
type Level struct {
	Price  string `json:"price"`
	Amount string `json:"amount"`
}

// LegStatus reports per-leg availability.
type LegStatus struct {
	Exchange      string `json:"exchange"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Available     bool   `json:"available"`
	CommissionBps string `json:"commission_bps"`
	Reason        string `json:"reason,omitempty"`
}

// Stage is an applied post-composition markup.
type Stage struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Bps  string `json:"bps"`
}

// BuildResponse carries the composed book.
type BuildResponse struct {
	SyntheticPair string      `json:"synthetic_pair"`
	Base          string      `json:"base"`
	Quote         string      `json:"quote"`
	Bids          []Level     `json:"bids"`
	Asks          []Level     `json:"asks"`
	Legs          []LegStatus `json:"legs"`
	Stages        []Stage     `json:"stages"`
}

func (r *BuildRequest) engineLegs() []engine.Leg {
	legs := make([]engine.Leg, len(r.Legs))
	for i, l := range r.Legs {
		legs[i] = engine.Leg{
			Exchange: adapter.Exchange(l.Exchange),
			Symbol:   l.Symbol,
			Side:     engine.ParseSide(l.Side),
		}
	}
	return legs
}

func levels(in []engine.SyntheticLevel) []Level {
	out := make([]Level, len(in))
	for i, l := range in {
		out[i] = Level{Price: l.Price.String(), Amount: l.Amount.String()}
	}
	return out
}

func newBuildResponse(book engine.SyntheticOrderbook) *BuildResponse {
	legs := make([]LegStatus, len(book.Legs))
	for i, l := range book.Legs {
		legs[i] = LegStatus{
			Exchange:      string(l.Leg.Exchange),
			Symbol:        l.Leg.Symbol,
			Side:          l.Leg.Side.String(),
			Available:     l.Available,
			CommissionBps: l.CommissionBps.String(),
			Reason:        l.Reason,
		}
	}
	stages := make([]Stage, len(book.Stages))
	for i, st := range book.Stages {
		stages[i] = Stage{Name: st.Name, Kind: st.Kind.String(), Bps: st.Bps.String()}
	}
	return &BuildResponse{
		SyntheticPair: book.Pair,
		Base:          book.Base,
		Quote:         book.Quote,
		Bids:          levels(book.Bids),
		Asks:          levels(book.Asks),
		Legs:          legs,
		Stages:        stages,
	}
}
