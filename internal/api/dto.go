package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/engine"
	"github.com/caesar-terminal/synthbook/internal/synth"
)

const compositionNote = "Prices include each leg's exchange commission; KDV and other markups appear only as listed stages."

type legRequest struct {
	Exchange string `json:"exchange"`
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
}

// orderbookRequest is the body of POST /api/synthetics/orderbook. A missing
// depth uses the service default.
type orderbookRequest struct {
	Legs  []legRequest `json:"legs"`
	Depth *int         `json:"depth,omitempty"`
}

func (r orderbookRequest) engineLegs() []engine.Leg {
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

type levelResponse struct {
	Price  json.Number `json:"price"`
	Amount json.Number `json:"amount"`
}

type legResponse struct {
	Exchange      string      `json:"exchange"`
	Symbol        string      `json:"symbol"`
	Side          string      `json:"side"`
	Available     bool        `json:"available"`
	CommissionBps json.Number `json:"commission_bps"`
	Reason        string      `json:"reason,omitempty"`
}

type stageResponse struct {
	Name string      `json:"name"`
	Kind string      `json:"kind"`
	Bps  json.Number `json:"bps"`
}

// OrderbookResponse is the JSON shape of a composed synthetic book.
type OrderbookResponse struct {
	Success       bool            `json:"success"`
	SyntheticPair string          `json:"synthetic_pair"`
	Base          string          `json:"base"`
	Quote         string          `json:"quote"`
	Asks          []levelResponse `json:"asks"`
	Bids          []levelResponse `json:"bids"`
	Legs          []legResponse   `json:"legs"`
	Stages        []stageResponse `json:"stages"`
	Note          string          `json:"note"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type limitsResponse struct {
	MinLegs      int `json:"min_legs"`
	MaxLegs      int `json:"max_legs"`
	MaxDepth     int `json:"max_depth"`
	DefaultDepth int `json:"default_depth"`
}

type configResponse struct {
	Success            bool                   `json:"success"`
	SupportedExchanges []string               `json:"supported_exchanges"`
	CommissionRates    map[string]json.Number `json:"commission_rates"`
	DefaultCommission  json.Number            `json:"default_commission_bps"`
	Limits             limitsResponse         `json:"limits"`
	SupportedSides     []string               `json:"supported_sides"`
	Stages             []stageResponse        `json:"stages"`
	Note               string                 `json:"note"`
}

type exampleResponse struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Legs         []synth.PresetLeg `json:"legs"`
	Depth        int               `json:"depth"`
	ExpectedPair string            `json:"expected_pair"`
}

type examplesResponse struct {
	Success  bool              `json:"success"`
	Examples []exampleResponse `json:"examples"`
}

type venueBookResponse struct {
	Success  bool            `json:"success"`
	Exchange string          `json:"exchange"`
	Symbol   string          `json:"symbol"`
	Bids     []levelResponse `json:"bids"`
	Asks     []levelResponse `json:"asks"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func syntheticLevels(levels []engine.SyntheticLevel) []levelResponse {
	out := make([]levelResponse, len(levels))
	for i, l := range levels {
		out[i] = levelResponse{Price: number(l.Price), Amount: number(l.Amount)}
	}
	return out
}

func priceLevels(levels []adapter.PriceLevel) []levelResponse {
	out := make([]levelResponse, len(levels))
	for i, l := range levels {
		out[i] = levelResponse{Price: number(l.Price), Amount: number(l.Size)}
	}
	return out
}

func stages(in []engine.Stage) []stageResponse {
	out := make([]stageResponse, len(in))
	for i, st := range in {
		out[i] = stageResponse{Name: st.Name, Kind: st.Kind.String(), Bps: number(st.Bps)}
	}
	return out
}

// NewOrderbookResponse renders book for the wire.
func NewOrderbookResponse(book engine.SyntheticOrderbook) OrderbookResponse {
	legs := make([]legResponse, len(book.Legs))
	for i, l := range book.Legs {
		legs[i] = legResponse{
			Exchange:      string(l.Leg.Exchange),
			Symbol:        l.Leg.Symbol,
			Side:          l.Leg.Side.String(),
			Available:     l.Available,
			CommissionBps: number(l.CommissionBps),
			Reason:        l.Reason,
		}
	}
	return OrderbookResponse{
		Success:       true,
		SyntheticPair: book.Pair,
		Base:          book.Base,
		Quote:         book.Quote,
		Asks:          syntheticLevels(book.Asks),
		Bids:          syntheticLevels(book.Bids),
		Legs:          legs,
		Stages:        stages(book.Stages),
		Note:          compositionNote,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("api: encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Error: msg})
}
