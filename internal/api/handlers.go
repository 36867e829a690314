package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/engine"
	"github.com/caesar-terminal/synthbook/internal/synth"
)

const maxBodyBytes = 1 << 20

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	exchanges := s.venues.Exchanges()
	names := make([]string, len(exchanges))
	for i, ex := range exchanges {
		names[i] = string(ex)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"exchanges": names,
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) syntheticOrderbook(w http.ResponseWriter, r *http.Request) {
	var req orderbookRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	depth := s.svc.Config().DefaultDepth
	if req.Depth != nil {
		depth = *req.Depth
	}

	legs := req.engineLegs()
	for i, leg := range legs {
		if leg.Exchange == "" {
			continue
		}
		if _, err := s.venues.Get(leg.Exchange); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: leg %d: %v", engine.ErrValidation, i+1, err))
			return
		}
	}

	book, err := s.svc.Build(r.Context(), legs, depth)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrValidation) {
			status = http.StatusBadRequest
		}
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("synthetic orderbook rejected")
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, NewOrderbookResponse(book))
}

func (s *Server) syntheticConfig(w http.ResponseWriter, r *http.Request) {
	exchanges := s.venues.Exchanges()
	commissions := s.svc.Commissions()

	names := make([]string, len(exchanges))
	rates := make(map[string]json.Number, len(exchanges))
	for i, ex := range exchanges {
		names[i] = string(ex)
		rates[string(ex)] = number(commissions.RateBps(ex))
	}

	cfg := s.svc.Config()
	writeJSON(w, http.StatusOK, configResponse{
		Success:            true,
		SupportedExchanges: names,
		CommissionRates:    rates,
		DefaultCommission:  number(commissions.Default()),
		Limits: limitsResponse{
			MinLegs:      engine.MinLegs,
			MaxLegs:      engine.MaxLegs,
			MaxDepth:     cfg.MaxDepth,
			DefaultDepth: cfg.DefaultDepth,
		},
		SupportedSides: []string{engine.Buy.String(), engine.Sell.String()},
		Stages:         stages(cfg.Stages),
		Note:           compositionNote,
	})
}

func (s *Server) syntheticExamples(w http.ResponseWriter, r *http.Request) {
	resolver := s.svc.Resolver()
	presets := synth.Presets()

	out := make([]exampleResponse, len(presets))
	for i, p := range presets {
		legs := p.EngineLegs()
		base, _, _ := resolver.SplitSymbol(legs[0].Symbol)
		_, quote, _ := resolver.SplitSymbol(legs[len(legs)-1].Symbol)
		out[i] = exampleResponse{
			Name:         p.Name,
			Description:  p.Description,
			Legs:         p.Legs,
			Depth:        p.Depth,
			ExpectedPair: base + quote,
		}
	}
	writeJSON(w, http.StatusOK, examplesResponse{Success: true, Examples: out})
}

// venueOrderbook serves one normalized venue book, the same snapshot a leg
// would see.
func (s *Server) venueOrderbook(w http.ResponseWriter, r *http.Request) {
	exchange := adapter.Exchange(mux.Vars(r)["exchange"])
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	cfg := s.svc.Config()
	limit := cfg.DefaultDepth
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > cfg.MaxDepth {
		limit = cfg.MaxDepth
	}

	f, err := s.venues.Get(exchange)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	ctx := r.Context()
	if cfg.LegTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.LegTimeout)
		defer cancel()
	}

	native := s.svc.Resolver().FormatSymbol(exchange, symbol)
	book, err := f.FetchOrderbook(ctx, native, limit)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, adapter.ErrSymbolNotFound) {
			status = http.StatusNotFound
		}
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("exchange", string(exchange)).Str("symbol", native).Msg("venue orderbook failed")
		writeError(w, status, err.Error())
		return
	}
	book = adapter.Normalize(book, limit)

	writeJSON(w, http.StatusOK, venueBookResponse{
		Success:  true,
		Exchange: string(exchange),
		Symbol:   native,
		Bids:     priceLevels(book.Bids),
		Asks:     priceLevels(book.Asks),
	})
}
