package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/caesar-terminal/synthbook/internal/adapter"
	"github.com/caesar-terminal/synthbook/internal/api"
	"github.com/caesar-terminal/synthbook/internal/bootstrap"
	"github.com/caesar-terminal/synthbook/internal/engine"
	"github.com/caesar-terminal/synthbook/internal/synth"
)

func newComposeCmd() *cobra.Command {
	var (
		rawLegs []string
		preset  string
		depth   int
	)

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Build one synthetic order book and print it as JSON",
		Example: `  synthbook compose --leg binance:ETHUSDT:sell --leg cointr:USDTTRY:sell --depth 10
  synthbook compose --preset "ETH/TRY via USDT"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			legs, presetDepth, err := composeLegs(rawLegs, preset)
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			rt, err := bootstrap.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			if depth <= 0 {
				depth = presetDepth
			}
			if depth <= 0 {
				depth = rt.Service.Config().DefaultDepth
			}

			book, err := rt.Service.Build(ctx, legs, depth)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.NewOrderbookResponse(book))
		},
	}

	cmd.Flags().StringArrayVar(&rawLegs, "leg", nil, "leg as exchange:SYMBOL:side (repeat 2-6 times)")
	cmd.Flags().StringVar(&preset, "preset", "", "use a named preset chain instead of --leg")
	cmd.Flags().IntVar(&depth, "depth", 0, "ladder depth (default: preset depth or synth.default_depth)")
	cmd.MarkFlagsMutuallyExclusive("leg", "preset")

	return cmd
}

// composeLegs resolves the chain from --leg flags or a preset name.
func composeLegs(rawLegs []string, preset string) ([]engine.Leg, int, error) {
	if preset != "" {
		p, ok := synth.FindPreset(preset)
		if !ok {
			return nil, 0, fmt.Errorf("unknown preset %q", preset)
		}
		return p.EngineLegs(), p.Depth, nil
	}

	if len(rawLegs) == 0 {
		return nil, 0, fmt.Errorf("at least two --leg flags or --preset are required")
	}
	legs := make([]engine.Leg, 0, len(rawLegs))
	for _, raw := range rawLegs {
		leg, err := parseLeg(raw)
		if err != nil {
			return nil, 0, err
		}
		legs = append(legs, leg)
	}
	return legs, 0, nil
}

// parseLeg parses "exchange:SYMBOL:side".
func parseLeg(raw string) (engine.Leg, error) {
	parts := strings.Split(raw, ":")
	if len(parts) != 3 {
		return engine.Leg{}, fmt.Errorf("leg %q: want exchange:SYMBOL:side", raw)
	}
	side := engine.ParseSide(parts[2])
	if side == 0 {
		return engine.Leg{}, fmt.Errorf("leg %q: side must be buy or sell", raw)
	}
	return engine.Leg{
		Exchange: adapter.Exchange(strings.ToLower(strings.TrimSpace(parts[0]))),
		Symbol:   strings.TrimSpace(parts[1]),
		Side:     side,
	}, nil
}
