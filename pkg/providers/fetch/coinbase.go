package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/nodes"
	"github.com/nova-hud/nova/pkg/protocol"
)

type spotResponse struct {
	Data struct {
		Amount   string `json:"amount"`
		Base     string `json:"base"`
		Currency string `json:"currency"`
	} `json:"data"`
}

type spotPrice struct {
	symbol string
	price  float64
	err    error
}

// spotPrices reads one spot price per symbol. Symbols that fail are listed in
// data.errors; the output fails only when no price could be read.
func (f *Fetcher) spotPrices(ctx context.Context, req protocol.FetchRequest) (models.NodeOutput, error) {
	quote := strings.ToUpper(req.Quote)
	if quote == "" {
		quote = "USD"
	}

	prices := make([]spotPrice, len(req.Symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, symbol := range req.Symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		prices[i].symbol = symbol

		g.Go(func() error {
			prices[i].price, prices[i].err = f.spotPrice(gctx, symbol, quote)

			return nil
		})
	}

	_ = g.Wait()

	rows := make([]any, 0, len(prices))
	lines := make([]string, 0, len(prices))
	failures := map[string]any{}

	for _, p := range prices {
		if p.err != nil {
			failures[p.symbol] = p.err.Error()

			continue
		}

		rows = append(rows, map[string]any{"symbol": p.symbol, "price": p.price, "quote": quote})
		lines = append(lines, fmt.Sprintf("%s: %s %s", p.symbol, strconv.FormatFloat(p.price, 'f', 2, 64), quote))
	}

	data := map[string]any{"prices": rows, "quote": quote}
	if len(failures) > 0 {
		data["errors"] = failures
	}

	if len(rows) == 0 {
		out := models.Failed("no spot prices available", nodes.CodeCollaborator)
		out.Data = data

		return out, nil
	}

	return models.NodeOutput{OK: true, Text: strings.Join(lines, "\n"), Data: data, Items: rows}, nil
}

func (f *Fetcher) spotPrice(ctx context.Context, symbol, quote string) (float64, error) {
	url := fmt.Sprintf("%s/v2/prices/%s-%s/spot", strings.TrimRight(f.cfg.CoinbaseBaseURL, "/"), symbol, quote)

	resp, err := f.get(ctx, url, map[string]string{"Accept": "application/json"})
	if err != nil {
		return 0, err
	}

	body, err := readBody(resp)
	if err != nil {
		return 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("coinbase returned status %d for %s", resp.StatusCode, symbol)
	}

	var decoded spotResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return 0, fmt.Errorf("failed to decode spot price: %w", err)
	}

	price, err := strconv.ParseFloat(decoded.Data.Amount, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid spot price %q for %s", decoded.Data.Amount, symbol)
	}

	return price, nil
}
