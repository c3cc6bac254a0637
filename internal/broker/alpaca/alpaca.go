package alpaca

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"conviction-trading-bot/internal/api"
	"conviction-trading-bot/internal/interfaces"
	"conviction-trading-bot/internal/logger"
	"conviction-trading-bot/internal/retry"
	"conviction-trading-bot/internal/types"
)

type Params struct {
	Mode        string
	KeyID       string
	Secret      string
	TradingURL  string
	DataURL     string
	Feed        string
	Timeout     time.Duration
	Retry       retry.Config
	BarCacheTTL time.Duration
}

// Alpaca is the REST client for the Alpaca trading and market-data APIs.
// Market-data failures degrade to empty results after retries; order
// failures surface to the caller.
type Alpaca struct {
	p       Params
	trading *api.Client
	data    *api.Client
	cache   *barCache
}

var _ interfaces.Broker = (*Alpaca)(nil)

func New(p Params) *Alpaca {
	if p.Timeout == 0 {
		p.Timeout = 10 * time.Second
	}
	if p.Retry.MaxAttempts == 0 {
		p.Retry = retry.DefaultConfig()
	}
	if p.BarCacheTTL == 0 {
		p.BarCacheTTL = 5 * time.Minute
	}
	opts := []api.ClientOption{
		api.WithTimeout(p.Timeout),
		api.WithLogging(true),
	}
	for k, v := range api.AlpacaHeaders(p.KeyID, p.Secret) {
		opts = append(opts, api.WithHeader(k, v))
	}

	trading := api.NewClient(append(opts, api.WithBaseURL(p.TradingURL))...)
	data := api.NewClient(append(opts, api.WithBaseURL(p.DataURL))...)

	return &Alpaca{
		p:       p,
		trading: trading,
		data:    data,
		cache:   newBarCache(p.BarCacheTTL),
	}
}

// HasCredentials reports whether both API keys are set. The bot fails fast
// at startup without them.
func (a *Alpaca) HasCredentials() bool {
	return a.p.KeyID != "" && a.p.Secret != ""
}

type barJSON struct {
	T string  `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type barsResponse struct {
	Bars          []barJSON `json:"bars"`
	Symbol        string    `json:"symbol"`
	NextPageToken *string   `json:"next_page_token"`
}

// RecentBars returns up to `days` daily bars for a symbol, newest last.
// Served from the TTL cache when fresh; degrades to an empty slice when the
// data API keeps failing.
func (a *Alpaca) RecentBars(ctx context.Context, symbol string, days int) ([]types.Bar, error) {
	if bars, ok := a.cache.get(symbol, days); ok {
		return bars, nil
	}

	start := time.Now().UTC().AddDate(0, 0, -days*2) // weekends and holidays thin the series
	q := url.Values{}
	q.Set("timeframe", "1Day")
	q.Set("feed", a.p.Feed)
	q.Set("start", start.Format(time.RFC3339))
	q.Set("limit", strconv.Itoa(days))

	path := fmt.Sprintf("/v2/stocks/%s/bars?%s", url.PathEscape(symbol), q.Encode())

	var out barsResponse
	err := retry.Do(ctx, a.p.Retry, "alpaca.bars", func(ctx context.Context) error {
		resp, err := a.data.GET(ctx, path)
		if err != nil {
			return err
		}
		return resp.ParseJSON(&out)
	})
	if err != nil {
		logger.Warn(ctx, "Bar fetch failed, degrading to empty", "symbol", symbol, "error", err)
		return nil, nil
	}

	bars := make([]types.Bar, 0, len(out.Bars))
	for _, b := range out.Bars {
		ts, err := time.Parse(time.RFC3339, b.T)
		if err != nil {
			continue
		}
		bars = append(bars, types.Bar{
			Ts:    ts.Unix(),
			Open:  b.O,
			High:  b.H,
			Low:   b.L,
			Close: b.C,
			Vol:   b.V,
		})
	}

	a.cache.put(symbol, bars, days)
	return bars, nil
}

type quoteResponse struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		T  string  `json:"t"`
		BP float64 `json:"bp"`
		AP float64 `json:"ap"`
	} `json:"quote"`
}

func (a *Alpaca) LatestQuote(ctx context.Context, symbol string) (types.Quote, error) {
	path := fmt.Sprintf("/v2/stocks/%s/quotes/latest?feed=%s", url.PathEscape(symbol), a.p.Feed)

	var out quoteResponse
	err := retry.Do(ctx, a.p.Retry, "alpaca.quote", func(ctx context.Context) error {
		resp, err := a.data.GET(ctx, path)
		if err != nil {
			return err
		}
		return resp.ParseJSON(&out)
	})
	if err != nil {
		return types.Quote{}, fmt.Errorf("latest quote %s: %w", symbol, err)
	}

	ts, _ := time.Parse(time.RFC3339, out.Quote.T)
	return types.Quote{
		Symbol:   symbol,
		BidPrice: out.Quote.BP,
		AskPrice: out.Quote.AP,
		Ts:       ts.Unix(),
	}, nil
}

// Alpaca encodes account and position numbers as JSON strings.
type accountJSON struct {
	ID          string `json:"id"`
	Equity      string `json:"equity"`
	Cash        string `json:"cash"`
	BuyingPower string `json:"buying_power"`
}

func (a *Alpaca) Account(ctx context.Context) (types.Account, error) {
	var out accountJSON
	err := retry.Do(ctx, a.p.Retry, "alpaca.account", func(ctx context.Context) error {
		resp, err := a.trading.GET(ctx, "/v2/account")
		if err != nil {
			return err
		}
		return resp.ParseJSON(&out)
	})
	if err != nil {
		return types.Account{}, fmt.Errorf("fetch account: %w", err)
	}

	return types.Account{
		Equity:      parseFloat(out.Equity),
		Cash:        parseFloat(out.Cash),
		BuyingPower: parseFloat(out.BuyingPower),
		PortfolioID: out.ID,
	}, nil
}

type positionJSON struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	MarketValue    string `json:"market_value"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

func (a *Alpaca) Positions(ctx context.Context) ([]types.Position, error) {
	var out []positionJSON
	err := retry.Do(ctx, a.p.Retry, "alpaca.positions", func(ctx context.Context) error {
		resp, err := a.trading.GET(ctx, "/v2/positions")
		if err != nil {
			return err
		}
		return resp.ParseJSON(&out)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch positions: %w", err)
	}

	positions := make([]types.Position, 0, len(out))
	for _, p := range out {
		positions = append(positions, types.Position{
			Symbol:       p.Symbol,
			Qty:          parseFloat(p.Qty),
			AvgEntry:     parseFloat(p.AvgEntryPrice),
			CurrentPrice: parseFloat(p.CurrentPrice),
			MarketValue:  parseFloat(p.MarketValue),
			PLPct:        parseFloat(p.UnrealizedPLPC),
		})
	}
	return positions, nil
}

type orderJSON struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// PlaceOrder submits a market day order. Notional takes precedence over Qty
// when both are set. DRY_RUN returns a simulated fill.
func (a *Alpaca) PlaceOrder(ctx context.Context, req types.OrderReq) (types.OrderResp, error) {
	if a.p.Mode == "DRY_RUN" {
		return types.OrderResp{
			OrderID: fmt.Sprintf("SIM-%d", time.Now().UnixNano()),
			Status:  "SIMULATED",
			Message: "dry-run",
		}, nil
	}

	if !a.HasCredentials() {
		return types.OrderResp{}, errors.New("missing Alpaca API credentials")
	}

	body := map[string]any{
		"symbol":        req.Symbol,
		"side":          sideLower(req.Side),
		"type":          "market",
		"time_in_force": "day",
	}
	if req.Notional > 0 {
		body["notional"] = fmt.Sprintf("%.2f", req.Notional)
	} else {
		body["qty"] = fmt.Sprintf("%g", req.Qty)
	}

	resp, err := a.trading.POST(ctx, "/v2/orders", body)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("place order %s %s: %w", req.Side, req.Symbol, err)
	}

	var out orderJSON
	if err := resp.ParseJSON(&out); err != nil {
		return types.OrderResp{}, err
	}
	return types.OrderResp{OrderID: out.ID, Status: out.Status, Message: "ok"}, nil
}

// ClosePosition liquidates pct (0-100) of a position, or all of it when pct
// is zero or 100.
func (a *Alpaca) ClosePosition(ctx context.Context, symbol string, pct float64) (types.OrderResp, error) {
	if a.p.Mode == "DRY_RUN" {
		return types.OrderResp{
			OrderID: fmt.Sprintf("SIM-%d", time.Now().UnixNano()),
			Status:  "SIMULATED",
			Message: "dry-run close",
		}, nil
	}

	if !a.HasCredentials() {
		return types.OrderResp{}, errors.New("missing Alpaca API credentials")
	}

	path := "/v2/positions/" + url.PathEscape(symbol)
	if pct > 0 && pct < 100 {
		path += "?percentage=" + strconv.FormatFloat(pct, 'f', 2, 64)
	}

	resp, err := a.trading.DELETE(ctx, path)
	if err != nil {
		return types.OrderResp{}, fmt.Errorf("close position %s: %w", symbol, err)
	}

	var out orderJSON
	if err := resp.ParseJSON(&out); err != nil {
		return types.OrderResp{}, err
	}
	return types.OrderResp{OrderID: out.ID, Status: out.Status, Message: "ok"}, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func sideLower(side string) string {
	if side == "SELL" {
		return "sell"
	}
	return "buy"
}
