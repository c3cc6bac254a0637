package types

type Bar struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

type Indicators struct {
	SMA       map[int]float64
	RSI       float64
	ADX       float64
	MACD      struct{ Line, Signal, Hist float64 }
	ATR       float64
	VolRatio  float64
	DistSigma float64 // distance of close from SMA20 in standard deviations
}

type SymbolScore struct {
	Symbol     string             `json:"symbol"`
	Score      float64            `json:"score"`
	Action     string             `json:"action"`
	Signals    map[string]float64 `json:"signals"`
	Price      float64            `json:"price"`
	StopLoss   float64            `json:"stop_loss"`
	TakeProfit float64            `json:"take_profit"`
}

// EdgeEstimate feeds the Kelly sizer: win probability, payoff ratio and
// how strongly the individual signals agree.
type EdgeEstimate struct {
	WinProb    float64 `json:"win_prob"`
	Payoff     float64 `json:"payoff"`
	Confluence float64 `json:"confluence"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
}

type OrderReq struct {
	Symbol, Side string
	Qty          float64
	Notional     float64
	Tag          string
}
type OrderResp struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type Quote struct {
	Symbol   string
	BidPrice float64
	AskPrice float64
	Ts       int64
}

// Mid returns the bid/ask midpoint, or the one quoted side when the other
// is missing.
func (q Quote) Mid() float64 {
	switch {
	case q.BidPrice > 0 && q.AskPrice > 0:
		return (q.BidPrice + q.AskPrice) / 2
	case q.AskPrice > 0:
		return q.AskPrice
	default:
		return q.BidPrice
	}
}

type Account struct {
	Equity      float64
	Cash        float64
	BuyingPower float64
	PortfolioID string
}

type Position struct {
	Symbol       string
	Qty          float64
	AvgEntry     float64
	CurrentPrice float64
	MarketValue  float64
	PLPct        float64
}

type CycleResult struct {
	Time    int64       `json:"time"`
	Scanned int         `json:"scanned"`
	Exits   []string    `json:"exits,omitempty"`
	Entries []string    `json:"entries,omitempty"`
	Orders  []OrderResp `json:"orders,omitempty"`
	Skipped []string    `json:"skipped,omitempty"`
	Notes   []string    `json:"notes,omitempty"`
}
