package eod

// tradeLine represents a single trade entry from the trade log file.
// This structure matches the JSON format written by the tradelog package.
type tradeLine struct {
	Time       string  // Timestamp of the trade
	Symbol     string  // Trading symbol (e.g., "AAPL")
	Side       string  // "BUY" or "SELL"
	Qty        float64 // Quantity traded (fractional shares allowed)
	Dollars    float64 // Notional dollars for notional orders
	Price      float64 // Execution price
	OrderID    string  // Broker order ID
	Reason     string  // Trade reason (entry signal, exit rule, conviction action)
	Confidence float64 // Signal confidence (0.0 to 1.0)
}

// aggRow represents aggregated trading statistics for a symbol.
// Used to calculate EOD summary metrics across all trades for a symbol.
type aggRow struct {
	Symbol      string  // Trading symbol
	BuyQty      float64 // Total quantity bought
	BuyValue    float64 // Total value of buy orders (qty * price)
	SellQty     float64 // Total quantity sold
	SellValue   float64 // Total value of sell orders (qty * price)
	RealizedPnL float64 // Realized profit/loss (calculated from matched trades)
}
