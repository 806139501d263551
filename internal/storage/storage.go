package storage

import (
	"context"
	"time"
)

// QuoteTimestamp is the layout quote timestamps are stored with, local time with second precision.
const QuoteTimestamp = "2006-01-02 15:04:05"

// QuoteColumns are the stored column names, in Quote field order.
var QuoteColumns = []string{"kode", "bid_lot", "bid_price", "ask_price", "ask_lot", "timestamp"}

// Quote is one order book ladder level of an instrument, as scraped.
// Bid and ask values are kept as the page renders them.
type Quote struct {
	Code      string
	BidLot    string
	BidPrice  string
	AskPrice  string
	AskLot    string
	Timestamp time.Time
}

// Record returns the quote as a row in QuoteColumns order.
func (q Quote) Record() []string {
	return []string{q.Code, q.BidLot, q.BidPrice, q.AskPrice, q.AskLot, q.Timestamp.Format(QuoteTimestamp)}
}

// Store commits a batch of quotes.
type Store interface {
	CommitQuotes(ctx context.Context, data []Quote) error
}

// Preparer is implemented by stores which need one time setup before the first commit.
type Preparer interface {
	Prepare(ctx context.Context) error
}
