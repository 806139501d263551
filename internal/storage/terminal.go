package storage

import (
	"context"
	"fmt"
	"io"
)

// Terminal is for displaying data on terminal.
type Terminal struct {
	out io.Writer
}

// NewTerminal creates a terminal display.
// Output writer is always os.Stdout except in case of testing where a buffer is set as output terminal.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// CommitQuotes outputs the quote batch as a table.
func (t *Terminal) CommitQuotes(_ context.Context, data []Quote) error {
	fmt.Fprintf(t.out, "%-8s%12s%14s%14s%12s%22s\n", "kode", "bid_lot", "bid_price", "ask_price", "ask_lot", "timestamp")
	for _, q := range data {
		fmt.Fprintf(t.out, "%-8s%12s%14s%14s%12s%22s\n", q.Code, q.BidLot, q.BidPrice, q.AskPrice, q.AskLot, q.Timestamp.Format(QuoteTimestamp))
	}
	fmt.Fprintln(t.out)
	return nil
}
