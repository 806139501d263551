// Package quote scrapes the order book ladders of an instrument page into quote rows.
package quote

import (
	"context"
	"time"

	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/milkywaybrain/ladderlog/internal/connector"
	"github.com/milkywaybrain/ladderlog/internal/fault"
	"github.com/milkywaybrain/ladderlog/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SessionKeeper makes sure the page is logged in before it is used.
type SessionKeeper interface {
	EnsureLoggedIn(ctx context.Context) error
}

// Extractor scrapes instrument pages on a single page.
type Extractor struct {
	page    connector.Page
	session SessionKeeper
	cfg     *config.Broker
	now     func() time.Time
}

// NewExtractor creates an extractor which recovers the session through session before every scrape.
func NewExtractor(page connector.Page, session SessionKeeper, cfg *config.Broker) *Extractor {
	return &Extractor{
		page:    page,
		session: session,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Scrape returns one quote per ladder level of the instrument page of code.
// All quotes of one call share the same timestamp.
func (e *Extractor) Scrape(ctx context.Context, code string) ([]storage.Quote, error) {
	if err := e.session.EnsureLoggedIn(ctx); err != nil {
		return nil, fault.WithCode(code, fault.PhaseLogin, err)
	}

	log.Info().Str("code", code).Msg("scraping")
	url := e.cfg.InstrumentBaseURL + "/" + code
	timeout := time.Duration(e.cfg.Timing.NavigationTimeoutSec) * time.Second

	// Loading the page and landing on its url share one deadline.
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := e.page.Navigate(navCtx, url); err != nil {
		if navigationTimedOut(ctx, navCtx, err) {
			err = fault.ErrNavigationTimeout
		}
		return nil, fault.WithCode(code, fault.PhaseNavigation, errors.Wrap(err, "open instrument page"))
	}
	if err := e.page.WaitURLSuffix(navCtx, "/"+code, timeout); err != nil {
		if navigationTimedOut(ctx, navCtx, err) {
			err = fault.ErrNavigationTimeout
		}
		return nil, fault.WithCode(code, fault.PhaseNavigation, errors.WithStack(err))
	}

	ts := e.now().Truncate(time.Second)

	sel := e.cfg.Selectors
	var ladders [4][]string
	for i, s := range [4]string{sel.BidLots, sel.BidPrices, sel.AskPrices, sel.AskLots} {
		texts, err := e.page.TextAll(ctx, s)
		if err != nil {
			return nil, fault.WithCode(code, fault.PhaseExtraction, errors.Wrapf(err, "read %v", s))
		}
		ladders[i] = texts
	}
	bidLots, bidPrices, askPrices, askLots := ladders[0], ladders[1], ladders[2], ladders[3]

	if !(len(bidLots) == len(bidPrices) && len(bidPrices) == len(askPrices) && len(askPrices) == len(askLots)) {
		log.Warn().Str("code", code).
			Int("bid_lots", len(bidLots)).Int("bid_prices", len(bidPrices)).
			Int("ask_prices", len(askPrices)).Int("ask_lots", len(askLots)).
			Msg("ladder depths differ, keeping common levels only")
	}
	quotes := Zip(code, bidLots, bidPrices, askPrices, askLots, ts)
	log.Debug().Str("code", code).Int("levels", len(quotes)).Msg("scraped")
	return quotes, nil
}

// navigationTimedOut reports whether err comes from the page running out of time
// rather than from the caller stopping the scrape.
func navigationTimedOut(ctx, navCtx context.Context, err error) bool {
	if errors.Is(err, connector.ErrTimeout) {
		return true
	}
	return ctx.Err() == nil && errors.Is(navCtx.Err(), context.DeadlineExceeded)
}

// Zip pairs the four ladder columns level by level.
// Only levels present in all four columns produce a quote.
func Zip(code string, bidLots, bidPrices, askPrices, askLots []string, ts time.Time) []storage.Quote {
	n := len(bidLots)
	for _, col := range [][]string{bidPrices, askPrices, askLots} {
		if len(col) < n {
			n = len(col)
		}
	}
	quotes := make([]storage.Quote, 0, n)
	for i := 0; i < n; i++ {
		quotes = append(quotes, storage.Quote{
			Code:      code,
			BidLot:    bidLots[i],
			BidPrice:  bidPrices[i],
			AskPrice:  askPrices[i],
			AskLot:    askLots[i],
			Timestamp: ts,
		})
	}
	return quotes
}
