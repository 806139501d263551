// Package poller drives the scrape loop: one pass over the watchlist per tick,
// one commit of the whole batch per tick, then a fixed wait.
package poller

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

// Scraper returns the quotes of one instrument.
type Scraper interface {
	Scrape(ctx context.Context, code string) ([]storage.Quote, error)
}

// Config holds poller configuration.
type Config struct {
	Interval              time.Duration // Wait after each tick's commit (default: 300s)
	MaxTicks              int           // Stop after this many ticks, 0 runs until ctx is done
	SkipFailedInstruments bool          // Log and skip an instrument whose page or ladder failed
}

// ConfigFrom converts the user config.
func ConfigFrom(cfg *config.Poll) Config {
	return Config{
		Interval:              time.Duration(cfg.IntervalSec) * time.Second,
		MaxTicks:              cfg.MaxTicks,
		SkipFailedInstruments: cfg.SkipFailedInstruments,
	}
}

// Poller scrapes the watchlist on a fixed delay and commits each batch to every store.
type Poller struct {
	cfg     Config
	scraper Scraper
	stores  []storage.Store
	wait    func(ctx context.Context, d time.Duration) error
}

// New creates a poller.
func New(cfg Config, scraper Scraper, stores ...storage.Store) *Poller {
	return &Poller{
		cfg:     cfg,
		scraper: scraper,
		stores:  stores,
		wait:    connector.Sleep,
	}
}

// Run prepares the stores and then runs ticks until ctx is done, MaxTicks is reached or a tick fails.
// The wait between ticks starts after the commit, so the period is tick time plus Interval.
func (p *Poller) Run(ctx context.Context, watchlist []string) error {
	for _, str := range p.stores {
		if pr, ok := str.(storage.Preparer); ok {
			if err := pr.Prepare(ctx); err != nil {
				return fault.Wrap(fault.PhasePersistence, errors.Wrap(err, "prepare storage"))
			}
		}
	}

	log.Info().Strs("watchlist", watchlist).Dur("interval", p.cfg.Interval).Msg("scraping started")
	for tick := 1; ; tick++ {
		start := time.Now()
		batch, skipped, err := p.scrapeAll(ctx, watchlist)
		if err != nil {
			return err
		}

		for _, str := range p.stores {
			if err = str.CommitQuotes(ctx, batch); err != nil {
				return fault.Wrap(fault.PhasePersistence, errors.Wrap(err, "commit quotes"))
			}
		}
		log.Info().Int("tick", tick).Int("quotes", len(batch)).Int("skipped", skipped).
			Dur("took", time.Since(start)).Msg("tick saved")

		if p.cfg.MaxTicks > 0 && tick >= p.cfg.MaxTicks {
			return nil
		}
		log.Info().Dur("interval", p.cfg.Interval).Msg("waiting for next tick")
		if err = p.wait(ctx, p.cfg.Interval); err != nil {
			return err
		}
	}
}

// scrapeAll scrapes every code in watchlist order and concatenates the quotes.
func (p *Poller) scrapeAll(ctx context.Context, watchlist []string) ([]storage.Quote, int, error) {
	var (
		batch   []storage.Quote
		skipped int
	)
	for _, code := range watchlist {
		quotes, err := p.scraper.Scrape(ctx, code)
		if err != nil {
			if !p.cfg.SkipFailedInstruments || fault.IsSessionFailure(err) || ctx.Err() != nil {
				return nil, skipped, err
			}
			log.Error().Stack().Err(errors.WithStack(err)).Str("code", code).Msg("instrument skipped for this tick")
			skipped++
			continue
		}
		batch = append(batch, quotes...)
	}
	return batch, skipped, nil
}
