package poller

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/milkywaybrain/ladderlog/internal/connector/connectortest"
	"github.com/milkywaybrain/ladderlog/internal/fault"
	"github.com/milkywaybrain/ladderlog/internal/quote"
	"github.com/milkywaybrain/ladderlog/internal/session"
	"github.com/milkywaybrain/ladderlog/internal/storage"
	"github.com/pkg/errors"
)

// recorder collects scrape, commit and wait events in the order they happen.
type recorder struct {
	events  []string
	levels  map[string]int
	errs    map[string]error
	batches [][]storage.Quote
}

func newRecorder() *recorder {
	return &recorder{levels: make(map[string]int), errs: make(map[string]error)}
}

func (r *recorder) Scrape(ctx context.Context, code string) ([]storage.Quote, error) {
	r.events = append(r.events, "scrape:"+code)
	if err := r.errs[code]; err != nil {
		return nil, err
	}
	n := r.levels[code]
	if n == 0 {
		n = 1
	}
	quotes := make([]storage.Quote, 0, n)
	for i := 0; i < n; i++ {
		quotes = append(quotes, storage.Quote{Code: code, BidLot: string(rune('a' + i))})
	}
	return quotes, nil
}

func (r *recorder) CommitQuotes(ctx context.Context, data []storage.Quote) error {
	r.events = append(r.events, "commit")
	r.batches = append(r.batches, data)
	return nil
}

func (r *recorder) wait(ctx context.Context, d time.Duration) error {
	r.events = append(r.events, "wait:"+d.String())
	return nil
}

func newTestPoller(cfg Config, r *recorder) *Poller {
	p := New(cfg, r, r)
	p.wait = r.wait
	return p
}

func TestRunKeepsWatchlistOrder(t *testing.T) {
	r := newRecorder()
	r.levels["BBRI"] = 3
	r.levels["BBCA"] = 2
	p := newTestPoller(Config{Interval: 300 * time.Second, MaxTicks: 1}, r)

	watchlist := []string{"BBRI", "BBCA", "BMRI", "BBRI"}
	if err := p.Run(context.Background(), watchlist); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r.batches) != 1 {
		t.Fatalf("commits = %d, want 1", len(r.batches))
	}
	var codes []string
	for _, q := range r.batches[0] {
		codes = append(codes, q.Code+"/"+q.BidLot)
	}
	want := "BBRI/a BBRI/b BBRI/c BBCA/a BBCA/b BMRI/a BBRI/a BBRI/b BBRI/c"
	if got := strings.Join(codes, " "); got != want {
		t.Errorf("batch = %s\nwant %s", got, want)
	}
}

func TestRunWaitsAfterCommit(t *testing.T) {
	r := newRecorder()
	p := newTestPoller(Config{Interval: 300 * time.Second, MaxTicks: 2}, r)

	if err := p.Run(context.Background(), []string{"BBCA", "BBRI"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"scrape:BBCA", "scrape:BBRI", "commit", "wait:5m0s",
		"scrape:BBCA", "scrape:BBRI", "commit",
	}
	if strings.Join(r.events, ",") != strings.Join(want, ",") {
		t.Errorf("events = %v\nwant %v", r.events, want)
	}
}

func TestRunStopsOnFailure(t *testing.T) {
	r := newRecorder()
	r.errs["BBRI"] = fault.WithCode("BBRI", fault.PhaseNavigation, fault.ErrNavigationTimeout)
	p := newTestPoller(Config{Interval: time.Second, MaxTicks: 1}, r)

	err := p.Run(context.Background(), []string{"BBCA", "BBRI", "BMRI"})
	if !errors.Is(err, fault.ErrNavigationTimeout) {
		t.Fatalf("err = %v, want ErrNavigationTimeout", err)
	}
	if len(r.batches) != 0 {
		t.Error("failed tick should not be committed")
	}
	if r.events[len(r.events)-1] != "scrape:BBRI" {
		t.Errorf("scraping should stop at the failing instrument, events = %v", r.events)
	}
}

func TestRunSkipsFailedInstrument(t *testing.T) {
	r := newRecorder()
	r.errs["BBRI"] = fault.WithCode("BBRI", fault.PhaseNavigation, fault.ErrNavigationTimeout)
	p := newTestPoller(Config{Interval: time.Second, MaxTicks: 1, SkipFailedInstruments: true}, r)

	if err := p.Run(context.Background(), []string{"BBCA", "BBRI", "BMRI"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(r.batches) != 1 || len(r.batches[0]) != 2 {
		t.Fatalf("batches = %v", r.batches)
	}
	if r.batches[0][0].Code != "BBCA" || r.batches[0][1].Code != "BMRI" {
		t.Errorf("batch = %v", r.batches[0])
	}
}

func TestRunSessionFailureIsFatalWhenSkipping(t *testing.T) {
	r := newRecorder()
	r.errs["BBRI"] = fault.WithCode("BBRI", fault.PhaseLogin, fault.ErrLoginFlowTimeout)
	p := newTestPoller(Config{Interval: time.Second, MaxTicks: 1, SkipFailedInstruments: true}, r)

	err := p.Run(context.Background(), []string{"BBCA", "BBRI", "BMRI"})
	if !errors.Is(err, fault.ErrLoginFlowTimeout) {
		t.Fatalf("err = %v, want ErrLoginFlowTimeout", err)
	}
}

func TestRunStopsOnCancelDuringWait(t *testing.T) {
	r := newRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	p := New(Config{Interval: time.Hour}, r, r)
	p.wait = func(waitCtx context.Context, d time.Duration) error {
		cancel()
		<-waitCtx.Done()
		return waitCtx.Err()
	}

	if err := p.Run(ctx, []string{"BBCA"}); err != context.Canceled {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(r.batches) != 1 {
		t.Errorf("commits = %d, want 1", len(r.batches))
	}
}

func TestRunEndToEnd(t *testing.T) {
	cfg := config.Default()
	sel := cfg.Broker.Selectors

	page := connectortest.New()
	page.CurrentURL = "https://invest.ajaib.co.id/home"
	page.Texts[sel.BidLots] = []string{"10"}
	page.Texts[sel.BidPrices] = []string{"9000"}
	page.Texts[sel.AskPrices] = []string{"9010"}
	page.Texts[sel.AskLots] = []string{"5"}

	creds := &config.Credentials{Email: "trader@example.test", Password: "secret", PIN: "123456"}
	sess := session.New(page, &cfg.Broker, creds)
	extractor := quote.NewExtractor(page, sess, &cfg.Broker)

	path := filepath.Join(t.TempDir(), "scrap_result.csv")
	csv := storage.NewCSV(&config.CSV{FilePath: path})
	p := New(Config{Interval: 300 * time.Second, MaxTicks: 1}, extractor, csv)

	if err := p.Run(context.Background(), []string{"BBCA"}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header + 1 row:\n%s", len(lines), raw)
	}
	if lines[0] != "kode,bid_lot,bid_price,ask_price,ask_lot,timestamp" {
		t.Errorf("header = %q", lines[0])
	}

	quotes, err := storage.ReadQuotes(path)
	if err != nil {
		t.Fatalf("ReadQuotes: %v", err)
	}
	q := quotes[0]
	if q.Code != "BBCA" || q.BidLot != "10" || q.BidPrice != "9000" || q.AskPrice != "9010" || q.AskLot != "5" {
		t.Errorf("quote = %+v", q)
	}
	if page.Count("navigate:"+config.LoginURL) != 0 {
		t.Error("logged in session should not log in again")
	}
}
