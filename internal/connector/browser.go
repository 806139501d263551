package connector

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// urlPollInterval is the gap between url checks while waiting for a navigation.
const urlPollInterval = 200 * time.Millisecond

var _ Page = (*Browser)(nil)

// Browser is a single chromium tab driven through the devtools protocol.
type Browser struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	// actionTimeout bounds every page action which has no wait of its own.
	actionTimeout time.Duration
}

// NewBrowser launches a browser, or attaches to a running one if a remote url is configured,
// and opens the tab all page interactions happen on.
// Actions that would otherwise wait forever, like a page that never finishes loading
// or a selector that never matches, fail with ErrTimeout after actionTimeout.
func NewBrowser(appCtx context.Context, cfg *config.Browser, actionTimeout time.Duration) (*Browser, error) {
	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if cfg.RemoteURL != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
		opts = append(opts, chromedp.Flag("headless", cfg.Headless))
		if cfg.ExecPath != "" {
			opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
		}
		if cfg.UserAgent != "" {
			opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
		}
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx:           tabCtx,
		cancelTab:     cancelTab,
		cancelAlloc:   cancelAlloc,
		actionTimeout: actionTimeout,
	}

	// First run must be on the tab context itself, it allocates the browser and
	// ties its lifetime to that context. Later bounded runs use derived contexts.
	stop := context.AfterFunc(appCtx, b.Close)
	defer stop()
	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		b.Close()
		return nil, errors.Wrap(err, "start browser")
	}
	log.Info().Bool("headless", cfg.Headless).Str("remote", cfg.RemoteURL).Msg("browser started")
	return b, nil
}

// Close closes the tab and the browser.
func (b *Browser) Close() {
	b.cancelTab()
	b.cancelAlloc()
}

// run executes actions on the tab, stopping early if ctx is done.
// If timeout is positive and runs out before actions finish, ErrTimeout is returned.
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := b.bind(ctx, timeout)
	defer cancel()
	err := chromedp.Run(runCtx, actions...)
	if timeout > 0 {
		return timeoutErr(ctx, runCtx, err)
	}
	return err
}

// timeoutErr turns err into ErrTimeout when runCtx ran out of time while ctx is still live.
func timeoutErr(ctx, runCtx context.Context, err error) error {
	if err != nil && ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}

// bind derives a context of the tab which is also canceled when ctx is done.
func (b *Browser) bind(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(b.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(b.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// Navigate loads url in the tab.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, b.actionTimeout, chromedp.Navigate(url))
}

// URL returns the current url of the tab.
func (b *Browser) URL(ctx context.Context) (string, error) {
	var loc string
	if err := b.run(ctx, b.actionTimeout, chromedp.Location(&loc)); err != nil {
		return "", err
	}
	return loc, nil
}

// Fill replaces the value of the input matching sel.
// Keys are sent instead of setting the value so client side form state sees the change.
func (b *Browser) Fill(ctx context.Context, sel string, value string) error {
	return b.run(ctx, b.actionTimeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Clear(sel, chromedp.ByQuery),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

// Click clicks the first element matching sel.
func (b *Browser) Click(ctx context.Context, sel string) error {
	return b.run(ctx, b.actionTimeout,
		chromedp.WaitVisible(sel, chromedp.ByQuery),
		chromedp.Click(sel, chromedp.ByQuery),
	)
}

// ClickText clicks the first button with the given visible text, if there is one.
func (b *Browser) ClickText(ctx context.Context, text string) (bool, error) {
	expr, err := clickTextJS(text)
	if err != nil {
		return false, err
	}
	var clicked bool
	if err := b.run(ctx, b.actionTimeout, chromedp.Evaluate(expr, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

// TypeText sends text to the focused element, waiting delay after each character.
func (b *Browser) TypeText(ctx context.Context, text string, delay time.Duration) error {
	for _, r := range text {
		if err := b.run(ctx, b.actionTimeout, chromedp.KeyEvent(string(r))); err != nil {
			return err
		}
		if err := Sleep(ctx, delay); err != nil {
			return err
		}
	}
	return nil
}

// WaitVisible waits until the element matching sel is visible.
func (b *Browser) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	return b.run(ctx, timeout, chromedp.WaitVisible(sel, chromedp.ByQuery))
}

// WaitURLSuffix polls the tab url until it ends with suffix.
func (b *Browser) WaitURLSuffix(ctx context.Context, suffix string, timeout time.Duration) error {
	return waitURLSuffix(ctx, b.URL, suffix, timeout, urlPollInterval)
}

// waitURLSuffix polls readURL every interval until the url ends with suffix.
// A positive timeout which runs out gives ErrTimeout.
func waitURLSuffix(ctx context.Context, readURL func(context.Context) (string, error), suffix string, timeout, interval time.Duration) error {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		loc, err := readURL(waitCtx)
		if err == nil && URLHasSuffix(loc, suffix) {
			return nil
		}
		if err != nil && waitCtx.Err() == nil && !errors.Is(err, ErrTimeout) {
			return err
		}
		select {
		case <-tick.C:
		case <-waitCtx.Done():
			if ctx.Err() == nil {
				return ErrTimeout
			}
			return ctx.Err()
		}
	}
}

// Sleep waits d without touching the tab.
func (b *Browser) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// TextAll returns the inner text of every element matching sel.
func (b *Browser) TextAll(ctx context.Context, sel string) ([]string, error) {
	expr, err := textAllJS(sel)
	if err != nil {
		return nil, err
	}
	var texts []string
	if err := b.run(ctx, b.actionTimeout, chromedp.Evaluate(expr, &texts)); err != nil {
		return nil, err
	}
	return texts, nil
}

// URLHasSuffix reports whether the path of rawURL ends with suffix, ignoring query, fragment and a trailing slash.
func URLHasSuffix(rawURL, suffix string) bool {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	rawURL = strings.TrimSuffix(rawURL, "/")
	return strings.HasSuffix(rawURL, suffix)
}

// jsString quotes s as a javascript string literal.
func jsString(s string) (string, error) {
	return jsoniter.MarshalToString(s)
}

func textAllJS(sel string) (string, error) {
	q, err := jsString(sel)
	if err != nil {
		return "", err
	}
	return `Array.from(document.querySelectorAll(` + q + `)).map(e => e.innerText)`, nil
}

func clickTextJS(text string) (string, error) {
	q, err := jsString(text)
	if err != nil {
		return "", err
	}
	return `(() => {
	const b = Array.from(document.querySelectorAll('button')).find(e => e.innerText.trim() === ` + q + `);
	if (!b) { return false; }
	b.click();
	return true;
})()`, nil
}
