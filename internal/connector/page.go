package connector

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrTimeout is returned by bounded page waits which ran out of time.
var ErrTimeout = errors.New("page wait timed out")

// Page is the set of page interactions the scraper needs from a rendered browser tab.
// Selectors are CSS selectors; the first match is used for single element actions.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Fill(ctx context.Context, sel string, value string) error
	Click(ctx context.Context, sel string) error

	// ClickText clicks the first button whose visible text equals text.
	// It returns false, without error, when no such button is on the page.
	ClickText(ctx context.Context, text string) (bool, error)

	// TypeText sends text to the focused element one character at a time.
	TypeText(ctx context.Context, text string, delay time.Duration) error

	// WaitVisible waits until sel is visible. A zero timeout waits until ctx is done.
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) error

	// WaitURLSuffix waits until the current url ends with suffix. A zero timeout waits until ctx is done.
	WaitURLSuffix(ctx context.Context, suffix string, timeout time.Duration) error

	Sleep(ctx context.Context, d time.Duration) error

	// TextAll returns the inner text of every element matching sel, in document order.
	TextAll(ctx context.Context, sel string) ([]string, error)
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
