// Package connectortest provides a scripted connector.Page for tests.
package connectortest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/milkywaybrain/ladderlog/internal/connector"
)

var _ connector.Page = (*Page)(nil)

// Page is an in-memory page. Every interaction is recorded in Calls as "action:argument".
type Page struct {
	CurrentURL string

	// Visible holds selectors WaitVisible finds. Others time out.
	Visible map[string]bool
	// Buttons holds button texts ClickText finds.
	Buttons map[string]bool
	// ButtonDelays makes a button of Buttons show up only after that many ClickText misses.
	ButtonDelays map[string]int
	// Texts holds TextAll results per selector.
	Texts map[string][]string

	// TypeRedirect, if set, becomes the current url after TypeText, like a PIN redirect.
	TypeRedirect string
	// Redirects maps a navigated url to the url the page ends up on.
	Redirects map[string]string

	// Errs makes the named action ("navigate", "fill", "text_all", ...) fail.
	Errs map[string]error

	Calls []string
}

// New returns an empty page at about:blank.
func New() *Page {
	return &Page{
		CurrentURL:   "about:blank",
		Visible:      make(map[string]bool),
		Buttons:      make(map[string]bool),
		ButtonDelays: make(map[string]int),
		Texts:        make(map[string][]string),
		Redirects:    make(map[string]string),
		Errs:         make(map[string]error),
	}
}

// Count returns how many recorded calls start with prefix.
func (p *Page) Count(prefix string) int {
	var n int
	for _, c := range p.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (p *Page) record(action, arg string) error {
	p.Calls = append(p.Calls, action+":"+arg)
	return p.Errs[action]
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.record("navigate", url); err != nil {
		return err
	}
	if to, ok := p.Redirects[url]; ok {
		p.CurrentURL = to
	} else {
		p.CurrentURL = url
	}
	return nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	return p.CurrentURL, p.Errs["url"]
}

func (p *Page) Fill(ctx context.Context, sel string, value string) error {
	return p.record("fill", sel+"="+value)
}

func (p *Page) Click(ctx context.Context, sel string) error {
	return p.record("click", sel)
}

func (p *Page) ClickText(ctx context.Context, text string) (bool, error) {
	if err := p.record("click_text", text); err != nil {
		return false, err
	}
	if p.ButtonDelays[text] > 0 {
		p.ButtonDelays[text]--
		return false, nil
	}
	return p.Buttons[text], nil
}

func (p *Page) TypeText(ctx context.Context, text string, delay time.Duration) error {
	if err := p.record("type", fmt.Sprintf("%s/%v", text, delay)); err != nil {
		return err
	}
	if p.TypeRedirect != "" {
		p.CurrentURL = p.TypeRedirect
	}
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, sel string, timeout time.Duration) error {
	if err := p.record("wait_visible", sel); err != nil {
		return err
	}
	if !p.Visible[sel] {
		return connector.ErrTimeout
	}
	return nil
}

func (p *Page) WaitURLSuffix(ctx context.Context, suffix string, timeout time.Duration) error {
	if err := p.record("wait_url", suffix); err != nil {
		return err
	}
	if !connector.URLHasSuffix(p.CurrentURL, suffix) {
		return connector.ErrTimeout
	}
	return nil
}

func (p *Page) Sleep(ctx context.Context, d time.Duration) error {
	return p.record("sleep", d.String())
}

func (p *Page) TextAll(ctx context.Context, sel string) ([]string, error) {
	if err := p.record("text_all", sel); err != nil {
		return nil, err
	}
	return p.Texts[sel], nil
}
