package session

import (
	"context"
	"testing"

	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/milkywaybrain/ladderlog/internal/connector"
	"github.com/milkywaybrain/ladderlog/internal/connector/connectortest"
	"github.com/milkywaybrain/ladderlog/internal/fault"
	"github.com/pkg/errors"
)

const (
	homeURL = "https://invest.ajaib.co.id/home"
	pinURL  = "https://invest.ajaib.co.id/pin"
)

func newManager(page *connectortest.Page) (*Manager, *config.Config) {
	cfg := config.Default()
	creds := &config.Credentials{Email: "trader@example.test", Password: "secret", PIN: "123456"}
	return New(page, &cfg.Broker, creds), cfg
}

// loginReadyPage is a page on which the full login flow succeeds.
func loginReadyPage(cfg *config.Config) *connectortest.Page {
	page := connectortest.New()
	page.Visible[cfg.Broker.Selectors.PINContainer] = true
	page.TypeRedirect = homeURL
	return page
}

func TestClassify(t *testing.T) {
	m := Markers{Home: "home", Instrument: "saham", PIN: "/pin"}
	tests := []struct {
		url   string
		state State
		pin   bool
	}{
		{homeURL, Authenticated, false},
		{"https://invest.ajaib.co.id/home/saham/BBCA", Authenticated, false},
		{pinURL, Unauthenticated, true},
		{"https://login.ajaib.co.id/login", Unauthenticated, false},
		{"about:blank", Unauthenticated, false},
	}
	for _, tt := range tests {
		state, pin := Classify(tt.url, m)
		if state != tt.state || pin != tt.pin {
			t.Errorf("Classify(%q) = (%v, %v), want (%v, %v)", tt.url, state, pin, tt.state, tt.pin)
		}
	}
}

func TestLogin(t *testing.T) {
	cfg := config.Default()
	page := loginReadyPage(cfg)
	page.Buttons["Mengerti"] = true
	m, _ := newManager(page)

	if err := m.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}

	want := []string{
		"navigate:" + config.LoginURL,
		"fill:input[name=email]=trader@example.test",
		"fill:input[name=password]=secret",
		"click:button[type=submit]",
		"wait_visible:.pincode-input-container",
		"click:.pincode-input-text",
		"type:123456/150ms",
		"sleep:5s",
		"wait_url:/home",
		"click_text:Mengerti",
	}
	if len(page.Calls) != len(want) {
		t.Fatalf("calls = %v\nwant %v", page.Calls, want)
	}
	for i := range want {
		if page.Calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, page.Calls[i], want[i])
		}
	}
}

func TestLoginWithoutOnboardingDialog(t *testing.T) {
	cfg := config.Default()
	page := loginReadyPage(cfg)
	m, _ := newManager(page)

	if err := m.Login(context.Background()); err != nil {
		t.Fatalf("missing dialog should not fail login: %v", err)
	}
	if n := page.Count("click_text:Mengerti"); n != 6 {
		t.Errorf("dialog looked for %d times, want 6 over the dismiss wait", n)
	}
	if n := page.Count("sleep:500ms"); n != 5 {
		t.Errorf("waits between looks = %d, want 5", n)
	}
}

func TestLoginLateOnboardingDialog(t *testing.T) {
	cfg := config.Default()
	page := loginReadyPage(cfg)
	page.Buttons["Mengerti"] = true
	page.ButtonDelays["Mengerti"] = 2
	m, _ := newManager(page)

	if err := m.Login(context.Background()); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if n := page.Count("click_text:Mengerti"); n != 3 {
		t.Errorf("dialog looked for %d times, want 3", n)
	}
	if last := page.Calls[len(page.Calls)-1]; last != "click_text:Mengerti" {
		t.Errorf("last call = %q, want the dialog click", last)
	}
}

func TestLoginStalledCredentialsForm(t *testing.T) {
	page := connectortest.New()
	page.Errs["fill"] = connector.ErrTimeout
	m, _ := newManager(page)

	err := m.Login(context.Background())
	if !errors.Is(err, connector.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if fault.PhaseOf(err) != fault.PhaseLogin {
		t.Errorf("phase = %q, want login", fault.PhaseOf(err))
	}
}

func TestLoginPINPromptTimeout(t *testing.T) {
	page := connectortest.New()
	m, _ := newManager(page)

	err := m.Login(context.Background())
	if !errors.Is(err, fault.ErrLoginFlowTimeout) {
		t.Fatalf("err = %v, want ErrLoginFlowTimeout", err)
	}
	if fault.PhaseOf(err) != fault.PhaseLogin {
		t.Errorf("phase = %q, want login", fault.PhaseOf(err))
	}
	if page.Count("type:") != 0 {
		t.Error("pin should not be typed without a pin prompt")
	}
}

func TestLoginPINValidationTimeout(t *testing.T) {
	cfg := config.Default()
	page := loginReadyPage(cfg)
	page.TypeRedirect = pinURL
	m, _ := newManager(page)

	err := m.Login(context.Background())
	if !errors.Is(err, fault.ErrPINValidationTimeout) {
		t.Fatalf("err = %v, want ErrPINValidationTimeout", err)
	}
	if fault.PhaseOf(err) != fault.PhasePIN {
		t.Errorf("phase = %q, want pin", fault.PhaseOf(err))
	}
}

func TestEnsureLoggedInPINOnly(t *testing.T) {
	cfg := config.Default()
	page := loginReadyPage(cfg)
	page.CurrentURL = pinURL
	m, _ := newManager(page)

	if err := m.EnsureLoggedIn(context.Background()); err != nil {
		t.Fatalf("EnsureLoggedIn: %v", err)
	}
	if n := page.Count("type:123456"); n != 1 {
		t.Errorf("pin typed %d times, want 1", n)
	}
	if n := page.Count("navigate:" + config.LoginURL); n != 0 {
		t.Errorf("full login ran %d times, want 0", n)
	}
}

func TestEnsureLoggedInSessionLost(t *testing.T) {
	cfg := config.Default()
	page := loginReadyPage(cfg)
	page.CurrentURL = "https://login.ajaib.co.id/login?expired=1"
	m, _ := newManager(page)

	if err := m.EnsureLoggedIn(context.Background()); err != nil {
		t.Fatalf("EnsureLoggedIn: %v", err)
	}
	if n := page.Count("navigate:" + config.LoginURL); n != 1 {
		t.Errorf("full login ran %d times, want 1", n)
	}
}

func TestEnsureLoggedInAlreadyAuthenticated(t *testing.T) {
	page := connectortest.New()
	page.CurrentURL = "https://invest.ajaib.co.id/home/saham/BBCA"
	m, _ := newManager(page)

	if err := m.EnsureLoggedIn(context.Background()); err != nil {
		t.Fatalf("EnsureLoggedIn: %v", err)
	}
	if len(page.Calls) != 0 {
		t.Errorf("no page interaction expected, got %v", page.Calls)
	}
}

func TestEnsureLoggedInPINThenFullLogin(t *testing.T) {
	cfg := config.Default()
	page := loginReadyPage(cfg)
	page.CurrentURL = pinURL
	page.TypeRedirect = ""
	m, _ := newManager(page)

	// PIN page that does not move on: the pin is retyped and then the session is treated as lost.
	err := m.EnsureLoggedIn(context.Background())
	if !errors.Is(err, fault.ErrPINValidationTimeout) {
		t.Fatalf("err = %v, want ErrPINValidationTimeout from the full login", err)
	}
	if n := page.Count("navigate:" + config.LoginURL); n != 1 {
		t.Errorf("full login ran %d times, want 1", n)
	}
}
