// Package session keeps the browser logged in to the broker web app.
//
// The app has two degraded states which are told apart only by the url:
// a PIN step-up page, where typing the PIN again is enough, and any page
// outside home and instrument pages, where the whole login has to be redone.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/milkywaybrain/ladderlog/internal/connector"
	"github.com/milkywaybrain/ladderlog/internal/fault"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// dismissPollInterval is the gap between looks for the onboarding dialog.
const dismissPollInterval = 500 * time.Millisecond

// State is the session state inferred from the current url.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Markers are the url fragments the session state is read from.
type Markers struct {
	Home       string
	Instrument string
	PIN        string
}

// Classify maps a url to the session state and whether the app asks for the PIN again.
func Classify(url string, m Markers) (state State, pinRequired bool) {
	pinRequired = m.PIN != "" && strings.Contains(url, m.PIN)
	if strings.Contains(url, m.Home) || strings.Contains(url, m.Instrument) {
		state = Authenticated
	}
	return state, pinRequired
}

// Manager logs in and recovers a lost session on a single page.
type Manager struct {
	page    connector.Page
	cfg     *config.Broker
	creds   *config.Credentials
	markers Markers
}

// New creates a session manager for page.
func New(page connector.Page, cfg *config.Broker, creds *config.Credentials) *Manager {
	return &Manager{
		page:  page,
		cfg:   cfg,
		creds: creds,
		markers: Markers{
			Home:       cfg.HomeMarker,
			Instrument: cfg.InstrumentMarker,
			PIN:        cfg.PINMarker,
		},
	}
}

// Login runs the full login flow: credentials, PIN, home redirect and the optional onboarding dialog.
func (m *Manager) Login(ctx context.Context) error {
	log.Info().Str("url", m.cfg.LoginURL).Msg("logging in")
	sel := m.cfg.Selectors

	if err := m.page.Navigate(ctx, m.cfg.LoginURL); err != nil {
		return fault.Wrap(fault.PhaseLogin, errors.Wrap(err, "open login page"))
	}
	if err := m.page.Fill(ctx, sel.Email, m.creds.Email); err != nil {
		return fault.Wrap(fault.PhaseLogin, errors.Wrap(err, "fill email"))
	}
	if err := m.page.Fill(ctx, sel.Password, m.creds.Password); err != nil {
		return fault.Wrap(fault.PhaseLogin, errors.Wrap(err, "fill password"))
	}
	if err := m.page.Click(ctx, sel.Submit); err != nil {
		return fault.Wrap(fault.PhaseLogin, errors.Wrap(err, "submit credentials"))
	}

	err := m.page.WaitVisible(ctx, sel.PINContainer, seconds(m.cfg.Timing.PINPromptTimeoutSec))
	if err != nil {
		if errors.Is(err, connector.ErrTimeout) {
			err = fault.ErrLoginFlowTimeout
		}
		return fault.Wrap(fault.PhaseLogin, errors.WithStack(err))
	}

	if err := m.enterPIN(ctx); err != nil {
		return err
	}

	err = m.page.WaitURLSuffix(ctx, m.cfg.HomeURLSuffix, seconds(m.cfg.Timing.PINValidationTimeoutSec))
	if err != nil {
		if errors.Is(err, connector.ErrTimeout) {
			err = fault.ErrPINValidationTimeout
		}
		return fault.Wrap(fault.PhasePIN, errors.WithStack(err))
	}

	if err := m.dismissOnboarding(ctx); err != nil {
		return fault.Wrap(fault.PhaseLogin, errors.Wrap(err, "dismiss onboarding dialog"))
	}

	log.Info().Msg("login successful")
	return nil
}

// EnsureLoggedIn brings the session back before a scrape.
// A PIN step-up page gets the PIN typed again; any page which is neither home
// nor an instrument page gets a full login.
func (m *Manager) EnsureLoggedIn(ctx context.Context) error {
	url, err := m.page.URL(ctx)
	if err != nil {
		return fault.Wrap(fault.PhaseLogin, errors.Wrap(err, "read current url"))
	}

	if _, pinRequired := Classify(url, m.markers); pinRequired {
		log.Warn().Str("url", url).Msg("pin requested again, entering pin")
		if err := m.enterPIN(ctx); err != nil {
			return err
		}
		log.Info().Msg("pin entered")

		url, err = m.page.URL(ctx)
		if err != nil {
			return fault.Wrap(fault.PhasePIN, errors.Wrap(err, "read current url"))
		}
	}

	if state, _ := Classify(url, m.markers); state == Unauthenticated {
		log.Warn().Str("url", url).Msg("not on home or instrument page, logging in again")
		return m.Login(ctx)
	}
	return nil
}

// enterPIN focuses the PIN input, types the PIN slowly enough for the app's
// input handling and gives the app time to validate it.
func (m *Manager) enterPIN(ctx context.Context) error {
	if err := m.page.Click(ctx, m.cfg.Selectors.PINInput); err != nil {
		return fault.Wrap(fault.PhasePIN, errors.Wrap(err, "focus pin input"))
	}
	delay := time.Duration(m.cfg.Timing.PINKeyDelayMs) * time.Millisecond
	if err := m.page.TypeText(ctx, m.creds.PIN, delay); err != nil {
		return fault.Wrap(fault.PhasePIN, errors.Wrap(err, "type pin"))
	}
	if err := m.page.Sleep(ctx, seconds(m.cfg.Timing.PINSettleSec)); err != nil {
		return fault.Wrap(fault.PhasePIN, err)
	}
	return nil
}

// dismissOnboarding clicks away the onboarding dialog, which may render a moment after home.
// The dialog shows up only sometimes, not finding it within the dismiss wait is fine.
func (m *Manager) dismissOnboarding(ctx context.Context) error {
	attempts := int(seconds(m.cfg.Timing.DismissWaitSec) / dismissPollInterval)
	for i := 0; ; i++ {
		dismissed, err := m.page.ClickText(ctx, m.cfg.DismissButtonText)
		if err != nil {
			return err
		}
		if dismissed {
			log.Debug().Msg("onboarding dialog dismissed")
			return nil
		}
		if i+1 >= attempts {
			log.Debug().Msg("no onboarding dialog")
			return nil
		}
		if err := m.page.Sleep(ctx, dismissPollInterval); err != nil {
			return err
		}
	}
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
