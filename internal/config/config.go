package config

const (
	// LoginURL is the broker login page url.
	LoginURL = "https://login.ajaib.co.id/login"
	// InstrumentBaseURL is the base url of per instrument order book pages.
	InstrumentBaseURL = "https://invest.ajaib.co.id/home/saham"
)

// Config contains config values for the app.
// Struct values are loaded from user defined JSON config file.
type Config struct {
	Watchlist  []string   `json:"watchlist"`
	Storages   []string   `json:"storages"`
	Broker     Broker     `json:"broker"`
	Poll       Poll       `json:"poll"`
	Connection Connection `json:"connection"`
	Log        Log        `json:"log"`
}

// Broker contains config values for the broker web app pages.
type Broker struct {
	LoginURL          string    `json:"login_url"`
	InstrumentBaseURL string    `json:"instrument_base_url"`
	HomeURLSuffix     string    `json:"home_url_suffix"`
	HomeMarker        string    `json:"home_marker"`
	InstrumentMarker  string    `json:"instrument_marker"`
	PINMarker         string    `json:"pin_marker"`
	DismissButtonText string    `json:"dismiss_button_text"`
	Selectors         Selectors `json:"selectors"`
	Timing            Timing    `json:"timing"`
}

// Selectors contains CSS selectors of the broker web app elements.
type Selectors struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Submit       string `json:"submit"`
	PINContainer string `json:"pin_container"`
	PINInput     string `json:"pin_input"`
	BidLots      string `json:"bid_lots"`
	BidPrices    string `json:"bid_prices"`
	AskPrices    string `json:"ask_prices"`
	AskLots      string `json:"ask_lots"`
}

// Timing contains the bounded waits and fixed delays of the login and scrape flows.
type Timing struct {
	PINPromptTimeoutSec     int `json:"pin_prompt_timeout_sec"`
	PINKeyDelayMs           int `json:"pin_key_delay_ms"`
	PINSettleSec            int `json:"pin_settle_sec"`
	PINValidationTimeoutSec int `json:"pin_validation_timeout_sec"`
	NavigationTimeoutSec    int `json:"navigation_timeout_sec"`
	DismissWaitSec          int `json:"dismiss_wait_sec"`
	ActionTimeoutSec        int `json:"action_timeout_sec"`
}

// Poll contains config values for the polling loop.
type Poll struct {
	IntervalSec           int  `json:"interval_sec"`
	MaxTicks              int  `json:"max_ticks"`
	SkipFailedInstruments bool `json:"skip_failed_instruments"`
}

// Connection contains config values for browser and storage connections.
type Connection struct {
	Browser Browser `json:"browser"`
	CSV     CSV     `json:"csv"`
	MySQL   MySQL   `json:"mysql"`
	ES      ES      `json:"elastic_search"`
	SQLite  SQLite  `json:"sqlite"`
}

// Browser contains config values for the automated browser.
// If RemoteURL is set, an already running browser is attached through its devtools websocket url
// instead of launching a new one.
type Browser struct {
	Headless  bool   `json:"headless"`
	ExecPath  string `json:"exec_path"`
	RemoteURL string `json:"remote_url"`
	UserAgent string `json:"user_agent"`
}

// CSV contains config values for the append only csv log.
type CSV struct {
	FilePath string `json:"file_path"`
}

// MySQL contains config values for mysql.
type MySQL struct {
	User               string `json:"user"`
	Password           string `json:"password"`
	URL                string `json:"URL"`
	Schema             string `json:"schema"`
	ReqTimeoutSec      int    `json:"request_timeout_sec"`
	ConnMaxLifetimeSec int    `json:"conn_max_lifetime_sec"`
	MaxOpenConns       int    `json:"max_open_conns"`
	MaxIdleConns       int    `json:"max_idle_conns"`
}

// ES contains config values for elastic search.
type ES struct {
	Addresses           []string `json:"addresses"`
	Username            string   `json:"username"`
	Password            string   `json:"password"`
	IndexName           string   `json:"index_name"`
	ReqTimeoutSec       int      `json:"request_timeout_sec"`
	MaxIdleConns        int      `json:"max_idle_conns"`
	MaxIdleConnsPerHost int      `json:"max_idle_conns_per_host"`
}

// SQLite contains config values for sqlite.
type SQLite struct {
	FilePath string `json:"file_path"`
}

// Log contains config values for logging.
type Log struct {
	Level      string `json:"level"`
	FilePath   string `json:"file_path"`
	MaxAgeDays int    `json:"max_age_days"`
}

// Credentials are the broker account secrets.
// They are read once at startup and passed explicitly to the session manager.
type Credentials struct {
	Email    string
	Password string
	PIN      string
}
