package initializer

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/milkywaybrain/ladderlog/internal/connector"
	"github.com/milkywaybrain/ladderlog/internal/poller"
	"github.com/milkywaybrain/ladderlog/internal/quote"
	"github.com/milkywaybrain/ladderlog/internal/session"
	"github.com/milkywaybrain/ladderlog/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"golang.org/x/sync/errgroup"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Start will initialize various required systems and then execute the app.
func Start(mainCtx context.Context, cfg *config.Config, creds *config.Credentials) error {
	logFile, err := SetupLogger(&cfg.Log, os.Stdout)
	if err != nil {
		return err
	}
	defer logFile.Close()

	if missing := creds.Missing(); len(missing) > 0 {
		log.Warn().Strs("env", missing).Msg("credentials missing, login will fail")
	}

	stores, closers, err := InitStorages(cfg, os.Stdout)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	if err != nil {
		return err
	}

	actionTimeout := time.Duration(cfg.Broker.Timing.ActionTimeoutSec) * time.Second
	browser, err := connector.NewBrowser(mainCtx, &cfg.Connection.Browser, actionTimeout)
	if err != nil {
		logErrStack(err)
		return err
	}
	defer browser.Close()

	sess := session.New(browser, &cfg.Broker, creds)
	extractor := quote.NewExtractor(browser, sess, &cfg.Broker)
	p := poller.New(poller.ConfigFrom(&cfg.Poll), extractor, stores...)

	// If scraping fails, the browser is closed. If the app is stopped, the browser is
	// closed too, which unblocks any page call in progress.
	appErrGroup, appCtx := errgroup.WithContext(mainCtx)

	appErrGroup.Go(func() error {
		return closeBrowserOnError(appCtx, browser)
	})

	appErrGroup.Go(func() error {
		if err := sess.Login(appCtx); err != nil {
			return err
		}
		if err := p.Run(appCtx, cfg.Watchlist); err != nil {
			return err
		}
		return errDone
	})

	err = appErrGroup.Wait()
	if err == errDone || mainCtx.Err() != nil {
		log.Info().Msg("exiting the app")
		return nil
	}
	if err != nil {
		logErrStack(err)
		log.Error().Msg("exiting the app")
		return err
	}
	return nil
}

// errDone ends the error group when the poller stops by itself after its configured ticks.
var errDone = errors.New("scraping finished")

// closeBrowserOnError closes the browser if there is any error in app context.
func closeBrowserOnError(ctx context.Context, browser *connector.Browser) error {
	<-ctx.Done()
	browser.Close()
	return ctx.Err()
}

// SetupLogger points the global logger at out and at the configured log file.
// If the path given in the config for logging ends with .log then log messages are appended to it.
// Otherwise, a new log file with a timestamp attached to its name is created in the given path.
// A positive max age rotates the file instead.
func SetupLogger(cfg *config.Log, out io.Writer) (io.Closer, error) {
	var logFile io.WriteCloser
	switch {
	case cfg.MaxAgeDays > 0:
		logFile = &lumberjack.Logger{
			Filename: cfg.FilePath,
			MaxAge:   cfg.MaxAgeDays,
			MaxSize:  100,
			Compress: true,
		}
	case strings.HasSuffix(cfg.FilePath, ".log"):
		f, err := os.OpenFile(cfg.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0666)
		if err != nil {
			return nil, errors.Errorf("not able to open or create log file: %v", cfg.FilePath)
		}
		logFile = f
	default:
		path := cfg.FilePath + "_" + strconv.Itoa(int(time.Now().Unix())) + ".log"
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Errorf("not able to create log file: %v", path)
		}
		logFile = f
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	switch cfg.Level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(console, logFile)).With().Timestamp().Logger()
	log.Info().Msg("logger setup is done")
	return logFile, nil
}

// InitStorages connects every configured storage. Closers of the opened ones are
// returned even on error so the caller can release them.
func InitStorages(cfg *config.Config, terminalOut io.Writer) ([]storage.Store, []io.Closer, error) {
	var (
		stores  []storage.Store
		closers []io.Closer
	)
	for _, str := range cfg.Storages {
		switch str {
		case config.StorageCSV:
			stores = append(stores, storage.NewCSV(&cfg.Connection.CSV))
			log.Info().Str("file", cfg.Connection.CSV.FilePath).Msg("csv connected")
		case config.StorageTerminal:
			stores = append(stores, storage.NewTerminal(terminalOut))
			log.Info().Msg("terminal connected")
		case config.StorageMySQL:
			mysql, err := storage.InitMySQL(&cfg.Connection.MySQL)
			if err != nil {
				err = errors.Wrap(err, "mysql connection")
				logErrStack(err)
				return stores, closers, err
			}
			stores = append(stores, mysql)
			closers = append(closers, mysql)
			log.Info().Msg("mysql connected")
		case config.StorageES:
			es, err := storage.InitElasticSearch(&cfg.Connection.ES)
			if err != nil {
				err = errors.Wrap(err, "elastic search connection")
				logErrStack(err)
				return stores, closers, err
			}
			stores = append(stores, es)
			log.Info().Msg("elastic search connected")
		case config.StorageSQLite:
			sqlite, err := storage.InitSQLite(&cfg.Connection.SQLite)
			if err != nil {
				err = errors.Wrap(err, "sqlite connection")
				logErrStack(err)
				return stores, closers, err
			}
			stores = append(stores, sqlite)
			closers = append(closers, sqlite)
			log.Info().Msg("sqlite connected")
		}
	}
	return stores, closers, nil
}

// logErrStack logs error with stack trace.
func logErrStack(err error) {
	log.Error().Stack().Err(errors.WithStack(err)).Msg("")
}
