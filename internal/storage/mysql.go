package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/milkywaybrain/ladderlog/internal/config"
)

// MySQL is for connecting and inserting data to mysql.
type MySQL struct {
	DB  *sql.DB
	Cfg *config.MySQL
}

// mysqlTimestamp is the DATETIME layout, local time like the csv log.
const mysqlTimestamp = "2006-01-02 15:04:05"

// InitMySQL initializes mysql connection with configured values.
func InitMySQL(cfg *config.MySQL) (*MySQL, error) {
	dataSourceName := cfg.User + ":" + cfg.Password + cfg.URL + "/" + cfg.Schema
	db, err := sql.Open("mysql", dataSourceName)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxLifetime(time.Second * time.Duration(cfg.ConnMaxLifetimeSec))
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := reqContext(context.Background(), cfg.ReqTimeoutSec)
	defer cancel()
	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &MySQL{DB: db, Cfg: cfg}, nil
}

// CommitQuotes batch inserts input quote data to database.
func (m *MySQL) CommitQuotes(appCtx context.Context, data []Quote) error {
	if len(data) == 0 {
		return nil
	}
	query, args := mysqlInsertQuotes(data, time.Now())
	ctx, cancel := reqContext(appCtx, m.Cfg.ReqTimeoutSec)
	defer cancel()
	_, err := m.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return nil
}

// Close closes the database handle.
func (m *MySQL) Close() error {
	return m.DB.Close()
}

// mysqlInsertQuotes builds one multi row insert statement with placeholders.
func mysqlInsertQuotes(data []Quote, createdAt time.Time) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO quote(code, bid_lot, bid_price, ask_price, ask_lot, timestamp, created_at) VALUES ")
	args := make([]interface{}, 0, len(data)*7)
	for i, q := range data {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?)")
		args = append(args, q.Code, q.BidLot, q.BidPrice, q.AskPrice, q.AskLot, q.Timestamp.Format(mysqlTimestamp), createdAt.Format(mysqlTimestamp))
	}
	return sb.String(), args
}

// reqContext returns ctx bounded by the configured request timeout, if there is one.
func reqContext(ctx context.Context, timeoutSec int) (context.Context, context.CancelFunc) {
	if timeoutSec > 0 {
		return context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	}
	return context.WithCancel(ctx)
}
