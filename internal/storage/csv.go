package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"time"

	"github.com/milkywaybrain/ladderlog/internal/config"
	"github.com/pkg/errors"
)

// CSV is the append only csv log of quotes. It is the store of record:
// rows are only ever appended, never rewritten or removed.
type CSV struct {
	Cfg *config.CSV
}

// NewCSV creates the csv store for the configured file.
func NewCSV(cfg *config.CSV) *CSV {
	return &CSV{Cfg: cfg}
}

// Prepare creates the file with the header row if it does not exist yet.
// An existing file is left untouched.
func (c *CSV) Prepare(_ context.Context) error {
	f, err := c.open()
	if err != nil {
		return err
	}
	if err = c.writeHeaderIfEmpty(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// CommitQuotes appends the quotes and syncs the file before returning.
func (c *CSV) CommitQuotes(_ context.Context, data []Quote) error {
	if len(data) == 0 {
		return nil
	}
	f, err := c.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err = c.writeHeaderIfEmpty(f); err != nil {
		return err
	}
	w := csv.NewWriter(f)
	for _, q := range data {
		if err = w.Write(q.Record()); err != nil {
			return errors.Wrap(err, "write quote row")
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return errors.Wrap(err, "flush quote rows")
	}
	if err = f.Sync(); err != nil {
		return errors.Wrap(err, "sync csv file")
	}
	return f.Close()
}

func (c *CSV) open() (*os.File, error) {
	if dir := filepath.Dir(c.Cfg.FilePath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create csv directory %v", dir)
		}
	}
	f, err := os.OpenFile(c.Cfg.FilePath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open csv file %v", c.Cfg.FilePath)
	}
	return f, nil
}

func (c *CSV) writeHeaderIfEmpty(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return errors.Wrap(err, "stat csv file")
	}
	if info.Size() > 0 {
		return nil
	}
	w := csv.NewWriter(f)
	if err = w.Write(QuoteColumns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	w.Flush()
	return errors.Wrap(w.Error(), "write csv header")
}

// ReadQuotes reads every quote row of the csv log at path.
func ReadQuotes(path string) ([]Quote, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open csv file %v", path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(QuoteColumns)
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read csv file %v", path)
	}
	// Logs written by older tools may lack the header row.
	first := 0
	if len(records) > 0 && isHeader(records[0]) {
		first = 1
	}

	quotes := make([]Quote, 0, len(records)-first)
	for i := first; i < len(records); i++ {
		rec := records[i]
		ts, err := time.ParseInLocation(QuoteTimestamp, rec[5], time.Local)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d timestamp", i+1)
		}
		quotes = append(quotes, Quote{
			Code:      rec[0],
			BidLot:    rec[1],
			BidPrice:  rec[2],
			AskPrice:  rec[3],
			AskLot:    rec[4],
			Timestamp: ts,
		})
	}
	return quotes, nil
}

func isHeader(rec []string) bool {
	for i, col := range QuoteColumns {
		if rec[i] != col {
			return false
		}
	}
	return true
}
