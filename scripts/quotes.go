package main

import (
	"encoding/csv"
	"flag"
	"os"

	"github.com/milkywaybrain/ladderlog/internal/storage"
	"github.com/rs/zerolog/log"
)

// This function will read the csv log and print the ladder of the latest scrape of every instrument
// in csv form, so users can check what was stored without opening the whole file.
func main() {
	path := flag.String("csv", "scrap_result.csv", "Path to the csv log")
	flag.Parse()

	quotes, err := storage.ReadQuotes(*path)
	if err != nil {
		log.Error().Err(err).Str("file", *path).Msg("reading csv log")
		return
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()
	if err = w.Write(storage.QuoteColumns); err != nil {
		log.Error().Err(err).Msg("writing header")
		return
	}
	for _, q := range latestLadders(quotes) {
		if err = w.Write(q.Record()); err != nil {
			log.Error().Err(err).Str("code", q.Code).Msg("writing quote")
			return
		}
	}
}

// latestLadders keeps, per instrument, only the quotes of its last scrape.
// Instruments are returned in order of first appearance.
func latestLadders(quotes []storage.Quote) []storage.Quote {
	var order []string
	latest := make(map[string][]storage.Quote)
	for _, q := range quotes {
		prev, ok := latest[q.Code]
		if !ok {
			order = append(order, q.Code)
		}
		if len(prev) > 0 && !prev[0].Timestamp.Equal(q.Timestamp) {
			prev = nil
		}
		latest[q.Code] = append(prev, q)
	}
	var out []storage.Quote
	for _, code := range order {
		out = append(out, latest[code]...)
	}
	return out
}
