package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v7"
	jsoniter "github.com/json-iterator/go"
	"github.com/milkywaybrain/ladderlog/internal/config"
)

// ElasticSearch is for connecting and indexing data to elastic search.
type ElasticSearch struct {
	ES        *elasticsearch.Client
	IndexName string
	Cfg       *config.ES
}

// InitElasticSearch initializes elastic search connection with configured values.
func InitElasticSearch(cfg *config.ES) (*ElasticSearch, error) {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = cfg.MaxIdleConns
	t.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: t,
	}
	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := reqContext(context.Background(), cfg.ReqTimeoutSec)
	defer cancel()
	resp, err := es.Ping(es.Ping.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return &ElasticSearch{
		ES:        es,
		IndexName: cfg.IndexName,
		Cfg:       cfg,
	}, nil
}

// esData is one quote document sent to elastic search.
type esData struct {
	Code      string    `json:"code"`
	BidLot    string    `json:"bid_lot"`
	BidPrice  string    `json:"bid_price"`
	AskPrice  string    `json:"ask_price"`
	AskLot    string    `json:"ask_lot"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"created_at"`
}

// CommitQuotes batch inserts input quote data to elastic search.
func (e *ElasticSearch) CommitQuotes(appCtx context.Context, data []Quote) error {
	if len(data) == 0 {
		return nil
	}
	body, err := esBulkBody(data, time.Now().UTC())
	if err != nil {
		return err
	}
	ctx, cancel := reqContext(appCtx, e.Cfg.ReqTimeoutSec)
	defer cancel()
	resp, err := e.ES.Bulk(bytes.NewReader(body), e.ES.Bulk.WithIndex(e.IndexName), e.ES.Bulk.WithContext(ctx))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("code : %v, status : %v", resp.StatusCode, resp.Status())
	}
	_, err = io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	return nil
}

// esBulkBody builds the newline delimited bulk create request body.
func esBulkBody(data []Quote, createdAt time.Time) ([]byte, error) {
	var buf bytes.Buffer
	meta := []byte(`{"create":{}}` + "\n")
	for _, q := range data {
		ed := esData{
			Code:      q.Code,
			BidLot:    q.BidLot,
			BidPrice:  q.BidPrice,
			AskPrice:  q.AskPrice,
			AskLot:    q.AskLot,
			Timestamp: q.Timestamp,
			CreatedAt: createdAt,
		}
		esBytes, err := jsoniter.Marshal(ed)
		if err != nil {
			return nil, err
		}
		esBytes = append(esBytes, "\n"...)
		buf.Grow(len(meta) + len(esBytes))
		buf.Write(meta)
		buf.Write(esBytes)
	}
	return buf.Bytes(), nil
}
