// Package search keeps an in-memory full-text index over catalog symbols for
// the "go to symbol" prompt.
package search

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"

	"finsview/internal/catalog"
	"finsview/internal/domain"
)

// document is the indexed form of a symbol. The ticker is stored lowercase
// and unanalysed so term, prefix and wildcard queries see it whole.
type document struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`
	Country  string `json:"country"`
}

func toDocument(s domain.Symbol) document {
	return document{
		Symbol:   strings.ToLower(s.Ticker),
		Name:     domain.Deref(s.Name),
		Sector:   domain.Deref(s.Sector),
		Industry: domain.Deref(s.Industry),
		Country:  domain.Deref(s.Country),
	}
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	doc := bleve.NewDocumentMapping()

	symbolField := bleve.NewTextFieldMapping()
	symbolField.Analyzer = keyword.Name
	doc.AddFieldMappingsAt("symbol", symbolField)

	text := bleve.NewTextFieldMapping()
	for _, f := range []string{"name", "sector", "industry", "country"} {
		doc.AddFieldMappingsAt(f, text)
	}
	im.DefaultMapping = doc
	return im
}

// Index mirrors a Catalog into a bleve in-memory index.
type Index struct {
	mu      sync.RWMutex
	index   bleve.Index
	catalog *catalog.Catalog
	log     *slog.Logger
	unsub   func()
}

// New builds an index over the current catalog contents and keeps it in
// sync with later catalog changes until Close.
func New(cat *catalog.Catalog, log *slog.Logger) (*Index, error) {
	if log == nil {
		log = slog.Default()
	}
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("creating search index: %w", err)
	}
	ix := &Index{index: idx, catalog: cat, log: log}
	// Subscribe before the snapshot so no upsert falls between the two;
	// indexing a ticker twice just replaces its document.
	ix.unsub = cat.Subscribe(ix.onChange)
	if err := ix.indexSymbols(cat.Snapshot()); err != nil {
		ix.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) indexSymbols(symbols []domain.Symbol) error {
	if len(symbols) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	batch := ix.index.NewBatch()
	for _, s := range symbols {
		if err := batch.Index(s.Ticker, toDocument(s)); err != nil {
			return fmt.Errorf("indexing %s: %w", s.Ticker, err)
		}
	}
	if err := ix.index.Batch(batch); err != nil {
		return fmt.Errorf("executing index batch: %w", err)
	}
	return nil
}

func (ix *Index) onChange(ch catalog.Change) {
	if len(ch) == 0 {
		// Catalog cleared: start over with an empty index.
		fresh, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			ix.log.Error("recreating search index", "error", err)
			return
		}
		ix.mu.Lock()
		old := ix.index
		ix.index = fresh
		ix.mu.Unlock()
		old.Close()
		return
	}

	symbols := ix.catalog.GetMany(ch.Tickers())
	if err := ix.indexSymbols(symbols); err != nil {
		ix.log.Warn("updating search index", "symbols", len(symbols), "error", err)
	}
}

// Len returns the number of indexed symbols.
func (ix *Index) Len() uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	n, err := ix.index.DocCount()
	if err != nil {
		return 0
	}
	return n
}

// Search returns up to limit tickers ranked by relevance: exact ticker,
// ticker prefix, name match, then substring and descriptive-field matches.
func (ix *Index) Search(query string, limit int) ([]string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	lower := strings.ToLower(q)

	exact := bleve.NewTermQuery(lower)
	exact.SetField("symbol")
	exact.SetBoost(10)

	prefix := bleve.NewPrefixQuery(lower)
	prefix.SetField("symbol")
	prefix.SetBoost(5)

	name := bleve.NewMatchQuery(q)
	name.SetField("name")
	name.SetBoost(3)

	wildcard := bleve.NewWildcardQuery("*" + lower + "*")
	wildcard.SetField("symbol")
	wildcard.SetBoost(2)

	namePrefix := bleve.NewPrefixQuery(lower)
	namePrefix.SetField("name")
	namePrefix.SetBoost(1.5)

	disj := bleve.NewDisjunctionQuery(exact, prefix, name, wildcard, namePrefix)
	for _, f := range []string{"sector", "industry", "country"} {
		m := bleve.NewMatchQuery(q)
		m.SetField(f)
		disj.AddQuery(m)
	}

	req := bleve.NewSearchRequest(disj)
	req.Size = limit

	ix.mu.RLock()
	res, err := ix.index.Search(req)
	ix.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", q, err)
	}
	out := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		out = append(out, hit.ID)
	}
	return out, nil
}

// Close stops following the catalog and releases the index.
func (ix *Index) Close() error {
	if ix.unsub != nil {
		ix.unsub()
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.index.Close()
}
