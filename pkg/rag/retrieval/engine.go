package retrieval

import (
	"context"
	"strings"

	"socialsync-be/internal/pkg/logger"
	"socialsync-be/pkg/rag/record"
	"socialsync-be/pkg/rag/search"
	"socialsync-be/pkg/store"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Policy controls how far a search escalates before giving up.
type Policy struct {
	PageSize      int    // events surfaced per search
	Escalation    []int  // candidate counts, strict first
	FallbackQuery string // last resort query for "any event"
	FallbackK     int
	ItemKey       string // field that marks a blob as an event listing
}

func DefaultPolicy() Policy {
	return Policy{
		PageSize:      2,
		Escalation:    []int{4, 50},
		FallbackQuery: "Event",
		FallbackK:     50,
		ItemKey:       record.ItemKey,
	}
}

// Result is one page of unseen events.
type Result struct {
	Events []record.Event
	Blobs  []string
	// Depth is how many queries ran: 1 strict, 2 broadened, and so on
	Depth    int
	Fallback bool
}

// Engine wraps a search backend with broadening and per-session deduplication.
type Engine struct {
	search search.Service
	parser *record.Parser
	policy Policy
	logger logger.ILogger
}

func NewEngine(svc search.Service, parser *record.Parser, policy Policy, logger logger.ILogger) *Engine {
	if policy.PageSize <= 0 {
		policy.PageSize = DefaultPolicy().PageSize
	}
	if len(policy.Escalation) == 0 {
		policy.Escalation = []int{2 * policy.PageSize}
	}
	if policy.ItemKey == "" {
		policy.ItemKey = record.ItemKey
	}
	return &Engine{search: svc, parser: parser, policy: policy, logger: logger}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Search returns at most PageSize events not in seen and adds their fingerprints to
// seen. On error seen is left untouched.
func (e *Engine) Search(ctx context.Context, query string, seen store.SeenSet) (*Result, error) {
	c := &collector{itemKey: e.policy.ItemKey, seen: seen, batch: make(map[string]bool)}
	res := &Result{}
	span := trace.SpanFromContext(ctx)

	for _, k := range e.policy.Escalation {
		blobs, err := e.search.Search(ctx, query, k)
		if err != nil {
			return nil, err
		}
		res.Depth++
		c.collect(blobs)
		span.AddEvent("retrieval.step", trace.WithAttributes(
			attribute.Int("k", k),
			attribute.Int("returned", len(blobs)),
			attribute.Int("survivors", len(c.survivors)),
		))

		e.logger.Debug("Retrieval", "Search step", map[string]interface{}{
			"query":     query,
			"k":         k,
			"returned":  len(blobs),
			"survivors": len(c.survivors),
		})

		if len(c.survivors) >= e.policy.PageSize {
			break
		}
	}

	if len(c.survivors) == 0 && strings.TrimSpace(e.policy.FallbackQuery) != "" {
		blobs, err := e.search.Search(ctx, e.policy.FallbackQuery, e.policy.FallbackK)
		if err != nil {
			return nil, err
		}
		res.Depth++
		res.Fallback = true
		c.collect(blobs)
		span.AddEvent("retrieval.fallback", trace.WithAttributes(attribute.Int("returned", len(blobs))))
	}

	page := c.survivors
	if len(page) > e.policy.PageSize {
		page = page[:e.policy.PageSize]
	}

	for _, raw := range page {
		seen.Add(record.Fingerprint(raw))
		res.Blobs = append(res.Blobs, raw)
		res.Events = append(res.Events, e.parser.Parse(raw))
	}

	e.logger.Info("Retrieval", "Search finished", map[string]interface{}{
		"query":    query,
		"returned": len(res.Events),
		"depth":    res.Depth,
		"fallback": res.Fallback,
		"seen":     len(seen),
	})

	return res, nil
}

type collector struct {
	itemKey   string
	seen      store.SeenSet
	batch     map[string]bool
	survivors []string
}

func (c *collector) collect(blobs []string) {
	for _, raw := range blobs {
		if !record.HasField(raw, c.itemKey) {
			continue
		}
		fp := record.Fingerprint(raw)
		if c.seen.Has(fp) || c.batch[fp] {
			continue
		}
		c.batch[fp] = true
		c.survivors = append(c.survivors, raw)
	}
}
