// Package telemetry keeps in-process search insights: which terms shoppers
// use, which queries find nothing, and how fast answers come back.
// Nothing is reported externally.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
)

// QueryKind classifies a search request.
type QueryKind string

const (
	KindBrowse     QueryKind = "browse"     // blank query, filters only
	KindKeyword    QueryKind = "keyword"    // plain words
	KindStructured QueryKind = "structured" // operators, fields, phrases or wildcards
	KindDegraded   QueryKind = "degraded"   // unparseable, answered as match-all
)

// Classify returns the kind of text. degraded reports a parse fallback.
func Classify(text string, degraded bool) QueryKind {
	switch {
	case degraded:
		return KindDegraded
	case strings.TrimSpace(text) == "":
		return KindBrowse
	case strings.ContainsAny(text, `+-!():"*?~^\`) || hasOperator(text):
		return KindStructured
	default:
		return KindKeyword
	}
}

func hasOperator(text string) bool {
	for _, w := range strings.Fields(text) {
		switch w {
		case "AND", "OR", "NOT", "&&", "||":
			return true
		}
	}
	return false
}

// LatencyBucket is a coarse latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket maps d to its bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// QueryEvent is one answered search.
type QueryEvent struct {
	Query    string
	Kind     QueryKind
	Total    int
	Latency  time.Duration
	CacheHit bool
}

// ExtractTerms returns the lowercased words of text that are at least three
// letters long, with operators and query punctuation removed.
func ExtractTerms(text string) []string {
	var terms []string
	for _, w := range strings.Fields(text) {
		if hasOperator(w) {
			continue
		}
		if i := strings.IndexByte(w, ':'); i >= 0 {
			w = w[i+1:]
		}
		w = strings.TrimFunc(w, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		w = strings.ToLower(w)
		if len([]rune(w)) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was searched.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the collected insights.
type Snapshot struct {
	KindCounts          map[QueryKind]int64     `json:"kind_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	CacheHitCount       int64                   `json:"cache_hit_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	ExactRepeatRate     float64                 `json:"exact_repeat_rate"`
	UniqueQueryCount    int64                   `json:"unique_query_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of searches that found nothing.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// Config sizes the collector.
type Config struct {
	TopTermsCapacity      int // distinct terms tracked (default 100)
	ZeroResultsCapacity   int // recent zero-result queries kept (default 100)
	RecentQueriesCapacity int // distinct queries remembered for repeat detection (default 500)
}

// DefaultConfig returns the standard sizes.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		RecentQueriesCapacity: 500,
	}
}

// Insights collects query telemetry. Safe for concurrent use.
type Insights struct {
	mu sync.Mutex

	kinds           map[QueryKind]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	cacheHits       int64
	recentQueries   *lru.Cache[string, struct{}]
	exactRepeats    int64
	since           time.Time
	cfg             Config
}

// New creates an empty collector.
func New(cfg Config) *Insights {
	def := DefaultConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	in := &Insights{cfg: cfg}
	in.reset()
	return in
}

func (in *Insights) reset() {
	in.kinds = make(map[QueryKind]int64)
	in.topTerms, _ = lru.New[string, int64](in.cfg.TopTermsCapacity)
	in.zeroResults = NewCircularBuffer[string](in.cfg.ZeroResultsCapacity)
	in.latencies = make(map[LatencyBucket]int64)
	in.recentQueries, _ = lru.New[string, struct{}](in.cfg.RecentQueriesCapacity)
	in.totalQueries = 0
	in.zeroResultCount = 0
	in.cacheHits = 0
	in.exactRepeats = 0
	in.since = time.Now()
}

// Record adds one search to the aggregates.
func (in *Insights) Record(ev QueryEvent) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.kinds[ev.Kind]++
	in.totalQueries++
	in.latencies[LatencyToBucket(ev.Latency)]++
	if ev.CacheHit {
		in.cacheHits++
	}

	for _, term := range ExtractTerms(ev.Query) {
		n, _ := in.topTerms.Get(term)
		in.topTerms.Add(term, n+1)
	}

	if ev.Total == 0 && ev.Kind != KindBrowse {
		in.zeroResults.Add(ev.Query)
		in.zeroResultCount++
	}

	normalized := strings.ToLower(strings.Join(strings.Fields(ev.Query), " "))
	if _, seen := in.recentQueries.Get(normalized); seen {
		in.exactRepeats++
	}
	in.recentQueries.Add(normalized, struct{}{})
}

// Snapshot returns a copy of the current aggregates.
func (in *Insights) Snapshot() *Snapshot {
	in.mu.Lock()
	defer in.mu.Unlock()

	kinds := make(map[QueryKind]int64, len(in.kinds))
	for k, v := range in.kinds {
		kinds[k] = v
	}
	latencies := make(map[LatencyBucket]int64, len(in.latencies))
	for k, v := range in.latencies {
		latencies[k] = v
	}

	terms := make([]TermCount, 0, in.topTerms.Len())
	for _, key := range in.topTerms.Keys() {
		if n, ok := in.topTerms.Peek(key); ok {
			terms = append(terms, TermCount{Term: key, Count: n})
		}
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	var repeatRate float64
	if in.totalQueries > 0 {
		repeatRate = float64(in.exactRepeats) / float64(in.totalQueries)
	}

	return &Snapshot{
		KindCounts:          kinds,
		TopTerms:            terms,
		ZeroResultQueries:   in.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalQueries:        in.totalQueries,
		ZeroResultCount:     in.zeroResultCount,
		CacheHitCount:       in.cacheHits,
		ExactRepeatCount:    in.exactRepeats,
		ExactRepeatRate:     repeatRate,
		UniqueQueryCount:    int64(in.recentQueries.Len()),
		Since:               in.since,
	}
}

// Reset discards everything collected so far.
func (in *Insights) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.reset()
}
