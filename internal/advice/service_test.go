package advice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewbrief/crewbrief/internal/knowledge"
	"github.com/crewbrief/crewbrief/internal/log"
	"github.com/crewbrief/crewbrief/internal/provider"
	"github.com/crewbrief/crewbrief/internal/retrieval"
)

type passthroughScrubber struct{}

func (passthroughScrubber) Scrub(text string) string { return text }

type prefixScrubber struct{}

func (prefixScrubber) Scrub(text string) string { return "[scrubbed] " + text }

type mockRetriever struct {
	results []knowledge.SearchResult
	err     error
	calls   int
	lastQ   string
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, scopeID *string) ([]knowledge.SearchResult, error) {
	m.calls++
	m.lastQ = query
	return m.results, m.err
}

type mockGenerator struct {
	advice *provider.Advice
	err    error
	calls  int
	lastOc string
}

func (m *mockGenerator) Advise(ctx context.Context, category, occurrence, passages string) (*provider.Advice, error) {
	m.calls++
	m.lastOc = occurrence
	return m.advice, m.err
}

// memCache is an in-memory CacheStore honoring the same never-serve-expired
// contract as the Postgres one.
type memCache struct {
	entries map[string]*Entry
	getErr  error
	putErr  error
	puts    int
}

func newMemCache() *memCache { return &memCache{entries: make(map[string]*Entry)} }

func (m *memCache) Get(ctx context.Context, key string) (*Entry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[key], nil
}

func (m *memCache) Put(ctx context.Context, entry *Entry) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[entry.Key] = entry
	return nil
}

// mockLimiter allows a fixed budget then refuses.
type mockLimiter struct {
	budget int
	err    error
	calls  int
}

func (m *mockLimiter) Allow(ctx context.Context, actorID string) (bool, error) {
	m.calls++
	if m.err != nil {
		return false, m.err
	}
	if m.budget <= 0 {
		return false, nil
	}
	m.budget--
	return true, nil
}

type recordingAuditor struct {
	actions []string
}

func (r *recordingAuditor) Record(ctx context.Context, action string, fields map[string]any) {
	r.actions = append(r.actions, action)
}

func goodResults() []knowledge.SearchResult {
	return []knowledge.SearchResult{{
		Passage:       knowledge.Passage{Position: 0, Content: "Stop the show and call medical."},
		DocumentTitle: "Crowd Safety Manual",
		Similarity:    0.9,
	}}
}

func goodAdvice(confidence float64) *provider.Advice {
	return &provider.Advice{
		Summary:    "Clear the immediate area and call on-site medical.",
		Checklist:  []string{"secure gate"},
		RiskLevel:  "high",
		Confidence: confidence,
	}
}

type fixture struct {
	service   *Service
	retriever *mockRetriever
	generator *mockGenerator
	cache     *memCache
	limiter   *mockLimiter
	auditor   *recordingAuditor
}

func newFixture(t *testing.T, retriever *mockRetriever, generator *mockGenerator, cache *memCache, limiter *mockLimiter) *fixture {
	t.Helper()
	auditor := &recordingAuditor{}
	service, err := NewService(passthroughScrubber{}, retriever, generator, cache, limiter, auditor, Options{}, log.NewNop())
	require.NoError(t, err)
	return &fixture{service: service, retriever: retriever, generator: generator, cache: cache, limiter: limiter, auditor: auditor}
}

func medicalRequest() Request {
	actor := "u1"
	return Request{Category: "Medical", OccurrenceText: "person collapsed at gate", ActorID: &actor}
}

func TestGetAdviceFirstCallGeneratesSecondHitsCache(t *testing.T) {
	f := newFixture(t,
		&mockRetriever{results: goodResults()},
		&mockGenerator{advice: goodAdvice(0.9)},
		newMemCache(),
		&mockLimiter{budget: 10},
	)
	ctx := context.Background()

	first, err := f.service.GetAdvice(ctx, medicalRequest())
	require.NoError(t, err)
	require.False(t, first.Declined)
	assert.False(t, first.FromCache)
	assert.Equal(t, "high", first.Payload.RiskLevel)

	second, err := f.service.GetAdvice(ctx, medicalRequest())
	require.NoError(t, err)
	require.False(t, second.Declined)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Payload.Summary, second.Payload.Summary)

	assert.Equal(t, 1, f.generator.calls, "cache hit must not regenerate")
	assert.Equal(t, 1, f.limiter.calls, "cache hit must not spend budget")
}

func TestGetAdviceLowConfidenceDeclinedAndNeverCached(t *testing.T) {
	f := newFixture(t,
		&mockRetriever{results: goodResults()},
		&mockGenerator{advice: goodAdvice(0.49)},
		newMemCache(),
		&mockLimiter{budget: 10},
	)
	ctx := context.Background()

	decision, err := f.service.GetAdvice(ctx, medicalRequest())
	require.NoError(t, err)
	assert.True(t, decision.Declined)
	assert.Equal(t, ReasonLowConfidence, decision.Reason)
	assert.Zero(t, f.cache.puts)

	// The identical request gets a fresh generation attempt, not a stuck
	// cached decline.
	_, err = f.service.GetAdvice(ctx, medicalRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, f.generator.calls)
}

func TestGetAdviceMissingSummaryDeclined(t *testing.T) {
	f := newFixture(t,
		&mockRetriever{results: goodResults()},
		&mockGenerator{advice: &provider.Advice{Summary: "  ", Confidence: 0.9}},
		newMemCache(),
		&mockLimiter{budget: 10},
	)

	decision, err := f.service.GetAdvice(context.Background(), medicalRequest())
	require.NoError(t, err)
	assert.True(t, decision.Declined)
	assert.Equal(t, ReasonLowConfidence, decision.Reason)
}

func TestGetAdviceRateLimitBoundary(t *testing.T) {
	retriever := &mockRetriever{results: goodResults()}
	// Low confidence keeps every call on the miss path so each one spends
	// budget.
	f := newFixture(t, retriever, &mockGenerator{advice: goodAdvice(0.2)}, newMemCache(), &mockLimiter{budget: 6})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		decision, err := f.service.GetAdvice(ctx, medicalRequest())
		require.NoError(t, err)
		assert.Equal(t, ReasonLowConfidence, decision.Reason, "call %d", i+1)
	}

	seventh, err := f.service.GetAdvice(ctx, medicalRequest())
	require.NoError(t, err)
	assert.True(t, seventh.Declined)
	assert.Equal(t, ReasonRateLimited, seventh.Reason)
	assert.Equal(t, 6, f.generator.calls, "throttled call must not reach generation")
}

func TestGetAdviceUnattributedSkipsRateLimit(t *testing.T) {
	limiter := &mockLimiter{budget: 0}
	f := newFixture(t, &mockRetriever{results: goodResults()}, &mockGenerator{advice: goodAdvice(0.9)}, newMemCache(), limiter)

	decision, err := f.service.GetAdvice(context.Background(), Request{
		Category:       "Medical",
		OccurrenceText: "person collapsed at gate",
	})
	require.NoError(t, err)
	assert.False(t, decision.Declined)
	assert.Zero(t, limiter.calls)
}

func TestGetAdviceNoPassagesIsNotFound(t *testing.T) {
	f := newFixture(t, &mockRetriever{err: retrieval.ErrNoPassages}, &mockGenerator{}, newMemCache(), &mockLimiter{budget: 10})

	decision, err := f.service.GetAdvice(context.Background(), medicalRequest())
	require.NoError(t, err)
	assert.True(t, decision.Declined)
	assert.Equal(t, ReasonNotFound, decision.Reason)
	assert.Zero(t, f.generator.calls)
}

func TestGetAdviceProviderFailuresDegradeToError(t *testing.T) {
	t.Run("retrieval", func(t *testing.T) {
		f := newFixture(t, &mockRetriever{err: errors.New("timeout")}, &mockGenerator{}, newMemCache(), &mockLimiter{budget: 10})
		decision, err := f.service.GetAdvice(context.Background(), medicalRequest())
		require.NoError(t, err)
		assert.Equal(t, ReasonError, decision.Reason)
	})

	t.Run("generation", func(t *testing.T) {
		f := newFixture(t, &mockRetriever{results: goodResults()}, &mockGenerator{err: errors.New("quota")}, newMemCache(), &mockLimiter{budget: 10})
		decision, err := f.service.GetAdvice(context.Background(), medicalRequest())
		require.NoError(t, err)
		assert.Equal(t, ReasonError, decision.Reason)
	})

	t.Run("limiter", func(t *testing.T) {
		f := newFixture(t, &mockRetriever{results: goodResults()}, &mockGenerator{advice: goodAdvice(0.9)}, newMemCache(), &mockLimiter{err: errors.New("down")})
		decision, err := f.service.GetAdvice(context.Background(), medicalRequest())
		require.NoError(t, err)
		assert.Equal(t, ReasonError, decision.Reason)
	})
}

func TestGetAdviceValidation(t *testing.T) {
	f := newFixture(t, &mockRetriever{}, &mockGenerator{}, newMemCache(), &mockLimiter{budget: 10})

	_, err := f.service.GetAdvice(context.Background(), Request{Category: "", OccurrenceText: "x"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.service.GetAdvice(context.Background(), Request{Category: "Medical", OccurrenceText: "  "})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Zero(t, f.retriever.calls, "validation happens before side effects")
}

func TestGetAdviceScrubsBeforeEverything(t *testing.T) {
	retriever := &mockRetriever{results: goodResults()}
	generator := &mockGenerator{advice: goodAdvice(0.9)}
	cache := newMemCache()
	auditor := &recordingAuditor{}
	service, err := NewService(prefixScrubber{}, retriever, generator, cache, &mockLimiter{budget: 10}, auditor, Options{}, log.NewNop())
	require.NoError(t, err)

	_, err = service.GetAdvice(context.Background(), medicalRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(generator.lastOc, "[scrubbed] "))
	assert.Contains(t, retriever.lastQ, "[scrubbed] ")

	// The key is derived from scrubbed text, so the cached entry lives
	// under the scrubbed key and its excerpt carries only scrubbed text.
	key := CacheKey("Medical", "[scrubbed] person collapsed at gate")
	entry, getErr := cache.Get(context.Background(), key)
	require.NoError(t, getErr)
	require.NotNil(t, entry)
	assert.True(t, strings.HasPrefix(entry.Excerpt, "[scrubbed] "))
}

func TestGetAdviceCacheReadFailureFallsThroughToGeneration(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("connection refused")
	f := newFixture(t, &mockRetriever{results: goodResults()}, &mockGenerator{advice: goodAdvice(0.9)}, cache, &mockLimiter{budget: 10})

	decision, err := f.service.GetAdvice(context.Background(), medicalRequest())
	require.NoError(t, err)
	assert.False(t, decision.Declined)
	assert.Equal(t, 1, f.generator.calls)
}

func TestGetAdviceCacheWriteFailureStillServes(t *testing.T) {
	cache := newMemCache()
	cache.putErr = errors.New("disk full")
	f := newFixture(t, &mockRetriever{results: goodResults()}, &mockGenerator{advice: goodAdvice(0.9)}, cache, &mockLimiter{budget: 10})

	decision, err := f.service.GetAdvice(context.Background(), medicalRequest())
	require.NoError(t, err)
	assert.False(t, decision.Declined)
	assert.Equal(t, "high", decision.Payload.RiskLevel)
}

func TestGetAdviceExcerptBounded(t *testing.T) {
	cache := newMemCache()
	f := newFixture(t, &mockRetriever{results: goodResults()}, &mockGenerator{advice: goodAdvice(0.9)}, cache, &mockLimiter{budget: 10})

	long := strings.Repeat("crowd pressure building at the south gate ", 20)
	actor := "u1"
	_, err := f.service.GetAdvice(context.Background(), Request{
		Category: "Security", OccurrenceText: long, ActorID: &actor,
	})
	require.NoError(t, err)

	entry := cache.entries[CacheKey("Security", long)]
	require.NotNil(t, entry)
	assert.Len(t, []rune(entry.Excerpt), DefaultExcerptLimit)
}

func TestGetAdviceAuditTrail(t *testing.T) {
	f := newFixture(t, &mockRetriever{results: goodResults()}, &mockGenerator{advice: goodAdvice(0.9)}, newMemCache(), &mockLimiter{budget: 10})
	ctx := context.Background()

	_, err := f.service.GetAdvice(ctx, medicalRequest())
	require.NoError(t, err)
	_, err = f.service.GetAdvice(ctx, medicalRequest())
	require.NoError(t, err)

	assert.Equal(t, []string{"advice.served", "advice.served"}, f.auditor.actions)
}

func TestExcerptMultibyteSafe(t *testing.T) {
	text := strings.Repeat("観", 10)
	assert.Equal(t, strings.Repeat("観", 4), excerpt(text, 4))
	assert.Equal(t, text, excerpt(text, 10))
}
