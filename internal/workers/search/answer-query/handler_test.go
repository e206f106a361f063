package answerquery

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"search-workers/internal/common/errors"
	"search-workers/internal/common/llm"
	"search-workers/internal/common/logger"
	"search-workers/internal/models"
	directanswer "search-workers/internal/workers/search/direct-answer"
	finalizeanswer "search-workers/internal/workers/search/finalize-answer"
	webanswer "search-workers/internal/workers/search/web-answer"
)

// leakOptions ignores the opencensus view worker started when the genai
// dependency loads, plus anything already running when the test begins.
func leakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreCurrent(),
	}
}

// ==========================
// Test Doubles
// ==========================

type stubStrategy struct {
	calls     int32
	candidate *models.Candidate
	err       error
}

func (s *stubStrategy) Run(ctx context.Context, query string) (*models.Candidate, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return nil, s.err
	}
	c := *s.candidate
	return &c, nil
}

type stubFinalizer struct {
	calls int32
}

func (f *stubFinalizer) Finalize(ctx context.Context, c *models.Candidate) (*models.SearchAnswer, error) {
	atomic.AddInt32(&f.calls, 1)
	return &models.SearchAnswer{Answer: c.Answer, Sources: c.Sources, Mode: c.Mode}, nil
}

// scriptedGateway answers by recognizing which stage is calling it.
type scriptedGateway struct {
	mu    sync.Mutex
	calls []string
}

func (g *scriptedGateway) Invoke(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
	system := messages[0].Text
	stage := "direct"
	text := "A self-balancing tree rotates nodes after inserts and deletes."
	switch {
	case strings.Contains(system, "page summaries"):
		stage = "synthesis"
		text = "The latest iPhone starts at $799 according to the sources."
	case strings.Contains(system, "JSON repair"):
		stage = "repair"
		text = `{"answer": "repaired", "sources": []}`
	}

	g.mu.Lock()
	g.calls = append(g.calls, stage)
	g.mu.Unlock()
	return &llm.Response{Text: text}, nil
}

func (g *scriptedGateway) stages() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

type fakeEvidence struct {
	results  []models.EvidenceResult
	searches int32
}

func (f *fakeEvidence) Search(ctx context.Context, query string) ([]models.EvidenceResult, error) {
	atomic.AddInt32(&f.searches, 1)
	return f.results, nil
}

func (f *fakeEvidence) Open(ctx context.Context, url string) (*models.OpenedPage, error) {
	return &models.OpenedPage{URL: url, Content: "page body for " + url}, nil
}

func (f *fakeEvidence) Summarize(ctx context.Context, page models.OpenedPage) (*models.PageSummary, error) {
	return &models.PageSummary{URL: page.URL, Summary: "summary of " + page.URL}, nil
}

func createPipeline(t *testing.T, ev *fakeEvidence, gw *scriptedGateway) *Handler {
	log := logger.NewTestLogger(t)
	direct := directanswer.NewHandler(directanswer.LoadConfig(), gw, log)
	web := webanswer.NewHandler(webanswer.LoadConfig(), ev, gw, direct, log)
	finalizer := finalizeanswer.NewHandler(finalizeanswer.LoadConfig(), gw, log)
	return NewHandler(LoadConfig(), web, direct, finalizer, nil, log)
}

// ==========================
// Dispatch Tests
// ==========================

func TestSearch_Dispatch(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantWeb    int32
		wantDirect int32
	}{
		{"web query", "best mechanical keyboards", 1, 0},
		{"direct query", "What is the capital of France?", 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			web := &stubStrategy{candidate: &models.Candidate{Answer: "web", Sources: []string{}, Mode: models.ModeWeb}}
			direct := &stubStrategy{candidate: &models.Candidate{Answer: "direct", Sources: []string{}, Mode: models.ModeDirect}}
			finalizer := &stubFinalizer{}
			h := NewHandler(LoadConfig(), web, direct, finalizer, nil, logger.NewTestLogger(t))

			_, err := h.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWeb, atomic.LoadInt32(&web.calls))
			assert.Equal(t, tt.wantDirect, atomic.LoadInt32(&direct.calls))
			assert.Equal(t, int32(1), atomic.LoadInt32(&finalizer.calls))
		})
	}
}

func TestSearch_ShortQueryRejectedBeforeAnyCall(t *testing.T) {
	for _, q := range []string{"hi", "", "    ", " abcd "} {
		t.Run(fmt.Sprintf("%q", q), func(t *testing.T) {
			web := &stubStrategy{}
			direct := &stubStrategy{}
			finalizer := &stubFinalizer{}
			h := NewHandler(LoadConfig(), web, direct, finalizer, nil, logger.NewTestLogger(t))

			got, err := h.Search(context.Background(), q)
			assert.Nil(t, got)
			assert.True(t, errors.HasCode(err, errors.ErrCodeQueryTooShort))
			assert.Zero(t, atomic.LoadInt32(&web.calls)+atomic.LoadInt32(&direct.calls)+atomic.LoadInt32(&finalizer.calls))
		})
	}
}

func TestSearch_StrategyErrorSkipsFinalize(t *testing.T) {
	direct := &stubStrategy{err: errors.NewLLMTimeoutError("openai", context.DeadlineExceeded)}
	finalizer := &stubFinalizer{}
	h := NewHandler(LoadConfig(), &stubStrategy{}, direct, finalizer, nil, logger.NewTestLogger(t))

	_, err := h.Search(context.Background(), "What is a monad?")
	assert.True(t, errors.HasCode(err, errors.ErrCodeLLMTimeout))
	assert.Zero(t, atomic.LoadInt32(&finalizer.calls))
}

// ==========================
// End-to-End Scenarios
// ==========================

func TestSearch_EndToEnd(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions()...)

	threeResults := []models.EvidenceResult{
		{Title: "Apple", URL: "https://apple.example/iphone", Snippet: "iPhone pricing"},
		{Title: "Review", URL: "https://review.example/iphone", Snippet: "hands on"},
		{Title: "News", URL: "https://news.example/iphone", Snippet: "launch event"},
	}

	tests := []struct {
		name        string
		query       string
		results     []models.EvidenceResult
		wantMode    models.Mode
		wantSources []string
		wantStages  []string
		wantSearch  int32
	}{
		{
			name:        "static question answered directly",
			query:       "Explain how a binary search tree balances itself",
			wantMode:    models.ModeDirect,
			wantSources: []string{},
			wantStages:  []string{"direct"},
		},
		{
			name:        "web question with evidence",
			query:       "latest iPhone price",
			results:     threeResults,
			wantMode:    models.ModeWeb,
			wantSources: []string{"https://apple.example/iphone", "https://review.example/iphone", "https://news.example/iphone"},
			wantStages:  []string{"synthesis"},
			wantSearch:  1,
		},
		{
			name:        "web question without evidence",
			query:       "top 10 budget laptops under 500",
			results:     nil,
			wantMode:    models.ModeDirect,
			wantSources: []string{},
			wantStages:  []string{"direct"},
			wantSearch:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := &fakeEvidence{results: tt.results}
			gw := &scriptedGateway{}
			h := createPipeline(t, ev, gw)

			got, err := h.Search(context.Background(), tt.query)
			require.NoError(t, err)
			assert.NotEmpty(t, got.Answer)
			assert.Equal(t, tt.wantMode, got.Mode)
			assert.Equal(t, tt.wantSources, got.Sources)
			assert.Equal(t, tt.wantStages, gw.stages())
			assert.Equal(t, tt.wantSearch, atomic.LoadInt32(&ev.searches))
		})
	}
}

func TestSearch_EndToEnd_RepairsEmptyAnswer(t *testing.T) {
	gw := &scriptedGateway{}
	log := logger.NewTestLogger(t)
	empty := &stubStrategy{candidate: &models.Candidate{Answer: "   ", Sources: []string{}, Mode: models.ModeDirect}}
	finalizer := finalizeanswer.NewHandler(finalizeanswer.LoadConfig(), gw, log)
	h := NewHandler(LoadConfig(), empty, empty, finalizer, nil, log)

	got, err := h.Search(context.Background(), "What is a monad?")
	require.NoError(t, err)
	assert.Equal(t, &models.SearchAnswer{Answer: "repaired", Sources: []string{}, Mode: models.ModeDirect}, got)
	assert.Equal(t, []string{"repair"}, gw.stages())
}

func TestSearch_EndToEnd_GatewayDown(t *testing.T) {
	gw := llm.GatewayFunc(func(ctx context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
		return nil, errors.NewModelUnavailableError("openai", stderrors.New("503"))
	})
	log := logger.NewTestLogger(t)
	direct := directanswer.NewHandler(directanswer.LoadConfig(), gw, log)
	finalizer := finalizeanswer.NewHandler(finalizeanswer.LoadConfig(), gw, log)
	h := NewHandler(LoadConfig(), direct, direct, finalizer, nil, log)

	_, err := h.Search(context.Background(), "What is the capital of France?")
	assert.True(t, errors.HasCode(err, errors.ErrCodeModelUnavailable))
}
