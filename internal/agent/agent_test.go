package agent

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/prreviewer/internal/analyzer"
	"github.com/JNZader/prreviewer/internal/cache"
	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/history"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/metrics"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/review"
	"github.com/JNZader/prreviewer/internal/rules"
	"github.com/JNZader/prreviewer/internal/worker"
)

type fakeSource struct {
	mu       sync.Mutex
	pending  []model.PRRef
	listErr  error
	fetchErr error
	fetched  []string
	lists    int
}

func (s *fakeSource) FetchPRContext(_ context.Context, repo string, number int) (*model.PRContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	prc := &model.PRContext{
		PRNumber:     number,
		Repository:   repo,
		HeadSHA:      "sha1",
		FilesChanged: []string{"app/controller/users.py"},
		DiffContent:  map[string]string{"app/controller/users.py": "repository.save()\n"},
	}
	s.fetched = append(s.fetched, prc.Ref())
	return prc, nil
}

func (s *fakeSource) ListPendingReviews(_ context.Context, _ []string) ([]model.PRRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	return s.pending, s.listErr
}

func (s *fakeSource) fetchedRefs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.fetched...)
}

type fakePoster struct {
	mu     sync.Mutex
	posted []*model.ReviewResult
	err    error
}

func (p *fakePoster) PostReview(_ context.Context, result *model.ReviewResult, _ bool) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	p.posted = append(p.posted, result)
	return int64(len(p.posted)), nil
}

func (p *fakePoster) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.posted)
}

type slowReviewer struct{ delay time.Duration }

func (r slowReviewer) Review(ctx context.Context, prc *model.PRContext) (*model.ReviewResult, error) {
	select {
	case <-time.After(r.delay):
		return &model.ReviewResult{Repository: prc.Repository, PRNumber: prc.PRNumber}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func newEngine(t *testing.T) review.Reviewer {
	t.Helper()
	cat, err := rules.LoadDefault()
	require.NoError(t, err)
	return review.NewEngine(analyzer.All(cat, logger.Nop()), nil, nil, logger.Nop())
}

func testOptions() Options {
	return Options{
		PollingInterval:    10 * time.Millisecond,
		ErrorRetryInterval: 10 * time.Millisecond,
		ReviewTimeout:      time.Second,
		ConcurrentReviews:  2,
		QueueSize:          10,
	}
}

func TestReviewPR(t *testing.T) {
	a := New(testOptions(), &fakeSource{}, nil, newEngine(t), nil, nil, logger.Nop())

	prc, _ := (&fakeSource{}).FetchPRContext(context.Background(), "acme/api", 1)
	result, err := a.ReviewPR(context.Background(), prc)
	require.NoError(t, err)

	assert.Greater(t, result.ReviewTime, 0.0)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "no_db_in_controller", result.Issues[0].RuleName)

	stats := a.Stats()
	assert.Equal(t, 1, stats.PRsReviewed)
	assert.Equal(t, 1, stats.IssuesFound)
	assert.Equal(t, 1.0, stats.SuccessRate)
	assert.Greater(t, stats.ReviewTimeAvg, 0.0)
}

func TestReviewPRTimeout(t *testing.T) {
	opts := testOptions()
	opts.ReviewTimeout = 20 * time.Millisecond
	a := New(opts, &fakeSource{}, nil, slowReviewer{delay: time.Second}, nil, nil, logger.Nop())

	_, err := a.ReviewPR(context.Background(), &model.PRContext{Repository: "acme/api", PRNumber: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")

	stats := a.Stats()
	assert.Equal(t, 0, stats.PRsReviewed)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.Contains(t, a.Status().LastError, "timed out")
}

func TestEmptyStats(t *testing.T) {
	a := New(testOptions(), &fakeSource{}, nil, newEngine(t), nil, nil, logger.Nop())
	assert.Equal(t, model.AgentStats{}, a.Stats())

	status := a.Status()
	assert.False(t, status.Running)
	assert.Nil(t, status.LastPoll)
}

func TestEnqueueReviewsAndPosts(t *testing.T) {
	src := &fakeSource{}
	poster := &fakePoster{}
	c := cache.NewLRUCache(10, time.Hour)
	a := New(testOptions(), src, poster, newEngine(t), c, metrics.NewCollector(), logger.Nop())
	require.NoError(t, a.Start(context.Background()))

	require.NoError(t, a.Enqueue(model.PRRef{Repository: "acme/api", Number: 4}))
	a.Stop()

	assert.Equal(t, []string{"acme/api#4"}, src.fetchedRefs())
	require.Equal(t, 1, poster.count())
	assert.Greater(t, poster.posted[0].ReviewTime, 0.0)

	_, ok := c.Get(cache.ComputeKey("acme/api", 4, "sha1"))
	assert.True(t, ok, "result should be cached by head sha")
}

func TestCachedHeadIsSkipped(t *testing.T) {
	src := &fakeSource{}
	poster := &fakePoster{}
	c := cache.NewLRUCache(10, time.Hour)
	c.Set(cache.ComputeKey("acme/api", 4, "sha1"), &model.ReviewResult{})
	collector := metrics.NewCollector()

	a := New(testOptions(), src, poster, newEngine(t), c, collector, logger.Nop())
	require.NoError(t, a.Start(context.Background()))

	// unknown head: fetched, then skipped once the head is known
	require.NoError(t, a.Enqueue(model.PRRef{Repository: "acme/api", Number: 4}))
	a.Stop()

	assert.Len(t, src.fetchedRefs(), 1)
	assert.Equal(t, 0, poster.count())
	assert.Equal(t, int64(1), collector.Counter(metrics.ReviewsSkipped).Value())
}

func TestHistorySurvivesRestart(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	src := &fakeSource{}
	poster := &fakePoster{}
	first := New(testOptions(), src, poster, newEngine(t), nil, nil, logger.Nop())
	first.UseHistory(store)
	require.NoError(t, first.Start(context.Background()))
	require.NoError(t, first.Enqueue(model.PRRef{Repository: "acme/api", Number: 4}))
	first.Stop()
	require.Equal(t, 1, poster.count())

	reviews, err := store.Recent(context.Background(), history.ListQuery{Repository: "acme/api"})
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, int64(1), reviews[0].PostedReviewID)
	assert.Equal(t, "sha1", reviews[0].HeadSHA)

	// A fresh agent with an empty in-memory cache skips the known head.
	collector := metrics.NewCollector()
	second := New(testOptions(), src, poster, newEngine(t), nil, collector, logger.Nop())
	second.UseHistory(store)
	require.NoError(t, second.Start(context.Background()))
	require.NoError(t, second.Enqueue(model.PRRef{Repository: "acme/api", Number: 4, HeadSHA: "sha1"}))
	second.Stop()

	assert.Equal(t, 1, poster.count())
	assert.Equal(t, int64(1), collector.Counter(metrics.ReviewsSkipped).Value())
}

type blockingSource struct {
	*fakeSource
	started chan struct{}
	release chan struct{}
}

func (s *blockingSource) FetchPRContext(ctx context.Context, repo string, number int) (*model.PRContext, error) {
	s.started <- struct{}{}
	<-s.release
	return s.fakeSource.FetchPRContext(ctx, repo, number)
}

func TestEnqueueDuplicate(t *testing.T) {
	src := &blockingSource{
		fakeSource: &fakeSource{},
		started:    make(chan struct{}, 1),
		release:    make(chan struct{}),
	}
	opts := testOptions()
	opts.ConcurrentReviews = 1
	a := New(opts, src, nil, newEngine(t), nil, nil, logger.Nop())
	require.NoError(t, a.Start(context.Background()))

	ref := model.PRRef{Repository: "acme/api", Number: 4, HeadSHA: "sha1"}
	require.NoError(t, a.Enqueue(ref))
	<-src.started

	// under review
	err := a.Enqueue(ref)
	require.Error(t, err)
	assert.ErrorIs(t, err, worker.ErrDuplicate)

	other := model.PRRef{Repository: "acme/api", Number: 5, HeadSHA: "sha2"}
	require.NoError(t, a.Enqueue(other))
	// queued behind the first
	assert.ErrorIs(t, a.Enqueue(other), worker.ErrDuplicate)

	close(src.release)
	a.Stop()
	assert.ElementsMatch(t, []string{"acme/api#4", "acme/api#5"}, src.fetchedRefs())
}

func TestPollSkipsQueued(t *testing.T) {
	src := &blockingSource{
		fakeSource: &fakeSource{pending: []model.PRRef{
			{Repository: "acme/api", Number: 1, HeadSHA: "sha1"},
		}},
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	opts := testOptions()
	opts.Repositories = []string{"acme/api"}
	a := New(opts, src, nil, newEngine(t), nil, nil, logger.Nop())
	a.pool.Start(context.Background())

	require.NoError(t, a.Poll(context.Background()))
	<-src.started
	require.NoError(t, a.Poll(context.Background()), "a pull request under review is skipped")

	close(src.release)
	a.pool.Stop()
	assert.Equal(t, []string{"acme/api#1"}, src.fetchedRefs())
}

func TestPollQueuesUncachedOnly(t *testing.T) {
	src := &fakeSource{pending: []model.PRRef{
		{Repository: "acme/api", Number: 1, HeadSHA: "sha1"},
		{Repository: "acme/api", Number: 2, HeadSHA: "new"},
	}}
	c := cache.NewLRUCache(10, time.Hour)
	c.Set(cache.ComputeKey("acme/api", 1, "sha1"), &model.ReviewResult{})

	opts := testOptions()
	opts.Repositories = []string{"acme/api"}
	a := New(opts, src, nil, newEngine(t), c, nil, logger.Nop())
	a.pool.Start(context.Background())

	require.NoError(t, a.Poll(context.Background()))
	a.pool.Stop()

	assert.Equal(t, []string{"acme/api#2"}, src.fetchedRefs())
	assert.NotNil(t, a.Status().LastPoll)
}

func TestPollError(t *testing.T) {
	src := &fakeSource{listErr: errors.New("api down")}
	a := New(testOptions(), src, nil, newEngine(t), nil, nil, logger.Nop())

	assert.Error(t, a.Poll(context.Background()))
	assert.Equal(t, "api down", a.Status().LastError)
}

func TestMonitorKeepsPollingAfterErrors(t *testing.T) {
	src := &fakeSource{listErr: errors.New("api down")}
	opts := testOptions()
	opts.Repositories = []string{"acme/api"}
	a := New(opts, src, nil, newEngine(t), nil, nil, logger.Nop())

	require.NoError(t, a.Start(context.Background()))
	assert.True(t, a.Running())
	assert.Error(t, a.Start(context.Background()), "second start should fail")

	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.lists >= 3
	}, time.Second, 5*time.Millisecond)

	a.Stop()
	assert.False(t, a.Running())
}

func TestFetchFailureCounts(t *testing.T) {
	src := &fakeSource{fetchErr: errors.New("not found")}
	a := New(testOptions(), src, nil, newEngine(t), nil, nil, logger.Nop())
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Enqueue(model.PRRef{Repository: "acme/api", Number: 9}))
	a.Stop()

	status := a.Status()
	assert.Equal(t, "not found", status.LastError)
	assert.Equal(t, int64(1), status.Queue.Errors)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MonitoredRepositories = []string{"acme/api"}
	opts := OptionsFromConfig(cfg)

	assert.Equal(t, []string{"acme/api"}, opts.Repositories)
	assert.Equal(t, 5*time.Minute, opts.ReviewTimeout)
	assert.Equal(t, 5, opts.ConcurrentReviews)
	assert.Equal(t, 50, opts.QueueSize)
	assert.True(t, opts.Prioritize)
}
