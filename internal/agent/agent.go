// Package agent runs the review service: it polls monitored repositories,
// accepts webhook deliveries, reviews pull requests on a worker pool and
// posts the results back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JNZader/prreviewer/internal/cache"
	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/metrics"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/review"
	"github.com/JNZader/prreviewer/internal/worker"
)

// PRSource loads pull requests.
type PRSource interface {
	FetchPRContext(ctx context.Context, repo string, number int) (*model.PRContext, error)
	ListPendingReviews(ctx context.Context, repos []string) ([]model.PRRef, error)
}

// Poster publishes a review result.
type Poster interface {
	PostReview(ctx context.Context, result *model.ReviewResult, prioritize bool) (int64, error)
}

// History is a durable log of completed reviews.
type History interface {
	Reviewed(ctx context.Context, repo string, number int, headSHA string) (bool, error)
	Record(ctx context.Context, result *model.ReviewResult, postedID int64) error
}

// Options configure an Agent.
type Options struct {
	Repositories       []string
	PollingInterval    time.Duration
	ErrorRetryInterval time.Duration
	ReviewTimeout      time.Duration
	ConcurrentReviews  int
	QueueSize          int
	Prioritize         bool
}

// OptionsFromConfig maps the application config onto agent options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Repositories:       cfg.MonitoredRepositories,
		PollingInterval:    cfg.PollingInterval,
		ErrorRetryInterval: cfg.ErrorRetryInterval,
		ReviewTimeout:      cfg.ReviewTimeout,
		ConcurrentReviews:  cfg.ConcurrentReviews,
		QueueSize:          cfg.ConcurrentReviews * 10,
		Prioritize:         cfg.Analysis.Prioritization,
	}
}

// Agent coordinates reviews. Create it with New.
type Agent struct {
	opts     Options
	source   PRSource
	poster   Poster
	reviewer review.Reviewer
	cache    cache.Cache
	history  History
	metrics  *metrics.Collector
	log      *logger.Logger

	pool    *worker.Pool
	running atomic.Bool
	stop    context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	reviewed  int
	failed    int
	issues    int
	totalTime float64
	lastPoll  time.Time
	lastError string
}

// New creates an agent. A nil poster disables posting (dry run) and a nil
// cache disables result caching.
func New(opts Options, source PRSource, poster Poster, reviewer review.Reviewer,
	c cache.Cache, collector *metrics.Collector, log *logger.Logger) *Agent {
	if c == nil {
		c = cache.Noop{}
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}
	a := &Agent{
		opts:     opts,
		source:   source,
		poster:   poster,
		reviewer: reviewer,
		cache:    c,
		metrics:  collector,
		log:      log.WithPrefix("AGENT"),
	}
	a.pool = worker.NewPool(worker.Config{
		Workers:   opts.ConcurrentReviews,
		QueueSize: opts.QueueSize,
		OnDone:    a.onDone,
	})
	return a
}

// UseHistory records every completed review in h and skips pull requests
// that h has already seen at their head commit. Call it before Start.
func (a *Agent) UseHistory(h History) {
	a.history = h
}

// Start launches the worker pool and, when repositories are monitored,
// the polling loop. It returns immediately; call Stop to shut down.
func (a *Agent) Start(ctx context.Context) error {
	if a.running.Swap(true) {
		return errors.New("agent already running")
	}

	a.pool.Start(ctx)

	pollCtx, stop := context.WithCancel(ctx)
	a.stop = stop
	if len(a.opts.Repositories) == 0 {
		a.log.Info("no monitored repositories, polling disabled")
	} else {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.monitor(pollCtx)
		}()
	}

	a.log.Info("started with %d workers", a.pool.Stats().Workers)
	return nil
}

// Stop ends polling and waits for queued reviews to finish.
func (a *Agent) Stop() {
	if !a.running.Swap(false) {
		return
	}
	a.stop()
	a.wg.Wait()
	a.pool.Stop()
	a.log.Info("stopped")
}

// Running reports whether the agent has been started and not stopped.
func (a *Agent) Running() bool {
	return a.running.Load()
}

// monitor polls until ctx is done, waiting ErrorRetryInterval instead of
// PollingInterval after a failed poll.
func (a *Agent) monitor(ctx context.Context) {
	for {
		wait := a.opts.PollingInterval
		if err := a.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			a.log.Error("error in PR monitoring: %v", err)
			wait = a.opts.ErrorRetryInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// Poll lists pending pull requests once and queues those that have not
// been reviewed at their current head.
func (a *Agent) Poll(ctx context.Context) error {
	refs, err := a.source.ListPendingReviews(ctx, a.opts.Repositories)

	a.mu.Lock()
	a.lastPoll = time.Now()
	if err != nil {
		a.lastError = err.Error()
	}
	a.mu.Unlock()

	if err != nil {
		return err
	}

	queued := 0
	for _, ref := range refs {
		if a.alreadyReviewed(ctx, ref.Repository, ref.Number, ref.HeadSHA) {
			continue
		}
		if err := a.Enqueue(ref); err != nil {
			if errors.Is(err, worker.ErrDuplicate) {
				continue
			}
			if errors.Is(err, worker.ErrQueueFull) {
				a.log.Warn("queue full, deferring %d pull requests to the next poll", len(refs)-queued)
				break
			}
			return err
		}
		queued++
	}
	a.log.Debug("poll found %d open pull requests, queued %d", len(refs), queued)
	return nil
}

// Enqueue schedules a review. A pull request that is already queued or
// under review is not queued twice; the error then wraps
// worker.ErrDuplicate.
func (a *Agent) Enqueue(ref model.PRRef) error {
	if err := a.pool.Submit(&reviewTask{agent: a, ref: ref}); err != nil {
		if errors.Is(err, worker.ErrDuplicate) {
			a.log.Debug("%s already queued", ref)
		}
		return fmt.Errorf("queueing %s: %w", ref, err)
	}
	a.metrics.Gauge(metrics.QueueDepth).Set(float64(a.pool.Stats().Pending))
	return nil
}

func (a *Agent) onDone(r worker.Result) {
	a.metrics.Gauge(metrics.QueueDepth).Set(float64(a.pool.Stats().Pending))
	if r.Error != nil {
		a.log.Error("error reviewing %s: %v", r.TaskID, r.Error)
	}
}

// alreadyReviewed consults the cache, then the history. History errors
// are logged and treated as not reviewed.
func (a *Agent) alreadyReviewed(ctx context.Context, repo string, number int, headSHA string) bool {
	if headSHA == "" {
		return false
	}
	if _, ok := a.cache.Get(cache.ComputeKey(repo, number, headSHA)); ok {
		return true
	}
	if a.history == nil {
		return false
	}
	seen, err := a.history.Reviewed(ctx, repo, number, headSHA)
	if err != nil {
		a.log.Warn("history lookup for %s#%d: %v", repo, number, err)
		return false
	}
	return seen
}

// reviewTask reviews and posts one pull request.
type reviewTask struct {
	agent *Agent
	ref   model.PRRef
}

func (t *reviewTask) ID() string { return t.ref.String() }

func (t *reviewTask) Execute(ctx context.Context) error {
	return t.agent.process(ctx, t.ref)
}

func (a *Agent) process(ctx context.Context, ref model.PRRef) error {
	if a.alreadyReviewed(ctx, ref.Repository, ref.Number, ref.HeadSHA) {
		a.metrics.Counter(metrics.ReviewsSkipped).Inc()
		return nil
	}

	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	prc, err := a.source.FetchPRContext(ctx, ref.Repository, ref.Number)
	if err != nil {
		a.recordFailure(err)
		return err
	}
	if a.alreadyReviewed(ctx, prc.Repository, prc.PRNumber, prc.HeadSHA) {
		a.metrics.Counter(metrics.ReviewsSkipped).Inc()
		return nil
	}

	result, err := a.ReviewPR(ctx, prc)
	if err != nil {
		return err
	}

	var postedID int64
	if a.poster != nil {
		if postedID, err = a.poster.PostReview(ctx, result, a.opts.Prioritize); err != nil {
			a.mu.Lock()
			a.lastError = err.Error()
			a.mu.Unlock()
			return err
		}
	}

	if prc.HeadSHA != "" {
		a.cache.Set(cache.ComputeKey(prc.Repository, prc.PRNumber, prc.HeadSHA), result)
	}
	if a.history != nil {
		if err := a.history.Record(ctx, result, postedID); err != nil {
			a.log.Warn("recording history for %s: %v", prc.Ref(), err)
		}
	}
	a.log.Info("completed review for %s: %d issues in %.2fs", prc.Ref(), len(result.Issues), result.ReviewTime)
	return nil
}

// ReviewPR runs a review bounded by the review timeout, sets ReviewTime
// and updates the agent statistics.
func (a *Agent) ReviewPR(ctx context.Context, prc *model.PRContext) (*model.ReviewResult, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	result, err := a.reviewer.Review(ctx, prc)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("review of %s timed out after %s: %w", prc.Ref(), a.opts.ReviewTimeout, err)
		}
		a.recordFailure(err)
		return nil, err
	}
	result.ReviewTime = elapsed

	a.mu.Lock()
	a.reviewed++
	a.issues += len(result.Issues)
	a.totalTime += elapsed
	a.mu.Unlock()

	return result, nil
}

func (a *Agent) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.opts.ReviewTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.opts.ReviewTimeout)
}

func (a *Agent) recordFailure(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++
	a.lastError = err.Error()
}

// Stats returns the process-wide review statistics.
func (a *Agent) Stats() model.AgentStats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := model.AgentStats{
		PRsReviewed: a.reviewed,
		IssuesFound: a.issues,
	}
	if a.reviewed > 0 {
		stats.ReviewTimeAvg = a.totalTime / float64(a.reviewed)
	}
	if attempts := a.reviewed + a.failed; attempts > 0 {
		stats.SuccessRate = float64(a.reviewed) / float64(attempts)
	}
	return stats
}

// Status is served on GET /status.
type Status struct {
	Running   bool             `json:"running"`
	Stats     model.AgentStats `json:"stats"`
	Queue     worker.Stats     `json:"queue"`
	Cache     cache.Stats      `json:"cache"`
	LastPoll  *time.Time       `json:"last_poll,omitempty"`
	LastError string           `json:"last_error,omitempty"`
	Uptime    string           `json:"uptime"`
}

// Status reports whether the agent runs along with its statistics.
func (a *Agent) Status() Status {
	s := Status{
		Running: a.Running(),
		Stats:   a.Stats(),
		Queue:   a.pool.Stats(),
		Cache:   a.cache.Stats(),
		Uptime:  a.metrics.Uptime().Round(time.Second).String(),
	}
	a.mu.Lock()
	if !a.lastPoll.IsZero() {
		t := a.lastPoll
		s.LastPoll = &t
	}
	s.LastError = a.lastError
	a.mu.Unlock()
	return s
}
