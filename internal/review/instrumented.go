package review

import (
	"context"
	"time"

	"github.com/JNZader/prreviewer/internal/metrics"
	"github.com/JNZader/prreviewer/internal/model"
)

// Reviewer is anything that can review a pull request.
type Reviewer interface {
	Review(ctx context.Context, prc *model.PRContext) (*model.ReviewResult, error)
}

// InstrumentedEngine wraps a Reviewer with metrics collection.
type InstrumentedEngine struct {
	next      Reviewer
	collector *metrics.Collector
}

// NewInstrumentedEngine creates a reviewer that records into collector.
func NewInstrumentedEngine(next Reviewer, collector *metrics.Collector) *InstrumentedEngine {
	return &InstrumentedEngine{next: next, collector: collector}
}

// Review executes the review with metrics collection.
func (ie *InstrumentedEngine) Review(ctx context.Context, prc *model.PRContext) (*model.ReviewResult, error) {
	ie.collector.Counter(metrics.ReviewsTotal).Inc()
	inFlight := ie.collector.Gauge(metrics.ReviewsInFlight)
	inFlight.Add(1)
	defer inFlight.Add(-1)

	start := time.Now()
	result, err := ie.next.Review(ctx, prc)
	ie.collector.Histogram(metrics.ReviewDuration).Time(start)

	if err != nil {
		ie.collector.Counter(metrics.ReviewFailuresTotal).Inc()
		return nil, err
	}

	ie.collector.Counter(metrics.IssuesFoundTotal).Add(int64(len(result.Issues)))
	ie.collector.Counter(metrics.FilesAnalyzedTotal).Add(int64(result.TotalFilesReviewed))
	return result, nil
}

// ReviewStats contains aggregate review statistics.
type ReviewStats struct {
	TotalReviews  int64         `json:"total_reviews"`
	TotalFailures int64         `json:"total_failures"`
	TotalIssues   int64         `json:"total_issues"`
	TotalFiles    int64         `json:"total_files"`
	AvgDuration   float64       `json:"avg_duration_seconds"`
	Uptime        time.Duration `json:"uptime"`
}

// Stats returns a summary of review statistics.
func (ie *InstrumentedEngine) Stats() ReviewStats {
	avg, _ := ie.collector.Histogram(metrics.ReviewDuration).AverageSince(0)
	return ReviewStats{
		TotalReviews:  ie.collector.Counter(metrics.ReviewsTotal).Value(),
		TotalFailures: ie.collector.Counter(metrics.ReviewFailuresTotal).Value(),
		TotalIssues:   ie.collector.Counter(metrics.IssuesFoundTotal).Value(),
		TotalFiles:    ie.collector.Counter(metrics.FilesAnalyzedTotal).Value(),
		AvgDuration:   avg,
		Uptime:        ie.collector.Uptime(),
	}
}

// SuccessRate returns the fraction of reviews that completed, in [0, 1].
func (s ReviewStats) SuccessRate() float64 {
	if s.TotalReviews == 0 {
		return 0
	}
	return float64(s.TotalReviews-s.TotalFailures) / float64(s.TotalReviews)
}

// InstrumentedRemote times calls to a Remote.
type InstrumentedRemote struct {
	next      Remote
	collector *metrics.Collector
}

// NewInstrumentedRemote wraps remote so that each call is recorded in the
// remote analysis duration histogram.
func NewInstrumentedRemote(remote Remote, collector *metrics.Collector) *InstrumentedRemote {
	return &InstrumentedRemote{next: remote, collector: collector}
}

func (ir *InstrumentedRemote) AnalyzePullRequest(ctx context.Context, prc *model.PRContext) ([]model.Issue, error) {
	start := time.Now()
	defer ir.collector.Histogram(metrics.RemoteDuration).Time(start)
	return ir.next.AnalyzePullRequest(ctx, prc)
}
