// Package webhook receives GitHub webhook deliveries and exposes the
// health and status endpoints.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gh "github.com/google/go-github/v71/github"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/metrics"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/worker"
)

const (
	signatureHeader = "X-Hub-Signature-256"
	deliveryHeader  = "X-GitHub-Delivery"

	maxPayloadBytes = 25 << 20

	statusIgnored    = "ignored"
	statusProcessing = "processing"
	statusQueued     = "already queued"
)

// Errors an Enqueuer may wrap. ErrQueueFull means no more work is
// accepted; ErrDuplicate means the pull request is already queued or under
// review.
var (
	ErrQueueFull = worker.ErrQueueFull
	ErrDuplicate = worker.ErrDuplicate
)

// Enqueuer schedules a pull request review.
type Enqueuer interface {
	Enqueue(ref model.PRRef) error
}

// Options configure the handler.
type Options struct {
	// Secret enables signature validation when set.
	Secret string
	// Events are the accepted X-GitHub-Event values.
	Events []string
	// Repositories limits deliveries to "owner/name" entries; empty
	// accepts every repository.
	Repositories []string
}

// reviewActions are the pull_request actions that trigger a review.
var reviewActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// Handler serves POST /webhook.
type Handler struct {
	secret  []byte
	events  map[string]bool
	repos   map[string]bool
	queue   Enqueuer
	metrics *metrics.Collector
	log     *logger.Logger
}

// NewHandler creates a webhook handler. collector may be nil.
func NewHandler(opts Options, queue Enqueuer, collector *metrics.Collector, log *logger.Logger) *Handler {
	h := &Handler{
		events:  toSet(opts.Events),
		repos:   toSet(opts.Repositories),
		queue:   queue,
		metrics: collector,
		log:     log.WithPrefix("WEBHOOK"),
	}
	if opts.Secret != "" {
		h.secret = []byte(opts.Secret)
	} else {
		h.log.Warn("webhook secret not configured, signatures are not verified")
	}
	return h
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

// minimal shape shared by every repository event
type envelope struct {
	Repository *struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	delivery := r.Header.Get(deliveryHeader)
	if delivery == "" {
		delivery = "unknown"
	}
	event := gh.WebHookType(r)
	log := h.log.WithFields(map[string]interface{}{"delivery": delivery, "event": event})
	if h.metrics != nil {
		h.metrics.Counter(metrics.WebhooksReceived).Inc()
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	if h.secret != nil {
		signature := r.Header.Get(signatureHeader)
		if signature == "" {
			log.Error("no signature provided")
			writeError(w, http.StatusBadRequest, "No signature provided")
			return
		}
		if err := gh.ValidateSignature(signature, body, h.secret); err != nil {
			log.Error("invalid signature: %v", err)
			writeError(w, http.StatusUnauthorized, "Invalid signature")
			return
		}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		log.Error("invalid payload: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}

	if !h.events[event] {
		log.Info("ignoring unhandled event type")
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      statusIgnored,
			"reason":      fmt.Sprintf("Event type %s not configured for processing", event),
			"delivery_id": delivery,
		})
		return
	}

	repo := ""
	if env.Repository != nil {
		repo = env.Repository.FullName
		if len(h.repos) > 0 && !h.repos[repo] {
			log.Info("ignoring event from unmonitored repository %s", repo)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"status":      statusIgnored,
				"reason":      fmt.Sprintf("Repository %s not in monitored list", repo),
				"delivery_id": delivery,
			})
			return
		}
	}

	ref, reason, err := h.reviewRef(event, body)
	if err != nil {
		log.Error("invalid %s payload: %v", event, err)
		writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		return
	}
	if ref == nil {
		log.Debug("no review needed: %s", reason)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      statusIgnored,
			"reason":      reason,
			"delivery_id": delivery,
		})
		return
	}

	err = h.queue.Enqueue(*ref)
	if errors.Is(err, ErrDuplicate) {
		log.Info("%s is already queued", ref)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":      statusQueued,
			"delivery_id": delivery,
			"repository":  repo,
		})
		return
	}
	if err != nil {
		log.Error("enqueue %s: %v", ref, err)
		status := http.StatusInternalServerError
		if errors.Is(err, ErrQueueFull) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, fmt.Sprintf("Error processing webhook: %v", err))
		return
	}

	log.Info("queued review of %s", ref)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":      statusProcessing,
		"delivery_id": delivery,
		"event_type":  event,
		"repository":  repo,
	})
}

// reviewRef returns the pull request to review, or nil and the reason
// nothing is done for this delivery.
func (h *Handler) reviewRef(event string, body []byte) (*model.PRRef, string, error) {
	parsed, err := gh.ParseWebHook(event, body)
	if err != nil {
		return nil, fmt.Sprintf("no action for event %s", event), nil
	}

	pre, ok := parsed.(*gh.PullRequestEvent)
	if !ok {
		return nil, fmt.Sprintf("no action for event %s", event), nil
	}
	if !reviewActions[pre.GetAction()] {
		return nil, fmt.Sprintf("pull_request action %q does not trigger a review", pre.GetAction()), nil
	}
	if pre.GetRepo().GetFullName() == "" || pre.GetNumber() == 0 {
		return nil, "", errors.New("pull_request event without repository or number")
	}

	return &model.PRRef{
		Repository: pre.GetRepo().GetFullName(),
		Number:     pre.GetNumber(),
		HeadSHA:    pre.GetPullRequest().GetHead().GetSHA(),
		UpdatedAt:  time.Now().UTC(),
	}, "", nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
