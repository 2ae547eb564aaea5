package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/efreitasn/p2pescrow/internal/auth"
	"github.com/efreitasn/p2pescrow/internal/domain"
	"github.com/efreitasn/p2pescrow/internal/events"
	"github.com/efreitasn/p2pescrow/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"
)

const (
	// deliveryLanes is the number of delivery workers. Each owner maps to
	// one lane, so an owner's deliveries go out one at a time in publish order.
	deliveryLanes = 8
	// laneQueueSize bounds the deliveries waiting in one lane.
	laneQueueSize = 1024
)

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	Owner  string
	URL    string
	Secret string
	Events []string
}

// WebhookConfig tunes delivery.
type WebhookConfig struct {
	Timeout time.Duration
	// Rate caps deliveries per second across all endpoints. Zero disables pacing.
	Rate int
	// Client overrides the HTTP client built from Timeout.
	Client *http.Client
}

// WebhookService handles webhook CRUD and delivers events to subscribers.
// It is an events.Sink: Handle only queues deliveries, and the workers
// started by Run send them. A delivery is dropped when its lane is full.
type WebhookService struct {
	store   *store.WebhookStore
	client  *http.Client
	limiter ratelimit.Limiter
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker // host → breaker

	lanes    []chan delivery
	inflight sync.WaitGroup
}

// delivery is one event bound for one webhook.
type delivery struct {
	hook  *domain.Webhook
	event domain.Event
	body  []byte
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, cfg WebhookConfig, logger *slog.Logger) *WebhookService {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limiter := ratelimit.NewUnlimited()
	if cfg.Rate > 0 {
		limiter = ratelimit.New(cfg.Rate)
	}
	lanes := make([]chan delivery, deliveryLanes)
	for i := range lanes {
		lanes[i] = make(chan delivery, laneQueueSize)
	}
	return &WebhookService{
		store:    webhookStore,
		client:   client,
		limiter:  limiter,
		logger:   logger,
		now:      time.Now,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		lanes:    lanes,
	}
}

// Upsert validates the request and creates or updates one subscription per
// event type. Returns the resulting webhooks and whether any were created.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.Owner == "" {
		return nil, false, domain.ErrUnauthorized
	}

	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if req.Secret != "" && (len(req.Secret) < auth.MinSecretLength || len(req.Secret) > 256) {
		return nil, false, &domain.ValidationError{
			Message: fmt.Sprintf("secret must be between %d and 256 characters", auth.MinSecretLength),
		}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	seen := make(map[domain.EventType]bool, len(req.Events))
	deduped := make([]domain.EventType, 0, len(req.Events))
	for _, e := range req.Events {
		event := domain.EventType(e)
		if !event.Valid() {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + e + ". Must be one of: " + eventTypeList(),
			}
		}
		if !seen[event] {
			seen[event] = true
			deduped = append(deduped, event)
		}
	}

	now := s.now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(deduped))
	for _, event := range deduped {
		w, created := s.store.Upsert(&domain.Webhook{
			WebhookID: uuid.New().String(),
			Owner:     req.Owner,
			Event:     event,
			URL:       req.URL,
			Secret:    req.Secret,
			CreatedAt: now,
			UpdatedAt: now,
		})
		anyCreated = anyCreated || created
		webhooks = append(webhooks, w)
	}

	return webhooks, anyCreated, nil
}

// List returns the subscriptions owned by owner.
func (s *WebhookService) List(owner string) ([]*domain.Webhook, error) {
	if owner == "" {
		return nil, domain.ErrUnauthorized
	}
	return s.store.ListByOwner(owner), nil
}

// Delete removes a subscription. Subscriptions of other owners are
// reported as not found.
func (s *WebhookService) Delete(owner, webhookID string) error {
	if owner == "" {
		return domain.ErrUnauthorized
	}
	w, err := s.store.Get(webhookID)
	if err != nil {
		return err
	}
	if w.Owner != owner {
		return domain.ErrWebhookNotFound
	}
	return s.store.Delete(webhookID)
}

// Handle schedules delivery of ev. Trade events reach the seller's and the
// buyer's subscriptions; registry events reach every subscriber of the type.
func (s *WebhookService) Handle(ev domain.Event) {
	hooks := s.recipients(ev)
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(webhookPayload{
		Event:     string(ev.Type),
		Timestamp: ev.OccurredAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data:      events.Encode(ev),
	})
	if err != nil {
		s.logger.Error("failed to encode webhook payload", "event_id", ev.ID, "error", err)
		return
	}

	for _, w := range hooks {
		s.inflight.Add(1)
		select {
		case s.lanes[laneFor(w.Owner, len(s.lanes))] <- delivery{hook: w, event: ev, body: body}:
		default:
			s.inflight.Done()
			s.logger.Warn("webhook queue full, delivery dropped",
				"webhook_id", w.WebhookID,
				"event", string(ev.Type),
				"event_id", ev.ID,
			)
		}
	}
}

// Run starts one worker per lane and blocks until ctx is done. Deliveries
// still queued at that point are abandoned. Run must be called once.
func (s *WebhookService) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, lane := range s.lanes {
		lane := lane
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case d := <-lane:
					s.send(d)
				}
			}
		})
	}
	return g.Wait()
}

func laneFor(owner string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(owner))
	return int(h.Sum32() % uint32(n))
}

// Wait blocks until scheduled deliveries finish or ctx is done.
func (s *WebhookService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *WebhookService) recipients(ev domain.Event) []*domain.Webhook {
	if !ev.Type.TradeScoped() {
		return s.store.ListByEvent(ev.Type)
	}
	owners := []string{ev.Seller}
	if ev.Buyer != "" && ev.Buyer != ev.Seller {
		owners = append(owners, ev.Buyer)
	}
	var hooks []*domain.Webhook
	for _, owner := range owners {
		if w := s.store.GetByOwnerEvent(owner, ev.Type); w != nil {
			hooks = append(hooks, w)
		}
	}
	return hooks
}

type webhookPayload struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      events.Message `json:"data"`
}

// send delivers d and logs failures, which are not retried.
func (s *WebhookService) send(d delivery) {
	defer s.inflight.Done()
	if err := s.deliver(d.hook, d.event.Type, d.body); err != nil {
		s.logger.Warn("webhook delivery failed",
			"webhook_id", d.hook.WebhookID,
			"event", string(d.event.Type),
			"event_id", d.event.ID,
			"error", err,
		)
	}
}

// deliver POSTs body to the hook through its host's circuit breaker.
func (s *WebhookService) deliver(w *domain.Webhook, event domain.EventType, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	deliveryID := uuid.New().String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", deliveryID)
	req.Header.Set("X-Webhook-Id", w.WebhookID)
	req.Header.Set("X-Event-Type", string(event))
	if w.Secret != "" {
		token, err := s.sign(w, deliveryID, body)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	s.limiter.Take()
	_, err = s.breaker(req.URL.Host).Execute(func() (interface{}, error) {
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("endpoint responded %d", resp.StatusCode)
		}
		return nil, nil
	})
	return err
}

// sign issues an HS256 token that binds the delivery to its body.
func (s *WebhookService) sign(w *domain.Webhook, deliveryID string, body []byte) (string, error) {
	sum := sha256.Sum256(body)
	claims := jwt.MapClaims{
		"sub":         w.WebhookID,
		"jti":         deliveryID,
		"iat":         s.now().Unix(),
		"body_sha256": hex.EncodeToString(sum[:]),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(w.Secret))
}

func (s *WebhookService) breaker(host string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[host]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: host,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests > 10 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.logger.Warn("webhook circuit breaker state changed",
				"host", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	s.breakers[host] = cb
	return cb
}

func eventTypeList() string {
	names := make([]string, len(domain.EventTypes))
	for i, t := range domain.EventTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
