package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/p2pescrow/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhooks.
// Primary index: webhook_id → webhook.
// Secondary indexes: owner → event → webhook, and event → webhooks.
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook
	byOwner  map[string]map[domain.EventType]*domain.Webhook
	byEvent  map[domain.EventType]map[string]*domain.Webhook // event → webhook_id → webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks: make(map[string]*domain.Webhook),
		byOwner:  make(map[string]map[domain.EventType]*domain.Webhook),
		byEvent:  make(map[domain.EventType]map[string]*domain.Webhook),
	}
}

// Upsert inserts or updates a subscription keyed by (owner, event). An
// existing subscription keeps its webhook_id and takes the new URL and
// secret. Returns the stored webhook and whether it was newly created.
func (s *WebhookStore) Upsert(w *domain.Webhook) (*domain.Webhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byOwner[w.Owner][w.Event]; ok {
		if existing.URL != w.URL || existing.Secret != w.Secret {
			existing.URL = w.URL
			existing.Secret = w.Secret
			existing.UpdatedAt = w.UpdatedAt
		}
		c := *existing
		return &c, false
	}

	s.webhooks[w.WebhookID] = w
	if s.byOwner[w.Owner] == nil {
		s.byOwner[w.Owner] = make(map[domain.EventType]*domain.Webhook)
	}
	s.byOwner[w.Owner][w.Event] = w
	if s.byEvent[w.Event] == nil {
		s.byEvent[w.Event] = make(map[string]*domain.Webhook)
	}
	s.byEvent[w.Event][w.WebhookID] = w

	c := *w
	return &c, true
}

// Get retrieves a copy of a webhook by ID. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	c := *w
	return &c, nil
}

// ListByOwner returns copies of the owner's webhooks ordered by event type.
func (s *WebhookStore) ListByOwner(owner string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0, len(s.byOwner[owner]))
	for _, w := range s.byOwner[owner] {
		c := *w
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Event < result[j].Event })
	return result
}

// ListByEvent returns copies of every subscription to event.
func (s *WebhookStore) ListByEvent(event domain.EventType) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0, len(s.byEvent[event]))
	for _, w := range s.byEvent[event] {
		c := *w
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Owner < result[j].Owner })
	return result
}

// GetByOwnerEvent returns a copy of the owner's subscription to event,
// or nil if none exists.
func (s *WebhookStore) GetByOwnerEvent(owner string, event domain.EventType) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.byOwner[owner][event]
	if !ok {
		return nil
	}
	c := *w
	return &c
}

// Delete removes a webhook from every index. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.webhooks, id)

	if events, ok := s.byOwner[w.Owner]; ok {
		delete(events, w.Event)
		if len(events) == 0 {
			delete(s.byOwner, w.Owner)
		}
	}
	if ids, ok := s.byEvent[w.Event]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(s.byEvent, w.Event)
		}
	}
	return nil
}
