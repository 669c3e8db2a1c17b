package pushrelay

import (
	"context"
	"fmt"
	"sync"

	"github.com/coregx/pushrelay/model"
)

// In-memory repositories backing the service tests. They honor the same
// contracts as the Relica adapters: ErrNoData on empty reads, conditional
// claim semantics, all-or-nothing batch creation.

type memSubscriptionRepo struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]model.Subscription
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{nextID: 1, subs: make(map[int64]model.Subscription)}
}

func (r *memSubscriptionRepo) Load(_ context.Context, id int64) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return model.Subscription{}, ErrNoData
	}
	return sub, nil
}

func (r *memSubscriptionRepo) GetByEndpoint(_ context.Context, endpoint string) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.Endpoint == endpoint {
			return sub, nil
		}
	}
	return model.Subscription{}, ErrNoData
}

func (r *memSubscriptionRepo) Save(_ context.Context, m model.Subscription) (model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.subs[m.ID] = m
	return m, nil
}

func (r *memSubscriptionRepo) Deactivate(_ context.Context, endpoint string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, sub := range r.subs {
		if sub.Endpoint == endpoint {
			sub.Deactivate()
			r.subs[id] = sub
		}
	}
	return nil
}

func (r *memSubscriptionRepo) FindActive(_ context.Context) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Subscription
	for _, sub := range r.subs {
		if sub.IsActive {
			out = append(out, sub)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (r *memSubscriptionRepo) List(_ context.Context) ([]model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Subscription
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (r *memSubscriptionRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

type memNotificationRepo struct {
	mu            sync.Mutex
	nextID        int64
	notifications map[int64]model.Notification
	saveErr       error
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{nextID: 1, notifications: make(map[int64]model.Notification)}
}

func (r *memNotificationRepo) Load(_ context.Context, id int64) (model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return model.Notification{}, ErrNoData
	}
	return n, nil
}

func (r *memNotificationRepo) Save(_ context.Context, m model.Notification) (model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return m, r.saveErr
	}
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.notifications[m.ID] = m
	return m, nil
}

func (r *memNotificationRepo) IncrementCounts(_ context.Context, id int64, sentDelta, failedDelta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notifications[id]
	if !ok {
		return ErrNoData
	}
	n.SuccessCount += sentDelta
	n.FailureCount += failedDelta
	r.notifications[id] = n
	return nil
}

type memDeliveryRepo struct {
	mu         sync.Mutex
	nextID     int64
	deliveries map[int64]model.Delivery

	// failBatchAfter aborts CreateBatch once this many rows are staged,
	// simulating a mid-batch failure.
	failBatchAfter int
}

func newMemDeliveryRepo() *memDeliveryRepo {
	return &memDeliveryRepo{nextID: 1, deliveries: make(map[int64]model.Delivery), failBatchAfter: -1}
}

func (r *memDeliveryRepo) Load(_ context.Context, id int64) (model.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok {
		return model.Delivery{}, ErrNoData
	}
	return d, nil
}

func (r *memDeliveryRepo) Save(_ context.Context, m *model.Delivery) (*model.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		m.ID = r.nextID
		r.nextID++
	}
	r.deliveries[m.ID] = *m
	return m, nil
}

func (r *memDeliveryRepo) CreateBatch(_ context.Context, notificationID int64, subscriptionIDs []int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	staged := make([]model.Delivery, 0, len(subscriptionIDs))
	for i, subscriptionID := range subscriptionIDs {
		if r.failBatchAfter >= 0 && i >= r.failBatchAfter {
			// Nothing staged so far becomes visible.
			return 0, fmt.Errorf("simulated batch failure after %d rows", i)
		}
		staged = append(staged, model.NewDelivery(notificationID, subscriptionID))
	}

	for _, d := range staged {
		d.ID = r.nextID
		r.nextID++
		r.deliveries[d.ID] = d
	}
	return len(staged), nil
}

func (r *memDeliveryRepo) FindPendingByNotification(_ context.Context, notificationID int64) ([]model.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Delivery
	for _, d := range r.deliveries {
		if d.NotificationID == notificationID && d.Status == model.DeliveryStatusPending {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (r *memDeliveryRepo) FindByNotification(_ context.Context, notificationID int64) ([]model.Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Delivery
	for _, d := range r.deliveries {
		if d.NotificationID == notificationID {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func (r *memDeliveryRepo) Claim(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.deliveries[id]
	if !ok || d.Status != model.DeliveryStatusPending || d.ClaimedAt.Valid {
		return false, nil
	}
	d.MarkClaimed()
	r.deliveries[id] = d
	return true, nil
}

func (r *memDeliveryRepo) byNotification(notificationID int64) []model.Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Delivery
	for _, d := range r.deliveries {
		if d.NotificationID == notificationID {
			out = append(out, d)
		}
	}
	return out
}

type memVAPIDRepo struct {
	mu  sync.Mutex
	cfg *model.VAPIDConfig
}

func (r *memVAPIDRepo) Load(_ context.Context) (model.VAPIDConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return model.VAPIDConfig{}, ErrNoData
	}
	return *r.cfg, nil
}

func (r *memVAPIDRepo) Save(_ context.Context, m model.VAPIDConfig) (model.VAPIDConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == 0 {
		m.ID = 1
	}
	r.cfg = &m
	return m, nil
}

func newMemVAPIDRepo() *memVAPIDRepo {
	cfg := model.NewVAPIDConfig("public-key", "private-key", "mailto:ops@example.com")
	cfg.ID = 1
	return &memVAPIDRepo{cfg: &cfg}
}

// fakeGateway scripts per-endpoint delivery outcomes.
type fakeGateway struct {
	mu sync.Mutex

	// goneEndpoints respond with a permanent endpoint-gone failure.
	goneEndpoints map[string]bool

	// failingEndpoints respond with a transient failure.
	failingEndpoints map[string]bool

	delivered []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		goneEndpoints:    make(map[string]bool),
		failingEndpoints: make(map[string]bool),
	}
}

func (g *fakeGateway) Deliver(_ context.Context, sub model.Subscription, _ []byte, _ model.VAPIDConfig) (*PushResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.goneEndpoints[sub.Endpoint] {
		return &PushResult{StatusCode: 410, Body: "gone"},
			NewErrorWithCause(ErrCodeEndpointGone, "push service returned 410", ErrEndpointGone)
	}
	if g.failingEndpoints[sub.Endpoint] {
		return &PushResult{StatusCode: 503, Body: "unavailable"},
			NewError(ErrCodeDelivery, "push service returned 503")
	}

	g.delivered = append(g.delivered, sub.Endpoint)
	return &PushResult{StatusCode: 201, Body: "created"}, nil
}

// hangingGateway never responds; it blocks until the attempt context expires,
// like a push service that accepts the connection and then stalls.
type hangingGateway struct{}

func (g *hangingGateway) Deliver(ctx context.Context, _ model.Subscription, _ []byte, _ model.VAPIDConfig) (*PushResult, error) {
	<-ctx.Done()
	return nil, NewErrorWithCause(ErrCodeDelivery, "push request failed", ctx.Err())
}

func (g *fakeGateway) deliveredTo(endpoint string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range g.delivered {
		if e == endpoint {
			return true
		}
	}
	return false
}
