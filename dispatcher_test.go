package pushrelay

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/pushrelay/model"
)

type dispatcherFixture struct {
	subs     *memSubscriptionRepo
	notifs   *memNotificationRepo
	ledger   *memDeliveryRepo
	vapid    *memVAPIDRepo
	gateway  *fakeGateway
	dispatch *Dispatcher
}

func newDispatcherFixture(t *testing.T) *dispatcherFixture {
	t.Helper()
	f := &dispatcherFixture{
		subs:    newMemSubscriptionRepo(),
		notifs:  newMemNotificationRepo(),
		ledger:  newMemDeliveryRepo(),
		vapid:   newMemVAPIDRepo(),
		gateway: newFakeGateway(),
	}

	dispatcher, err := NewDispatcher(
		WithDispatcherRepositories(f.ledger, f.notifs, f.subs, f.vapid),
		WithGateway(f.gateway),
		WithDispatcherLogger(&NoopLogger{}),
		WithConcurrency(4),
	)
	require.NoError(t, err)
	f.dispatch = dispatcher
	return f
}

// seed creates n active subscriptions, one notification, and a pending ledger
// row per subscription.
func (f *dispatcherFixture) seed(t *testing.T, n int) (model.Notification, []model.Subscription) {
	t.Helper()
	ctx := context.Background()

	subs := make([]model.Subscription, 0, n)
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		sub, err := f.subs.Save(ctx, model.NewSubscription(
			fmt.Sprintf("https://push.example.com/%d", i), "p256dh", "auth", model.DefaultPreferences()))
		require.NoError(t, err)
		subs = append(subs, sub)
		ids = append(ids, sub.ID)
	}

	notification, err := f.notifs.Save(ctx, model.NewNotification(
		"Title", "Body", model.CategoryNewJobs, "", "", "", model.Payload{URL: "/"}))
	require.NoError(t, err)

	_, err = f.ledger.CreateBatch(ctx, notification.ID, ids)
	require.NoError(t, err)

	return notification, subs
}

func TestDispatcher_Dispatch_AllSent(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, _ := f.seed(t, 3)

	result, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.NoError(t, err)
	assert.Equal(t, 3, result.Sent)
	assert.Equal(t, 0, result.Failed)

	for _, d := range f.ledger.byNotification(notification.ID) {
		assert.Equal(t, model.DeliveryStatusSent, d.Status)
		assert.True(t, d.DeliveredAt.Valid)
	}

	updated, err := f.notifs.Load(context.Background(), notification.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.SuccessCount)
	assert.Equal(t, 0, updated.FailureCount)
}

func TestDispatcher_Dispatch_ZeroPendingRows(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, err := f.notifs.Save(context.Background(), model.NewNotification(
		"Title", "Body", model.CategoryNewJobs, "", "", "", model.Payload{URL: "/"}))
	require.NoError(t, err)

	result, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.NoError(t, err)
	assert.Equal(t, DispatchResult{}, result)
}

func TestDispatcher_Dispatch_UnknownNotification(t *testing.T) {
	f := newDispatcherFixture(t)

	_, err := f.dispatch.Dispatch(context.Background(), 999)

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestDispatcher_Dispatch_IncompleteVAPID(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, _ := f.seed(t, 1)
	f.vapid.cfg = &model.VAPIDConfig{ID: 1, PublicKey: "public-only"}

	_, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.Error(t, err)
	var prErr *Error
	require.ErrorAs(t, err, &prErr)
	assert.Equal(t, ErrCodeConfiguration, prErr.Code)
}

func TestDispatcher_Dispatch_GoneEndpointIsolated(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, subs := f.seed(t, 3)
	gone := subs[1]
	f.gateway.goneEndpoints[gone.Endpoint] = true

	result, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, 1, result.Failed)

	// Every row reached a terminal state despite the failure.
	for _, d := range f.ledger.byNotification(notification.ID) {
		assert.True(t, d.IsTerminal())
		if d.SubscriptionID == gone.ID {
			assert.Equal(t, model.DeliveryStatusFailed, d.Status)
			assert.True(t, d.ErrorMessage.Valid)
		} else {
			assert.Equal(t, model.DeliveryStatusSent, d.Status)
		}
	}

	// The gone endpoint's subscription is deactivated; the others are not.
	reloaded, err := f.subs.Load(context.Background(), gone.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsActive)

	other, err := f.subs.Load(context.Background(), subs[0].ID)
	require.NoError(t, err)
	assert.True(t, other.IsActive)
}

func TestDispatcher_Dispatch_TransientFailureKeepsSubscription(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, subs := f.seed(t, 2)
	flaky := subs[0]
	f.gateway.failingEndpoints[flaky.Endpoint] = true

	result, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, 1, result.Failed)

	// Transient failure: the row is failed but the subscription stays active.
	reloaded, err := f.subs.Load(context.Background(), flaky.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive)
}

func TestDispatcher_Dispatch_TotalsMatchLedger(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, subs := f.seed(t, 5)
	f.gateway.goneEndpoints[subs[0].Endpoint] = true
	f.gateway.failingEndpoints[subs[3].Endpoint] = true

	result, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.NoError(t, err)
	rows := f.ledger.byNotification(notification.ID)
	assert.Equal(t, len(rows), result.Sent+result.Failed)

	updated, err := f.notifs.Load(context.Background(), notification.ID)
	require.NoError(t, err)
	assert.Equal(t, len(rows), updated.SuccessCount+updated.FailureCount)
}

func TestDispatcher_Dispatch_SkipsClaimedRows(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, _ := f.seed(t, 3)

	// Another dispatch already owns one row.
	rows := f.ledger.byNotification(notification.ID)
	claimed, err := f.ledger.Claim(context.Background(), rows[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)

	// Claiming stamps ownership without touching the status: a ledger reader
	// still sees the row pending until its owner writes the outcome.
	held, err := f.ledger.Load(context.Background(), rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusPending, held.Status)
	assert.True(t, held.ClaimedAt.Valid)

	again, err := f.ledger.Claim(context.Background(), rows[0].ID)
	require.NoError(t, err)
	assert.False(t, again)

	result, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent+result.Failed)
	assert.Equal(t, 2, result.Sent)

	// The held row still belongs to its claimer.
	held, err = f.ledger.Load(context.Background(), rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.DeliveryStatusPending, held.Status)
}

func TestDispatcher_Dispatch_HangingEndpointTimesOutAsFailed(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, subs := f.seed(t, 1)

	dispatcher, err := NewDispatcher(
		WithDispatcherRepositories(f.ledger, f.notifs, f.subs, f.vapid),
		WithGateway(&hangingGateway{}),
		WithDispatcherLogger(&NoopLogger{}),
		WithAttemptTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)

	start := time.Now()
	result, err := dispatcher.Dispatch(context.Background(), notification.ID)

	// The attempt timeout bounds the stalled recipient; the batch finishes
	// promptly instead of hanging on it.
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 0, result.Sent)
	assert.Equal(t, 1, result.Failed)

	rows := f.ledger.byNotification(notification.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, model.DeliveryStatusFailed, rows[0].Status)
	assert.True(t, rows[0].ErrorMessage.Valid)

	updated, err := f.notifs.Load(context.Background(), notification.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.FailureCount)

	// A timeout is transient, not endpoint-gone: the subscription survives.
	reloaded, err := f.subs.Load(context.Background(), subs[0].ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsActive)
}

func TestDispatcher_Dispatch_DeactivatedBetweenFanOutAndDispatch(t *testing.T) {
	f := newDispatcherFixture(t)
	notification, subs := f.seed(t, 2)

	// The unsubscribe lands after fan-out; the existing ledger row is still
	// attempted and resolves through the push service.
	require.NoError(t, f.subs.Deactivate(context.Background(), subs[0].Endpoint))

	result, err := f.dispatch.Dispatch(context.Background(), notification.ID)

	require.NoError(t, err)
	assert.Equal(t, 2, result.Sent+result.Failed)
	assert.True(t, f.gateway.deliveredTo(subs[0].Endpoint))
}
