package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/mapscout/internal/interfaces"
)

func TestPublishSyncDeliversToAllSubscribers(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var mu sync.Mutex
	var got []string

	svc.Subscribe(interfaces.EventSearchProgress, func(ctx context.Context, e interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "first")
		return nil
	})
	svc.Subscribe(interfaces.EventSearchProgress, func(ctx context.Context, e interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, "second")
		return nil
	})

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSearchProgress})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestPublishSyncReturnsHandlerError(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	svc.Subscribe(interfaces.EventSearchError, func(ctx context.Context, e interfaces.Event) error {
		return errors.New("handler boom")
	})

	err := svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSearchError})
	assert.Error(t, err)
}

func TestPublishSkipsOtherEventTypes(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	called := make(chan struct{}, 1)
	svc.Subscribe(interfaces.EventSearchComplete, func(ctx context.Context, e interfaces.Event) error {
		called <- struct{}{}
		return nil
	})

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventSearchProgress}))

	select {
	case <-called:
		t.Fatal("handler should not receive events of a different type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	var mu sync.Mutex
	count := 0
	id := svc.Subscribe(interfaces.EventRunStateChange, func(ctx context.Context, e interfaces.Event) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		return nil
	})

	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRunStateChange}))
	require.NoError(t, svc.Unsubscribe(interfaces.EventRunStateChange, id))
	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{Type: interfaces.EventRunStateChange}))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestUnsubscribeUnknownIDFails(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	defer svc.Close()

	err := svc.Unsubscribe(interfaces.EventSearchProgress, "no-such-subscription")
	assert.Error(t, err)
}

func TestPublishAfterCloseFails(t *testing.T) {
	svc := NewService(arbor.NewLogger())
	require.NoError(t, svc.Close())

	err := svc.Publish(context.Background(), interfaces.Event{Type: interfaces.EventSearchProgress})
	assert.Error(t, err)
}
