package progress_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pricehound/pricehound/internal/progress"
	"github.com/pricehound/pricehound/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_DeliversToSubscriber(t *testing.T) {
	p := progress.NewPublisher()
	jobID := uuid.New()

	ch, cancel := p.Subscribe(jobID)
	defer cancel()

	p.Publish(jobID, models.ProgressEvent{JobID: jobID, Percent: 50, Message: "halfway"})

	select {
	case ev := <-ch:
		assert.Equal(t, 50, ev.Percent)
		assert.Equal(t, "halfway", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestPublisher_NoSubscriberDropsSilently(t *testing.T) {
	p := progress.NewPublisher()
	// Must not block or panic.
	p.Publish(uuid.New(), models.ProgressEvent{Percent: 10})
}

func TestPublisher_MultipleSubscribersEachReceive(t *testing.T) {
	p := progress.NewPublisher()
	jobID := uuid.New()

	ch1, cancel1 := p.Subscribe(jobID)
	defer cancel1()
	ch2, cancel2 := p.Subscribe(jobID)
	defer cancel2()

	p.Publish(jobID, models.ProgressEvent{Percent: 25})

	for _, ch := range []<-chan models.ProgressEvent{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, 25, ev.Percent)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublisher_SubscribersAreJobScoped(t *testing.T) {
	p := progress.NewPublisher()
	jobA := uuid.New()
	jobB := uuid.New()

	chA, cancelA := p.Subscribe(jobA)
	defer cancelA()

	p.Publish(jobB, models.ProgressEvent{Percent: 99})

	select {
	case <-chA:
		t.Fatal("subscriber received event for a different job")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublisher_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	p := progress.NewPublisher()
	jobID := uuid.New()

	// slow subscriber: never drained, buffer fills up
	_, cancelSlow := p.Subscribe(jobID)
	defer cancelSlow()

	fast, cancelFast := p.Subscribe(jobID)
	defer cancelFast()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			p.Publish(jobID, models.ProgressEvent{Percent: i % 101})
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// The fast subscriber still got events (up to its buffer).
	received := 0
	for {
		select {
		case <-fast:
			received++
			continue
		default:
		}
		break
	}
	assert.Positive(t, received)
}

func TestPublisher_EventsArriveInPublishOrder(t *testing.T) {
	p := progress.NewPublisher()
	jobID := uuid.New()

	ch, cancel := p.Subscribe(jobID)
	defer cancel()

	for i := 1; i <= 10; i++ {
		p.Publish(jobID, models.ProgressEvent{Percent: i * 10})
	}

	last := 0
	for i := 0; i < 10; i++ {
		select {
		case ev := <-ch:
			require.Greater(t, ev.Percent, last, "events must arrive in publish order")
			last = ev.Percent
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
}

func TestPublisher_CancelClosesChannelAndDetaches(t *testing.T) {
	p := progress.NewPublisher()
	jobID := uuid.New()

	ch, cancel := p.Subscribe(jobID)
	require.Equal(t, 1, p.SubscriberCount(jobID))

	cancel()
	assert.Equal(t, 0, p.SubscriberCount(jobID))

	_, open := <-ch
	assert.False(t, open, "channel must be closed after cancel")

	// Double cancel is safe.
	cancel()
}
