package eventbus

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type ping struct{ N int }
type pong struct{ S string }

func TestPublishByType(t *testing.T) {
	b := New()
	var pings []int
	var pongs []string
	Subscribe(b, func(_ context.Context, e ping) { pings = append(pings, e.N) })
	Subscribe(b, func(_ context.Context, e pong) { pongs = append(pongs, e.S) })

	Publish(context.Background(), b, ping{N: 1})
	Publish(context.Background(), b, pong{S: "a"})
	Publish(context.Background(), b, ping{N: 2})

	require.Equal(t, []int{1, 2}, pings)
	require.Equal(t, []string{"a"}, pongs)
}

func TestUnsubscribeRemovesOnlyItself(t *testing.T) {
	b := New()
	var got []string
	handler := func(tag string) Handler[ping] {
		return func(context.Context, ping) { got = append(got, tag) }
	}
	unA := Subscribe(b, handler("a"))
	unB := Subscribe(b, handler("b"))

	unA()
	Publish(context.Background(), b, ping{})
	require.Equal(t, []string{"b"}, got)

	unB()
	unB()
	Publish(context.Background(), b, ping{})
	require.Equal(t, []string{"b"}, got)
}

func TestNilBus(t *testing.T) {
	var b *Bus
	unsubscribe := Subscribe(b, func(context.Context, ping) { t.Fatal("handler called on nil bus") })
	Publish(context.Background(), b, ping{})
	unsubscribe()
}

func TestConcurrentPublish(t *testing.T) {
	b := New()
	var mu sync.Mutex
	total := 0
	Subscribe(b, func(_ context.Context, e ping) {
		mu.Lock()
		total += e.N
		mu.Unlock()
	})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				Publish(context.Background(), b, ping{N: 1})
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1600, total)
}
