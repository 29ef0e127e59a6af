package websocket

import (
	"context"
	"testing"
	"time"

	"socialsync-be/internal/observability"
	"socialsync-be/internal/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *observability.Metrics, context.CancelFunc) {
	t.Helper()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(nil, metrics, logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, metrics, cancel
}

func newClient(sessionID string) *Client {
	return &Client{SessionID: sessionID, Send: make(chan []byte, 4)}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data := <-c.Send:
		return data
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
		return nil
	}
}

func TestHubDeliversToEverySocketOfSession(t *testing.T) {
	hub, metrics, cancel := newTestHub(t)
	defer cancel()

	tabA, tabB, other := newClient("s1"), newClient("s1"), newClient("s2")
	for _, c := range []*Client{tabA, tabB, other} {
		require.True(t, hub.add(c))
	}
	require.Eventually(t, func() bool { return hub.Count("s2") == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, hub.Count("s1"))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ActiveSocketStreams))

	hub.Send(context.Background(), "s1", []byte(`{"text":"hi"}`))
	assert.Equal(t, `{"text":"hi"}`, string(receive(t, tabA)))
	assert.Equal(t, `{"text":"hi"}`, string(receive(t, tabB)))
	assert.Empty(t, other.Send)

	hub.SendTo(other, []byte(`{"error":"nope"}`))
	assert.Equal(t, `{"error":"nope"}`, string(receive(t, other)))
}

func TestHubUnregisterClosesSendOnce(t *testing.T) {
	hub, metrics, cancel := newTestHub(t)
	defer cancel()

	c := newClient("s1")
	require.True(t, hub.add(c))
	hub.remove(c)
	hub.remove(c)

	require.Eventually(t, func() bool { return hub.Count("s1") == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-c.Send
	assert.False(t, open)
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveSocketStreams))

	// no longer registered, so nothing is queued on the closed channel
	hub.SendTo(c, []byte("late"))
}

func TestHubShutdown(t *testing.T) {
	hub, _, cancel := newTestHub(t)

	c := newClient("s1")
	require.True(t, hub.add(c))
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-c.Send:
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	assert.False(t, hub.add(newClient("s2")))
	hub.remove(c)
}

func TestHubFansOutAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := NewHub(rdb, metrics, logger.NewNopLogger())
	remote := NewHub(rdb, metrics, logger.NewNopLogger())
	go local.Run(ctx)
	go remote.Run(ctx)

	tab := newClient("s1")
	require.True(t, remote.add(tab))
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(clusterChannel)[clusterChannel] == 2 && remote.Count("s1") == 1
	}, time.Second, 5*time.Millisecond)

	local.Send(context.Background(), "s1", []byte(`{"text":"hi"}`))
	assert.Equal(t, `{"text":"hi"}`, string(receive(t, tab)))
}

func TestHubStopsRedisSubscriptionOnShutdown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	hub := NewHub(rdb, observability.NewMetrics(prometheus.NewRegistry()), logger.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	require.Eventually(t, func() bool {
		return mr.PubSubNumSub(clusterChannel)[clusterChannel] == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub kept running after shutdown while redis stayed open")
	}
	assert.Eventually(t, func() bool {
		return mr.PubSubNumSub(clusterChannel)[clusterChannel] == 0
	}, time.Second, 5*time.Millisecond)
}
