package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-roombook/internal/stats"
	"github.com/npezzotti/go-roombook/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(t *testing.T) (*Hub, *stats.MockStatsProvider) {
	mockStats := &stats.MockStatsProvider{}
	mockStats.On("Incr", stats.FeedSubscribers).Maybe()
	mockStats.On("Decr", stats.FeedSubscribers).Maybe()

	logger, _ := testutil.ObservedLogger()
	hub := NewHub(logger, mockStats)
	go hub.Run()

	return hub, mockStats
}

func dialFeed(t *testing.T, hub *Hub) *websocket.Conn {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sub := NewSubscriber("test", conn, hub, hub.log)
		if !hub.Register(sub) {
			conn.Close()
			return
		}
		go sub.Write()
		go sub.Read()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func TestHub_PublishReachesSubscribers(t *testing.T) {
	hub, _ := newTestHub(t)
	defer hub.Shutdown(context.Background())

	conn1 := dialFeed(t, hub)
	conn2 := dialFeed(t, hub)

	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.Publish(Event{RoomNumber: "101", Available: 0})

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, Event{RoomNumber: "101", Available: 0}, ev)
	}
}

func TestHub_SubscriberRemovedOnDisconnect(t *testing.T) {
	hub, mockStats := newTestHub(t)
	defer hub.Shutdown(context.Background())

	conn := dialFeed(t, hub)
	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, time.Second, 10*time.Millisecond)
	mockStats.AssertCalled(t, "Decr", stats.FeedSubscribers)
}

func TestHub_ShutdownClosesSubscribers(t *testing.T) {
	hub, _ := newTestHub(t)

	conn := dialFeed(t, hub)
	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, hub.Shutdown(ctx))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "expected going away close, got %v", err)
	assert.False(t, hub.Register(&Subscriber{}), "expected register to fail after shutdown")
}

func TestHub_PublishDoesNotBlockWhenFull(t *testing.T) {
	logger, logs := testutil.ObservedLogger()
	hub := NewHub(logger, &stats.MockStatsProvider{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcastChan)+10; i++ {
			hub.Publish(Event{RoomNumber: "101"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full buffer")
	}
	assert.Equal(t, 10, logs.FilterMessage("broadcast channel full, dropping event").Len())
}
