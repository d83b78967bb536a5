package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	ws "github.com/stemsi/bimbel-backend/internal/websocket"
)

// Pong replies and room events must both flow through the single writer
// loop: two goroutines writing the same connection corrupt its write
// state and gorilla kills the stream.
func TestNotifyLoopSerializesWrites(t *testing.T) {
	const (
		pingCount  = 50
		eventCount = 50
	)

	events := make(chan *redis.Message)
	pings := make(chan struct{})
	loopDone := make(chan error, 1)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			loopDone <- err
			return
		}
		defer conn.Close()
		loopDone <- notifyLoop(context.Background(), conn, events, pings)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	// Interleave pong requests and room events from two goroutines; the
	// loop must serialize them onto the one connection writer.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < pingCount; i++ {
			pings <- struct{}{}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < eventCount; i++ {
			events <- &redis.Message{Payload: `{"event":"exam_submitted"}`}
		}
	}()

	pongs, notifies := 0, 0
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for pongs+notifies < pingCount+eventCount {
		var frame struct {
			Event   ws.Event `json:"event"`
			Payload string   `json:"payload"`
		}
		require.NoError(t, conn.ReadJSON(&frame))
		switch frame.Event {
		case ws.EventPong:
			pongs++
		case ws.EventNotify:
			notifies++
			require.Equal(t, `{"event":"exam_submitted"}`, frame.Payload)
		default:
			t.Fatalf("unexpected event %q", frame.Event)
		}
	}
	require.Equal(t, pingCount, pongs)
	require.Equal(t, eventCount, notifies)

	wg.Wait()
	close(events)
	require.NoError(t, <-loopDone)
}

// A cancelled context stops the loop cleanly without an error.
func TestNotifyLoopStopsOnContextCancel(t *testing.T) {
	events := make(chan *redis.Message)
	pings := make(chan struct{})
	loopDone := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			loopDone <- err
			return
		}
		defer conn.Close()
		loopDone <- notifyLoop(ctx, conn, events, pings)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	cancel()

	select {
	case err := <-loopDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after context cancel")
	}
}
