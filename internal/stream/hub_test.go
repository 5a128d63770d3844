package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dialTestConn upgrades a loopback HTTP connection into a client/server
// websocket pair and registers cleanup.
func dialTestConn(t *testing.T) (client *websocket.Conn, server *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	serverConns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server connection")
	}
	t.Cleanup(func() { server.Close() })

	return client, server
}

func TestHubPublish(t *testing.T) {
	hub := NewHub()
	client, server := dialTestConn(t)

	hub.Subscribe(GroupChannel("g1"), server)

	event, err := NewEvent(EventAlert, map[string]string{"message": "battery low"})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := hub.Publish(context.Background(), GroupChannel("g1"), event); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var got Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal delivered event: %v", err)
	}
	if got.Type != EventAlert {
		t.Errorf("Type = %q, want %q", got.Type, EventAlert)
	}
	if got.Channel != "group:g1" {
		t.Errorf("Channel = %q, want %q", got.Channel, "group:g1")
	}
}

func TestHubPublishUnknownChannel(t *testing.T) {
	hub := NewHub()

	event, err := NewEvent(EventLocationUpdate, map[string]float64{"lat": 1, "lon": 2})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := hub.Publish(context.Background(), GroupChannel("nobody"), event); err != nil {
		t.Errorf("Publish() to empty channel error = %v, want nil", err)
	}
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	hub := NewHub()
	_, server := dialTestConn(t)
	_, server2 := dialTestConn(t)

	hub.Subscribe("subject:s1", server)
	hub.Subscribe("subject:s1", server2)
	hub.Subscribe("group:g1", server)

	if got := hub.ConnectionCount("subject:s1"); got != 2 {
		t.Errorf("ConnectionCount(subject:s1) = %d, want 2", got)
	}
	if got := hub.ConnectionCount("group:g1"); got != 1 {
		t.Errorf("ConnectionCount(group:g1) = %d, want 1", got)
	}

	hub.Unsubscribe(server)

	if got := hub.ConnectionCount("subject:s1"); got != 1 {
		t.Errorf("after Unsubscribe, ConnectionCount(subject:s1) = %d, want 1", got)
	}
	if got := hub.ConnectionCount("group:g1"); got != 0 {
		t.Errorf("after Unsubscribe, ConnectionCount(group:g1) = %d, want 0", got)
	}
}

func TestHubPublishDoesNotBlockOnStalledReader(t *testing.T) {
	hub := NewHub()
	t.Cleanup(func() { hub.Close() })
	_, server := dialTestConn(t)

	// The client side never reads, so TCP buffers fill and writes on the
	// server connection stop completing.
	hub.Subscribe(GroupChannel("g1"), server)

	event, err := NewEvent(EventLocationUpdate, map[string]string{
		"blob": strings.Repeat("x", 64<<10),
	})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	published := make(chan struct{})
	go func() {
		defer close(published)
		for i := 0; i < clientQueueSize+32; i++ {
			if err := hub.Publish(context.Background(), GroupChannel("g1"), event); err != nil {
				t.Errorf("Publish() error = %v", err)
				return
			}
		}
	}()

	select {
	case <-published:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked behind a stalled reader")
	}

	// The hub lock must still be free for new subscribers.
	subscribed := make(chan struct{})
	go func() {
		_, other := dialTestConn(t)
		hub.Subscribe(GroupChannel("g2"), other)
		close(subscribed)
	}()
	select {
	case <-subscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("Subscribe blocked while a reader was stalled")
	}
}

func TestHubPublishHonorsCancelledContext(t *testing.T) {
	hub := NewHub()
	t.Cleanup(func() { hub.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	event, err := NewEvent(EventAlert, map[string]string{"message": "late"})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := hub.Publish(ctx, GroupChannel("g1"), event); err == nil {
		t.Error("Publish() with cancelled context error = nil, want context error")
	}
}

func TestHubConcurrentPublishesToOneConnection(t *testing.T) {
	hub := NewHub()
	t.Cleanup(func() { hub.Close() })
	client, server := dialTestConn(t)

	hub.Subscribe(GroupChannel("g1"), server)
	hub.Subscribe(SubjectChannel("kid"), server)

	// Reader drains so nothing is dropped for queue reasons.
	received := make(chan struct{}, 256)
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
			received <- struct{}{}
		}
	}()

	event, err := NewEvent(EventLocationUpdate, map[string]float64{"lat": 1, "lon": 2})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}

	// Parallel ingests for different subjects land on the same connection;
	// all frames must funnel through its single writer.
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		channel := GroupChannel("g1")
		if i == 1 {
			channel = SubjectChannel("kid")
		}
		wg.Add(1)
		go func(ch string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := hub.Publish(context.Background(), ch, event); err != nil {
					t.Errorf("Publish(%s) error = %v", ch, err)
					return
				}
			}
		}(channel)
	}
	wg.Wait()

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestChannelNames(t *testing.T) {
	if got := GroupChannel("abc"); got != "group:abc" {
		t.Errorf("GroupChannel() = %q, want %q", got, "group:abc")
	}
	if got := SubjectChannel("abc"); got != "subject:abc" {
		t.Errorf("SubjectChannel() = %q, want %q", got, "subject:abc")
	}
}

func TestMultiPublisherSkipsNil(t *testing.T) {
	hub := NewHub()
	multi := NewMultiPublisher(hub, nil)

	event, err := NewEvent(EventPanic, map[string]string{"subject_id": "s1"})
	if err != nil {
		t.Fatalf("NewEvent() error = %v", err)
	}
	if err := multi.Publish(context.Background(), SubjectChannel("s1"), event); err != nil {
		t.Errorf("Publish() error = %v", err)
	}
	if err := multi.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
