package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kinpoint/kinpoint/internal/membership"
	"github.com/kinpoint/kinpoint/internal/stream"
)

func wsURL(server *httptest.Server, channels string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws?channels=" + channels
}

func TestSubscribeDeliversGroupEvents(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "mom", membership.RoleMember)

	server := httptest.NewServer(e.mux)
	defer server.Close()

	header := http.Header{}
	header.Set(SubjectIDHeader, "mom")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "group:fam"), header)
	if err != nil {
		t.Fatalf("dial: %v (resp: %+v)", err, resp)
	}
	defer conn.Close()

	// The handler registers the subscription just after the handshake;
	// wait for it before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for e.hub.ConnectionCount("group:fam") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	event, err := stream.NewEvent(stream.EventAlert, map[string]string{"subject_id": "kid"})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if err := e.hub.Publish(context.Background(), stream.GroupChannel("fam"), event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got stream.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if got.Type != stream.EventAlert || got.Channel != "group:fam" {
		t.Errorf("event = %s on %s, want %s on group:fam", got.Type, got.Channel, stream.EventAlert)
	}
}

func TestSubscribeRejectsForeignGroup(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "mom", membership.RoleMember)

	server := httptest.NewServer(e.mux)
	defer server.Close()

	header := http.Header{}
	header.Set(SubjectIDHeader, "stranger")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "group:fam"), header)
	if err == nil {
		t.Fatal("dial succeeded, want handshake rejection")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("handshake status = %+v, want 403", resp)
	}
}

func TestSubscribeSubjectChannelRequiresCapability(t *testing.T) {
	e := newTestEnv(t)
	e.join(t, "fam", "dad", membership.RoleAdmin)
	e.join(t, "fam", "kid", membership.RoleMember)

	server := httptest.NewServer(e.mux)
	defer server.Close()

	t.Run("own channel", func(t *testing.T) {
		header := http.Header{}
		header.Set(SubjectIDHeader, "kid")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "subject:kid"), header)
		if err != nil {
			t.Fatalf("dial own channel: %v", err)
		}
		conn.Close()
	})

	t.Run("admin over the subject", func(t *testing.T) {
		header := http.Header{}
		header.Set(SubjectIDHeader, "dad")
		conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "subject:kid"), header)
		if err != nil {
			t.Fatalf("dial as admin: %v", err)
		}
		conn.Close()
	})

	t.Run("peer without grant denied", func(t *testing.T) {
		e.join(t, "fam", "cousin", membership.RoleMember)
		header := http.Header{}
		header.Set(SubjectIDHeader, "cousin")
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(server, "subject:kid"), header)
		if err == nil {
			t.Fatal("dial succeeded, want handshake rejection")
		}
		if resp == nil || resp.StatusCode != http.StatusForbidden {
			t.Fatalf("handshake status = %+v, want 403", resp)
		}
	})
}
