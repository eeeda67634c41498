// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

// setupWebSocketServer serves hub clients over a test server.
func setupWebSocketServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upgrader := websocket.Upgrader{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		NewClient(hub, conn).Start()
	}))
	t.Cleanup(server.Close)
	return server
}

func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, messageType string) {
	t.Helper()
	data, err := MarshalMessage(Message{Type: messageType})
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatal(err)
	}
}

func TestClient_StatusStream(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	hub.SetGreeting(func() Message {
		return Message{Type: MessageTypeSyncStatus, Data: map[string]string{"status": "idle"}}
	})
	startHub(t, hub)
	conn := dialWebSocket(t, setupWebSocketServer(t, hub))

	greeting := readMessage(t, conn)
	if greeting.Type != MessageTypeSyncStatus {
		t.Fatalf("greeting type = %q", greeting.Type)
	}

	writeMessage(t, conn, MessageTypePing)
	if msg := readMessage(t, conn); msg.Type != MessageTypePong {
		t.Errorf("ping reply = %q, want pong", msg.Type)
	}

	writeMessage(t, conn, MessageTypeSyncStatus)
	if msg := readMessage(t, conn); msg.Type != MessageTypeSyncStatus {
		t.Errorf("status reply = %q", msg.Type)
	}

	hub.BroadcastJSON(MessageTypeSyncCompleted, map[string]int{"uploaded": 3})
	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncCompleted {
		t.Fatalf("broadcast type = %q", msg.Type)
	}
	data, ok := msg.Data.(map[string]interface{})
	if !ok || data["uploaded"] != float64(3) {
		t.Errorf("broadcast data = %#v", msg.Data)
	}
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	startHub(t, hub)
	conn := dialWebSocket(t, setupWebSocketServer(t, hub))
	waitForClients(t, hub, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	waitForClients(t, hub, 0)
}

func TestClient_IDsIncrease(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	a, b := NewClient(hub, nil), NewClient(hub, nil)
	if b.ID() <= a.ID() {
		t.Errorf("ids not increasing: %d then %d", a.ID(), b.ID())
	}
	if cap(a.send) != sendBuffer {
		t.Errorf("send buffer = %d", cap(a.send))
	}
}
