// v0
// internal/stream/hub_test.go
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adilblanco/Kafka-iot-poc/internal/dispatch"
)

func TestHubStreamsDeliveredAlerts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	srv := httptest.NewServer(hub.Handler(nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.ObservePublish(dispatch.Attempt{Role: "alerts", Topic: "alerts", Key: "sensor_1", Err: errors.New("down"), Payload: []byte(`{}`)})
	hub.ObservePublish(dispatch.Attempt{Role: "alerts", Topic: "alerts", Key: "sensor_1", Payload: []byte(`{"alertId":"a1"}`)})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if msg.Type != "alert" || msg.Key != "sensor_1" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if !strings.Contains(string(msg.Payload), "a1") {
		t.Fatalf("unexpected payload %s", msg.Payload)
	}
}

func TestObservePublishDropsWhenFull(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	for i := 0; i < broadcastBuffer+5; i++ {
		hub.ObservePublish(dispatch.Attempt{Role: "events", Payload: []byte(`{}`)})
	}
	if hub.Dropped() != 5 {
		t.Fatalf("expected 5 dropped messages, got %d", hub.Dropped())
	}
}
