package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/conduit-lang/catalog/runtime/metadata"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.ConnectionCount() == 1 }, time.Second, 10*time.Millisecond)
	return conn
}

func TestHub_BroadcastsRegistryChanges(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	conn := dialHub(t, h)

	reg := metadata.NewRegistry()
	id := h.Attach(reg)

	_, err := reg.Upsert(context.Background(), metadata.ComponentMetadata{
		Path: "/src/Button.tsx",
		Name: "Button",
	})
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg EventMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, metadata.EventAdd, msg.Type)
	assert.Equal(t, "/src/Button.tsx", msg.Path)
	assert.Equal(t, "Button", msg.Name)
	assert.Equal(t, "1.0.0", msg.Version)
	assert.Equal(t, metadata.CategoryAtom, msg.Category)

	assert.True(t, reg.RemoveChangeListener(id))
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	h := NewHub(nil)
	defer h.Close()
	server := httptest.NewServer(h)
	defer server.Close()

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		origin   string
		expected bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://127.0.0.1:8080", true},
		{"https://example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/events", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.expected, checkOrigin(r), tt.origin)
	}
}

func TestHub_Close(t *testing.T) {
	h := NewHub(nil)
	dialHub(t, h)

	h.Close()
	h.Close()
	assert.Equal(t, 0, h.ConnectionCount())

	// Publishing after close is a no-op
	h.Publish(metadata.ChangeEvent{Type: metadata.EventDelete, Path: "/src/A.tsx"})
}

func TestNewEventMessage_Delete(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	msg := NewEventMessage(metadata.ChangeEvent{Type: metadata.EventDelete, Path: "/src/A.tsx", Timestamp: ts})
	assert.Equal(t, ts.UnixMilli(), msg.Timestamp)
	assert.Empty(t, msg.Name)
}
