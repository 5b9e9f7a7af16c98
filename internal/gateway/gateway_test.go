package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/cardsync/internal/gateway"
	"github.com/mcdev12/cardsync/internal/room"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	gameRoom := room.New(room.DefaultConfig(), cm, nil, clockwork.NewRealClock())
	handler := gateway.NewWebSocketHandler(cm, gameRoom)

	go func() { _ = cm.Start(ctx) }()
	go func() { _ = gameRoom.Run(ctx) }()

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, username string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if username != "" {
		url += "?username=" + username
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads messages off conn until match returns true, failing the
// test if nothing matches within the deadline.
func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "expected message never arrived")

		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if match(msg) {
			return
		}
	}
}

func hasUserList(users ...string) func(map[string]any) bool {
	return func(msg map[string]any) bool {
		if msg["type"] != "userList" {
			return false
		}
		raw, ok := msg["users"].([]any)
		if !ok || len(raw) != len(users) {
			return false
		}
		for i, u := range users {
			if raw[i] != u {
				return false
			}
		}
		return true
	}
}

func isGame(subtype string) func(map[string]any) bool {
	return func(msg map[string]any) bool {
		return msg["type"] == "game" && msg["subtype"] == subtype
	}
}

func TestGatewayRoundTrip(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	alice := dial(t, srv, "Alice")
	readUntil(t, alice, hasUserList("Alice"))

	bob := dial(t, srv, "Bob")
	readUntil(t, alice, hasUserList("Alice", "Bob"))
	readUntil(t, bob, hasUserList("Alice", "Bob"))

	// Both signal readiness; everyone sees the start and the fresh round.
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "start_game", "username": "Alice"}))
	require.NoError(t, bob.WriteJSON(map[string]any{"type": "start_game", "username": "Bob"}))

	readUntil(t, alice, isGame("game_start"))
	readUntil(t, alice, isGame("new_round"))
	readUntil(t, bob, isGame("new_round"))

	// Chat fans out to every open connection, sender included.
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "chat", "content_type": "text", "content": "hello"}))
	readUntil(t, bob, func(msg map[string]any) bool {
		return msg["type"] == "chat" && msg["sender"] == "Alice" && msg["content"] == "hello"
	})

	// Closing a peer reaps it from the user list.
	require.NoError(t, alice.Close())
	readUntil(t, bob, hasUserList("Bob"))
}

func TestGatewaySnapshotOnJoin(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t)

	alice := dial(t, srv, "Alice")
	readUntil(t, alice, hasUserList("Alice"))

	cards := []map[string]string{
		{"suit": "hearts", "rank": "A"},
		{"suit": "clubs", "rank": "7"},
		{"suit": "spades", "rank": "10"},
		{"suit": "diamonds", "rank": "3"},
	}
	require.NoError(t, alice.WriteJSON(map[string]any{"type": "game", "subtype": "cards", "cards": cards}))
	readUntil(t, alice, isGame("cards"))

	// A late joiner receives the dealt hand without asking.
	bob := dial(t, srv, "Bob")
	readUntil(t, bob, func(msg map[string]any) bool {
		if msg["type"] != "game" || msg["subtype"] != "cards" {
			return false
		}
		raw, ok := msg["cards"].([]any)
		return ok && len(raw) == 4
	})
}
