package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velikanov/wheelroom/internal/backend"
	"github.com/velikanov/wheelroom/internal/room"
	"github.com/velikanov/wheelroom/internal/store"
	"github.com/velikanov/wheelroom/internal/wheel"
)

type fakeSource struct {
	room backend.Room
	err  error
}

func (s *fakeSource) GetRoom(ctx context.Context, id string) (backend.Room, error) {
	return s.room, s.err
}

type fakeCatalog struct {
	items []wheel.Item
}

func (c *fakeCatalog) WheelItems(ctx context.Context, filter string) ([]wheel.Item, error) {
	return c.items, nil
}

func testServer(t *testing.T, source RoomSource, catalog room.Catalog) *httptest.Server {
	t.Helper()
	cfg := room.Config{
		TickInterval: time.Millisecond,
		FetchTimeout: time.Second,
		Wheel: wheel.Params{
			InitialSpeed:      0.08,
			DecelerationRatio: 0.5,
			SnapThreshold:     0.002,
			AngleSpread:       10,
			MinFullSpeedTicks: 3,
			MaxFullSpeedTicks: 5,
		},
		Catalog: catalog,
	}
	h := NewHandler(store.NewRoomStore(), source, cfg, "http://localhost:3000")
	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func readUntil(t *testing.T, conn *websocket.Conn, event string) Envelope {
	t.Helper()
	for i := 0; i < 200; i++ {
		env := readEvent(t, conn)
		if env.Event == event {
			return env
		}
	}
	t.Fatalf("event %s never arrived", event)
	return Envelope{}
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Envelope{Event: event, Data: raw}))
}

func TestSessionLifecycle(t *testing.T) {
	source := &fakeSource{room: backend.Room{
		ID:        "room-1",
		HostID:    "a",
		ChannelID: "chan-1",
		Players:   []string{"a", "b"},
	}}
	catalog := &fakeCatalog{items: []wheel.Item{
		{ID: "1", Name: "apple", Weight: 1},
		{ID: "2", Name: "banana", Weight: 3},
	}}
	srv := testServer(t, source, catalog)

	conn := dial(t, srv, "roomId=room-1&id=a&name=Alice&avatar=av1")

	// Connect snapshot: membership first, then the wheel facet.
	list := readUntil(t, conn, room.EventPlayersList)
	var listPayload struct {
		Players []room.Player `json:"players"`
		HostID  string        `json:"hostId"`
	}
	require.NoError(t, json.Unmarshal(list.Data, &listPayload))
	require.Len(t, listPayload.Players, 1)
	assert.Equal(t, "Alice", listPayload.Players[0].Name)
	assert.Equal(t, "a", listPayload.HostID)

	rolling := readUntil(t, conn, room.EventWheelRolling)
	assert.Equal(t, "false", string(rolling.Data))

	// Changing the filter loads the catalog and broadcasts the new setup.
	send(t, conn, EventFilterChange, "retro")
	setup := readUntil(t, conn, room.EventWheelSetup)
	var setupPayload struct {
		Filter string       `json:"filter"`
		Items  []wheel.Item `json:"items"`
	}
	require.NoError(t, json.Unmarshal(setup.Data, &setupPayload))
	assert.Equal(t, "retro", setupPayload.Filter)
	require.Len(t, setupPayload.Items, 2)
	assert.InDelta(t, 0.75, setupPayload.Items[1].Probability, 1e-9)

	// Ready up and spin; the wheel broadcasts frames until it stops.
	send(t, conn, EventPlayersToggle, map[string]string{"id": "a"})
	list = readUntil(t, conn, room.EventPlayersList)
	require.NoError(t, json.Unmarshal(list.Data, &listPayload))
	assert.True(t, listPayload.Players[0].IsReady)

	send(t, conn, EventWheelSpin, nil)
	rolling = readUntil(t, conn, room.EventWheelRolling)
	assert.Equal(t, "true", string(rolling.Data))

	sawAngle := false
	for {
		env := readEvent(t, conn)
		switch env.Event {
		case room.EventWheelAngle:
			sawAngle = true
		case room.EventWheelRolling:
			assert.Equal(t, "false", string(env.Data))
			assert.True(t, sawAngle, "angle frames precede the stop")
			return
		}
	}
}

func TestSpectatorCannotToggleReadiness(t *testing.T) {
	source := &fakeSource{room: backend.Room{
		ID:      "room-1",
		HostID:  "a",
		Players: []string{"a"},
	}}
	srv := testServer(t, source, &fakeCatalog{})

	conn := dial(t, srv, "roomId=room-1&id=eve&name=Eve")

	list := readUntil(t, conn, room.EventPlayersList)
	var listPayload struct {
		Players           []room.Player `json:"players"`
		RegisteredPlayers []string      `json:"registeredPlayers"`
	}
	require.NoError(t, json.Unmarshal(list.Data, &listPayload))
	assert.Empty(t, listPayload.Players)
	assert.Equal(t, []string{"a"}, listPayload.RegisteredPlayers)

	// No player record exists for the spectator, so this must not produce a
	// membership broadcast.
	send(t, conn, EventPlayersToggle, map[string]string{"id": "eve"})

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break // deadline: nothing further arrived
		}
		var env Envelope
		require.NoError(t, json.Unmarshal(data, &env))
		assert.NotEqual(t, room.EventPlayersList, env.Event)
	}
}

func TestRoomLookupFailureDisconnects(t *testing.T) {
	source := &fakeSource{err: errors.New("backend unreachable")}
	srv := testServer(t, source, &fakeCatalog{})

	conn := dial(t, srv, "roomId=missing&id=a&name=Alice")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "server closes the connection when the lookup fails")
}
