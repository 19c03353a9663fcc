package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/velikanov/wheelroom/internal/backend"
	"github.com/velikanov/wheelroom/internal/room"
	"github.com/velikanov/wheelroom/internal/store"
)

// RoomSource resolves a room id to its backend record.
type RoomSource interface {
	GetRoom(ctx context.Context, id string) (backend.Room, error)
}

// Handler upgrades /ws connections, resolves the target room through the
// registry and pumps inbound protocol events into it.
type Handler struct {
	store    *store.RoomStore
	source   RoomSource
	roomCfg  room.Config
	upgrader websocket.Upgrader
}

// NewHandler wires the websocket endpoint. allowedOrigin is the single
// browser origin permitted to connect; requests without an Origin header
// (non-browser clients, tests) are allowed through.
func NewHandler(s *store.RoomStore, source RoomSource, roomCfg room.Config, allowedOrigin string) *Handler {
	return &Handler{
		store:   s,
		source:  source,
		roomCfg: roomCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeWS handles one websocket session. Identity is whatever the query
// string claims; authorization happened upstream and the room decides
// whether the identity is a player or a spectator.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	roomID := query.Get("roomId")
	user := room.User{
		ID:     query.Get("id"),
		Name:   query.Get("name"),
		Avatar: query.Get("avatar"),
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	info, err := h.source.GetRoom(ctx, roomID)
	cancel()
	if err != nil {
		// Room lookup failures kill the session; in-memory state is untouched.
		log.Error().Err(err).Str("room", roomID).Str("user", user.ID).Msg("room lookup failed")
		conn.Close()
		return
	}

	rm, created := h.store.GetOrCreate(info.ID, func() *room.Room {
		return room.New(info.ID, info.HostID, info.ChannelID, info.Players, h.roomCfg)
	})
	if !created {
		// The backend may have gained players since the room was built.
		rm.RefreshRegistered(info.Players)
	}

	client := NewClient(conn)
	log.Info().Str("room", rm.ID).Str("user", user.ID).Str("client", client.ID).Msg("session connected")

	go client.WritePump()
	rm.Connect(client.ID, client, user)

	h.readLoop(rm, client, conn)

	rm.Disconnect(client.ID)
	client.Close()
	log.Info().Str("room", rm.ID).Str("user", user.ID).Msg("session disconnected")
}

func (h *Handler) readLoop(rm *room.Room, client *Client, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Debug().Err(err).Str("client", client.ID).Msg("malformed frame")
			continue
		}
		h.dispatch(rm, env)
	}
}

// dispatch applies one inbound event to the room. Malformed payloads are
// dropped; the room itself treats unknown identities and items as no-ops.
func (h *Handler) dispatch(rm *room.Room, env Envelope) {
	switch env.Event {
	case EventPlayersToggle:
		var ref playerRef
		if err := json.Unmarshal(env.Data, &ref); err == nil {
			rm.ToggleReady(ref.ID)
		}
	case EventFilterChange:
		var filter string
		if err := json.Unmarshal(env.Data, &filter); err == nil {
			rm.ChangeFilter(filter)
		}
	case EventWheelSpin:
		rm.Spin()
	case EventWheelBan:
		var ref itemRef
		if err := json.Unmarshal(env.Data, &ref); err == nil {
			rm.Ban(ref.ID)
		}
	case EventWheelUnban:
		var ref itemRef
		if err := json.Unmarshal(env.Data, &ref); err == nil {
			rm.Unban(ref.ID)
		}
	default:
		log.Debug().Str("event", env.Event).Msg("unknown inbound event")
	}
}
