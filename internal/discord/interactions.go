// Package discord hosts the chat-platform side of the system: the signed
// interactions endpoint that creates rooms and registers players, command
// installation, and the REST client used to post messages.
package discord

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velikanov/wheelroom/internal/backend"
	"github.com/velikanov/wheelroom/internal/render"
)

// Interaction types and response types, per the Discord API.
const (
	interactionPing             = 1
	interactionCommand          = 2
	interactionMessageComponent = 3

	responsePong                     = 1
	responseChannelMessageWithSource = 4

	componentActionRow = 1
	componentButton    = 2
	buttonStylePrimary = 1
)

const acceptButtonPrefix = "accept_button_"

// RoomService is the slice of the backend the interaction handler needs.
type RoomService interface {
	CreateRoom(ctx context.Context, id, hostID, channelID string) error
	AddPlayer(ctx context.Context, id, player string) error
	GetRoom(ctx context.Context, id string) (backend.Room, error)
}

// Handler serves the /interactions endpoint.
type Handler struct {
	Rooms          RoomService
	Rest           *RestClient
	AppID          string
	FrontendURL    string
	RemoteEndpoint string
}

type interaction struct {
	Type      int    `json:"type"`
	ID        string `json:"id"`
	Token     string `json:"token"`
	ChannelID string `json:"channel_id"`
	Data      struct {
		Name     string `json:"name"`
		CustomID string `json:"custom_id"`
	} `json:"data"`
	Member *struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
	} `json:"member"`
	Message *struct {
		ID string `json:"id"`
	} `json:"message"`
}

type interactionResponse struct {
	Type int          `json:"type"`
	Data *messageData `json:"data,omitempty"`
}

type messageData struct {
	Content    string      `json:"content,omitempty"`
	Components []component `json:"components,omitempty"`
}

type component struct {
	Type       int         `json:"type"`
	CustomID   string      `json:"custom_id,omitempty"`
	Label      string      `json:"label,omitempty"`
	Style      int         `json:"style,omitempty"`
	Components []component `json:"components,omitempty"`
}

var emojis = []string{"😭", "😄", "😌", "🤓", "😎", "😤", "🤖", "🌏", "📸", "💿", "👋", "🌊", "✨"}

func randomEmoji() string {
	return emojis[rand.Intn(len(emojis))]
}

// HandleInteractions dispatches one interaction request. Signature
// verification happens in VerifyMiddleware before this runs.
func (h *Handler) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	var in interaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	switch in.Type {
	case interactionPing:
		respond(w, interactionResponse{Type: responsePong})
	case interactionCommand:
		h.handleCommand(w, r, in)
	case interactionMessageComponent:
		h.handleComponent(w, r, in)
	default:
		http.Error(w, "unsupported interaction type", http.StatusBadRequest)
	}
}

func (h *Handler) handleCommand(w http.ResponseWriter, r *http.Request, in interaction) {
	switch in.Data.Name {
	case "test":
		respond(w, interactionResponse{
			Type: responseChannelMessageWithSource,
			Data: &messageData{Content: "hello from " + h.RemoteEndpoint + " " + randomEmoji()},
		})
	case "wheel":
		if in.Member == nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		// The interaction id doubles as the room id.
		roomID := in.ID
		hostID := in.Member.User.ID

		ctx := r.Context()
		if err := h.Rooms.CreateRoom(ctx, roomID, hostID, in.ChannelID); err != nil {
			log.Error().Err(err).Str("room", roomID).Msg("create room failed")
			http.Error(w, "room creation failed", http.StatusBadGateway)
			return
		}
		msg, err := h.announceMessage(ctx, roomID)
		if err != nil {
			log.Error().Err(err).Str("room", roomID).Msg("room lookup failed")
			http.Error(w, "room lookup failed", http.StatusBadGateway)
			return
		}
		respond(w, interactionResponse{
			Type: responseChannelMessageWithSource,
			Data: &messageData{Content: msg, Components: acceptRow(roomID)},
		})
	default:
		http.Error(w, "unknown command", http.StatusBadRequest)
	}
}

func (h *Handler) handleComponent(w http.ResponseWriter, r *http.Request, in interaction) {
	if in.Member == nil || !strings.HasPrefix(in.Data.CustomID, acceptButtonPrefix) {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	roomID := strings.TrimPrefix(in.Data.CustomID, acceptButtonPrefix)
	userID := in.Member.User.ID

	ctx := r.Context()
	if err := h.Rooms.AddPlayer(ctx, roomID, userID); err != nil {
		log.Error().Err(err).Str("room", roomID).Str("user", userID).Msg("add player failed")
		http.Error(w, "join failed", http.StatusBadGateway)
		return
	}
	msg, err := h.announceMessage(ctx, roomID)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("room lookup failed")
		http.Error(w, "room lookup failed", http.StatusBadGateway)
		return
	}

	respond(w, interactionResponse{
		Type: responseChannelMessageWithSource,
		Data: &messageData{Content: msg, Components: acceptRow(roomID)},
	})

	// Replace rather than stack invitations: drop the superseded message
	// once the new one is on its way.
	if in.Message != nil && h.Rest != nil {
		go func(token, messageID string) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := h.Rest.DeleteFollowup(ctx, h.AppID, token, messageID); err != nil {
				log.Error().Err(err).Str("room", roomID).Msg("delete stale invitation failed")
			}
		}(in.Token, in.Message.ID)
	}
}

// announceMessage renders the invitation text from the backend's current
// view of the room.
func (h *Handler) announceMessage(ctx context.Context, roomID string) (string, error) {
	info, err := h.Rooms.GetRoom(ctx, roomID)
	if err != nil {
		return "", err
	}
	return render.RoomAnnounce(h.FrontendURL, roomID, info.HostID, info.Players), nil
}

func acceptRow(roomID string) []component {
	return []component{{
		Type: componentActionRow,
		Components: []component{{
			Type:     componentButton,
			CustomID: acceptButtonPrefix + roomID,
			Label:    "Буду участвовать!",
			Style:    buttonStylePrimary,
		}},
	}}
}

func respond(w http.ResponseWriter, res interactionResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		log.Error().Err(err).Msg("write interaction response")
	}
}
