// Package backend talks to the remote PHP service that is the source of
// truth for rooms (who registered) and wheel item catalogs. All calls are
// plain request/response; callers decide what to do with failures.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/velikanov/wheelroom/internal/wheel"
)

// Room is the backend's view of a room: the proposing host, the channel the
// proposal was posted in, and every identity that accepted the invitation.
type Room struct {
	ID        string
	HostID    string
	ChannelID string
	Players   []string
}

// Client issues the rooms.php / wheel.php script calls.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for the given endpoint, e.g. "https://example.com".
// The "/scripts" prefix the backend uses is appended here.
func New(endpoint string) *Client {
	return &Client{
		base: endpoint + "/scripts",
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type roomEnvelope struct {
	Room *struct {
		ID        string `json:"id"`
		HostID    string `json:"host_id"`
		ChannelID string `json:"channel_id"`
		// The backend stores the accepted players as a JSON array string.
		Players string `json:"players"`
	} `json:"room"`
}

// GetRoom fetches a room by id.
func (c *Client) GetRoom(ctx context.Context, id string) (Room, error) {
	var env roomEnvelope
	err := c.get(ctx, "rooms.php", url.Values{"action": {"get_room"}, "id": {id}}, &env)
	if err != nil {
		return Room{}, err
	}
	if env.Room == nil {
		return Room{}, fmt.Errorf("room %s not found", id)
	}

	room := Room{ID: env.Room.ID, HostID: env.Room.HostID, ChannelID: env.Room.ChannelID}
	if env.Room.Players != "" {
		if err := json.Unmarshal([]byte(env.Room.Players), &room.Players); err != nil {
			return Room{}, fmt.Errorf("decode room %s players: %w", id, err)
		}
	}
	return room, nil
}

// CreateRoom registers a new room proposed by hostID in channelID.
func (c *Client) CreateRoom(ctx context.Context, id, hostID, channelID string) error {
	return c.get(ctx, "rooms.php", url.Values{
		"action":    {"create_room"},
		"id":        {id},
		"hostId":    {hostID},
		"channelId": {channelID},
	}, nil)
}

// AddPlayer appends an accepted player to a room.
func (c *Client) AddPlayer(ctx context.Context, id, player string) error {
	return c.get(ctx, "rooms.php", url.Values{
		"action": {"add_player"},
		"id":     {id},
		"player": {player},
	}, nil)
}

type wheelEnvelope struct {
	Games []wheel.Item `json:"games"`
}

// WheelItems fetches the item catalog for a filter.
func (c *Client) WheelItems(ctx context.Context, filter string) ([]wheel.Item, error) {
	var env wheelEnvelope
	err := c.get(ctx, "wheel.php", url.Values{"action": {"get_wheel"}, "filter": {filter}}, &env)
	if err != nil {
		return nil, err
	}
	return env.Games, nil
}

func (c *Client) get(ctx context.Context, script string, query url.Values, out any) error {
	u := c.base + "/" + script + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", script, err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", script, query.Get("action"), err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d", script, query.Get("action"), res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", script, query.Get("action"), err)
	}
	return nil
}
