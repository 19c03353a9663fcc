package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiBase = "https://discord.com/api/v10"

// RestClient issues authenticated calls against the Discord REST API.
type RestClient struct {
	token string
	base  string
	http  *http.Client
}

// NewRest creates a client authenticating with the given bot token.
func NewRest(token string) *RestClient {
	return &RestClient{
		token: token,
		base:  apiBase,
		http:  &http.Client{Timeout: 15 * time.Second},
	}
}

// AnnounceResult posts a finished spin's result into the room's originating
// channel. Satisfies the room package's Announcer.
func (c *RestClient) AnnounceResult(ctx context.Context, channelID, text string) error {
	payload := struct {
		Content string `json:"content"`
	}{Content: text}
	return c.do(ctx, http.MethodPost, "/channels/"+channelID+"/messages", payload, nil)
}

// DeleteFollowup deletes a previously sent interaction response message via
// the interaction's webhook.
func (c *RestClient) DeleteFollowup(ctx context.Context, appID, token, messageID string) error {
	return c.do(ctx, http.MethodDelete, "/webhooks/"+appID+"/"+token+"/messages/"+messageID, nil, nil)
}

// GuildCommands lists the application commands installed for a guild.
func (c *RestClient) GuildCommands(ctx context.Context, appID, guildID string) ([]Command, error) {
	var commands []Command
	err := c.do(ctx, http.MethodGet, "/applications/"+appID+"/guilds/"+guildID+"/commands", nil, &commands)
	return commands, err
}

// CreateGuildCommand installs one application command for a guild.
func (c *RestClient) CreateGuildCommand(ctx context.Context, appID, guildID string, cmd Command) error {
	return c.do(ctx, http.MethodPost, "/applications/"+appID+"/guilds/"+guildID+"/commands", cmd, nil)
}

func (c *RestClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, res.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
