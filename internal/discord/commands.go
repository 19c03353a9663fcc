package discord

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Command is an application (slash) command definition.
type Command struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        int    `json:"type"`
}

// guildCommands are the commands this bot expects to have installed.
var guildCommands = []Command{
	{Name: "test", Description: "Basic guild command", Type: commandTypeChatInput},
	{Name: "wheel", Description: "Предложить крутить колесо", Type: commandTypeChatInput},
}

const commandTypeChatInput = 1

// EnsureGuildCommands installs any of the bot's commands missing from the
// guild. Already installed commands are left alone.
func EnsureGuildCommands(ctx context.Context, rest *RestClient, appID, guildID string) error {
	installed, err := rest.GuildCommands(ctx, appID, guildID)
	if err != nil {
		return fmt.Errorf("list guild commands: %w", err)
	}

	have := make(map[string]bool, len(installed))
	for _, cmd := range installed {
		have[cmd.Name] = true
	}

	for _, cmd := range guildCommands {
		if have[cmd.Name] {
			continue
		}
		if err := rest.CreateGuildCommand(ctx, appID, guildID, cmd); err != nil {
			return fmt.Errorf("install command %q: %w", cmd.Name, err)
		}
		log.Info().Str("command", cmd.Name).Msg("installed guild command")
	}
	return nil
}
