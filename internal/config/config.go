// Package config loads process configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Port           string        `env:"PORT" envDefault:"3001"`
	RemoteEndpoint string        `env:"REMOTE_ENDPOINT,required"`
	FrontendURL    string        `env:"FRONTEND_URL,required"`
	PublicKey      string        `env:"PUBLIC_KEY,required"`
	AppID          string        `env:"APP_ID,required"`
	GuildID        string        `env:"GUILD_ID,required"`
	DiscordToken   string        `env:"DISCORD_TOKEN,required"`
	AllowedOrigin  string        `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
	RoomTTL        time.Duration `env:"ROOM_TTL" envDefault:"1h"`
	Debug          bool          `env:"DEBUG"`
}

// Load reads .env if present, then parses the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
