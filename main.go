package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/velikanov/wheelroom/internal/backend"
	"github.com/velikanov/wheelroom/internal/config"
	"github.com/velikanov/wheelroom/internal/discord"
	"github.com/velikanov/wheelroom/internal/room"
	"github.com/velikanov/wheelroom/internal/store"
	"github.com/velikanov/wheelroom/internal/wheel"
	"github.com/velikanov/wheelroom/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	backendClient := backend.New(cfg.RemoteEndpoint)
	rest := discord.NewRest(cfg.DiscordToken)

	roomCfg := room.Config{
		TickInterval: room.DefaultTickInterval,
		Wheel:        wheel.DefaultParams(),
		Catalog:      backendClient,
		Announcer:    rest,
	}

	roomStore := store.NewRoomStore()
	roomStore.StartJanitor(context.Background(), cfg.RoomTTL, 5*time.Minute)

	wsHandler := ws.NewHandler(roomStore, backendClient, roomCfg, cfg.AllowedOrigin)
	interactions := &discord.Handler{
		Rooms:          backendClient,
		Rest:           rest,
		AppID:          cfg.AppID,
		FrontendURL:    cfg.FrontendURL,
		RemoteEndpoint: cfg.RemoteEndpoint,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.With(discord.VerifyMiddleware(cfg.PublicKey)).Post("/interactions", interactions.HandleInteractions)
	r.Get("/ws", wsHandler.ServeWS)
	r.Get("/qr/{roomID}", handleRoomQR(cfg.FrontendURL))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Make sure the guild has our slash commands once the server is up.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := discord.EnsureGuildCommands(ctx, rest, cfg.AppID, cfg.GuildID); err != nil {
			log.Error().Err(err).Msg("guild command installation failed")
		}
	}()

	log.Info().Str("port", cfg.Port).Msg("server starting")
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// handleRoomQR renders the frontend link for a room as a PNG QR code, so an
// invitation can be joined from a phone.
func handleRoomQR(frontendURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		png, err := qrcode.Encode(frontendURL+"/#"+roomID, qrcode.Medium, 256)
		if err != nil {
			log.Error().Err(err).Str("room", roomID).Msg("qr encode failed")
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}
}
