// Package room implements one wheel session: the connected player set with
// its readiness state machine, the spin orchestration around the wheel, and
// the broadcast fan-out that keeps every attached connection consistent.
package room

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velikanov/wheelroom/internal/render"
	"github.com/velikanov/wheelroom/internal/wheel"
)

// Outbound event names. Every mutation broadcasts the full current state of
// the changed facet; there are no partial updates.
const (
	EventPlayersList  = "players/list"
	EventWheelSetup   = "wheel/setup"
	EventWheelFilter  = "wheel/filter"
	EventWheelAngle   = "wheel/angle"
	EventWheelRolling = "wheel/rolling"
	EventRoomError    = "room/error"
)

// Conn is the outbound half of an attached connection. Send must never
// block: slow consumers are the transport's problem, not the room's.
type Conn interface {
	Send(event string, data any)
}

// Catalog fetches wheel items for a filter; implemented by the backend client.
type Catalog interface {
	WheelItems(ctx context.Context, filter string) ([]wheel.Item, error)
}

// Announcer delivers the formatted spin result to the chat platform.
type Announcer interface {
	AnnounceResult(ctx context.Context, channelID, text string) error
}

// Player is a registered identity that is currently connected.
type Player struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`
	IsReady bool   `json:"isReady"`

	connID string
	conn   Conn
}

// User carries the identity a connection presented at connect time.
type User struct {
	ID     string
	Name   string
	Avatar string
}

// Config bundles the knobs and collaborators a room needs.
type Config struct {
	// TickInterval is the period of the spin timer.
	TickInterval time.Duration
	// FetchTimeout bounds catalog fetches triggered by filter changes.
	FetchTimeout time.Duration
	Wheel        wheel.Params
	Catalog      Catalog
	Announcer    Announcer
}

// DefaultTickInterval matches the frontend animation rate.
const DefaultTickInterval = 10 * time.Millisecond

// Room owns one wheel and the connections attached to it. All state is
// guarded by a single mutex held for the duration of each operation and
// never across a backend fetch.
type Room struct {
	ID        string
	HostID    string
	ChannelID string

	cfg Config

	mu         sync.Mutex
	registered []string
	players    map[string]*Player // identity -> connected player
	conns      map[string]Conn    // connection id -> conn, players and spectators alike
	wheel      *wheel.Wheel
	filter     string
	filterSeq  uint64
	stopSpin   chan struct{} // non-nil while a spin timer runs
	emptySince time.Time     // zero while at least one connection is attached
}

type playersListPayload struct {
	Players           []Player `json:"players"`
	HostID            string   `json:"hostId"`
	RegisteredPlayers []string `json:"registeredPlayers"`
}

type wheelSetupPayload struct {
	Filter      string       `json:"filter"`
	Items       []wheel.Item `json:"items"`
	BannedItems []wheel.Item `json:"bannedItems"`
}

// New creates an idle room mirroring the backend's registered player list.
func New(id, hostID, channelID string, registered []string, cfg Config) *Room {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Room{
		ID:         id,
		HostID:     hostID,
		ChannelID:  channelID,
		cfg:        cfg,
		registered: append([]string(nil), registered...),
		players:    make(map[string]*Player),
		conns:      make(map[string]Conn),
		wheel:      wheel.New(cfg.Wheel, rand.New(rand.NewSource(time.Now().UnixNano()))),
		emptySince: time.Now(),
	}
}

// RefreshRegistered replaces the mirrored registered player list. Called when
// an already known room is connected to again, since the backend may have
// gained players in the meantime.
func (r *Room) RefreshRegistered(registered []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append([]string(nil), registered...)
}

// Connect attaches a connection to the room. A registered identity gets a
// player entry (overwriting any previous one) and the membership change is
// broadcast; anyone else stays a spectator with no player record. Either way
// the new connection receives a full state snapshot so late joiners see the
// current wheel, including a spin already in progress.
func (r *Room) Connect(connID string, c Conn, user User) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[connID] = c
	r.emptySince = time.Time{}

	if r.isRegisteredLocked(user.ID) {
		r.players[user.ID] = &Player{
			ID:     user.ID,
			Name:   user.Name,
			Avatar: user.Avatar,
			connID: connID,
			conn:   c,
		}
		r.sendPlayersListLocked()
	} else {
		c.Send(EventPlayersList, r.playersListLocked())
	}

	c.Send(EventWheelFilter, r.filter)
	c.Send(EventWheelSetup, r.wheelSetupLocked())
	c.Send(EventWheelRolling, r.wheel.Rolling())
}

// Disconnect detaches a connection. If it backed a player entry the player is
// removed and the membership change broadcast. Unknown connections are a no-op.
func (r *Room) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[connID]; !ok {
		return
	}
	delete(r.conns, connID)
	if len(r.conns) == 0 {
		r.emptySince = time.Now()
	}

	for id, p := range r.players {
		if p.connID == connID {
			delete(r.players, id)
			r.sendPlayersListLocked()
			break
		}
	}
}

// ToggleReady flips the readiness flag of a connected player. Identities
// without a player record (spectators, disconnected players) are a no-op.
func (r *Room) ToggleReady(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return
	}
	p.IsReady = !p.IsReady
	r.sendPlayersListLocked()
}

// ResetReadiness clears every connected player's readiness flag.
func (r *Room) ResetReadiness() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetReadinessLocked()
}

func (r *Room) resetReadinessLocked() {
	for _, p := range r.players {
		p.IsReady = false
	}
	r.sendPlayersListLocked()
}

// ChangeFilter resets readiness (a new item set invalidates prior
// commitments), then fetches the catalog for the filter and applies it. Each
// fetch carries a sequence number so a slow response for a superseded filter
// is dropped instead of overwriting a newer one.
func (r *Room) ChangeFilter(filter string) {
	r.mu.Lock()
	r.resetReadinessLocked()
	r.filterSeq++
	seq := r.filterSeq
	r.mu.Unlock()

	go r.applyFilter(seq, filter)
}

func (r *Room) applyFilter(seq uint64, filter string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
	defer cancel()

	items, err := r.cfg.Catalog.WheelItems(ctx, filter)

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.filterSeq {
		log.Debug().Str("room", r.ID).Str("filter", filter).Msg("dropping stale filter fetch")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", r.ID).Str("filter", filter).Msg("wheel items fetch failed")
		r.emitLocked(EventRoomError, "failed to load wheel items")
		return
	}

	r.filter = filter
	r.wheel.SetItems(items)
	r.emitLocked(EventWheelFilter, filter)
	r.emitLocked(EventWheelSetup, r.wheelSetupLocked())
}

// Ban excludes an item from the wheel and broadcasts the new setup.
func (r *Room) Ban(itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wheel.Ban(itemID)
	r.emitLocked(EventWheelSetup, r.wheelSetupLocked())
}

// Unban restores a banned item and broadcasts the new setup.
func (r *Room) Unban(itemID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wheel.Unban(itemID)
	r.emitLocked(EventWheelSetup, r.wheelSetupLocked())
}

// Spin starts the wheel if it is idle, at least one player is connected,
// every connected player is ready and there is something to land on.
// Rejections are silent: no state change, no broadcast, no timer. A stale
// timer handle left over from a previous spin is cancelled before the new
// one starts, so at most one tick stream exists per room.
func (r *Room) Spin() bool {
	r.mu.Lock()

	if r.wheel.Rolling() || !r.allReadyLocked() || len(r.wheel.Items()) == 0 {
		r.mu.Unlock()
		return false
	}

	if r.stopSpin != nil {
		close(r.stopSpin)
	}
	stop := make(chan struct{})
	r.stopSpin = stop

	r.wheel.Spin()
	r.emitLocked(EventWheelRolling, true)
	r.mu.Unlock()

	go r.runSpin(stop)
	return true
}

// runSpin drives the wheel physics at a fixed rate until the spin completes
// or the handle is cancelled by a newer spin.
func (r *Room) runSpin(stop chan struct{}) {
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if r.tick(stop) {
				return
			}
		}
	}
}

// tick advances the wheel one step and broadcasts the frame. When the wheel
// comes to rest it broadcasts the rolling=false transition exactly once,
// resolves the outcome and hands the formatted result to the announcer.
func (r *Room) tick(stop chan struct{}) bool {
	r.mu.Lock()

	r.wheel.Tick()
	done := r.wheel.Speed() == 0

	var result string
	if done {
		if r.stopSpin == stop {
			r.stopSpin = nil
		}
		r.emitLocked(EventWheelRolling, false)
		if it, ok := r.wheel.CurrentItem(); ok {
			result = render.WheelResult(r.wheel.Items(), it.ID)
		}
	}
	r.emitLocked(EventWheelAngle, r.wheel.Angle())

	channelID := r.ChannelID
	r.mu.Unlock()

	if done && result != "" && r.cfg.Announcer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
		defer cancel()
		if err := r.cfg.Announcer.AnnounceResult(ctx, channelID, result); err != nil {
			log.Error().Err(err).Str("room", r.ID).Msg("result announcement failed")
		}
	}
	return done
}

// Filter returns the currently applied item filter.
func (r *Room) Filter() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

// Rolling reports whether a spin is in progress.
func (r *Room) Rolling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wheel.Rolling()
}

// ConnCount returns the number of attached connections, spectators included.
func (r *Room) ConnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// IdleSince returns when the room last lost its final connection, or the
// zero time if anything is still attached. The store's janitor uses this to
// retire abandoned rooms.
func (r *Room) IdleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.conns) > 0 {
		return time.Time{}
	}
	return r.emptySince
}

func (r *Room) allReadyLocked() bool {
	if len(r.players) == 0 {
		return false
	}
	for _, p := range r.players {
		if !p.IsReady {
			return false
		}
	}
	return true
}

func (r *Room) isRegisteredLocked(id string) bool {
	for _, reg := range r.registered {
		if reg == id {
			return true
		}
	}
	return false
}

func (r *Room) playersListLocked() playersListPayload {
	players := make([]Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, *p)
	}
	return playersListPayload{
		Players:           players,
		HostID:            r.HostID,
		RegisteredPlayers: append([]string(nil), r.registered...),
	}
}

func (r *Room) wheelSetupLocked() wheelSetupPayload {
	return wheelSetupPayload{
		Filter:      r.filter,
		Items:       r.wheel.Items(),
		BannedItems: r.wheel.BannedItems(),
	}
}

func (r *Room) sendPlayersListLocked() {
	r.emitLocked(EventPlayersList, r.playersListLocked())
}

// emitLocked fans an event out to every attached connection. Conn.Send is
// non-blocking, so one misbehaving connection cannot stall the others.
func (r *Room) emitLocked(event string, data any) {
	for _, c := range r.conns {
		c.Send(event, data)
	}
}
