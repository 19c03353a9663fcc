// Package store holds the process-wide room registry. Rooms are created
// lazily on first connection and retired by a janitor once they have sat
// without connections for longer than the configured TTL.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/velikanov/wheelroom/internal/room"
)

// RoomStore manages room storage.
type RoomStore struct {
	rooms map[string]*room.Room
	mu    sync.Mutex
}

// NewRoomStore creates a new room store.
func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[string]*room.Room),
	}
}

// Get retrieves a room by id.
func (s *RoomStore) Get(id string) (*room.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, exists := s.rooms[id]
	return r, exists
}

// GetOrCreate returns the room for id, constructing and storing it via create
// on first use. Concurrent first connections for the same id resolve to a
// single winner: create runs under the store lock, so exactly one room is
// ever stored per id. The second return value reports whether the room was
// just created; callers refresh an existing room's registered players.
func (s *RoomStore) GetOrCreate(id string, create func() *room.Room) (*room.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, exists := s.rooms[id]; exists {
		return r, false
	}
	r := create()
	s.rooms[id] = r
	return r, true
}

// Delete removes a room.
func (s *RoomStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// Len returns the number of stored rooms.
func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// StartJanitor sweeps the registry every interval, retiring rooms that have
// had no connections for longer than ttl, until ctx is cancelled.
func (s *RoomStore) StartJanitor(ctx context.Context, ttl, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := s.sweep(now, ttl); n > 0 {
					log.Info().Int("rooms", n).Msg("retired idle rooms")
				}
			}
		}
	}()
}

func (s *RoomStore) sweep(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.rooms {
		idle := r.IdleSince()
		if !idle.IsZero() && now.Sub(idle) >= ttl {
			delete(s.rooms, id)
			n++
		}
	}
	return n
}
