// Package sessions holds the in-memory work state of every user.
//
// The [Registry] is the only state shared across work cycles. It is a sharded map: each shard has
// its own mutex, operations for one user always hit the same shard, and users on different shards
// never contend. State is not persisted.
package sessions

import (
	"fmt"
	"slices"
	"sync"

	"github.com/desertthunder/exfarm/internal/models"
	"github.com/desertthunder/exfarm/internal/shared"
)

const defaultShards = 32

type session struct {
	enabled map[models.Marketplace]struct{}
	working bool
	cycles  int
}

func (s *session) sortedEnabled() []models.Marketplace {
	ids := make([]models.Marketplace, 0, len(s.enabled))
	for id := range s.enabled {
		ids = append(ids, id)
	}
	return models.SortMarketplaces(ids)
}

type shard struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

// Registry stores one session per user.
type Registry struct {
	shards []*shard
}

// NewRegistry creates a registry with n shards; n <= 0 uses the default.
func NewRegistry(n int) *Registry {
	if n <= 0 {
		n = defaultShards
	}
	r := &Registry{shards: make([]*shard, n)}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: map[int64]*session{}}
	}
	return r
}

func (r *Registry) shardFor(userID int64) *shard {
	idx := uint64(userID) % uint64(len(r.shards))
	return r.shards[idx]
}

// with runs fn on the user's session under the shard lock, creating the session when create is set.
func (r *Registry) with(userID int64, create bool, fn func(*session)) bool {
	sh := r.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[userID]
	if !ok {
		if !create {
			return false
		}
		s = &session{enabled: map[models.Marketplace]struct{}{}}
		sh.sessions[userID] = s
	}
	fn(s)
	return true
}

// Enable adds m to the user's enabled set and returns the set.
func (r *Registry) Enable(userID int64, m models.Marketplace) []models.Marketplace {
	var ids []models.Marketplace
	r.with(userID, true, func(s *session) {
		s.enabled[m] = struct{}{}
		ids = s.sortedEnabled()
	})
	return ids
}

// Disable removes m from the user's enabled set and returns the set.
func (r *Registry) Disable(userID int64, m models.Marketplace) []models.Marketplace {
	var ids []models.Marketplace
	r.with(userID, true, func(s *session) {
		delete(s.enabled, m)
		ids = s.sortedEnabled()
	})
	return ids
}

// DisableAll clears the user's enabled set.
func (r *Registry) DisableAll(userID int64) {
	r.with(userID, false, func(s *session) {
		clear(s.enabled)
	})
}

// Toggle flips m in the user's enabled set. It reports whether m is now enabled.
func (r *Registry) Toggle(userID int64, m models.Marketplace) (bool, []models.Marketplace) {
	var (
		on  bool
		ids []models.Marketplace
	)
	r.with(userID, true, func(s *session) {
		if _, ok := s.enabled[m]; ok {
			delete(s.enabled, m)
		} else {
			s.enabled[m] = struct{}{}
			on = true
		}
		ids = s.sortedEnabled()
	})
	return on, ids
}

// SetWorking sets the working flag. Turning it on with no enabled marketplace fails with
// [shared.ErrNoMarketplaceSelected].
func (r *Registry) SetWorking(userID int64, working bool) error {
	var err error
	r.with(userID, true, func(s *session) {
		if working && len(s.enabled) == 0 {
			err = fmt.Errorf("%w: user %d", shared.ErrNoMarketplaceSelected, userID)
			return
		}
		s.working = working
	})
	return err
}

// IsWorking reports the working flag.
func (r *Registry) IsWorking(userID int64) bool {
	var working bool
	r.with(userID, false, func(s *session) { working = s.working })
	return working
}

// Enabled returns the user's sorted enabled set.
func (r *Registry) Enabled(userID int64) []models.Marketplace {
	var ids []models.Marketplace
	r.with(userID, false, func(s *session) { ids = s.sortedEnabled() })
	return ids
}

// Snapshot returns a copy of the user's session.
func (r *Registry) Snapshot(userID int64) (models.UserSession, bool) {
	snap := models.UserSession{UserID: userID}
	ok := r.with(userID, false, func(s *session) {
		snap.Enabled = s.sortedEnabled()
		snap.Working = s.working
		snap.CycleCount = s.cycles
	})
	return snap, ok
}

// NextCycle increments and returns the user's cycle counter.
func (r *Registry) NextCycle(userID int64) int {
	var n int
	r.with(userID, true, func(s *session) {
		s.cycles++
		n = s.cycles
	})
	return n
}

// Users returns the ids of every known user in ascending order.
func (r *Registry) Users() []int64 {
	var ids []int64
	for _, sh := range r.shards {
		sh.mu.Lock()
		for id := range sh.sessions {
			ids = append(ids, id)
		}
		sh.mu.Unlock()
	}
	slices.Sort(ids)
	return ids
}
