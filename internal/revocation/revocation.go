// Package revocation implements the in-memory JWT revocation set backing
// admin logout: a jti added here is rejected by token introspection until
// it would have expired anyway, at which point a periodic sweep reclaims
// it so the set doesn't grow without bound.
package revocation

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepSchedule = "@every 5m"

type entry struct {
	expiresAt time.Time
}

// Set is the process-wide revoked-jti registry.
type Set struct {
	mu      sync.RWMutex
	revoked map[string]entry
	now     func() time.Time
	logger  *zap.Logger
	cron    *cron.Cron
}

func New(logger *zap.Logger) *Set {
	return &Set{
		revoked: make(map[string]entry),
		now:     time.Now,
		logger:  logger,
	}
}

// Revoke marks jti as revoked until its token would naturally expire.
func (s *Set) Revoke(jti string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = entry{expiresAt: expiresAt}
}

// IsRevoked reports whether jti is currently on the revocation set.
func (s *Set) IsRevoked(jti string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[jti]
	return ok
}

// sweep drops entries whose backing token has already expired: keeping
// them around serves no purpose once the token itself would be rejected
// on expiry grounds.
func (s *Set) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for jti, e := range s.revoked {
		if now.After(e.expiresAt) {
			delete(s.revoked, jti)
			removed++
		}
	}
	if removed > 0 && s.logger != nil {
		s.logger.Info("revocation: swept expired entries", zap.Int("removed", removed))
	}
}

// StartSweeper begins the 5-minute periodic sweep. Call Stop to halt it.
func (s *Set) StartSweeper() {
	c := cron.New()
	if _, err := c.AddFunc(sweepSchedule, s.sweep); err != nil {
		if s.logger != nil {
			s.logger.Error("revocation: failed to schedule sweep", zap.Error(err))
		}
		return
	}
	s.cron = c
	c.Start()
}

// Stop halts the sweeper, if running.
func (s *Set) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

func (s *Set) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}
