package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/averos/gatekeeper/internal/models"
	"github.com/averos/gatekeeper/internal/ratelimit"
	"github.com/averos/gatekeeper/internal/repository"
)

// AdminService carries out the operational calls: IP list mutations and user
// limit resets. Mutations update the engine's in-memory lists (the ones on
// the hot path) and write through to Postgres so every instance converges on
// restart.
type AdminService struct {
	engine *ratelimit.Engine
	repo   *repository.IPListRepository
}

func NewAdminService(engine *ratelimit.Engine, repo *repository.IPListRepository) *AdminService {
	return &AdminService{engine: engine, repo: repo}
}

// LoadLists hydrates the engine's IP lists from Postgres. Called once at
// startup; entries already expired are skipped, not deleted, because another
// instance may still be serving on an older clock.
func (s *AdminService) LoadLists(ctx context.Context) error {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ip lists: %w", err)
	}

	lists := s.engine.Lists()
	loaded := 0
	for _, e := range entries {
		switch e.List {
		case models.ListWhitelist:
			lists.AddToWhitelist(e.IP)
			loaded++
		case models.ListBlacklist:
			var expires time.Time
			if e.ExpiresAt != nil {
				if e.ExpiresAt.Before(time.Now()) {
					continue
				}
				expires = *e.ExpiresAt
			}
			lists.AddToBlacklist(e.IP, e.Reason, expires)
			loaded++
		}
	}

	log.Printf("Loaded %d IP list entries", loaded)
	return nil
}

func (s *AdminService) AddToWhitelist(ctx context.Context, ip string) error {
	s.engine.Lists().AddToWhitelist(ip)
	return s.repo.Upsert(ctx, &models.IPListEntry{
		IP:   ip,
		List: models.ListWhitelist,
	})
}

func (s *AdminService) RemoveFromWhitelist(ctx context.Context, ip string) error {
	s.engine.Lists().RemoveFromWhitelist(ip)
	return s.repo.Delete(ctx, ip, models.ListWhitelist)
}

func (s *AdminService) AddToBlacklist(ctx context.Context, ip, reason string, expiresAt time.Time) error {
	s.engine.Lists().AddToBlacklist(ip, reason, expiresAt)

	entry := &models.IPListEntry{
		IP:     ip,
		List:   models.ListBlacklist,
		Reason: reason,
	}
	if !expiresAt.IsZero() {
		entry.ExpiresAt = &expiresAt
	}
	return s.repo.Upsert(ctx, entry)
}

func (s *AdminService) RemoveFromBlacklist(ctx context.Context, ip string) error {
	s.engine.Lists().RemoveFromBlacklist(ip)
	return s.repo.Delete(ctx, ip, models.ListBlacklist)
}

// ResetUserLimits clears the user's consumption windows in the active
// backend.
func (s *AdminService) ResetUserLimits(ctx context.Context, userID string) error {
	return s.engine.ResetUserLimits(ctx, userID)
}

// Lists returns the current in-memory view for the admin GET surface.
func (s *AdminService) Lists() (whitelist []string, blacklist []ratelimit.BlacklistEntry) {
	return s.engine.Lists().Whitelisted(), s.engine.Lists().Blacklisted()
}
