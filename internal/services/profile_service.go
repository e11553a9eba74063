package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/verdad/services/notifier/internal/cache"
	"example.com/verdad/services/notifier/internal/models"
)

const profileCacheTTL = 10 * time.Minute

// ProfileLookup is the storage contract behind profile lookups
type ProfileLookup interface {
	GetByEmails(ctx context.Context, emails []string) ([]models.Profile, error)
	Search(ctx context.Context, text string) ([]models.Profile, error)
}

// ProfileService fronts profile lookups with a per-email cache. Lookups by
// email are hot (the commenting frontend resolves mention lists on every
// render); search results change with the query text and go straight to
// storage.
type ProfileService struct {
	store ProfileLookup
	cache *cache.RedisCache
}

// NewProfileService creates a new profile service
func NewProfileService(store ProfileLookup, profileCache *cache.RedisCache) *ProfileService {
	return &ProfileService{
		store: store,
		cache: profileCache,
	}
}

// GetByEmails resolves emails to profiles, serving cached entries where
// possible and fetching only the misses from storage. Emails with no
// profile stay absent from the result; callers filter, not error.
func (s *ProfileService) GetByEmails(ctx context.Context, emails []string) ([]models.Profile, error) {
	profiles := make([]models.Profile, 0, len(emails))
	var misses []string

	for _, email := range emails {
		var cached models.Profile
		if err := s.cache.Get(ctx, cache.ProfileCacheKey(email), &cached); err == nil {
			profiles = append(profiles, cached)
			continue
		}
		misses = append(misses, email)
	}

	if len(misses) == 0 {
		return profiles, nil
	}

	fetched, err := s.store.GetByEmails(ctx, misses)
	if err != nil {
		return nil, err
	}

	for _, profile := range fetched {
		if err := s.cache.Set(ctx, cache.ProfileCacheKey(profile.Email), profile, profileCacheTTL); err != nil {
			log.Warn().Err(err).Str("email", profile.Email).Msg("Failed to cache profile")
		}
	}

	return append(profiles, fetched...), nil
}

// Search finds profiles matching the query text
func (s *ProfileService) Search(ctx context.Context, text string) ([]models.Profile, error) {
	return s.store.Search(ctx, text)
}
