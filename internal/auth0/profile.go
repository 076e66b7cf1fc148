package auth0

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"diabuddy/internal/models"
	"diabuddy/internal/redis"
)

const profileCacheTTL = 5 * time.Minute

// ManagementAPI is the slice of the provider client the profile store needs.
type ManagementAPI interface {
	GetUserMetadata(ctx context.Context, userID string) (map[string]any, error)
	UpdateUserMetadata(ctx context.Context, userID string, metadata map[string]any) error
	DeleteUser(ctx context.Context, userID string) error
}

// ProfileStore projects the provider's opaque metadata record onto the typed
// profile fields the chain needs. Reads go through a short-lived redis cache
// when one is configured.
type ProfileStore struct {
	api   ManagementAPI
	cache *redis.Client
}

func NewProfileStore(api ManagementAPI, cache *redis.Client) *ProfileStore {
	return &ProfileStore{api: api, cache: cache}
}

// ProfileFields returns the user's typed profile, or ErrUserNotFound when
// the provider has no record for the id.
func (p *ProfileStore) ProfileFields(ctx context.Context, userID string) (*models.Profile, error) {
	if p.cache != nil {
		if cached, err := p.cache.Get(ctx, profileCacheKey(userID)); err == nil {
			var profile models.Profile
			if err := json.Unmarshal([]byte(cached), &profile); err == nil {
				return &profile, nil
			}
		}
	}

	metadata, err := p.api.GetUserMetadata(ctx, userID)
	if err != nil {
		return nil, err
	}
	profile, err := profileFromMetadata(metadata)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if data, err := json.Marshal(profile); err == nil {
			if err := p.cache.Set(ctx, profileCacheKey(userID), string(data), profileCacheTTL); err != nil {
				log.Printf("cache profile for %s: %v", userID, err)
			}
		}
	}
	return profile, nil
}

// Update merges the non-nil fields into the provider's metadata and returns
// the resulting profile.
func (p *ProfileStore) Update(ctx context.Context, userID string, update models.ProfileUpdate) (*models.Profile, error) {
	metadata, err := p.api.GetUserMetadata(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Nickname != nil {
		metadata["nickname"] = *update.Nickname
	}
	if update.Age != nil {
		metadata["age"] = *update.Age
	}
	if update.Gender != nil {
		metadata["gender"] = string(*update.Gender)
	}
	if update.DiabetesType != nil {
		metadata["diabetes_type"] = string(*update.DiabetesType)
	}
	if update.PreferredLanguage != nil {
		metadata["preferred_language"] = string(*update.PreferredLanguage)
	}

	if err := p.api.UpdateUserMetadata(ctx, userID, metadata); err != nil {
		return nil, err
	}
	p.invalidate(ctx, userID)
	return profileFromMetadata(metadata)
}

// DeleteUser removes the identity record. Idempotence is the provider's
// business; a repeated delete surfaces ErrUserNotFound.
func (p *ProfileStore) DeleteUser(ctx context.Context, userID string) error {
	if err := p.api.DeleteUser(ctx, userID); err != nil {
		return err
	}
	p.invalidate(ctx, userID)
	return nil
}

func (p *ProfileStore) invalidate(ctx context.Context, userID string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Del(ctx, profileCacheKey(userID)); err != nil {
		log.Printf("invalidate profile cache for %s: %v", userID, err)
	}
}

func profileCacheKey(userID string) string {
	return "profile:" + userID
}

func profileFromMetadata(metadata map[string]any) (*models.Profile, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	var profile models.Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("decode profile fields: %w", err)
	}
	return &profile, nil
}
