package authenticity

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/collectiq/collectiq/internal/models"
	"github.com/collectiq/collectiq/internal/persistence"
)

const refPrefix = "authentic-samples/"

// CacheObserver is notified of reference-cache hits and misses.
type CacheObserver interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// ReferenceStore loads known-authentic perceptual hashes from the object
// store, with a short-lived Redis cache in front so repeated analyses of
// popular cards skip the object listing.
type ReferenceStore struct {
	objects  persistence.ObjectStore
	cache    redis.Cmdable
	ttl      time.Duration
	observer CacheObserver
}

// NewReferenceStore wires the store. cache and observer may be nil,
// disabling caching and cache KPIs respectively.
func NewReferenceStore(objects persistence.ObjectStore, cache redis.Cmdable, ttl time.Duration, observer CacheObserver) *ReferenceStore {
	return &ReferenceStore{objects: objects, cache: cache, ttl: ttl, observer: observer}
}

// HashesFor returns the reference hashes for a card name. A missing
// reference set is not an error; the caller falls back to the neutral
// score.
func (s *ReferenceStore) HashesFor(ctx context.Context, cardName string) ([]models.ReferenceHash, error) {
	key := refCacheKey(cardName)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var hashes []models.ReferenceHash
			if err := json.Unmarshal(cached, &hashes); err == nil {
				if s.observer != nil {
					s.observer.RecordCacheHit()
				}
				return hashes, nil
			}
		}
		if s.observer != nil {
			s.observer.RecordCacheMiss()
		}
	}

	prefix := refPrefix + normalizeCardName(cardName) + "/"
	keys, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list reference hashes: %w", err)
	}

	var hashes []models.ReferenceHash
	for _, k := range keys {
		data, err := s.objects.Get(ctx, k)
		if err != nil {
			log.Warn().Str("key", k).Err(err).Msg("skipping unreadable reference hash")
			continue
		}
		var ref models.ReferenceHash
		if err := json.Unmarshal(data, &ref); err != nil {
			log.Warn().Str("key", k).Err(err).Msg("skipping malformed reference hash")
			continue
		}
		hashes = append(hashes, ref)
	}

	if s.cache != nil && len(hashes) > 0 {
		if data, err := json.Marshal(hashes); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl).Err(); err != nil {
				log.Debug().Err(err).Msg("reference hash cache write failed")
			}
		}
	}
	return hashes, nil
}

// Add stores a new reference hash for a card and invalidates the cache.
func (s *ReferenceStore) Add(ctx context.Context, ref models.ReferenceHash) error {
	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to marshal reference hash: %w", err)
	}
	key := refPrefix + normalizeCardName(ref.CardName) + "/" + ref.Hash + ".json"
	if err := s.objects.Put(ctx, key, data); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, refCacheKey(ref.CardName)).Err(); err != nil {
			log.Debug().Err(err).Msg("reference hash cache invalidation failed")
		}
	}
	return nil
}

func refCacheKey(cardName string) string {
	return "collectiq:refhash:" + normalizeCardName(cardName)
}

func normalizeCardName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
