package featurecache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	drepo "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/repository"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/cache"
)

// externalNames is the closed set of exogenous features the cache serves.
// A name missing from the cache is reported absent, never zero.
var externalNames = []string{
	features.FeatureSentiment,
	features.FeatureStorageLevel,
	features.FeatureTankerCount,
}

type entry struct {
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// Source is a cache-backed FeatureSource. Producers (the Kafka features
// consumer, backfill jobs) write through Put with a TTL; stale entries
// simply expire and read back as absent.
type Source struct {
	cache      cache.Service
	defaultTTL time.Duration
}

func New(c cache.Service, defaultTTL time.Duration) *Source {
	if defaultTTL <= 0 {
		defaultTTL = 30 * time.Minute
	}
	return &Source{cache: c, defaultTTL: defaultTTL}
}

// Latest returns every known external feature for the symbol, tagged
// present or absent.
func (s *Source) Latest(ctx context.Context, symbol string) (map[string]models.Feature, error) {
	keys := make([]string, len(externalNames))
	for i, name := range externalNames {
		keys[i] = key(symbol, name)
	}
	hits, err := cache.MGetTyped[entry](ctx, s.cache, keys...)
	if err != nil {
		return nil, fmt.Errorf("feature cache %s: %w", symbol, err)
	}

	out := make(map[string]models.Feature, len(externalNames))
	for i, name := range externalNames {
		if e, ok := hits[keys[i]]; ok {
			out[name] = models.PresentFeature(e.Value)
		} else {
			out[name] = models.AbsentFeature()
		}
	}
	return out, nil
}

// Put stores one feature observation under its TTL.
func (s *Source) Put(ctx context.Context, symbol, name string, value float64, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	// Stored as a JSON string so MGet serves it back verbatim from either
	// cache backend.
	b, err := json.Marshal(entry{Value: value, ObservedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("feature cache put %s/%s: %w", symbol, name, err)
	}
	if err := s.cache.Set(ctx, key(symbol, name), string(b), ttl); err != nil {
		return fmt.Errorf("feature cache put %s/%s: %w", symbol, name, err)
	}
	return nil
}

func key(symbol, name string) string {
	return cache.Key("features", symbol, name)
}

var _ drepo.FeatureSource = (*Source)(nil)
