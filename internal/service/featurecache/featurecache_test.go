package featurecache

import (
	"context"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/features"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/cache"
)

func TestLatestReportsAbsentOnMiss(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	src := New(mem, time.Minute)

	got, err := src.Latest(context.Background(), "WTI-USD")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	for name, f := range got {
		if f.Present {
			t.Fatalf("feature %s present on empty cache", name)
		}
	}
	if len(got) != len(externalNames) {
		t.Fatalf("got %d features, want %d", len(got), len(externalNames))
	}
}

func TestPutThenLatest(t *testing.T) {
	mem := cache.NewMemoryCache()
	defer mem.Close()
	src := New(mem, time.Minute)
	ctx := context.Background()

	if err := src.Put(ctx, "WTI-USD", features.FeatureSentiment, -0.4, 0); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := src.Latest(ctx, "WTI-USD")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	sent := got[features.FeatureSentiment]
	if !sent.Present || sent.Value != -0.4 {
		t.Fatalf("sentiment = %+v, want present -0.4", sent)
	}
	if got[features.FeatureStorageLevel].Present {
		t.Fatalf("storage level must stay absent")
	}

	// Another symbol's cache is untouched.
	other, err := src.Latest(ctx, "BTC-USD")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if other[features.FeatureSentiment].Present {
		t.Fatalf("features must be namespaced per symbol")
	}
}
