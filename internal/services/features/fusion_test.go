package features

import (
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/services/analytics"
)

var (
	nearExpiry = time.Date(2026, 9, 4, 8, 0, 0, 0, time.UTC)
	farExpiry  = time.Date(2026, 10, 2, 8, 0, 0, 0, time.UTC)
	cycleTime  = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)
)

func testSnapshot() models.OptionsChainSnapshot {
	return models.OptionsChainSnapshot{
		Symbol:    "BTC-USD",
		SpotPrice: 60500,
		Timestamp: cycleTime,
		Expiries: []models.ExpirySlice{
			{Expiry: nearExpiry},
			{Expiry: farExpiry},
		},
	}
}

func smirkResults() map[string]analytics.ExpiryResult {
	return map[string]analytics.ExpiryResult{
		nearExpiry.Format("2006-01-02"): {
			Metrics: models.SmirkMetrics{
				Skew: 0.20, Kurtosis: 2.1, Confidence: 0.9,
				Regime: models.RegimeSkewedBearish,
			},
		},
		farExpiry.Format("2006-01-02"): {
			Err: analytics.ErrInsufficientData,
		},
	}
}

func TestFuseFlattensMonitoredExpiries(t *testing.T) {
	mon, err := ParseMonitored([]string{"nearest", "30d"})
	if err != nil {
		t.Fatalf("parse monitored: %v", err)
	}
	f := NewFuser(mon)
	fv := f.Fuse(testSnapshot(), smirkResults(), nil)

	skew := fv.Get("smirk.nearest." + SmirkSkew)
	if !skew.Present || skew.Value != 0.20 {
		t.Fatalf("nearest skew = %+v, want present 0.20", skew)
	}
	lean := fv.Get("smirk.nearest." + SmirkLean)
	if !lean.Present || lean.Value != -1 {
		t.Fatalf("nearest lean = %+v, want present -1", lean)
	}
	// The 30d label resolves to the failed far expiry: absent, not zeroed.
	farSkew := fv.Get("smirk.30d." + SmirkSkew)
	if farSkew.Present {
		t.Fatalf("failed expiry skew must be absent, got %+v", farSkew)
	}
}

func TestFuseFailedExpiryLowersCompleteness(t *testing.T) {
	mon, _ := ParseMonitored([]string{"nearest", "30d"})
	f := NewFuser(mon)

	withFailure := f.Fuse(testSnapshot(), smirkResults(), nil)

	healthy := smirkResults()
	healthy[farExpiry.Format("2006-01-02")] = analytics.ExpiryResult{
		Metrics: models.SmirkMetrics{Skew: 0.01, Confidence: 0.8, Regime: models.RegimeFlat},
	}
	withoutFailure := f.Fuse(testSnapshot(), healthy, nil)

	if withFailure.Completeness() >= withoutFailure.Completeness() {
		t.Fatalf("completeness with failure %v, without %v; want strictly lower",
			withFailure.Completeness(), withoutFailure.Completeness())
	}
}

func TestFuseRejectsOutOfRangeExternal(t *testing.T) {
	mon, _ := ParseMonitored([]string{"nearest"})
	f := NewFuser(mon)
	external := map[string]models.Feature{
		FeatureSentiment:    models.PresentFeature(1.7), // out of [-1, 1]
		FeatureStorageLevel: models.PresentFeature(0.82),
		FeatureTankerCount:  models.AbsentFeature(),
	}
	fv := f.Fuse(testSnapshot(), smirkResults(), external)

	if fv.Get(FeatureSentiment).Present {
		t.Fatalf("out-of-range sentiment must be absent, not clamped")
	}
	storage := fv.Get(FeatureStorageLevel)
	if !storage.Present || storage.Value != 0.82 {
		t.Fatalf("storage = %+v, want present 0.82", storage)
	}
	if fv.Get(FeatureTankerCount).Present {
		t.Fatalf("upstream-absent tanker count must stay absent")
	}
}

func TestFuseDeterministic(t *testing.T) {
	mon, _ := ParseMonitored([]string{"nearest", "7d"})
	f := NewFuser(mon)
	external := map[string]models.Feature{
		FeatureSentiment: models.PresentFeature(-0.3),
		FeatureRSI:       models.PresentFeature(64),
	}
	a := f.Fuse(testSnapshot(), smirkResults(), external)
	b := f.Fuse(testSnapshot(), smirkResults(), external)
	for _, name := range a.Names() {
		if a.Get(name) != b.Get(name) {
			t.Fatalf("feature %s differs between identical fusions", name)
		}
	}
	if len(a.Values) != len(b.Values) {
		t.Fatalf("fusion size differs: %d vs %d", len(a.Values), len(b.Values))
	}
}

func TestParseMonitoredRejectsGarbage(t *testing.T) {
	if _, err := ParseMonitored([]string{"sometime"}); err == nil {
		t.Fatalf("expected error for unparseable label")
	}
}
