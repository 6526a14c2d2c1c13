package analytics

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
)

var testExpiry = time.Date(2026, 9, 4, 8, 0, 0, 0, time.UTC)

func quote(strike float64, typ models.OptionType, iv float64) models.OptionQuote {
	return models.OptionQuote{
		Expiry:     testExpiry,
		Strike:     strike,
		Type:       typ,
		ImpliedVol: iv,
		ObservedAt: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
	}
}

func rawChain(quotes ...models.OptionQuote) *models.RawChain {
	return &models.RawChain{
		Symbol:    "BTC-USD",
		SpotPrice: 60500,
		Timestamp: time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC),
		Quotes:    quotes,
	}
}

func TestNormalizeSortsAndDedupes(t *testing.T) {
	n := NewNormalizer(3, nil)

	stale := quote(59000, models.Put, 0.70)
	stale.ObservedAt = stale.ObservedAt.Add(-time.Minute)
	fresh := quote(59000, models.Put, 0.72)

	snap, err := n.Normalize(rawChain(
		quote(61000, models.Call, 0.68),
		stale,
		quote(58000, models.Put, 0.75),
		fresh,
		quote(60000, models.Call, 0.66),
	))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(snap.Expiries) != 1 {
		t.Fatalf("expected 1 expiry, got %d", len(snap.Expiries))
	}
	got := snap.Expiries[0].Strikes()
	want := []float64{58000, 59000, 60000, 61000}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("strikes = %v, want %v", got, want)
	}
	slice, _ := snap.Slice(testExpiry)
	for _, q := range slice.Quotes {
		if q.Strike == 59000 && q.ImpliedVol != 0.72 {
			t.Fatalf("dedup kept stale quote iv=%v", q.ImpliedVol)
		}
	}
}

func TestNormalizeDropsInvalidQuotes(t *testing.T) {
	n := NewNormalizer(3, nil)
	bad := quote(-100, models.Put, 0.7)
	badType := quote(60000, models.OptionType("straddle"), 0.7)

	snap, err := n.Normalize(rawChain(
		bad, badType,
		quote(58000, models.Put, 0.75),
		quote(59000, models.Put, 0.72),
		quote(61000, models.Call, 0.68),
	))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got := snap.StrikeCount(); got != 3 {
		t.Fatalf("strike count = %d, want 3", got)
	}
}

func TestNormalizeFailsBelowMinimumStrikes(t *testing.T) {
	n := NewNormalizer(3, nil)
	_, err := n.Normalize(rawChain(
		quote(58000, models.Put, 0.75),
		quote(61000, models.Call, 0.68),
	))
	if !errors.Is(err, ErrDataQuality) {
		t.Fatalf("expected ErrDataQuality, got %v", err)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := NewNormalizer(3, nil)
	raw := rawChain(
		quote(61000, models.Call, 0.68),
		quote(58000, models.Put, 0.75),
		quote(59000, models.Put, 0.72),
		quote(60000, models.Call, 0.66),
	)
	a, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("first normalize: %v", err)
	}
	b, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("second normalize: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("normalize not idempotent:\n%+v\n%+v", a, b)
	}
}
