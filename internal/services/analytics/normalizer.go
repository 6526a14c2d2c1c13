package analytics

import (
	"fmt"
	"sort"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

// Normalizer reshapes a raw options chain into the canonical snapshot:
// deduplicated on (expiry, strike, type) keeping the most recent
// observation, invalid quotes dropped, strikes ascending per expiry.
// Normalize is a pure transform: the same raw input always yields a
// bit-identical snapshot.
type Normalizer struct {
	minStrikes int
	log        *xlogger.Logger
}

// NewNormalizer builds a Normalizer. minStrikes is the floor of distinct
// strikes across all expiries below which there is no tradable smirk signal.
func NewNormalizer(minStrikes int, log *xlogger.Logger) *Normalizer {
	if minStrikes < 3 {
		minStrikes = 3
	}
	return &Normalizer{minStrikes: minStrikes, log: log}
}

type quoteKey struct {
	expiry int64
	strike float64
	typ    models.OptionType
}

// Normalize validates and reshapes raw into a canonical snapshot.
// Returns ErrDataQuality when fewer than the configured minimum distinct
// strikes survive validation.
func (n *Normalizer) Normalize(raw *models.RawChain) (models.OptionsChainSnapshot, error) {
	if raw == nil {
		return models.OptionsChainSnapshot{}, fmt.Errorf("normalize: %w: nil chain", ErrDataQuality)
	}

	dedup := make(map[quoteKey]models.OptionQuote, len(raw.Quotes))
	dropped := 0
	for _, q := range raw.Quotes {
		if q.Strike <= 0 || !q.Type.Valid() || q.Expiry.IsZero() {
			dropped++
			continue
		}
		k := quoteKey{expiry: q.Expiry.UnixNano(), strike: q.Strike, typ: q.Type}
		prev, ok := dedup[k]
		// Keep the most recently observed quote; later input position wins
		// ties so identical inputs always resolve identically.
		if !ok || !q.ObservedAt.Before(prev.ObservedAt) {
			dedup[k] = q
		}
	}
	if dropped > 0 && n.log != nil {
		n.log.Warn("normalizer dropped invalid quotes",
			xlogger.String("symbol", raw.Symbol), xlogger.Int("dropped", dropped))
	}

	byExpiry := make(map[int64][]models.OptionQuote)
	for k, q := range dedup {
		byExpiry[k.expiry] = append(byExpiry[k.expiry], q)
	}

	expiries := make([]models.ExpirySlice, 0, len(byExpiry))
	for _, qs := range byExpiry {
		sort.Slice(qs, func(i, j int) bool {
			if qs[i].Strike != qs[j].Strike {
				return qs[i].Strike < qs[j].Strike
			}
			return qs[i].Type < qs[j].Type
		})
		expiries = append(expiries, models.ExpirySlice{Expiry: qs[0].Expiry, Quotes: qs})
	}
	sort.Slice(expiries, func(i, j int) bool { return expiries[i].Expiry.Before(expiries[j].Expiry) })

	snap := models.OptionsChainSnapshot{
		Symbol:    raw.Symbol,
		SpotPrice: raw.SpotPrice,
		Timestamp: raw.Timestamp,
		Expiries:  expiries,
	}
	if got := snap.StrikeCount(); got < n.minStrikes {
		return models.OptionsChainSnapshot{}, fmt.Errorf(
			"normalize %s: %w: %d strikes, need %d", raw.Symbol, ErrDataQuality, got, n.minStrikes)
	}
	return snap, nil
}
