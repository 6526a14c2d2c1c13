package deribit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/GuillaumeBld/WTI-Agent-Trading-Bot/internal/domain/models"
	xlogger "github.com/GuillaumeBld/WTI-Agent-Trading-Bot/pkg/logger"
)

func TestParseInstrument(t *testing.T) {
	cur, q, err := parseInstrument("BTC-4SEP26-58000-P")
	if err != nil {
		t.Fatalf("parseInstrument: %v", err)
	}
	if cur != "BTC" {
		t.Fatalf("currency = %s, want BTC", cur)
	}
	want := time.Date(2026, 9, 4, 8, 0, 0, 0, time.UTC)
	if !q.Expiry.Equal(want) {
		t.Fatalf("expiry = %v, want %v", q.Expiry, want)
	}
	if q.Strike != 58000 || q.Type != models.Put {
		t.Fatalf("got strike %v type %s", q.Strike, q.Type)
	}

	if _, q, err = parseInstrument("BTC-25DEC26-100000-C"); err != nil || q.Type != models.Call {
		t.Fatalf("call parse failed: %v %s", err, q.Type)
	}

	for _, bad := range []string{"BTC-PERPETUAL", "BTC-4SEP26-xx-P", "BTC-4SEP26-58000-Z", "BTC-99XYZ26-58000-P"} {
		if _, _, err := parseInstrument(bad); err == nil {
			t.Fatalf("parseInstrument(%q) must fail", bad)
		}
	}
}

func TestHandleAccumulatesSnapshots(t *testing.T) {
	c := New("wss://example", []string{"BTC"}, time.Second, time.Second, time.Second, xlogger.Nop()).(*Client)

	mark, _ := json.Marshal([]markPriceEntry{
		{InstrumentName: "BTC-4SEP26-58000-P", IV: 0.65, Timestamp: 1756281600000},
		{InstrumentName: "BTC-4SEP26-63000-C", IV: 0.45, Timestamp: 1756281600000},
		{InstrumentName: "BTC-PERPETUAL"}, // not an option, skipped
	})
	c.handle("markprice.options.btc_usd", mark)

	index, _ := json.Marshal(indexEntry{Price: 60500})
	c.handle("deribit_price_index.btc_usd", index)

	chains := c.snapshots()
	if len(chains) != 1 {
		t.Fatalf("got %d chains, want 1", len(chains))
	}
	chain := chains[0]
	if chain.Symbol != "BTC-USD" {
		t.Fatalf("symbol = %s, want BTC-USD", chain.Symbol)
	}
	if chain.SpotPrice != 60500 {
		t.Fatalf("spot = %v, want 60500", chain.SpotPrice)
	}
	if len(chain.Quotes) != 2 {
		t.Fatalf("got %d quotes, want 2", len(chain.Quotes))
	}

	// A later update for the same instrument replaces the stored quote.
	mark, _ = json.Marshal([]markPriceEntry{
		{InstrumentName: "BTC-4SEP26-58000-P", IV: 0.70, Timestamp: 1756281700000},
	})
	c.handle("markprice.options.btc_usd", mark)
	chains = c.snapshots()
	if len(chains[0].Quotes) != 2 {
		t.Fatalf("update must replace, not append: %d quotes", len(chains[0].Quotes))
	}
	found := false
	for _, q := range chains[0].Quotes {
		if q.Strike == 58000 && q.ImpliedVol == 0.70 {
			found = true
		}
	}
	if !found {
		t.Fatalf("updated IV not present in snapshot")
	}
}
