package detect

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainwatch/pumpwatch/internal/config"
	"github.com/chainwatch/pumpwatch/internal/model"
)

const (
	tokenA = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
	tokenB = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

func defaultConfig() config.DetectorConfig {
	return config.DetectorConfig{
		BlocksPerInterval: 50,
		PumpThresholdEth:  2500,
		WhaleCapEth:       500,
		LookbackIntervals: 3,
		LookbackMode:      "positional",
	}
}

func newDetector(t *testing.T, cfg config.DetectorConfig) *Detector {
	t.Helper()
	return NewDetector(cfg, zerolog.Nop())
}

func tx(block uint64, token string, eth float64) model.Transaction {
	txn := model.Transaction{
		BlockNumber: block,
		ValueEth:    decimal.NewFromFloat(eth),
	}
	if token != "" {
		txn.TokenType = &token
	}
	return txn
}

func agg(interval uint64, token string, eth float64) model.IntervalAggregate {
	a := model.IntervalAggregate{
		IntervalID: interval,
		ValueEth:   decimal.NewFromFloat(eth),
	}
	if token != "" {
		a.TokenType = &token
	}
	return a
}

func TestIntervalID(t *testing.T) {
	d := newDetector(t, defaultConfig())

	tests := []struct {
		block uint64
		want  uint64
	}{
		{0, 1},
		{49, 1},
		{50, 2},
		{99, 2},
		{100, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, d.IntervalID(tt.block), "block %d", tt.block)
	}
}

func TestAggregate(t *testing.T) {
	d := newDetector(t, defaultConfig())

	t.Run("groups and sums by interval and token", func(t *testing.T) {
		txs := []model.Transaction{
			tx(10, tokenA, 100),
			tx(20, tokenA, 50),
			tx(60, tokenA, 25),
			tx(10, tokenB, 7),
			tx(15, "", 3),
		}

		aggs := d.Aggregate(txs)
		require.Len(t, aggs, 4)

		// Nil token sorts first, then tokens ascending, intervals ascending.
		assert.Nil(t, aggs[0].TokenType)
		assert.Equal(t, uint64(1), aggs[0].IntervalID)
		assert.Equal(t, "3", aggs[0].ValueEth.String())

		assert.Equal(t, tokenA, *aggs[1].TokenType)
		assert.Equal(t, uint64(1), aggs[1].IntervalID)
		assert.Equal(t, "150", aggs[1].ValueEth.String())

		assert.Equal(t, tokenA, *aggs[2].TokenType)
		assert.Equal(t, uint64(2), aggs[2].IntervalID)
		assert.Equal(t, "25", aggs[2].ValueEth.String())

		assert.Equal(t, tokenB, *aggs[3].TokenType)
		assert.Equal(t, "7", aggs[3].ValueEth.String())
	})

	t.Run("whales contribute nothing", func(t *testing.T) {
		txs := []model.Transaction{
			tx(10, tokenA, 100),
			tx(11, tokenA, 500),  // exactly at the cap: excluded
			tx(12, tokenA, 1200), // above the cap: excluded
			tx(13, tokenA, 499.5),
		}

		aggs := d.Aggregate(txs)
		require.Len(t, aggs, 1)
		assert.Equal(t, "599.5", aggs[0].ValueEth.String())
	})

	t.Run("pure and idempotent", func(t *testing.T) {
		txs := []model.Transaction{
			tx(120, tokenB, 10),
			tx(10, tokenA, 100),
			tx(60, tokenA, 25),
		}

		first := d.Aggregate(txs)
		second := d.Aggregate(txs)
		assert.Equal(t, first, second)

		// Input order must not matter either.
		reversed := []model.Transaction{txs[2], txs[1], txs[0]}
		third := d.Aggregate(reversed)
		assert.Equal(t, first, third)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, d.Aggregate(nil))
	})
}

func TestDetect(t *testing.T) {
	t.Run("pump at threshold breach", func(t *testing.T) {
		d := newDetector(t, defaultConfig())
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 100),
			agg(2, tokenA, 100),
			agg(3, tokenA, 100),
			agg(4, tokenA, 3000),
		}

		events := d.Detect(aggs)
		require.Len(t, events, 1)

		event := events[0]
		assert.Equal(t, model.DirectionPump, event.Direction)
		assert.Equal(t, uint64(4), event.IntervalID)
		assert.Equal(t, tokenA, *event.TokenType)
		assert.Equal(t, "3000", event.CurrentSum.String())
		assert.Equal(t, "100", event.PreviousSum.String())
		assert.Equal(t, "2900", event.Difference.String())
	})

	t.Run("dump symmetry", func(t *testing.T) {
		d := newDetector(t, defaultConfig())
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 3000),
			agg(2, tokenA, 100),
			agg(3, tokenA, 100),
			agg(4, tokenA, 100),
		}

		events := d.Detect(aggs)
		require.Len(t, events, 1)

		event := events[0]
		assert.Equal(t, model.DirectionDump, event.Direction)
		assert.Equal(t, uint64(4), event.IntervalID)
		assert.Equal(t, "-2900", event.Difference.String())
	})

	t.Run("difference at exactly the threshold is no event", func(t *testing.T) {
		d := newDetector(t, defaultConfig())
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 100),
			agg(2, tokenA, 100),
			agg(3, tokenA, 100),
			agg(4, tokenA, 2600), // difference 2500, not > 2500
		}
		assert.Empty(t, d.Detect(aggs))
	})

	t.Run("insufficient intervals yield no events, no error", func(t *testing.T) {
		d := newDetector(t, defaultConfig())
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 100),
			agg(2, tokenA, 100),
			agg(3, tokenA, 5000),
		}
		assert.Empty(t, d.Detect(aggs))
	})

	t.Run("tokens are independent partitions", func(t *testing.T) {
		d := newDetector(t, defaultConfig())
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 100),
			agg(2, tokenA, 100),
			agg(3, tokenA, 100),
			agg(4, tokenA, 3000),
			agg(1, tokenB, 100),
			agg(2, tokenB, 100),
			agg(3, tokenB, 100),
			agg(4, tokenB, 200),
		}

		events := d.Detect(aggs)
		require.Len(t, events, 1)
		assert.Equal(t, tokenA, *events[0].TokenType)
	})

	t.Run("positional lookback spans gaps silently", func(t *testing.T) {
		d := newDetector(t, defaultConfig())
		// Token absent from intervals 4..9: positions are 1,2,3,4 even
		// though interval 10 is far from interval 3.
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 100),
			agg(2, tokenA, 100),
			agg(3, tokenA, 100),
			agg(10, tokenA, 3000),
		}

		events := d.Detect(aggs)
		require.Len(t, events, 1)
		assert.Equal(t, uint64(10), events[0].IntervalID)
		assert.Equal(t, "100", events[0].PreviousSum.String())
	})

	t.Run("interval mode zero-fills gaps", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.LookbackMode = "interval"
		d := newDetector(t, cfg)
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 100),
			agg(2, tokenA, 100),
			agg(3, tokenA, 100),
			agg(10, tokenA, 3000),
		}

		events := d.Detect(aggs)
		require.Len(t, events, 1)
		assert.Equal(t, uint64(10), events[0].IntervalID)
		// Interval 7 had no volume, so the previous sum is zero.
		assert.Equal(t, "0", events[0].PreviousSum.String())
		assert.Equal(t, "3000", events[0].Difference.String())
	})

	t.Run("interval mode can flag a collapse to zero", func(t *testing.T) {
		cfg := defaultConfig()
		cfg.LookbackMode = "interval"
		d := newDetector(t, cfg)
		aggs := []model.IntervalAggregate{
			agg(1, tokenA, 3000),
			agg(5, tokenA, 10),
		}

		events := d.Detect(aggs)
		require.Len(t, events, 1)
		assert.Equal(t, model.DirectionDump, events[0].Direction)
		assert.Equal(t, uint64(4), events[0].IntervalID)
		assert.Equal(t, "-3000", events[0].Difference.String())
	})

	t.Run("stable event order across tokens", func(t *testing.T) {
		d := newDetector(t, defaultConfig())
		aggs := []model.IntervalAggregate{
			agg(1, tokenB, 100), agg(2, tokenB, 100), agg(3, tokenB, 100), agg(4, tokenB, 3000),
			agg(1, tokenA, 100), agg(2, tokenA, 100), agg(3, tokenA, 100), agg(4, tokenA, 3000),
		}

		events := d.Detect(aggs)
		require.Len(t, events, 2)
		assert.Equal(t, tokenA, *events[0].TokenType)
		assert.Equal(t, tokenB, *events[1].TokenType)
	})
}

func TestEvidence(t *testing.T) {
	d := newDetector(t, defaultConfig())

	t.Run("fixed three-interval window", func(t *testing.T) {
		txs := []model.Transaction{
			tx(60, tokenA, 10),   // interval 2: outside
			tx(110, tokenA, 10),  // interval 3
			tx(160, tokenA, 10),  // interval 4
			tx(210, tokenA, 10),  // interval 5
			tx(260, tokenA, 10),  // interval 6: outside
			tx(210, tokenB, 10),  // interval 5, other token
			tx(210, tokenA, 900), // whale, still evidence
		}

		event := model.PumpDumpEvent{IntervalID: 5, Direction: model.DirectionPump}
		event.TokenType = strPtr(tokenA)

		evidence := d.Evidence(event, txs)
		require.Len(t, evidence, 4)
		for _, e := range evidence {
			id := d.IntervalID(e.BlockNumber)
			assert.GreaterOrEqual(t, id, uint64(3))
			assert.LessOrEqual(t, id, uint64(5))
			assert.Equal(t, tokenA, *e.TokenType)
		}
	})

	t.Run("window clamps at interval one", func(t *testing.T) {
		txs := []model.Transaction{
			tx(0, tokenA, 10),  // interval 1
			tx(60, tokenA, 10), // interval 2
		}
		event := model.PumpDumpEvent{IntervalID: 2, TokenType: strPtr(tokenA)}

		evidence := d.Evidence(event, txs)
		assert.Len(t, evidence, 2)
	})

	t.Run("nil token event matches only tokenless transactions", func(t *testing.T) {
		txs := []model.Transaction{
			tx(10, "", 10),
			tx(20, tokenA, 10),
		}
		event := model.PumpDumpEvent{IntervalID: 1}

		evidence := d.Evidence(event, txs)
		require.Len(t, evidence, 1)
		assert.Nil(t, evidence[0].TokenType)
	})
}

func TestTopSenders(t *testing.T) {
	txs := []model.Transaction{
		{From: "0xaa"}, {From: "0xaa"}, {From: "0xaa"},
		{From: "0xbb"}, {From: "0xbb"},
		{From: "0xcc"},
	}

	senders := TopSenders(txs, 2)
	require.Len(t, senders, 2)
	assert.Equal(t, SenderActivity{Address: "0xaa", TxCount: 3}, senders[0])
	assert.Equal(t, SenderActivity{Address: "0xbb", TxCount: 2}, senders[1])
}

func strPtr(s string) *string {
	return &s
}
