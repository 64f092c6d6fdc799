package detect

import (
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chainwatch/pumpwatch/internal/config"
	"github.com/chainwatch/pumpwatch/internal/model"
)

// LookbackMode selects how the detector pairs a current interval with its
// comparison interval.
type LookbackMode string

const (
	// LookbackPositional compares by index within a token's observed
	// intervals. Intervals where the token had no non-whale volume are
	// absent, so with sparse tokens the comparison can span more real time
	// than lookback*blocksPerInterval blocks.
	LookbackPositional LookbackMode = "positional"

	// LookbackInterval compares by actual interval-number distance, treating
	// absent intervals as zero volume.
	LookbackInterval LookbackMode = "interval"
)

// evidenceIntervals is the fixed audit window: an event's evidence covers the
// event interval and the two before it, independent of the detector lookback.
const evidenceIntervals = 3

// Detector runs the pump/dump pipeline: interval aggregation of non-whale
// volume per token, lookback comparison, and evidence retrieval. All
// parameters are fixed at construction; a Detector is read-only afterwards.
type Detector struct {
	blocksPerInterval uint64
	threshold         decimal.Decimal
	whaleCap          decimal.Decimal
	lookback          int
	mode              LookbackMode
	logger            zerolog.Logger
}

// NewDetector builds a detector from validated configuration.
func NewDetector(cfg config.DetectorConfig, logger zerolog.Logger) *Detector {
	return &Detector{
		blocksPerInterval: cfg.BlocksPerInterval,
		threshold:         decimal.NewFromFloat(cfg.PumpThresholdEth),
		whaleCap:          decimal.NewFromFloat(cfg.WhaleCapEth),
		lookback:          cfg.LookbackIntervals,
		mode:              LookbackMode(cfg.LookbackMode),
		logger:            logger.With().Str("component", "detector").Logger(),
	}
}

// IntervalID maps a block number onto its 1-based interval.
func (d *Detector) IntervalID(blockNumber uint64) uint64 {
	return blockNumber/d.blocksPerInterval + 1
}

// aggKey groups transactions for summing. The empty token stands for
// transactions with no token type.
type aggKey struct {
	token    string
	interval uint64
}

// Aggregate sums non-whale transfer volume per (interval, token). It is a
// pure function over its input: transactions are never modified, and the same
// input always produces the same aggregates in the same order (token
// ascending with the nil token first, then interval ascending).
func (d *Detector) Aggregate(txs []model.Transaction) []model.IntervalAggregate {
	ordered := make([]model.Transaction, len(txs))
	copy(ordered, txs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].BlockNumber < ordered[j].BlockNumber
	})

	sums := make(map[aggKey]decimal.Decimal)
	for _, tx := range ordered {
		if tx.ValueEth.GreaterThanOrEqual(d.whaleCap) {
			continue
		}
		key := aggKey{token: model.TokenKey(tx.TokenType), interval: d.IntervalID(tx.BlockNumber)}
		sums[key] = sums[key].Add(tx.ValueEth)
	}

	keys := make([]aggKey, 0, len(sums))
	for key := range sums {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].token != keys[j].token {
			return keys[i].token < keys[j].token
		}
		return keys[i].interval < keys[j].interval
	})

	aggs := make([]model.IntervalAggregate, 0, len(keys))
	for _, key := range keys {
		agg := model.IntervalAggregate{
			IntervalID: key.interval,
			ValueEth:   sums[key],
		}
		if key.token != "" {
			token := key.token
			agg.TokenType = &token
		}
		aggs = append(aggs, agg)
	}
	return aggs
}

// Detect runs the lookback comparison over each token's aggregates and
// returns the classified events, ordered by token then interval. Tokens with
// too few intervals for the lookback simply yield no events.
func (d *Detector) Detect(aggs []model.IntervalAggregate) []model.PumpDumpEvent {
	partitions := make(map[string][]model.IntervalAggregate)
	for _, agg := range aggs {
		key := model.TokenKey(agg.TokenType)
		partitions[key] = append(partitions[key], agg)
	}

	tokens := make([]string, 0, len(partitions))
	for token := range partitions {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	var events []model.PumpDumpEvent
	for _, token := range tokens {
		partition := partitions[token]
		sort.Slice(partition, func(i, j int) bool {
			return partition[i].IntervalID < partition[j].IntervalID
		})
		if d.mode == LookbackInterval {
			partition = densify(partition)
		}

		if len(partition) <= d.lookback {
			d.logger.Debug().
				Str("token", token).
				Int("intervals", len(partition)).
				Int("lookback", d.lookback).
				Msg("Token has too few intervals for lookback")
			continue
		}

		for i := d.lookback; i < len(partition); i++ {
			current := partition[i]
			previous := partition[i-d.lookback]
			difference := current.ValueEth.Sub(previous.ValueEth)

			var direction model.Direction
			switch {
			case difference.GreaterThan(d.threshold):
				direction = model.DirectionPump
			case difference.LessThan(d.threshold.Neg()):
				direction = model.DirectionDump
			default:
				continue
			}

			events = append(events, model.PumpDumpEvent{
				IntervalID:  current.IntervalID,
				TokenType:   current.TokenType,
				CurrentSum:  current.ValueEth,
				PreviousSum: previous.ValueEth,
				Difference:  difference,
				Direction:   direction,
			})
			d.logger.Info().
				Str("token", token).
				Uint64("interval", current.IntervalID).
				Str("direction", string(direction)).
				Str("difference", difference.String()).
				Msg("Volume shift detected")
		}
	}
	return events
}

// densify fills interval gaps with zero-volume aggregates so the lookback
// spans actual interval distance. The token pointer of the partition is
// reused for the filler entries.
func densify(partition []model.IntervalAggregate) []model.IntervalAggregate {
	if len(partition) < 2 {
		return partition
	}

	token := partition[0].TokenType
	first := partition[0].IntervalID
	last := partition[len(partition)-1].IntervalID

	dense := make([]model.IntervalAggregate, 0, last-first+1)
	next := 0
	for id := first; id <= last; id++ {
		if next < len(partition) && partition[next].IntervalID == id {
			dense = append(dense, partition[next])
			next++
			continue
		}
		dense = append(dense, model.IntervalAggregate{
			IntervalID: id,
			TokenType:  token,
			ValueEth:   decimal.Zero,
		})
	}
	return dense
}

// Evidence returns the transactions backing one event: same token type,
// interval within the fixed 3-interval audit window ending at the event
// interval. The full normalized set is queried, whales included. Results are
// ordered by block number then hash.
func (d *Detector) Evidence(event model.PumpDumpEvent, txs []model.Transaction) []model.Transaction {
	low := uint64(1)
	if event.IntervalID > evidenceIntervals-1 {
		low = event.IntervalID - (evidenceIntervals - 1)
	}
	token := model.TokenKey(event.TokenType)

	var matched []model.Transaction
	for _, tx := range txs {
		if model.TokenKey(tx.TokenType) != token {
			continue
		}
		id := d.IntervalID(tx.BlockNumber)
		if id >= low && id <= event.IntervalID {
			matched = append(matched, tx)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].BlockNumber != matched[j].BlockNumber {
			return matched[i].BlockNumber < matched[j].BlockNumber
		}
		return matched[i].Hash < matched[j].Hash
	})
	return matched
}
