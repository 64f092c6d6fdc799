package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// weiPerEth is the scale between wei and ether (10^18).
var weiPerEth = decimal.New(1, 18)

// Transaction is the normalized view of one raw transaction+receipt record.
// Once built by the ingest layer it is never mutated; downstream stages derive
// new values (aggregates, events, annotations) instead of writing back.
type Transaction struct {
	BlockNumber    uint64
	BlockTimestamp time.Time
	Hash           string
	From           string
	To             *string
	ValueWei       *big.Int
	ValueEth       decimal.Decimal // ValueWei / 10^18, computed once at normalization
	Nonce          *uint64
	Gas            *uint64
	GasPrice       *big.Int
	GasUsed        *uint64
	Status         *int
	Input          string
	ChainID        *int64

	// TokenType is a heuristic token identifier derived from the receipt logs.
	// It is not an authoritative contract resolution; nil when no log matched.
	TokenType *string
}

// Log is one receipt log entry. TxHash is a back-reference to the owning
// transaction, not ownership.
type Log struct {
	TxHash      string
	BlockNumber uint64
	LogIndex    uint64
	Address     string
	Data        string
	Removed     bool
	Topics      []string
}

// IntervalAggregate is the summed non-whale transfer volume for one
// (interval, token) bucket. Aggregates are rebuilt fresh per run.
type IntervalAggregate struct {
	IntervalID uint64
	TokenType  *string
	ValueEth   decimal.Decimal
}

// Direction classifies a detected volume shift.
type Direction string

const (
	DirectionPump Direction = "PUMP"
	DirectionDump Direction = "DUMP"
)

// PumpDumpEvent is a detected sustained volume shift for one token at one
// interval. Immutable once created.
type PumpDumpEvent struct {
	IntervalID  uint64
	TokenType   *string
	CurrentSum  decimal.Decimal
	PreviousSum decimal.Decimal
	Difference  decimal.Decimal
	Direction   Direction
}

// Annotation is the anomaly score attached to one transaction by the
// enrichment branch.
type Annotation struct {
	TxHash    string
	Score     float64
	IsAnomaly bool
}

// EthFromWei converts a wei amount to ether. The conversion is an exact
// exponent shift, not a division, so no precision is lost even for single
// wei. A nil amount converts to zero.
func EthFromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}

// WeiFromEth converts an ether amount back to wei. Inverse of EthFromWei for
// amounts that originated as integral wei.
func WeiFromEth(eth decimal.Decimal) *big.Int {
	return eth.Mul(weiPerEth).BigInt()
}

// TokenKey maps a nullable token type onto a comparable map/sort key. The
// empty string stands for "no token"; real log addresses are never empty.
func TokenKey(token *string) string {
	if token == nil {
		return ""
	}
	return *token
}
