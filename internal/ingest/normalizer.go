package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/chainwatch/pumpwatch/internal/model"
)

// ErrMalformedJSON marks a record whose top-level JSON could not be parsed.
// The reader applies the configured abort/skip policy to these; every other
// normalization error is fatal.
var ErrMalformedJSON = errors.New("record is not valid JSON")

// rawRecord mirrors one JSONL line: a transaction bundled with its receipt.
// Numeric fields stay raw because dumps mix 0x-hex strings and plain numbers.
type rawRecord struct {
	BlockNumber    json.RawMessage `json:"block_number"`
	BlockTimestamp json.RawMessage `json:"block_timestamp"`
	Transaction    *rawTransaction `json:"transaction"`
	Receipt        *rawReceipt     `json:"receipt"`
}

type rawTransaction struct {
	Hash     string          `json:"hash"`
	From     string          `json:"from"`
	To       *string         `json:"to"`
	Nonce    json.RawMessage `json:"nonce"`
	Value    json.RawMessage `json:"value"`
	Gas      json.RawMessage `json:"gas"`
	GasPrice json.RawMessage `json:"gasPrice"`
	Input    string          `json:"input"`
	ChainID  json.RawMessage `json:"chainId"`
}

type rawReceipt struct {
	Status          json.RawMessage `json:"status"`
	GasUsed         json.RawMessage `json:"gasUsed"`
	ContractAddress *string         `json:"contractAddress"`
	Logs            []rawLog        `json:"logs"`
}

type rawLog struct {
	LogIndex json.RawMessage `json:"logIndex"`
	Address  string          `json:"address"`
	Data     string          `json:"data"`
	Removed  bool            `json:"removed"`
	Topics   []string        `json:"topics"`
}

// Normalizer turns raw JSONL records into immutable model entities.
type Normalizer struct {
	classifier TokenClassifier
}

// NewNormalizer creates a normalizer using the given token heuristic.
func NewNormalizer(classifier TokenClassifier) *Normalizer {
	return &Normalizer{classifier: classifier}
}

// Normalize parses one line into a transaction and its receipt logs.
//
// Missing nested fields degrade to zero values or nil, never an error. The
// two failure cases are a line that is not JSON at all (wraps
// ErrMalformedJSON) and a block_number that does not coerce to a non-negative
// integer, which poisons interval assignment and is therefore a hard error.
func (n *Normalizer) Normalize(line []byte) (model.Transaction, []model.Log, error) {
	var raw rawRecord
	if err := json.Unmarshal(line, &raw); err != nil {
		return model.Transaction{}, nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	blockNumber, err := blockNumberFromJSON(raw.BlockNumber)
	if err != nil {
		return model.Transaction{}, nil, fmt.Errorf("failed to parse block_number: %w", err)
	}

	tx := model.Transaction{
		BlockNumber:    blockNumber,
		BlockTimestamp: timestampFromJSON(raw.BlockTimestamp),
	}

	if rt := raw.Transaction; rt != nil {
		tx.Hash = rt.Hash
		tx.From = normalizeAddress(rt.From)
		if rt.To != nil {
			to := normalizeAddress(*rt.To)
			tx.To = &to
		}
		tx.ValueWei = weiFromJSON(rt.Value)
		tx.Nonce = uint64FromJSON(rt.Nonce)
		tx.Gas = uint64FromJSON(rt.Gas)
		tx.GasPrice = bigFromJSON(rt.GasPrice)
		tx.Input = rt.Input
		if chainID := bigFromJSON(rt.ChainID); chainID != nil && chainID.IsInt64() {
			id := chainID.Int64()
			tx.ChainID = &id
		}
	}
	if tx.ValueWei == nil {
		tx.ValueWei = new(big.Int)
	}
	tx.ValueEth = model.EthFromWei(tx.ValueWei)

	var logs []model.Log
	if rr := raw.Receipt; rr != nil {
		tx.GasUsed = uint64FromJSON(rr.GasUsed)
		if status := uint64FromJSON(rr.Status); status != nil {
			s := int(*status)
			tx.Status = &s
		}
		logs = n.normalizeLogs(tx.Hash, blockNumber, rr.Logs)
	}
	tx.TokenType = n.classifier.TokenType(logs)

	return tx, logs, nil
}

func (n *Normalizer) normalizeLogs(txHash string, blockNumber uint64, raws []rawLog) []model.Log {
	if len(raws) == 0 {
		return nil
	}
	logs := make([]model.Log, 0, len(raws))
	for _, rl := range raws {
		log := model.Log{
			TxHash:      txHash,
			BlockNumber: blockNumber,
			Address:     normalizeAddress(rl.Address),
			Data:        rl.Data,
			Removed:     rl.Removed,
			Topics:      rl.Topics,
		}
		if idx := uint64FromJSON(rl.LogIndex); idx != nil {
			log.LogIndex = *idx
		}
		logs = append(logs, log)
	}
	return logs
}

// normalizeAddress rewrites hex addresses to their EIP-55 checksummed form so
// token types compare equal regardless of source casing. Non-address strings
// pass through untouched.
func normalizeAddress(s string) string {
	if common.IsHexAddress(s) {
		return common.HexToAddress(s).Hex()
	}
	return s
}

// blockNumberFromJSON coerces a block number that may arrive as a JSON number
// or a 0x-hex string. Anything else is an error.
func blockNumberFromJSON(raw json.RawMessage) (uint64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("field is missing")
	}
	v := bigFromJSON(raw)
	if v == nil {
		return 0, fmt.Errorf("value %q is not an integer", string(raw))
	}
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("value %s out of range", v)
	}
	return v.Uint64(), nil
}

// weiFromJSON resolves a transfer value that may be a 0x-hex string or a
// plain number. Any other shape resolves to zero wei rather than failing;
// unlike the laxer bigFromJSON, a non-hex string is not a value.
func weiFromJSON(raw json.RawMessage) *big.Int {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return new(big.Int)
	}
	if v := bigFromJSON(raw); v != nil && v.Sign() >= 0 {
		return v
	}
	return new(big.Int)
}

// bigFromJSON parses a raw JSON value as an integer, accepting 0x-hex
// strings, decimal strings, and JSON numbers. Returns nil when the value is
// absent or has some other shape.
func bigFromJSON(raw json.RawMessage) *big.Int {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			if v, err := hexutil.DecodeBig(s); err == nil {
				return v
			}
			// hexutil rejects leading zeros; dumps contain them anyway.
			if v, ok := new(big.Int).SetString(s[2:], 16); ok {
				return v
			}
			return nil
		}
		if v, ok := new(big.Int).SetString(s, 10); ok {
			return v
		}
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return nil
	}
	if v, ok := new(big.Int).SetString(num.String(), 10); ok {
		return v
	}
	if f, err := num.Float64(); err == nil {
		v, _ := new(big.Float).SetFloat64(f).Int(nil)
		return v
	}
	return nil
}

func uint64FromJSON(raw json.RawMessage) *uint64 {
	v := bigFromJSON(raw)
	if v == nil || v.Sign() < 0 || !v.IsUint64() {
		return nil
	}
	u := v.Uint64()
	return &u
}

// timestampFromJSON accepts RFC3339 strings and unix-second numbers. An
// unrecognized timestamp degrades to the zero time.
func timestampFromJSON(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC()
			}
		}
		return time.Time{}
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return time.Time{}
	}
	if secs, err := num.Int64(); err == nil {
		return time.Unix(secs, 0).UTC()
	}
	if f, err := num.Float64(); err == nil {
		return time.Unix(int64(f), 0).UTC()
	}
	return time.Time{}
}
