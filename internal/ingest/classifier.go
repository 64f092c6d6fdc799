package ingest

import (
	"github.com/chainwatch/pumpwatch/internal/model"
)

// transferTopic is the topic0 of the ERC-20 Transfer(address,address,uint256)
// event.
const transferTopic = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// TokenClassifier derives a heuristic token type for a transaction from its
// receipt logs. Implementations return nil when no token can be attributed.
type TokenClassifier interface {
	TokenType(logs []model.Log) *string
}

// FirstLogClassifier attributes the transaction to the address of its first
// receipt log. This mirrors the simplest possible heuristic: whatever contract
// emitted first is taken as the asset involved.
type FirstLogClassifier struct{}

func (FirstLogClassifier) TokenType(logs []model.Log) *string {
	if len(logs) == 0 {
		return nil
	}
	addr := logs[0].Address
	return &addr
}

// TransferLogClassifier attributes the transaction to the emitter of its first
// ERC-20 Transfer event, which is a stricter signal than FirstLogClassifier.
type TransferLogClassifier struct{}

func (TransferLogClassifier) TokenType(logs []model.Log) *string {
	for i := range logs {
		if len(logs[i].Topics) > 0 && logs[i].Topics[0] == transferTopic {
			addr := logs[i].Address
			return &addr
		}
	}
	return nil
}

// NewTokenClassifier maps a configured classifier name onto an implementation.
// Unknown names fall back to the first-log heuristic; config validation keeps
// that from happening in practice.
func NewTokenClassifier(name string) TokenClassifier {
	if name == "transfer_log" {
		return TransferLogClassifier{}
	}
	return FirstLogClassifier{}
}
