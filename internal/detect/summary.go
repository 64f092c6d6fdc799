package detect

import (
	"sort"

	"github.com/chainwatch/pumpwatch/internal/model"
)

// SenderActivity is one sender's transaction count within the batch.
type SenderActivity struct {
	Address string
	TxCount int
}

// TopSenders returns the n most active senders by transaction count,
// ties broken by address for stable output.
func TopSenders(txs []model.Transaction, n int) []SenderActivity {
	counts := make(map[string]int)
	for _, tx := range txs {
		counts[tx.From]++
	}

	senders := make([]SenderActivity, 0, len(counts))
	for addr, count := range counts {
		senders = append(senders, SenderActivity{Address: addr, TxCount: count})
	}
	sort.Slice(senders, func(i, j int) bool {
		if senders[i].TxCount != senders[j].TxCount {
			return senders[i].TxCount > senders[j].TxCount
		}
		return senders[i].Address < senders[j].Address
	})

	if n > 0 && len(senders) > n {
		senders = senders[:n]
	}
	return senders
}
