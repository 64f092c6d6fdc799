package anomaly

import (
	"fmt"
	"math/big"

	"github.com/rs/zerolog"

	"github.com/chainwatch/pumpwatch/internal/model"
)

// featureCount is the width of the feature matrix: gas used, transfer value
// in wei, gas price.
const featureCount = 3

// Scorer is the external unsupervised outlier model. Given an NxfeatureCount
// matrix and a contamination rate it returns N scores (higher = more normal)
// and N anomaly labels. The decision boundary is the scorer's own business;
// this package never inspects it.
type Scorer interface {
	ScoreBatch(features [][]float64, contamination float64) (scores []float64, anomalous []bool, err error)
}

// Enricher builds feature vectors from normalized transactions, applies the
// scorer over the whole batch in one fit+score pass, and attaches the results
// by position.
type Enricher struct {
	scorer        Scorer
	contamination float64
	logger        zerolog.Logger
}

// NewEnricher creates an enricher around the given scorer.
func NewEnricher(scorer Scorer, contamination float64, logger zerolog.Logger) *Enricher {
	return &Enricher{
		scorer:        scorer,
		contamination: contamination,
		logger:        logger.With().Str("component", "anomaly").Logger(),
	}
}

// Features builds one row per transaction from gas used, value (wei), and
// gas price. Missing numeric fields impute to zero.
func (e *Enricher) Features(txs []model.Transaction) [][]float64 {
	features := make([][]float64, len(txs))
	for i, tx := range txs {
		row := make([]float64, featureCount)
		if tx.GasUsed != nil {
			row[0] = float64(*tx.GasUsed)
		}
		row[1] = bigToFloat(tx.ValueWei)
		row[2] = bigToFloat(tx.GasPrice)
		features[i] = row
	}
	return features
}

// Enrich scores the batch and returns one annotation per transaction, in
// input order.
func (e *Enricher) Enrich(txs []model.Transaction) ([]model.Annotation, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	features := e.Features(txs)
	scores, anomalous, err := e.scorer.ScoreBatch(features, e.contamination)
	if err != nil {
		return nil, fmt.Errorf("failed to score batch: %w", err)
	}
	if len(scores) != len(txs) || len(anomalous) != len(txs) {
		return nil, fmt.Errorf("scorer returned %d scores and %d labels for %d transactions",
			len(scores), len(anomalous), len(txs))
	}

	annotations := make([]model.Annotation, len(txs))
	flagged := 0
	for i := range txs {
		annotations[i] = model.Annotation{
			TxHash:    txs[i].Hash,
			Score:     scores[i],
			IsAnomaly: anomalous[i],
		}
		if anomalous[i] {
			flagged++
		}
	}

	e.logger.Info().
		Int("transactions", len(txs)).
		Int("anomalies", flagged).
		Msg("Anomaly enrichment complete")

	return annotations, nil
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
