package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/chainwatch/pumpwatch/internal/model"
)

// maxLineBytes bounds a single JSONL line. Receipt-heavy transactions can run
// to several megabytes of logs.
const maxLineBytes = 64 * 1024 * 1024

// MalformedRecordError reports a line that was not valid JSON, carrying the
// 1-based line index for diagnosis.
type MalformedRecordError struct {
	Line int
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at line %d: %v", e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Reader ingests a line-delimited record stream into normalized transactions
// and logs. The whole batch is materialized; chunking oversized dumps is the
// splitter's job, upstream of this reader.
type Reader struct {
	normalizer    *Normalizer
	skipMalformed bool
	logger        zerolog.Logger
}

// NewReader creates a reader. With skipMalformed set, lines that fail JSON
// parsing are logged with their index and dropped instead of failing the run.
func NewReader(normalizer *Normalizer, skipMalformed bool, logger zerolog.Logger) *Reader {
	return &Reader{
		normalizer:    normalizer,
		skipMalformed: skipMalformed,
		logger:        logger.With().Str("component", "ingest").Logger(),
	}
}

// ReadAll consumes the stream to the end and returns every normalized
// transaction with its receipt logs. Blank lines are ignored. A malformed
// line either aborts with a MalformedRecordError or, under the skip policy,
// is dropped whole; it never contributes a partially-filled transaction.
func (r *Reader) ReadAll(rd io.Reader) ([]model.Transaction, []model.Log, error) {
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var (
		txs     []model.Transaction
		logs    []model.Log
		line    int
		skipped int
	)

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		tx, txLogs, err := r.normalizer.Normalize(raw)
		if err != nil {
			if errors.Is(err, ErrMalformedJSON) {
				if r.skipMalformed {
					skipped++
					r.logger.Warn().Int("line", line).Err(err).Msg("Skipping malformed record")
					continue
				}
				return nil, nil, &MalformedRecordError{Line: line, Err: err}
			}
			// Bad block numbers and the like are hard errors under either policy.
			return nil, nil, fmt.Errorf("failed to normalize record at line %d: %w", line, err)
		}

		txs = append(txs, tx)
		logs = append(logs, txLogs...)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read input: %w", err)
	}

	r.logger.Info().
		Int("transactions", len(txs)).
		Int("logs", len(logs)).
		Int("skipped", skipped).
		Msg("Ingest complete")

	return txs, logs, nil
}

// ReadFile is ReadAll over a file path.
func (r *Reader) ReadFile(path string) ([]model.Transaction, []model.Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	return r.ReadAll(f)
}
