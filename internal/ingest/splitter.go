package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// DefaultChunkBytes is the default splitter budget (150 MiB), sized so one
// chunk comfortably fits the in-memory batch the detector materializes.
const DefaultChunkBytes = 150 * 1024 * 1024

// Splitter cuts an oversized JSONL dump into byte-budgeted chunks without
// ever splitting a line. A single line larger than the budget gets a chunk of
// its own.
type Splitter struct {
	chunkBytes int64
	logger     zerolog.Logger
}

// NewSplitter creates a splitter with the given byte budget per chunk.
func NewSplitter(chunkBytes int64, logger zerolog.Logger) (*Splitter, error) {
	if chunkBytes <= 0 {
		return nil, fmt.Errorf("invalid configuration: chunk size must be > 0, got %d", chunkBytes)
	}
	return &Splitter{
		chunkBytes: chunkBytes,
		logger:     logger.With().Str("component", "splitter").Logger(),
	}, nil
}

// Split writes inputPath out as prefix1.jsonl, prefix2.jsonl, ... and returns
// the chunk paths in order.
func (s *Splitter) Split(inputPath, prefix string) ([]string, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	var (
		chunks    []string
		out       *os.File
		w         *bufio.Writer
		chunkSize int64
	)

	closeChunk := func() error {
		if out == nil {
			return nil
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("failed to flush chunk: %w", err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("failed to close chunk: %w", err)
		}
		out = nil
		return nil
	}

	openChunk := func() error {
		path := fmt.Sprintf("%s%d.jsonl", prefix, len(chunks)+1)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create chunk: %w", err)
		}
		chunks = append(chunks, path)
		out = f
		w = bufio.NewWriter(f)
		chunkSize = 0
		return nil
	}

	reader := bufio.NewReader(in)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			lineSize := int64(len(line))
			if out == nil || (chunkSize > 0 && chunkSize+lineSize > s.chunkBytes) {
				if err := closeChunk(); err != nil {
					return nil, err
				}
				if err := openChunk(); err != nil {
					return nil, err
				}
			}
			if _, werr := w.Write(line); werr != nil {
				return nil, fmt.Errorf("failed to write chunk: %w", werr)
			}
			chunkSize += lineSize
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read input: %w", err)
		}
	}

	if err := closeChunk(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("input", inputPath).
		Int("chunks", len(chunks)).
		Msg("Split complete")

	return chunks, nil
}
