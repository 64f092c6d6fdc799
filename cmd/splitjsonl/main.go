package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/chainwatch/pumpwatch/internal/ingest"
)

func main() {
	var (
		sizeMB int64
		prefix string
	)
	flag.Int64Var(&sizeMB, "size-mb", 150, "Chunk size budget in MiB")
	flag.StringVar(&prefix, "prefix", "chunk_", "Output file prefix")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: splitjsonl [-size-mb N] [-prefix P] <input.jsonl>")
		os.Exit(1)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	splitter, err := ingest.NewSplitter(sizeMB*1024*1024, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid chunk size")
	}

	chunks, err := splitter.Split(flag.Arg(0), prefix)
	if err != nil {
		logger.Fatal().Err(err).Msg("Split failed")
	}

	for _, chunk := range chunks {
		fmt.Println(chunk)
	}
}
