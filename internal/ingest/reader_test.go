package ingest

import (
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	newReader := func(skip bool) *Reader {
		return NewReader(NewNormalizer(FirstLogClassifier{}), skip, zerolog.Nop())
	}

	valid := `{"block_number": 100, "transaction": {"hash": "0x1", "value": "0xde0b6b3a7640000"}}`
	alsoValid := `{"block_number": 150, "transaction": {"hash": "0x2", "value": 0}}`
	malformed := `{oops`

	t.Run("reads every line", func(t *testing.T) {
		txs, logs, err := newReader(false).ReadAll(strings.NewReader(valid + "\n" + alsoValid + "\n"))
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Empty(t, logs)
		assert.Equal(t, "0x1", txs[0].Hash)
		assert.Equal(t, "0x2", txs[1].Hash)
	})

	t.Run("blank lines ignored", func(t *testing.T) {
		txs, _, err := newReader(false).ReadAll(strings.NewReader(valid + "\n\n" + alsoValid + "\n"))
		require.NoError(t, err)
		assert.Len(t, txs, 2)
	})

	t.Run("abort policy surfaces line index", func(t *testing.T) {
		_, _, err := newReader(false).ReadAll(strings.NewReader(valid + "\n" + malformed + "\n" + alsoValid))
		require.Error(t, err)

		var recordErr *MalformedRecordError
		require.ErrorAs(t, err, &recordErr)
		assert.Equal(t, 2, recordErr.Line)
	})

	t.Run("skip policy drops the whole line", func(t *testing.T) {
		txs, _, err := newReader(true).ReadAll(strings.NewReader(valid + "\n" + malformed + "\n" + alsoValid))
		require.NoError(t, err)
		require.Len(t, txs, 2)
		for _, tx := range txs {
			assert.NotEmpty(t, tx.Hash, "no partially-normalized transaction may leak in")
		}
	})

	t.Run("bad block number aborts even under skip policy", func(t *testing.T) {
		badBlock := `{"block_number": "garbage"}`
		_, _, err := newReader(true).ReadAll(strings.NewReader(valid + "\n" + badBlock))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})
}
