package kb

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RejectsUnknownFormat(t *testing.T) {
	_, err := Parse("file.exe", "exe", []byte("hi"))
	require.Error(t, err)
}

func TestParse_RejectsOversizedFile(t *testing.T) {
	big := make([]byte, maxIngestBytes+1)
	_, err := Parse("big.txt", "txt", big)
	require.Error(t, err)
}

func TestParse_RejectsMismatchedPDFSignature(t *testing.T) {
	_, err := Parse("fake.pdf", "pdf", []byte("not a pdf"))
	require.Error(t, err)
}

func TestParse_AcceptsMatchingPDFSignature(t *testing.T) {
	raw := append([]byte("%PDF-1.4\n"), []byte("rest of file")...)
	text, err := Parse("real.pdf", "pdf", raw)
	require.NoError(t, err)
	assert.Contains(t, text, "%PDF-1.4")
}

func TestParse_AcceptsPlainTextFormats(t *testing.T) {
	for _, format := range []string{"txt", "md", "csv"} {
		text, err := Parse("doc."+format, format, []byte("hello world"))
		require.NoError(t, err)
		assert.Equal(t, "hello world", text)
	}
}

func TestChunkText_MergesShortParagraphsUpToTarget(t *testing.T) {
	text := "one\n\ntwo\n\nthree"
	chunks := chunkText(text, 1000)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "one")
	assert.Contains(t, chunks[0], "three")
}

func TestChunkText_SplitsWhenExceedingTarget(t *testing.T) {
	long := strings.Repeat("word ", 200)
	text := long + "\n\n" + long + "\n\n" + long
	chunks := chunkText(text, 100)
	require.Greater(t, len(chunks), 1)
}

func TestChunkText_OverlapsConsecutiveChunks(t *testing.T) {
	p1 := strings.Repeat("alpha ", 100)
	p2 := strings.Repeat("beta ", 100)
	p3 := strings.Repeat("gamma ", 100)
	text := p1 + "\n\n" + p2 + "\n\n" + p3

	chunks := chunkText(text, 120)
	require.GreaterOrEqual(t, len(chunks), 2)

	assert.Contains(t, chunks[1], "alpha", "next chunk should carry overlap from the previous chunk's tail")
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float64{1, 0}, []float64{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float64{1, 0}, []float64{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity(nil, []float64{1}))
	assert.Equal(t, 0.0, cosineSimilarity([]float64{1, 2}, []float64{1}))
}
