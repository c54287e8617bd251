package pdf

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trawlhq/trawl/internal/core/domain"
)

func TestExtensions(t *testing.T) {
	e := New()

	assert.Equal(t, []string{"pdf"}, e.Extensions())
}

func TestExtract_NotAPDF(t *testing.T) {
	e := New()

	_, err := e.Extract(context.Background(), strings.NewReader("this is not a pdf"), "fake.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestExtract_OversizedDocument(t *testing.T) {
	e := New()
	oversized := strings.NewReader(strings.Repeat("x", MaxDocumentSize+1))

	_, err := e.Extract(context.Background(), oversized, "huge.pdf")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.Contains(t, err.Error(), "exceeds")
}
