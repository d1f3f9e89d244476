package upload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

func succeededSession(t *testing.T, api *stubAPI, attempts int) *Session {
	t.Helper()
	s := newDocSession(api, WithPolling(time.Millisecond, attempts))
	require.NoError(t, s.Select(FromBytes("w2.pdf", pdfBytes)))
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))
	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	return s
}

func TestAwaitExtraction_AlreadyPresent(t *testing.T) {
	raw := "text"
	api := &stubAPI{doc: &entity.Document{ID: 3, Extraction: &entity.ExtractionOutcome{RawText: &raw}}}
	s := succeededSession(t, api, 3)

	out, err := s.AwaitExtraction(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "text", *out.RawText)
	assert.Equal(t, 0, api.gets)
}

func TestAwaitExtraction_PollsUntilReady(t *testing.T) {
	raw := "W-2 wages"
	api := &stubAPI{
		doc: &entity.Document{ID: 3},
		polled: []*entity.Document{
			{ID: 3},
			{ID: 3, Extraction: &entity.ExtractionOutcome{RawText: &raw}},
		},
	}
	s := succeededSession(t, api, 5)

	out, err := s.AwaitExtraction(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "W-2 wages", *out.RawText)
	assert.Equal(t, 2, api.gets)
	assert.NotNil(t, s.Snapshot().Result.Document.Extraction)
}

func TestAwaitExtraction_EmptyPlaceholderKeepsPolling(t *testing.T) {
	raw := "Employer: Acme"
	api := &stubAPI{
		doc: &entity.Document{ID: 3, Extraction: &entity.ExtractionOutcome{}},
		polled: []*entity.Document{
			{ID: 3, Extraction: &entity.ExtractionOutcome{}},
			{ID: 3, Extraction: &entity.ExtractionOutcome{RawText: &raw}},
		},
	}
	s := succeededSession(t, api, 5)

	out, err := s.AwaitExtraction(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Employer: Acme", *out.RawText)
	assert.Equal(t, 2, api.gets)
}

func TestAwaitExtraction_EmptyResultIsFinal(t *testing.T) {
	blank := ""
	api := &stubAPI{doc: &entity.Document{ID: 3, Extraction: &entity.ExtractionOutcome{
		RawText: &blank,
		Fields:  entity.NewFieldSet(),
	}}}
	s := succeededSession(t, api, 3)

	out, err := s.AwaitExtraction(context.Background())
	require.NoError(t, err)
	assert.False(t, out.HasRawText())
	assert.Equal(t, 0, api.gets)
}

func TestAwaitExtraction_GivesUp(t *testing.T) {
	api := &stubAPI{doc: &entity.Document{ID: 3}}
	s := succeededSession(t, api, 2)

	_, err := s.AwaitExtraction(context.Background())
	assert.ErrorIs(t, err, ErrExtractionPending)
	assert.Equal(t, 2, api.gets)
}

func TestAwaitExtraction_RequiresSucceededDocument(t *testing.T) {
	s := newDocSession(&stubAPI{})
	_, err := s.AwaitExtraction(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidState)
}
