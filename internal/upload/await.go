package upload

import (
	"context"
	"fmt"
	"time"

	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

// AwaitExtraction waits for the OCR result of a succeeded document upload.
// It polls the document until extracted_data is present or the polling
// budget runs out, in which case ErrExtractionPending is returned.
func (s *Session) AwaitExtraction(ctx context.Context) (*entity.ExtractionOutcome, error) {
	s.mu.Lock()
	if s.state != StateSucceeded || s.result == nil || s.result.Document == nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("await extraction: %w", common.ErrInvalidState)
	}
	doc := s.result.Document
	s.mu.Unlock()

	if !doc.Extraction.Pending() {
		return doc.Extraction, nil
	}

	start := time.Now()
	for attempt := 1; attempt <= s.pollAttempts; attempt++ {
		if err := common.Sleep(ctx, s.pollInterval); err != nil {
			return nil, err
		}
		fresh, err := s.api.GetDocument(ctx, doc.ID)
		if err != nil {
			s.logger.Warn("upload.extraction.poll_error", "document_id", doc.ID, "attempt", attempt, "error", err)
			return nil, err
		}
		if fresh.Extraction.Pending() {
			s.logger.Debug("upload.extraction.pending", "document_id", doc.ID, "attempt", attempt)
			continue
		}

		s.mu.Lock()
		// Only adopt the update if the session still shows this upload.
		if s.state == StateSucceeded && s.result != nil && s.result.Document == doc {
			s.result = &Result{Document: fresh}
		}
		s.mu.Unlock()
		s.logger.Info("upload.extraction.ok", "document_id", doc.ID, "attempts", attempt,
			"elapsed_ms", time.Since(start).Milliseconds())
		return fresh.Extraction, nil
	}
	return nil, ErrExtractionPending
}
