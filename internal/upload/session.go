// Package upload drives a single document or receipt upload from file
// selection to the server's response.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
	"github.com/joseph-ayodele/tax-portal/internal/transfer"
)

// Kind selects the upload flow.
type Kind string

const (
	KindDocument Kind = "document"
	KindReceipt  Kind = "receipt"
)

type State string

const (
	StateIdle         State = "idle"
	StateFileSelected State = "file_selected"
	StateValidating   State = "validating"
	StateSubmitting   State = "submitting"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

// User-facing messages.
const (
	MsgSelectFileAndType = "Please select a file and document type"
	MsgSelectFile        = "Please select a file"
	MsgUploadFailed      = "Upload failed"
)

// ErrExtractionPending is returned when extraction did not finish within the polling budget.
var ErrExtractionPending = errors.New("extraction still pending")

// API is the slice of the transfer client the session uses.
type API interface {
	UploadDocument(ctx context.Context, file transfer.FilePart, docType constants.DocumentType) (*entity.Document, error)
	UploadReceipt(ctx context.Context, file transfer.FilePart, meta transfer.ReceiptMeta) (*entity.Receipt, error)
	GetDocument(ctx context.Context, id int64) (*entity.Document, error)
}

// Refresher re-queries the host view's collections after a successful upload.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ReceiptDetails overrides the receipt defaults. Empty fields keep the default.
type ReceiptDetails struct {
	Category string `json:"category"`
	Amount   string `json:"amount" validate:"omitempty,numeric"`
	Date     string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

// Result is the server record produced by a successful upload.
type Result struct {
	Document *entity.Document
	Receipt  *entity.Receipt
}

// Snapshot is a read-only view of the session.
type Snapshot struct {
	Kind         Kind
	State        State
	FileName     string
	DocumentType constants.DocumentType
	Result       *Result
	Error        string
}

// Session owns one upload form. It is safe for concurrent use; only one
// submission may be in flight.
type Session struct {
	kind         Kind
	api          API
	refresher    Refresher
	logger       *slog.Logger
	maxBytes     int64
	now          func() time.Time
	pollInterval time.Duration
	pollAttempts int

	mu      sync.Mutex
	state   State
	file    *File
	docType constants.DocumentType
	details ReceiptDetails
	result  *Result
	errMsg  string
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

func WithRefresher(r Refresher) Option {
	return func(s *Session) { s.refresher = r }
}

func WithMaxBytes(n int64) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithPolling sets how AwaitExtraction polls for a pending extraction.
func WithPolling(interval time.Duration, attempts int) Option {
	return func(s *Session) {
		s.pollInterval = interval
		if attempts > 0 {
			s.pollAttempts = attempts
		}
	}
}

func NewSession(kind Kind, api API, opts ...Option) *Session {
	s := &Session{
		kind:         kind,
		api:          api,
		maxBytes:     constants.MaxUploadBytes,
		now:          time.Now,
		pollInterval: 2 * time.Second,
		pollAttempts: 10,
		state:        StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = common.LoggerOrDefault(s.logger).With("flow", string(kind))
	return s
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Kind:         s.kind,
		State:        s.state,
		DocumentType: s.docType,
		Result:       s.result,
		Error:        s.errMsg,
	}
	if s.file != nil {
		snap.FileName = s.file.Name
	}
	return snap
}

func (s *Session) busy() bool {
	return s.state == StateValidating || s.state == StateSubmitting
}

// Select binds f, replacing any file already held.
func (s *Session) Select(f *File) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.busy():
		return common.ErrBusy
	case s.state == StateSucceeded:
		return fmt.Errorf("select file: %w", common.ErrInvalidState)
	}
	s.file = f
	if f == nil {
		if s.state == StateFileSelected {
			s.state = StateIdle
		}
		return nil
	}
	s.state = StateFileSelected
	s.errMsg = ""
	return nil
}

// SetDocumentType binds the classification for the document flow.
func (s *Session) SetDocumentType(t constants.DocumentType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.kind != KindDocument:
		return fmt.Errorf("document type on %s flow: %w", s.kind, common.ErrInvalidState)
	case s.busy():
		return common.ErrBusy
	case s.state == StateSucceeded:
		return fmt.Errorf("set document type: %w", common.ErrInvalidState)
	}
	s.docType = t
	return nil
}

// SetReceiptDetails overrides the receipt defaults for the next submission.
func (s *Session) SetReceiptDetails(d ReceiptDetails) error {
	if err := common.ValidateStruct(d); err != nil {
		return err
	}
	if d.Amount != "" {
		if amt, err := decimal.NewFromString(d.Amount); err != nil || amt.IsNegative() {
			return &common.ValidationError{Field: "amount", Value: d.Amount, Message: "must be a non-negative amount"}
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.kind != KindReceipt:
		return fmt.Errorf("receipt details on %s flow: %w", s.kind, common.ErrInvalidState)
	case s.busy():
		return common.ErrBusy
	case s.state == StateSucceeded:
		return fmt.Errorf("set receipt details: %w", common.ErrInvalidState)
	}
	s.details = d
	return nil
}

// Submit validates the held selection and uploads it. Validation failures
// make no network call and leave the state as it was.
func (s *Session) Submit(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	switch {
	case s.busy():
		s.mu.Unlock()
		return nil, common.ErrBusy
	case s.state == StateSucceeded:
		s.mu.Unlock()
		return nil, fmt.Errorf("submit: %w", common.ErrInvalidState)
	}
	prev := s.state
	file, docType, details := s.file, s.docType, s.details
	if verr := s.checkSelection(file, docType); verr != nil {
		s.errMsg = verr.Error()
		s.mu.Unlock()
		s.logger.Debug("upload.validate.rejected", "reason", verr.Message)
		return nil, verr
	}
	s.state = StateValidating
	s.mu.Unlock()

	part, verr := s.checkFile(file)
	if verr != nil {
		s.mu.Lock()
		s.state = prev
		s.errMsg = verr.Error()
		s.mu.Unlock()
		s.logger.Debug("upload.validate.rejected", "file", file.Name, "reason", verr.Message)
		return nil, verr
	}

	s.mu.Lock()
	s.state = StateSubmitting
	s.errMsg = ""
	s.mu.Unlock()

	start := time.Now()
	res, err := s.send(ctx, part, docType, details)
	if err != nil {
		msg := transfer.UserMessage(err, MsgUploadFailed)
		s.mu.Lock()
		s.state = StateFailed
		s.errMsg = msg
		s.mu.Unlock()
		s.logger.Warn("upload.submit.fail", "file", file.Name, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	s.mu.Lock()
	s.state = StateSucceeded
	s.result = res
	s.file = nil
	s.docType = ""
	s.details = ReceiptDetails{}
	s.mu.Unlock()
	s.logger.Info("upload.submit.ok", "file", file.Name, "elapsed_ms", time.Since(start).Milliseconds())

	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx); err != nil {
			s.logger.Warn("upload.refresh.fail", "error", err)
		}
	}
	return res, nil
}

// checkSelection must be called with mu held.
func (s *Session) checkSelection(file *File, docType constants.DocumentType) *common.ValidationError {
	v := common.NewValidator().Field("file", file, common.Required)
	if s.kind == KindDocument {
		if v.Field("document_type", string(docType), common.Required).HasErrors() {
			return common.NewValidationError(MsgSelectFileAndType)
		}
		if !docType.Valid() {
			return &common.ValidationError{Field: "document_type", Value: string(docType), Message: "Unknown document type"}
		}
		return nil
	}
	if v.HasErrors() {
		return common.NewValidationError(MsgSelectFile)
	}
	return nil
}

func (s *Session) oversize(size int64) bool {
	return common.NewValidator().Field("size", size, common.MaxBytes(s.maxBytes)).HasErrors()
}

// checkFile applies the extension, size and content checks and returns the
// multipart file part on success.
func (s *Session) checkFile(f *File) (transfer.FilePart, *common.ValidationError) {
	ext := constants.NormalizeExt(f.Ext())
	if !constants.IsAllowedExt(ext) {
		return transfer.FilePart{}, &common.ValidationError{Field: "file", Value: f.Name,
			Message: "Unsupported file type. Allowed: PDF, JPG, JPEG, PNG"}
	}
	tooLarge := &common.ValidationError{Field: "file", Value: f.Name,
		Message: fmt.Sprintf("File is too large. Maximum size is %d MB", s.maxBytes>>20)}
	if s.oversize(f.Size) {
		return transfer.FilePart{}, tooLarge
	}

	data, err := f.read(s.maxBytes)
	if err != nil {
		return transfer.FilePart{}, &common.ValidationError{Field: "file", Value: f.Name, Message: "File could not be read"}
	}
	if s.oversize(int64(len(data))) {
		return transfer.FilePart{}, tooLarge
	}
	if len(data) == 0 {
		return transfer.FilePart{}, &common.ValidationError{Field: "file", Value: f.Name, Message: "File is empty"}
	}

	mt := mimetype.Detect(data)
	matched := false
	for _, want := range constants.MIMETypesFor(ext) {
		if mt.Is(want) {
			matched = true
			break
		}
	}
	if !matched {
		return transfer.FilePart{}, &common.ValidationError{Field: "file", Value: f.Name,
			Message: fmt.Sprintf("File content (%s) does not match the .%s extension", mt.String(), ext)}
	}

	return transfer.FilePart{
		FileName:    f.Name,
		ContentType: mt.String(),
		Content:     bytes.NewReader(data),
	}, nil
}

func (s *Session) send(ctx context.Context, part transfer.FilePart, docType constants.DocumentType, d ReceiptDetails) (*Result, error) {
	if s.kind == KindDocument {
		doc, err := s.api.UploadDocument(ctx, part, docType)
		if err != nil {
			return nil, err
		}
		return &Result{Document: doc}, nil
	}
	rec, err := s.api.UploadReceipt(ctx, part, s.receiptMeta(d))
	if err != nil {
		return nil, err
	}
	return &Result{Receipt: rec}, nil
}

// receiptMeta fills receipt defaults: business category, zero amount, today's UTC date.
func (s *Session) receiptMeta(d ReceiptDetails) transfer.ReceiptMeta {
	meta := transfer.ReceiptMeta{
		Category: string(constants.DefaultCategory),
		Amount:   "0",
		Date:     entity.DateOf(s.now()).String(),
	}
	if d.Category != "" {
		if cat, ok := constants.Canonicalize(d.Category); ok {
			meta.Category = string(cat)
		} else {
			meta.Category = strings.ToLower(strings.TrimSpace(d.Category))
		}
	}
	if d.Amount != "" {
		meta.Amount = d.Amount
	}
	if d.Date != "" {
		meta.Date = d.Date
	}
	return meta
}

// Reset returns the session to its initial idle state.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy() {
		return common.ErrBusy
	}
	s.state = StateIdle
	s.file = nil
	s.docType = ""
	s.details = ReceiptDetails{}
	s.result = nil
	s.errMsg = ""
	return nil
}

// QuickUpload runs the whole flow for f with defaults: documents are
// classified as "other", receipts get the receipt defaults.
func (s *Session) QuickUpload(ctx context.Context, f *File) (*Result, error) {
	if err := s.Reset(); err != nil {
		return nil, err
	}
	if err := s.Select(f); err != nil {
		return nil, err
	}
	if s.kind == KindDocument {
		if err := s.SetDocumentType(constants.DocumentOther); err != nil {
			return nil, err
		}
	}
	return s.Submit(ctx)
}
