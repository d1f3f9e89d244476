package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
	"github.com/joseph-ayodele/tax-portal/internal/transfer"
)

var (
	pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
)

type uploadCall struct {
	fileName string
	content  []byte
	docType  constants.DocumentType
	meta     transfer.ReceiptMeta
}

type stubAPI struct {
	mu        sync.Mutex
	calls     []uploadCall
	gets      int
	uploadErr error
	doc       *entity.Document
	polled    []*entity.Document
	block     chan struct{}
}

func (s *stubAPI) record(part transfer.FilePart, c uploadCall) {
	data, _ := io.ReadAll(part.Content)
	c.fileName = part.FileName
	c.content = data
	s.mu.Lock()
	s.calls = append(s.calls, c)
	s.mu.Unlock()
}

func (s *stubAPI) UploadDocument(ctx context.Context, part transfer.FilePart, docType constants.DocumentType) (*entity.Document, error) {
	s.record(part, uploadCall{docType: docType})
	if s.block != nil {
		<-s.block
	}
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	if s.doc != nil {
		return s.doc, nil
	}
	return &entity.Document{ID: 1, DocumentType: docType}, nil
}

func (s *stubAPI) UploadReceipt(ctx context.Context, part transfer.FilePart, meta transfer.ReceiptMeta) (*entity.Receipt, error) {
	s.record(part, uploadCall{meta: meta})
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &entity.Receipt{ID: 2, Category: meta.Category}, nil
}

func (s *stubAPI) GetDocument(ctx context.Context, id int64) (*entity.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if len(s.polled) == 0 {
		return &entity.Document{ID: id}, nil
	}
	d := s.polled[0]
	s.polled = s.polled[1:]
	return d, nil
}

func (s *stubAPI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubRefresher struct {
	calls int
	err   error
}

func (r *stubRefresher) Refresh(ctx context.Context) error {
	r.calls++
	return r.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = func() time.Time { return time.Date(2024, 4, 15, 23, 30, 0, 0, time.UTC) }

func newDocSession(api API, opts ...Option) *Session {
	return NewSession(KindDocument, api, append([]Option{WithLogger(quietLogger()), WithClock(fixedNow)}, opts...)...)
}

func TestSubmit_RejectsMissingFileOrTypeWithoutNetwork(t *testing.T) {
	api := &stubAPI{}
	s := newDocSession(api)

	// Neither file nor type.
	_, err := s.Submit(context.Background())
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, StateIdle, s.Snapshot().State)
	assert.Equal(t, MsgSelectFileAndType, s.Snapshot().Error)

	// Type only.
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))
	_, err = s.Submit(context.Background())
	require.ErrorIs(t, err, common.ErrValidation)

	// File only.
	s2 := newDocSession(api)
	require.NoError(t, s2.Select(FromBytes("w2.pdf", pdfBytes)))
	_, err = s2.Submit(context.Background())
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, StateFileSelected, s2.Snapshot().State)
	assert.Equal(t, "w2.pdf", s2.Snapshot().FileName)

	assert.Equal(t, 0, api.callCount())
}

func TestSubmit_ReceiptRequiresFileOnly(t *testing.T) {
	api := &stubAPI{}
	s := NewSession(KindReceipt, api, WithLogger(quietLogger()), WithClock(fixedNow))

	_, err := s.Submit(context.Background())
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, MsgSelectFile, s.Snapshot().Error)
	assert.Equal(t, 0, api.callCount())
}

func TestSubmit_FileChecks(t *testing.T) {
	cases := map[string]*File{
		"extension":   FromBytes("notes.txt", []byte("hello")),
		"mismatch":    FromBytes("scan.png", pdfBytes),
		"empty":       FromBytes("empty.pdf", nil),
		"oversize":    FromBytes("big.pdf", append(append([]byte{}, pdfBytes...), make([]byte, 2048)...)),
		"gif as jpeg": FromBytes("photo.jpg", []byte("GIF89a\x01\x00\x01\x00")),
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			api := &stubAPI{}
			s := newDocSession(api, WithMaxBytes(1024))
			require.NoError(t, s.Select(f))
			require.NoError(t, s.SetDocumentType(constants.DocumentOther))

			_, err := s.Submit(context.Background())
			require.ErrorIs(t, err, common.ErrValidation)
			assert.Equal(t, StateFileSelected, s.Snapshot().State)
			assert.NotEmpty(t, s.Snapshot().Error)
			assert.Equal(t, 0, api.callCount())
		})
	}
}

func TestSubmit_SizeLimitIsInclusive(t *testing.T) {
	const limit = 1 << 20
	atLimit := append(append([]byte{}, pdfBytes...), make([]byte, limit-len(pdfBytes))...)

	api := &stubAPI{}
	s := newDocSession(api, WithMaxBytes(limit))
	require.NoError(t, s.Select(FromBytes("w2.pdf", atLimit)))
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))
	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	s = newDocSession(api, WithMaxBytes(limit))
	require.NoError(t, s.Select(FromBytes("w2.pdf", append(atLimit, 0))))
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))
	_, err = s.Submit(context.Background())
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Equal(t, "file: File is too large. Maximum size is 1 MB", s.Snapshot().Error)
	assert.Equal(t, 1, api.callCount())
}

func TestSubmit_DocumentSuccessClearsSelectionAndRefreshes(t *testing.T) {
	api := &stubAPI{doc: &entity.Document{ID: 7, DocumentType: constants.DocumentW2}}
	ref := &stubRefresher{}
	s := newDocSession(api, WithRefresher(ref))

	require.NoError(t, s.Select(FromBytes("w2.pdf", pdfBytes)))
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))

	res, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Document.ID)

	require.Equal(t, 1, api.callCount())
	assert.Equal(t, constants.DocumentW2, api.calls[0].docType)
	assert.Equal(t, "w2.pdf", api.calls[0].fileName)
	assert.Equal(t, pdfBytes, api.calls[0].content)

	snap := s.Snapshot()
	assert.Equal(t, StateSucceeded, snap.State)
	assert.Empty(t, snap.FileName)
	assert.Empty(t, snap.DocumentType)
	assert.Equal(t, 1, ref.calls)
}

func TestSubmit_RefreshFailureDoesNotFailUpload(t *testing.T) {
	api := &stubAPI{}
	s := newDocSession(api, WithRefresher(&stubRefresher{err: errors.New("offline")}))
	require.NoError(t, s.Select(FromBytes("a.pdf", pdfBytes)))
	require.NoError(t, s.SetDocumentType(constants.Document1099))

	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, s.Snapshot().State)
}

func TestSubmit_FailureKeepsFileForRetry(t *testing.T) {
	api := &stubAPI{uploadErr: &transfer.Error{Method: "POST", Path: "/api/documents", Status: http.StatusBadRequest, Message: "Invalid file type"}}
	s := newDocSession(api)
	require.NoError(t, s.Select(FromBytes("w2.pdf", pdfBytes)))
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))

	_, err := s.Submit(context.Background())
	require.Error(t, err)

	snap := s.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	assert.Equal(t, "Invalid file type", snap.Error)
	assert.Equal(t, "w2.pdf", snap.FileName)
	assert.Equal(t, constants.DocumentW2, snap.DocumentType)

	// Retry with the same file.
	api.uploadErr = &transfer.Error{Method: "POST", Path: "/api/documents", Status: http.StatusInternalServerError}
	_, err = s.Submit(context.Background())
	require.Error(t, err)
	assert.Equal(t, MsgUploadFailed, s.Snapshot().Error)

	api.uploadErr = nil
	_, err = s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, api.callCount())
}

func TestReset_ReturnsToInitialIdle(t *testing.T) {
	api := &stubAPI{}
	s := newDocSession(api)
	initial := s.Snapshot()

	require.NoError(t, s.Select(FromBytes("w2.pdf", pdfBytes)))
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))
	_, err := s.Submit(context.Background())
	require.NoError(t, err)

	// A new selection requires reset first.
	assert.ErrorIs(t, s.Select(FromBytes("b.pdf", pdfBytes)), common.ErrInvalidState)

	require.NoError(t, s.Reset())
	assert.Equal(t, initial, s.Snapshot())
}

func TestSubmit_BusyWhileInFlight(t *testing.T) {
	api := &stubAPI{block: make(chan struct{})}
	s := newDocSession(api)
	require.NoError(t, s.Select(FromBytes("w2.pdf", pdfBytes)))
	require.NoError(t, s.SetDocumentType(constants.DocumentW2))

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return s.Snapshot().State == StateSubmitting }, time.Second, time.Millisecond)
	_, err := s.Submit(context.Background())
	assert.ErrorIs(t, err, common.ErrBusy)
	assert.ErrorIs(t, s.Select(FromBytes("x.pdf", pdfBytes)), common.ErrBusy)
	assert.ErrorIs(t, s.Reset(), common.ErrBusy)

	close(api.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, api.callCount())
}

func TestQuickUpload_Defaults(t *testing.T) {
	api := &stubAPI{}
	doc := newDocSession(api)
	_, err := doc.QuickUpload(context.Background(), FromBytes("scan.pdf", pdfBytes))
	require.NoError(t, err)
	assert.Equal(t, constants.DocumentOther, api.calls[0].docType)

	rec := NewSession(KindReceipt, api, WithLogger(quietLogger()), WithClock(fixedNow))
	_, err = rec.QuickUpload(context.Background(), FromBytes("lunch.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, transfer.ReceiptMeta{Category: "business", Amount: "0", Date: "2024-04-15"}, api.calls[1].meta)

	// A second quick upload after success starts over.
	_, err = rec.QuickUpload(context.Background(), FromBytes("taxi.png", pngBytes))
	require.NoError(t, err)
	assert.Equal(t, 3, api.callCount())
}

func TestReceiptDetails(t *testing.T) {
	api := &stubAPI{}
	s := NewSession(KindReceipt, api, WithLogger(quietLogger()), WithClock(fixedNow))

	assert.ErrorIs(t, s.SetReceiptDetails(ReceiptDetails{Date: "15/04/2024"}), common.ErrValidation)
	assert.ErrorIs(t, s.SetReceiptDetails(ReceiptDetails{Amount: "-3"}), common.ErrValidation)
	assert.ErrorIs(t, s.SetReceiptDetails(ReceiptDetails{Amount: "ten"}), common.ErrValidation)

	require.NoError(t, s.SetReceiptDetails(ReceiptDetails{Category: "Restaurant", Amount: "42.10", Date: "2024-03-01"}))
	require.NoError(t, s.Select(FromBytes("dinner.png", pngBytes)))
	_, err := s.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, transfer.ReceiptMeta{Category: "meals", Amount: "42.10", Date: "2024-03-01"}, api.calls[0].meta)

	assert.ErrorIs(t, s.SetDocumentType(constants.DocumentW2), common.ErrInvalidState)
}

func TestFromPath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "w2.PDF")
	require.NoError(t, os.WriteFile(p, pdfBytes, 0o600))

	f, err := FromPath(p)
	require.NoError(t, err)
	assert.Equal(t, "w2.PDF", f.Name)
	assert.Equal(t, int64(len(pdfBytes)), f.Size)

	api := &stubAPI{}
	s := newDocSession(api)
	_, err = s.QuickUpload(context.Background(), f)
	require.NoError(t, err)

	_, err = FromPath(dir)
	assert.Error(t, err)
}
