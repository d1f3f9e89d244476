package transfer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithToken("tok"), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestSend_ErrorFieldBecomesMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Invalid file type"}`))
	})

	_, err := c.Send(context.Background(), http.MethodGet, "/api/documents", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrTransport)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadRequest, te.Status)
	assert.Equal(t, "Invalid file type", te.Display())
	assert.Equal(t, "Invalid file type", UserMessage(err, "Upload failed"))
	assert.False(t, te.Transient())
}

func TestSend_NoErrorFieldFallsBack(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	_, err := c.Send(context.Background(), http.MethodGet, "/api/receipts", nil)
	require.Error(t, err)
	assert.Equal(t, "Upload failed", UserMessage(err, "Upload failed"))
	assert.True(t, IsTransient(err))

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, MsgRequestFailed, te.Display())
}

func TestSend_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err := c.Send(context.Background(), http.MethodGet, "/api/returns", nil)
	require.Error(t, err)

	var te *Error
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 0, te.Status)
	assert.Equal(t, MsgNetworkError, te.Display())
	assert.True(t, IsTransient(err))
}

func TestSend_HeadersAndJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"year":2024}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":1,"year":2024,"status":"draft","created_at":"2024-01-02T03:04:05"}`))
	})

	ctx := common.WithIdempotencyKey(context.Background(), "idem-1")
	tr, err := c.CreateReturn(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 2024, tr.Year)
	assert.Equal(t, constants.ReturnDraft, tr.Status)
}

func TestUploadDocument_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "w-2", r.FormValue("document_type"))
		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "w2.pdf", hdr.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"document_type":"w-2","extracted_data":{"raw_text":"","extracted_data":{}}}`))
	})

	doc, err := c.UploadDocument(context.Background(), FilePart{
		FileName:    "w2.pdf",
		ContentType: "application/pdf",
		Content:     strings.NewReader("%PDF-1.4"),
	}, constants.DocumentW2)
	require.NoError(t, err)
	assert.Equal(t, int64(9), doc.ID)
	require.NotNil(t, doc.Extraction)
	assert.Equal(t, 0, doc.Extraction.Fields.Len())
}

func TestUploadReceipt_Fields(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "business", r.FormValue("category"))
		assert.Equal(t, "0", r.FormValue("amount"))
		assert.Equal(t, "2024-04-15", r.FormValue("date"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":4,"category":"business","amount":0.0,"date":"2024-04-15"}`))
	})

	rec, err := c.UploadReceipt(context.Background(), FilePart{FileName: "r.png", Content: strings.NewReader("x")},
		ReceiptMeta{Category: "business", Amount: "0", Date: "2024-04-15"})
	require.NoError(t, err)
	assert.Equal(t, "2024-04-15", rec.Date.String())
}

func TestUploadDocument_AcceptsWrappedRecord(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"message":"Document uploaded successfully","document":{"id":12,"document_type":"1099","file_path":"f.pdf"}}`))
	})

	doc, err := c.UploadDocument(context.Background(), FilePart{FileName: "f.pdf", Content: strings.NewReader("x")}, constants.Document1099)
	require.NoError(t, err)
	assert.Equal(t, int64(12), doc.ID)
	assert.Equal(t, constants.Document1099, doc.DocumentType)
}

func TestGetSubscription_NotFoundIsNil(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"No active subscription"}`))
	})

	sub, err := c.GetSubscription(context.Background())
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestDecode_MalformedBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	})

	_, err := c.ListDocuments(context.Background())
	assert.ErrorIs(t, err, common.ErrMalformedPayload)
}

func TestUserMessage_Validation(t *testing.T) {
	err := common.NewValidationError("Please select a file and document type")
	assert.Equal(t, "Please select a file and document type", UserMessage(err, "Upload failed"))
	assert.Equal(t, "Upload failed", UserMessage(errors.New("boom"), "Upload failed"))
}
