package transfer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

// ReceiptMeta is the metadata sent alongside a receipt file.
type ReceiptMeta struct {
	Category string
	Amount   string
	Date     string // YYYY-MM-DD
}

func (c *Client) ListDocuments(ctx context.Context) ([]entity.Document, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/documents", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]entity.Document](raw, "documents")
}

// UploadDocument posts a document file with its classification.
func (c *Client) UploadDocument(ctx context.Context, file FilePart, docType constants.DocumentType) (*entity.Document, error) {
	file.FieldName = "file"
	body := &Multipart{
		Fields: []FormField{{Name: "document_type", Value: string(docType)}},
		Files:  []FilePart{file},
	}
	raw, err := c.Send(ctx, http.MethodPost, "/api/documents", body)
	if err != nil {
		return nil, err
	}
	doc, err := decodeRecord[entity.Document](raw, "document")
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) GetDocument(ctx context.Context, id int64) (*entity.Document, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/documents/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return nil, err
	}
	doc, err := decode[entity.Document](raw, "document")
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id int64) error {
	_, err := c.Send(ctx, http.MethodDelete, "/api/documents/"+strconv.FormatInt(id, 10), nil)
	return err
}

func (c *Client) ListReceipts(ctx context.Context) ([]entity.Receipt, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/receipts", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]entity.Receipt](raw, "receipts")
}

// UploadReceipt posts a receipt file with category, amount and date.
func (c *Client) UploadReceipt(ctx context.Context, file FilePart, meta ReceiptMeta) (*entity.Receipt, error) {
	file.FieldName = "file"
	body := &Multipart{
		Fields: []FormField{
			{Name: "category", Value: meta.Category},
			{Name: "amount", Value: meta.Amount},
			{Name: "date", Value: meta.Date},
		},
		Files: []FilePart{file},
	}
	raw, err := c.Send(ctx, http.MethodPost, "/api/receipts", body)
	if err != nil {
		return nil, err
	}
	r, err := decodeRecord[entity.Receipt](raw, "receipt")
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (c *Client) ListReturns(ctx context.Context) ([]entity.TaxReturn, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/returns", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]entity.TaxReturn](raw, "returns")
}

func (c *Client) CreateReturn(ctx context.Context, year int) (*entity.TaxReturn, error) {
	raw, err := c.Send(ctx, http.MethodPost, "/api/returns", map[string]int{"year": year})
	if err != nil {
		return nil, err
	}
	tr, err := decode[entity.TaxReturn](raw, "return")
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

func (c *Client) UpdateReturnStatus(ctx context.Context, id int64, status constants.ReturnStatus) (*entity.TaxReturn, error) {
	raw, err := c.Send(ctx, http.MethodPut, "/api/returns/"+strconv.FormatInt(id, 10),
		map[string]string{"status": string(status)})
	if err != nil {
		return nil, err
	}
	tr, err := decode[entity.TaxReturn](raw, "return")
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// ListClients is only permitted for CPA accounts.
func (c *Client) ListClients(ctx context.Context) ([]entity.AccountSummary, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/cpa/clients", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]entity.AccountSummary](raw, "clients")
}

// ListPlans returns the raw plan mapping; see catalog.NormalizePlans.
func (c *Client) ListPlans(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/payment/plans", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// ListServices returns the raw service price mapping; see catalog.NormalizeServices.
func (c *Client) ListServices(ctx context.Context) (json.RawMessage, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/payment/services", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

// GetSubscription returns nil without error when the account has no active subscription.
func (c *Client) GetSubscription(ctx context.Context) (*entity.Subscription, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/subscription", nil)
	if err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if string(raw) == "null" || len(raw) == 0 {
		return nil, nil
	}
	sub, err := decode[entity.Subscription](raw, "subscription")
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *Client) CreateSubscription(ctx context.Context, planID, paymentMethodID string) (*entity.Subscription, error) {
	body := map[string]string{
		"plan_type":         planID,
		"payment_method_id": paymentMethodID,
	}
	raw, err := c.Send(ctx, http.MethodPost, "/api/subscription", body)
	if err != nil {
		return nil, err
	}
	sub, err := decode[entity.Subscription](raw, "subscription")
	if err != nil {
		return nil, err
	}
	if sub.PlanType == "" {
		return nil, fmt.Errorf("decode subscription: %w: missing plan_type", common.ErrMalformedPayload)
	}
	return &sub, nil
}

func (c *Client) CancelSubscription(ctx context.Context) error {
	_, err := c.Send(ctx, http.MethodDelete, "/api/subscription", nil)
	return err
}

func (c *Client) PaymentHistory(ctx context.Context) ([]entity.Payment, error) {
	raw, err := c.Send(ctx, http.MethodGet, "/api/payments/history", nil)
	if err != nil {
		return nil, err
	}
	return decode[[]entity.Payment](raw, "payments")
}

// PurchaseService charges a one-time service. It is not wired into the billing
// workflow, which still treats service purchase as an acknowledgment only.
func (c *Client) PurchaseService(ctx context.Context, serviceID, paymentMethodID string) (*entity.Payment, error) {
	body := map[string]string{
		"service_type":      serviceID,
		"payment_method_id": paymentMethodID,
	}
	raw, err := c.Send(ctx, http.MethodPost, "/api/payment/service", body)
	if err != nil {
		return nil, err
	}
	p, err := decode[entity.Payment](raw, "payment")
	if err != nil {
		return nil, err
	}
	return &p, nil
}
