package devserver

import (
	"encoding/json"
	"net/http"

	"github.com/joseph-ayodele/tax-portal/internal/entity"
)

type planOffer struct {
	ID       string
	Name     string
	Price    entity.Money
	Features []string
}

type serviceOffer struct {
	ID    string
	Price entity.Money
}

var plans = []planOffer{
	{ID: "basic", Name: "Basic Plan", Price: entity.MustMoney("9.99"),
		Features: []string{"Document storage", "Basic OCR", "Email support"}},
	{ID: "premium", Name: "Premium Plan", Price: entity.MustMoney("19.99"),
		Features: []string{"Unlimited storage", "Advanced OCR", "Priority support", "Bank integration"}},
	{ID: "professional", Name: "Professional Plan", Price: entity.MustMoney("49.99"),
		Features: []string{"All Premium features", "CPA collaboration", "Advanced reporting", "API access"}},
}

var services = []serviceOffer{
	{ID: "individual_tax_return", Price: entity.MustMoney("99.99")},
	{ID: "business_tax_return", Price: entity.MustMoney("199.99")},
	{ID: "tax_consultation", Price: entity.MustMoney("150.00")},
	{ID: "document_review", Price: entity.MustMoney("75.00")},
}

func findPlan(id string) (planOffer, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return planOffer{}, false
}

func findService(id string) (serviceOffer, bool) {
	for _, s := range services {
		if s.ID == id {
			return s, true
		}
	}
	return serviceOffer{}, false
}

// The catalog endpoints answer with JSON objects whose key order is the
// offer order above.

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	fields := make([]entity.Field, 0, len(plans))
	for _, p := range plans {
		body, err := json.Marshal(map[string]any{"name": p.Name, "price": p.Price, "features": p.Features})
		if err != nil {
			s.writeFailure(w, r, err, "")
			return
		}
		fields = append(fields, entity.Field{Key: p.ID, Value: body})
	}
	writeJSON(w, http.StatusOK, entity.NewFieldSet(fields...))
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	fields := make([]entity.Field, 0, len(services))
	for _, svc := range services {
		body, err := json.Marshal(svc.Price)
		if err != nil {
			s.writeFailure(w, r, err, "")
			return
		}
		fields = append(fields, entity.Field{Key: svc.ID, Value: body})
	}
	writeJSON(w, http.StatusOK, entity.NewFieldSet(fields...))
}
