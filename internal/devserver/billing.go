package devserver

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
	"github.com/joseph-ayodele/tax-portal/internal/repository"
)

const subscriptionDays = 30

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := s.subscriptions.Active(r.Context(), userID(r))
	if errors.Is(err, common.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "No active subscription"})
		return
	}
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

type chargeRequest struct {
	PlanType        string `json:"plan_type"`
	ServiceType     string `json:"service_type"`
	PaymentMethodID string `json:"payment_method_id"`
}

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	key := r.Header.Get("Idempotency-Key")
	if prior, ok := s.replays.get(uid, key); ok {
		s.logger.Info("devserver.subscription.replay", "user_id", uid)
		writeJSON(w, prior.status, prior.body)
		return
	}

	var req chargeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch {
	case req.PlanType == "":
		writeError(w, http.StatusBadRequest, "plan_type is required")
		return
	case req.PaymentMethodID == "":
		writeError(w, http.StatusBadRequest, "payment_method_id is required")
		return
	}
	plan, ok := findPlan(req.PlanType)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid subscription plan")
		return
	}
	if !s.methods.consume(req.PaymentMethodID) {
		writeError(w, http.StatusPaymentRequired, "Payment method is invalid or already used")
		return
	}

	now := s.now().UTC()
	sub, err := s.subscriptions.Create(r.Context(), uid, plan.ID, now, now.AddDate(0, 0, subscriptionDays))
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	if _, err := s.charge(r, uid, plan.Price, req.PaymentMethodID); err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	s.logger.Info("devserver.subscription.created", "user_id", uid, "plan", plan.ID)
	s.replays.put(uid, key, http.StatusCreated, sub)
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	canceled, err := s.subscriptions.CancelActive(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	if !canceled {
		writeError(w, http.StatusBadRequest, "No active subscription found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Subscription canceled successfully"})
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.payments.List(r.Context(), userID(r))
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handlePurchaseService(w http.ResponseWriter, r *http.Request) {
	var req chargeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	switch {
	case req.ServiceType == "":
		writeError(w, http.StatusBadRequest, "service_type is required")
		return
	case req.PaymentMethodID == "":
		writeError(w, http.StatusBadRequest, "payment_method_id is required")
		return
	}
	svc, ok := findService(req.ServiceType)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid service type")
		return
	}
	if !s.methods.consume(req.PaymentMethodID) {
		writeError(w, http.StatusPaymentRequired, "Payment method is invalid or already used")
		return
	}
	p, err := s.charge(r, userID(r), svc.Price, req.PaymentMethodID)
	if err != nil {
		s.writeFailure(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) charge(r *http.Request, uid int64, amount entity.Money, method string) (*entity.Payment, error) {
	return s.payments.Create(r.Context(), repository.NewPayment{
		UserID:        uid,
		Amount:        amount,
		Currency:      "usd",
		PaymentMethod: method,
		TransactionID: "txn_" + uuid.NewString(),
		Status:        "succeeded",
	})
}
