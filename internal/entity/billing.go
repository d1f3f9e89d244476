package entity

import (
	"github.com/joseph-ayodele/tax-portal/constants"
)

// Subscription is the account's recurring plan. A nil *Subscription means
// there is no active subscription.
type Subscription struct {
	ID        int64                        `json:"id"`
	UserID    int64                        `json:"user_id"`
	PlanType  string                       `json:"plan_type"`
	StartDate Timestamp                    `json:"start_date"`
	EndDate   Timestamp                    `json:"end_date"`
	Status    constants.SubscriptionStatus `json:"status"`
}

// PlanDescriptor is a subscription tier after catalog normalization.
type PlanDescriptor struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Price    Money    `json:"price"`
	Features []string `json:"features"`
}

// ServiceDescriptor is a one-time service after catalog normalization.
type ServiceDescriptor struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       Money  `json:"price"`
	Description string `json:"description"`
}

// Payment is one row of the payment history.
type Payment struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	Amount        Money     `json:"amount"`
	Currency      string    `json:"currency"`
	PaymentMethod string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	Status        string    `json:"status"`
	CreatedAt     Timestamp `json:"created_at"`
}
