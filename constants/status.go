package constants

// ReturnStatus is the lifecycle status of a tax return record.
type ReturnStatus string

const (
	ReturnDraft    ReturnStatus = "draft"
	ReturnInReview ReturnStatus = "in_review"
	ReturnFiled    ReturnStatus = "filed"
)

// Valid reports whether s is a known return status.
func (s ReturnStatus) Valid() bool {
	switch s {
	case ReturnDraft, ReturnInReview, ReturnFiled:
		return true
	}
	return false
}

// SubscriptionStatus mirrors the backend subscription status column.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// UserType gates the CPA-only views.
type UserType string

const (
	UserIndividual UserType = "individual"
	UserBusiness   UserType = "business"
	UserCPA        UserType = "cpa"
)
