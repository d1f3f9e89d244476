package entity

import (
	"encoding/json"

	"github.com/joseph-ayodele/tax-portal/constants"
)

// AccountSummary describes a client account as listed for a CPA.
type AccountSummary struct {
	ID          int64              `json:"id"`
	Email       string             `json:"email"`
	PhoneNumber *string            `json:"phone_number"`
	UserType    constants.UserType `json:"user_type"`
	Profile     json.RawMessage    `json:"profile,omitempty"`
	CreatedAt   Timestamp          `json:"created_at"`
	UpdatedAt   Timestamp          `json:"updated_at"`
}

// DisplayName prefers first/last name from the profile blob and falls back to the email.
func (a AccountSummary) DisplayName() string {
	var p struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if len(a.Profile) > 0 && json.Unmarshal(a.Profile, &p) == nil {
		switch {
		case p.FirstName != "" && p.LastName != "":
			return p.FirstName + " " + p.LastName
		case p.FirstName != "":
			return p.FirstName
		}
	}
	return a.Email
}
