package entity

import (
	"encoding/json"

	"github.com/joseph-ayodele/tax-portal/constants"
)

// TaxReturn is a tax-return record for one filing year.
type TaxReturn struct {
	ID         int64                  `json:"id"`
	UserID     int64                  `json:"user_id"`
	CPAID      *int64                 `json:"cpa_id"`
	Year       int                    `json:"year"`
	Status     constants.ReturnStatus `json:"status"`
	ReturnData json.RawMessage        `json:"return_data,omitempty"`
	CreatedAt  Timestamp              `json:"created_at"`
	UpdatedAt  Timestamp              `json:"updated_at"`
}
