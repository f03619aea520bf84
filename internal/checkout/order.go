package checkout

import (
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-plano/internal/form"
	"github.com/noah-isme/backend-plano/internal/pricing"
)

// Order is the record handed to the submitter. Plan carries the wizard billing
// mode and Pricing is computed for that mode.
type Order struct {
	ID          uuid.UUID         `json:"id"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Plan        pricing.Plan      `json:"plan"`
	Pricing     pricing.Breakdown `json:"pricing"`
	Personal    form.PersonalInfo `json:"personal"`
	Company     form.CompanyInfo  `json:"company"`
	Address     form.AddressInfo  `json:"address"`
}
