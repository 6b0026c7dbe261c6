package insurance

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/platform/fhir"
)

const (
	PolicyActive    = "active"
	PolicyExpired   = "expired"
	PolicyCancelled = "cancelled"
)

const (
	ClaimSubmitted = "submitted"
	ClaimInReview  = "in-review"
	ClaimApproved  = "approved"
	ClaimRejected  = "rejected"
	ClaimSettled   = "settled"
)

var claimTransitions = map[string][]string{
	ClaimSubmitted: {ClaimInReview, ClaimRejected},
	ClaimInReview:  {ClaimApproved, ClaimRejected},
	ClaimApproved:  {ClaimSettled},
}

func claimTransitionAllowed(from, to string) bool {
	for _, allowed := range claimTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type Provider struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Email     *string   `db:"email" json:"email,omitempty"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Policy struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PatientID      uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID     uuid.UUID `db:"provider_id" json:"provider_id"`
	PolicyNumber   string    `db:"policy_number" json:"policy_number"`
	CoverageAmount float64   `db:"coverage_amount" json:"coverage_amount"`
	ValidFrom      time.Time `db:"valid_from" json:"valid_from"`
	ValidTo        time.Time `db:"valid_to" json:"valid_to"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// ValidAt reports whether the policy covers the given moment.
func (p *Policy) ValidAt(t time.Time) bool {
	return p.Status == PolicyActive && !t.Before(p.ValidFrom) && !t.After(p.ValidTo)
}

type Claim struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ClaimNumber    string     `db:"claim_number" json:"claim_number"`
	PolicyID       uuid.UUID  `db:"policy_id" json:"policy_id"`
	InvoiceID      uuid.UUID  `db:"invoice_id" json:"invoice_id"`
	AmountClaimed  float64    `db:"amount_claimed" json:"amount_claimed"`
	AmountApproved *float64   `db:"amount_approved" json:"amount_approved,omitempty"`
	Status         string     `db:"status" json:"status"`
	Notes          *string    `db:"notes" json:"notes,omitempty"`
	SettledAt      *time.Time `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ToFHIR renders the policy as a FHIR R4 Coverage resource.
func (p *Policy) ToFHIR() map[string]interface{} {
	status := "active"
	if p.Status != PolicyActive {
		status = "cancelled"
	}
	return map[string]interface{}{
		"resourceType": "Coverage",
		"id":           p.ID.String(),
		"identifier": []fhir.Identifier{
			{System: "urn:hms:policy", Value: p.PolicyNumber},
		},
		"status":      status,
		"beneficiary": fhir.NewReference("Patient", p.PatientID.String(), ""),
		"payor": []*fhir.Reference{
			fhir.NewReference("Organization", p.ProviderID.String(), ""),
		},
		"period": fhir.Period{
			Start: &p.ValidFrom,
			End:   &p.ValidTo,
		},
	}
}

func fhirClaimStatus(status string) string {
	switch status {
	case ClaimRejected:
		return "cancelled"
	default:
		return "active"
	}
}

// ToFHIR renders the claim as a FHIR R4 Claim resource.
func (c *Claim) ToFHIR() map[string]interface{} {
	resource := map[string]interface{}{
		"resourceType": "Claim",
		"id":           c.ID.String(),
		"identifier": []fhir.Identifier{
			{System: "urn:hms:claim", Value: c.ClaimNumber},
		},
		"status": fhirClaimStatus(c.Status),
		"use":    "claim",
		"insurance": []map[string]interface{}{
			{"sequence": 1, "focal": true, "coverage": fhir.NewReference("Coverage", c.PolicyID.String(), "")},
		},
		"total":   fhir.Money{Value: c.AmountClaimed, Currency: billing.Currency},
		"created": c.CreatedAt.Format(time.RFC3339),
	}
	return resource
}
