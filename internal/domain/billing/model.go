package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/fhir"
)

const (
	StatusDraft     = "draft"
	StatusApproved  = "approved"
	StatusPartial   = "partial"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// payableStatuses are the invoice states that accept a payment.
var payableStatuses = map[string]bool{
	StatusApproved: true,
	StatusPartial:  true,
	StatusOverdue:  true,
}

const (
	MethodCash      = "cash"
	MethodCard      = "card"
	MethodTransfer  = "transfer"
	MethodInsurance = "insurance"
)

var validMethods = map[string]bool{
	MethodCash:      true,
	MethodCard:      true,
	MethodTransfer:  true,
	MethodInsurance: true,
}

type Invoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	InvoiceNumber string     `db:"invoice_number" json:"invoice_number"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	AdmissionID   *uuid.UUID `db:"admission_id" json:"admission_id,omitempty"`
	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	Status        string     `db:"status" json:"status"`
	TotalAmount   float64    `db:"total_amount" json:"total_amount"`
	PaidAmount    float64    `db:"paid_amount" json:"paid_amount"`
	Outstanding   float64    `db:"outstanding_amount" json:"outstanding_amount"`
	DueDate       *time.Time `db:"due_date" json:"due_date,omitempty"`
	Notes         *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	LineItems []*LineItem `json:"line_items,omitempty"`
}

type LineItem struct {
	ID          uuid.UUID `db:"id" json:"id"`
	InvoiceID   uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Description string    `db:"description" json:"description"`
	Quantity    int       `db:"quantity" json:"quantity"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	Amount      float64   `db:"amount" json:"amount"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type Payment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	InvoiceID  uuid.UUID `db:"invoice_id" json:"invoice_id"`
	Amount     float64   `db:"amount" json:"amount"`
	Method     string    `db:"method" json:"method"`
	Reference  *string   `db:"reference" json:"reference,omitempty"`
	ReceivedAt time.Time `db:"received_at" json:"received_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Currency for all monetary amounts. Single-currency deployment.
const Currency = "USD"

func fhirInvoiceStatus(status string) string {
	switch status {
	case StatusDraft:
		return "draft"
	case StatusPaid:
		return "balanced"
	case StatusCancelled:
		return "cancelled"
	default:
		return "issued"
	}
}

// ToFHIR renders the invoice as a FHIR R4 Invoice resource.
func (inv *Invoice) ToFHIR() map[string]interface{} {
	resource := map[string]interface{}{
		"resourceType": "Invoice",
		"id":           inv.ID.String(),
		"identifier": []fhir.Identifier{
			{System: "urn:hms:invoice", Value: inv.InvoiceNumber},
		},
		"status":  fhirInvoiceStatus(inv.Status),
		"subject": fhir.NewReference("Patient", inv.PatientID.String(), ""),
		"date":    inv.CreatedAt.Format(time.RFC3339),
		"totalGross": fhir.Money{
			Value:    inv.TotalAmount,
			Currency: Currency,
		},
	}
	if len(inv.LineItems) > 0 {
		lines := make([]map[string]interface{}, 0, len(inv.LineItems))
		for i, li := range inv.LineItems {
			lines = append(lines, map[string]interface{}{
				"sequence": i + 1,
				"chargeItemCodeableConcept": fhir.CodeableConcept{
					Text: li.Description,
				},
				"priceComponent": []map[string]interface{}{
					{
						"type":   "base",
						"factor": li.Quantity,
						"amount": fhir.Money{Value: li.Amount, Currency: Currency},
					},
				},
			})
		}
		resource["lineItem"] = lines
	}
	return resource
}
