package insurance

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/billing"
	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

// InvoicePayer is the slice of the billing service claims settle through.
type InvoicePayer interface {
	GetInvoice(ctx context.Context, id uuid.UUID) (*billing.Invoice, error)
	ApplyPayment(ctx context.Context, invoiceID uuid.UUID, amount float64, method string, reference *string) (*billing.Invoice, error)
}

type Service struct {
	providers ProviderRepository
	policies  PolicyRepository
	claims    ClaimRepository
	billing   InvoicePayer
	runTx     db.TxRunner
}

func NewService(providers ProviderRepository, policies PolicyRepository, claims ClaimRepository, payer InvoicePayer, runTx db.TxRunner) *Service {
	return &Service{providers: providers, policies: policies, claims: claims, billing: payer, runTx: runTx}
}

// -- Providers --

func (s *Service) CreateProvider(ctx context.Context, p *Provider) error {
	if p.Name == "" {
		return hmserr.Validation("provider name is required")
	}
	if p.Code == "" {
		return hmserr.Validation("provider code is required")
	}
	p.Active = true
	return s.providers.Create(ctx, p)
}

func (s *Service) GetProvider(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.GetByID(ctx, id)
}

func (s *Service) ListProviders(ctx context.Context, limit, offset int) ([]*Provider, int, error) {
	return s.providers.List(ctx, limit, offset)
}

func (s *Service) UpdateProvider(ctx context.Context, p *Provider) error {
	if p.Name == "" {
		return hmserr.Validation("provider name is required")
	}
	if p.Code == "" {
		return hmserr.Validation("provider code is required")
	}
	return s.providers.Update(ctx, p)
}

// -- Policies --

func (s *Service) CreatePolicy(ctx context.Context, p *Policy) error {
	if p.PatientID == uuid.Nil {
		return hmserr.Validation("patient_id is required")
	}
	if p.PolicyNumber == "" {
		return hmserr.Validation("policy_number is required")
	}
	if p.CoverageAmount <= 0 {
		return hmserr.Validation("coverage_amount must be positive")
	}
	if !p.ValidTo.After(p.ValidFrom) {
		return hmserr.Validation("valid_to must be after valid_from")
	}
	provider, err := s.providers.GetByID(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !provider.Active {
		return hmserr.Conflict("provider %s is not active", provider.Name)
	}
	p.Status = PolicyActive
	return s.policies.Create(ctx, p)
}

func (s *Service) GetPolicy(ctx context.Context, id uuid.UUID) (*Policy, error) {
	return s.policies.GetByID(ctx, id)
}

func (s *Service) SearchPolicies(ctx context.Context, params PolicySearchParams, limit, offset int) ([]*Policy, int, error) {
	return s.policies.Search(ctx, params, limit, offset)
}

func (s *Service) CancelPolicy(ctx context.Context, id uuid.UUID) error {
	p, err := s.policies.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != PolicyActive {
		return hmserr.Conflict("only an active policy can be cancelled")
	}
	return s.policies.UpdateStatus(ctx, id, PolicyCancelled)
}

// -- Claims --

func generateClaimNumber() string {
	return "CLM-" + strings.ToUpper(uuid.New().String()[:8])
}

// SubmitClaim opens a claim for an invoice under a policy. The claimed
// amount is capped by both the policy coverage and the invoice outstanding
// balance at submission time.
func (s *Service) SubmitClaim(ctx context.Context, policyID, invoiceID uuid.UUID, amount float64, notes *string) (*Claim, error) {
	if amount <= 0 {
		return nil, hmserr.Validation("claim amount must be positive")
	}
	policy, err := s.policies.GetByID(ctx, policyID)
	if err != nil {
		return nil, err
	}
	if !policy.ValidAt(time.Now().UTC()) {
		return nil, hmserr.Conflict("policy %s is not valid at submission time", policy.PolicyNumber)
	}
	if amount > policy.CoverageAmount {
		return nil, hmserr.Conflict("claim of %.2f exceeds policy coverage of %.2f", amount, policy.CoverageAmount)
	}
	inv, err := s.billing.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if amount > inv.Outstanding {
		return nil, hmserr.Conflict("claim of %.2f exceeds invoice outstanding of %.2f", amount, inv.Outstanding)
	}

	claim := &Claim{
		ClaimNumber:   generateClaimNumber(),
		PolicyID:      policyID,
		InvoiceID:     invoiceID,
		AmountClaimed: amount,
		Status:        ClaimSubmitted,
		Notes:         notes,
	}
	if err := s.claims.Create(ctx, claim); err != nil {
		return nil, err
	}
	return claim, nil
}

func (s *Service) GetClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) SearchClaims(ctx context.Context, params ClaimSearchParams, limit, offset int) ([]*Claim, int, error) {
	return s.claims.Search(ctx, params, limit, offset)
}

func (s *Service) ReviewClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.transitionClaim(ctx, id, ClaimInReview, func(*Claim) error { return nil })
}

func (s *Service) ApproveClaim(ctx context.Context, id uuid.UUID, amountApproved float64) (*Claim, error) {
	if amountApproved <= 0 {
		return nil, hmserr.Validation("approved amount must be positive")
	}
	return s.transitionClaim(ctx, id, ClaimApproved, func(c *Claim) error {
		if amountApproved > c.AmountClaimed {
			return hmserr.Conflict("approved amount %.2f exceeds claimed amount %.2f", amountApproved, c.AmountClaimed)
		}
		c.AmountApproved = &amountApproved
		return nil
	})
}

func (s *Service) RejectClaim(ctx context.Context, id uuid.UUID, reason string) (*Claim, error) {
	if reason == "" {
		return nil, hmserr.Validation("rejection reason is required")
	}
	return s.transitionClaim(ctx, id, ClaimRejected, func(c *Claim) error {
		c.Notes = &reason
		return nil
	})
}

// SettleClaim pays the approved amount into the invoice and closes the
// claim. Payment and claim update commit or roll back together.
func (s *Service) SettleClaim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	var settled *Claim
	err := s.runTx(ctx, func(txCtx context.Context) error {
		c, err := s.claims.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !claimTransitionAllowed(c.Status, ClaimSettled) {
			return hmserr.Conflict("cannot settle a claim in status %s", c.Status)
		}
		if c.AmountApproved == nil {
			return hmserr.Conflict("claim has no approved amount")
		}
		ref := c.ClaimNumber
		if _, err := s.billing.ApplyPayment(txCtx, c.InvoiceID, *c.AmountApproved, billing.MethodInsurance, &ref); err != nil {
			return err
		}
		now := time.Now().UTC()
		c.Status = ClaimSettled
		c.SettledAt = &now
		if err := s.claims.Update(txCtx, c); err != nil {
			return err
		}
		settled = c
		return nil
	})
	return settled, err
}

func (s *Service) transitionClaim(ctx context.Context, id uuid.UUID, to string, apply func(*Claim) error) (*Claim, error) {
	var updated *Claim
	err := s.runTx(ctx, func(txCtx context.Context) error {
		c, err := s.claims.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if !claimTransitionAllowed(c.Status, to) {
			return hmserr.Conflict("cannot move claim from %s to %s", c.Status, to)
		}
		if err := apply(c); err != nil {
			return err
		}
		c.Status = to
		if err := s.claims.Update(txCtx, c); err != nil {
			return err
		}
		updated = c
		return nil
	})
	return updated, err
}
