package ipd

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/platform/db"
	"github.com/hms/hms/internal/platform/hmserr"
)

type Service struct {
	wards        WardRepository
	beds         BedRepository
	admissions   AdmissionRepository
	observations ObservationRepository
	runTx        db.TxRunner
}

func NewService(wards WardRepository, beds BedRepository, admissions AdmissionRepository, observations ObservationRepository, runTx db.TxRunner) *Service {
	return &Service{
		wards:        wards,
		beds:         beds,
		admissions:   admissions,
		observations: observations,
		runTx:        runTx,
	}
}

// -- Wards and beds --

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	if w.Name == "" {
		return hmserr.Validation("ward name is required")
	}
	if w.Capacity <= 0 {
		return hmserr.Validation("ward capacity must be positive")
	}
	return s.wards.Create(ctx, w)
}

func (s *Service) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return s.wards.GetByID(ctx, id)
}

func (s *Service) ListWards(ctx context.Context, limit, offset int) ([]*Ward, int, error) {
	return s.wards.List(ctx, limit, offset)
}

func (s *Service) UpdateWard(ctx context.Context, w *Ward) error {
	if w.Name == "" {
		return hmserr.Validation("ward name is required")
	}
	return s.wards.Update(ctx, w)
}

func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	if b.Number == "" {
		return hmserr.Validation("bed number is required")
	}
	if b.DailyTariff < 0 {
		return hmserr.Validation("daily tariff must not be negative")
	}
	if _, err := s.wards.GetByID(ctx, b.WardID); err != nil {
		return err
	}
	b.Status = BedFree
	return s.beds.Create(ctx, b)
}

func (s *Service) ListBeds(ctx context.Context, wardID uuid.UUID, status string) ([]*Bed, error) {
	if status != "" && !validBedStatuses[status] {
		return nil, hmserr.Validation("invalid bed status %q", status)
	}
	return s.beds.ListByWard(ctx, wardID, status)
}

// SetBedMaintenance takes a free bed out of service or returns it.
func (s *Service) SetBedMaintenance(ctx context.Context, id uuid.UUID, underMaintenance bool) error {
	return s.runTx(ctx, func(txCtx context.Context) error {
		b, err := s.beds.GetByIDForUpdate(txCtx, id)
		if err != nil {
			return err
		}
		if b.Status == BedOccupied {
			return hmserr.Conflict("an occupied bed cannot change maintenance state")
		}
		status := BedFree
		if underMaintenance {
			status = BedMaintenance
		}
		return s.beds.UpdateStatus(txCtx, id, status)
	})
}

// -- Admissions --

// Admit places the patient in a bed. The bed flips to occupied in the same
// transaction that creates the admission, and the row lock keeps two
// admissions from racing for one bed.
func (s *Service) Admit(ctx context.Context, a *Admission) error {
	if a.PatientID == uuid.Nil {
		return hmserr.Validation("patient_id is required")
	}
	if a.DoctorID == uuid.Nil {
		return hmserr.Validation("doctor_id is required")
	}
	if a.Diagnosis == "" {
		return hmserr.Validation("diagnosis is required")
	}
	if a.AdmittedAt.IsZero() {
		a.AdmittedAt = time.Now().UTC()
	}
	a.AdmittedAt = a.AdmittedAt.UTC()
	a.Status = AdmissionActive

	return s.runTx(ctx, func(txCtx context.Context) error {
		bed, err := s.beds.GetByIDForUpdate(txCtx, a.BedID)
		if err != nil {
			return err
		}
		if bed.Status != BedFree {
			return hmserr.Conflict("bed %s is %s", bed.Number, bed.Status)
		}
		if err := s.beds.UpdateStatus(txCtx, bed.ID, BedOccupied); err != nil {
			return err
		}
		return s.admissions.Create(txCtx, a)
	})
}

func (s *Service) GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.admissions.GetByID(ctx, id)
}

func (s *Service) SearchAdmissions(ctx context.Context, params AdmissionSearchParams, limit, offset int) ([]*Admission, int, error) {
	return s.admissions.Search(ctx, params, limit, offset)
}

// Discharge closes the admission and frees the bed atomically.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, notes *string) (*Admission, error) {
	var discharged *Admission
	err := s.runTx(ctx, func(txCtx context.Context) error {
		a, err := s.admissions.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if a.Status != AdmissionActive {
			return hmserr.Conflict("admission is already %s", a.Status)
		}
		now := time.Now().UTC()
		a.Status = AdmissionDischarged
		a.DischargedAt = &now
		if notes != nil {
			a.Notes = notes
		}
		if err := s.admissions.Update(txCtx, a); err != nil {
			return err
		}
		if err := s.beds.UpdateStatus(txCtx, a.BedID, BedFree); err != nil {
			return err
		}
		discharged = a
		return nil
	})
	return discharged, err
}

// -- Bedside records --

func (s *Service) activeAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.admissions.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != AdmissionActive {
		return nil, hmserr.Conflict("admission is %s, records can only be added to an active admission", a.Status)
	}
	return a, nil
}

func (s *Service) RecordVitalSign(ctx context.Context, v *VitalSign) error {
	if v.RecordedBy == uuid.Nil {
		return hmserr.Validation("recorded_by is required")
	}
	if v.Temperature == nil && v.PulseRate == nil && v.RespRate == nil &&
		v.SystolicBP == nil && v.DiastolicBP == nil && v.SpO2 == nil {
		return hmserr.Validation("at least one measurement is required")
	}
	if _, err := s.activeAdmission(ctx, v.AdmissionID); err != nil {
		return err
	}
	if v.RecordedAt.IsZero() {
		v.RecordedAt = time.Now().UTC()
	}
	return s.observations.CreateVitalSign(ctx, v)
}

func (s *Service) ListVitalSigns(ctx context.Context, admissionID uuid.UUID) ([]*VitalSign, error) {
	if _, err := s.admissions.GetByID(ctx, admissionID); err != nil {
		return nil, err
	}
	return s.observations.ListVitalSigns(ctx, admissionID)
}

func (s *Service) RecordNursingNote(ctx context.Context, n *NursingNote) error {
	if n.RecordedBy == uuid.Nil {
		return hmserr.Validation("recorded_by is required")
	}
	if n.Note == "" {
		return hmserr.Validation("note text is required")
	}
	if _, err := s.activeAdmission(ctx, n.AdmissionID); err != nil {
		return err
	}
	if n.RecordedAt.IsZero() {
		n.RecordedAt = time.Now().UTC()
	}
	return s.observations.CreateNursingNote(ctx, n)
}

func (s *Service) ListNursingNotes(ctx context.Context, admissionID uuid.UUID) ([]*NursingNote, error) {
	if _, err := s.admissions.GetByID(ctx, admissionID); err != nil {
		return nil, err
	}
	return s.observations.ListNursingNotes(ctx, admissionID)
}

func (s *Service) RecordProgressNote(ctx context.Context, n *ProgressNote) error {
	if n.RecordedBy == uuid.Nil {
		return hmserr.Validation("recorded_by is required")
	}
	if n.Note == "" {
		return hmserr.Validation("note text is required")
	}
	if _, err := s.activeAdmission(ctx, n.AdmissionID); err != nil {
		return err
	}
	if n.RecordedAt.IsZero() {
		n.RecordedAt = time.Now().UTC()
	}
	return s.observations.CreateProgressNote(ctx, n)
}

func (s *Service) ListProgressNotes(ctx context.Context, admissionID uuid.UUID) ([]*ProgressNote, error) {
	if _, err := s.admissions.GetByID(ctx, admissionID); err != nil {
		return nil, err
	}
	return s.observations.ListProgressNotes(ctx, admissionID)
}
