package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 500
	maxListLimit     = 5000
)

type PatientService struct {
	repo     patient.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewPatientService(repo patient.Repository, auditSvc *AuditService, log *zap.Logger) *PatientService {
	return &PatientService{
		repo:     repo,
		auditSvc: auditSvc,
		log:      log,
	}
}

// Create stores a record that has already been validated by its form.
func (s *PatientService) Create(ctx context.Context, rec *patient.Record, callerID uuid.UUID, callerRole string, ip string) error {
	if err := s.repo.Create(ctx, rec); err != nil {
		s.log.Error("failed to create patient record", zap.Error(err))
		return fmt.Errorf("creating patient record: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       string(domain.ActionCreate),
		ResourceType: "patient_record",
		ResourceID:   rec.ID.String(),
		IPAddress:    ip,
	})

	s.log.Info("patient record created",
		zap.String("record_id", rec.ID.String()),
		zap.String("outpatient_no", rec.OutpatientNo),
		zap.String("created_by", callerID.String()),
	)
	return nil
}

// Overwrite replaces a stored record wholesale. Nothing checks that the
// stored copy is still the one the operator loaded.
func (s *PatientService) Overwrite(ctx context.Context, rec *patient.Record, callerID uuid.UUID, callerRole string, ip string) error {
	if err := s.repo.Overwrite(ctx, rec); err != nil {
		s.log.Error("failed to overwrite patient record", zap.String("record_id", rec.ID.String()), zap.Error(err))
		return fmt.Errorf("overwriting patient record: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       string(domain.ActionUpdate),
		ResourceType: "patient_record",
		ResourceID:   rec.ID.String(),
		IPAddress:    ip,
	})
	return nil
}

// Delete removes the record. Its uploaded media stay at the media host.
func (s *PatientService) Delete(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) error {
	if !canManageRecords(domain.Role(callerRole)) {
		return ErrForbidden
	}

	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error("failed to delete patient record", zap.String("record_id", id.String()), zap.Error(err))
		return fmt.Errorf("deleting patient record: %w", err)
	}

	if len(rec.Media) > 0 {
		s.log.Warn("deleted record left media at the host",
			zap.String("record_id", id.String()),
			zap.Strings("public_ids", rec.PublicIDs()),
		)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       string(domain.ActionDelete),
		ResourceType: "patient_record",
		ResourceID:   id.String(),
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"outpatient_no":%q,"patient_name":%q}`, rec.OutpatientNo, rec.PatientName),
	})
	return nil
}

func (s *PatientService) Get(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (*patient.Record, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       string(domain.ActionRead),
		ResourceType: "patient_record",
		ResourceID:   id.String(),
		IPAddress:    ip,
	})
	return rec, nil
}

// List returns records in the requested order. A zero limit means the
// default page size; limits above the maximum are clamped.
func (s *PatientService) List(ctx context.Context, q patient.ListQuery) ([]patient.Record, error) {
	if q.OrderBy == "" {
		q.OrderBy = patient.FieldCreatedAt
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return s.repo.List(ctx, q)
}

// All returns every record oldest first, for the desk's navigation cache.
func (s *PatientService) All(ctx context.Context) ([]patient.Record, error) {
	return s.repo.List(ctx, patient.ListQuery{OrderBy: patient.FieldCreatedAt})
}

// Find filters by exact match on one whitelisted field.
func (s *PatientService) Find(ctx context.Context, field, value string) ([]patient.Record, error) {
	f, err := patient.ParseField(field)
	if err != nil {
		return nil, &ValidationError{Fields: []string{fmt.Sprintf("field %q cannot be searched", field)}}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, &ValidationError{Fields: []string{"value is required"}}
	}
	return s.repo.FindBy(ctx, f, value)
}

// Stats counts all records and those created since local midnight of now.
func (s *PatientService) Stats(ctx context.Context, now time.Time) (patient.Stats, error) {
	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return patient.Stats{}, err
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.repo.Count(ctx, &midnight)
	if err != nil {
		return patient.Stats{}, err
	}
	return patient.Stats{Total: total, Today: today}, nil
}

// Nurses record vitals but do not remove or export records.
func canManageRecords(role domain.Role) bool {
	switch role {
	case domain.RoleAdmin, domain.RoleDoctor, domain.RoleReceptionist:
		return true
	}
	return false
}
