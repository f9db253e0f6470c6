package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, rec *patient.Record) error {
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("inserting patient record: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id uuid.UUID) (*patient.Record, error) {
	var rec patient.Record
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, patient.ErrRecordNotFound
		}
		return nil, fmt.Errorf("fetching patient record: %w", err)
	}
	return &rec, nil
}

// Overwrite writes every column, zero values included, except the key and
// creation time.
func (r *PatientRepository) Overwrite(ctx context.Context, rec *patient.Record) error {
	res := r.db.WithContext(ctx).
		Model(rec).
		Select("*").
		Omit("id", "created_at").
		Updates(rec)
	if res.Error != nil {
		return fmt.Errorf("overwriting patient record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrRecordNotFound
	}
	return nil
}

func (r *PatientRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&patient.Record{})
	if res.Error != nil {
		return fmt.Errorf("deleting patient record: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrRecordNotFound
	}
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q patient.ListQuery) ([]patient.Record, error) {
	orderBy := q.OrderBy
	if orderBy == "" {
		orderBy = patient.FieldCreatedAt
	}

	tx := r.db.WithContext(ctx).
		Order(clause.OrderByColumn{Column: clause.Column{Name: string(orderBy)}, Desc: q.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Desc})
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var recs []patient.Record
	if err := tx.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing patient records: %w", err)
	}
	return recs, nil
}

func (r *PatientRepository) FindBy(ctx context.Context, field patient.Field, value string) ([]patient.Record, error) {
	var recs []patient.Record
	err := r.db.WithContext(ctx).
		Where(clause.Eq{Column: clause.Column{Name: string(field)}, Value: value}).
		Order("created_at").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("searching patient records by %s: %w", field, err)
	}
	return recs, nil
}

type issuedNumbers struct {
	OutpatientNo   string
	RegistrationNo string
}

func (r *PatientRepository) Numbers(ctx context.Context) ([]string, []string, error) {
	var rows []issuedNumbers
	err := r.db.WithContext(ctx).
		Model(&patient.Record{}).
		Select("outpatient_no", "registration_no").
		Find(&rows).Error
	if err != nil {
		return nil, nil, fmt.Errorf("reading issued numbers: %w", err)
	}

	outpatient := make([]string, 0, len(rows))
	registration := make([]string, 0, len(rows))
	for _, row := range rows {
		outpatient = append(outpatient, row.OutpatientNo)
		registration = append(registration, row.RegistrationNo)
	}
	return outpatient, registration, nil
}

func (r *PatientRepository) Count(ctx context.Context, since *time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&patient.Record{})
	if since != nil {
		tx = tx.Where("created_at >= ?", *since)
	}

	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting patient records: %w", err)
	}
	return n, nil
}
