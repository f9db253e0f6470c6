package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

func TestPatientRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)
	id := uuid.New()

	mock.ExpectQuery(q(`INSERT INTO "clinical"."patient_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(id.String()))

	rec := &patient.Record{
		OutpatientNo:     "000001",
		RegistrationNo:   "REG000001",
		PatientName:      "Asha Rao",
		Gender:           patient.GenderFemale,
		MaritalStatus:    patient.Unmarried,
		ConsultantDoctor: "Dr. Menon",
	}
	require.NoError(t, repo.Create(context.Background(), rec))
	assert.Equal(t, id, rec.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)
	id := uuid.New()

	mock.ExpectQuery(q(`SELECT * FROM "clinical"."patient_records" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "outpatient_no", "patient_name", "media"}).
			AddRow(id.String(), "000002", "Ravi", `[{"url":"https://cdn/a.png","public_id":"a","kind":"image"}]`))

	rec, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "000002", rec.OutpatientNo)
	require.Len(t, rec.Media, 1)
	assert.Equal(t, "a", rec.Media[0].PublicID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_GetByID_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)

	mock.ExpectQuery(q(`SELECT * FROM "clinical"."patient_records" WHERE id = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, patient.ErrRecordNotFound)
}

func TestPatientRepository_Overwrite(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)
	rec := &patient.Record{ID: uuid.New(), PatientName: "Ravi K", Gender: patient.GenderMale}

	mock.ExpectExec(q(`UPDATE "clinical"."patient_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Overwrite(context.Background(), rec))

	mock.ExpectExec(q(`UPDATE "clinical"."patient_records" SET`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Overwrite(context.Background(), rec), patient.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_Delete(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)
	id := uuid.New()

	mock.ExpectExec(q(`DELETE FROM "clinical"."patient_records" WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), id))

	mock.ExpectExec(q(`DELETE FROM "clinical"."patient_records" WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), id), patient.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_List(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)

	mock.ExpectQuery(q(`SELECT * FROM "clinical"."patient_records" ORDER BY "patient_name" DESC,"id" DESC LIMIT`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_name"}).
			AddRow(uuid.NewString(), "Zara").
			AddRow(uuid.NewString(), "Asha"))

	recs, err := repo.List(context.Background(), patient.ListQuery{OrderBy: patient.FieldPatientName, Desc: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Zara", recs[0].PatientName)

	mock.ExpectQuery(q(`SELECT * FROM "clinical"."patient_records" ORDER BY "created_at","id"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	recs, err = repo.List(context.Background(), patient.ListQuery{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_FindBy(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)

	mock.ExpectQuery(q(`SELECT * FROM "clinical"."patient_records" WHERE "patient_name" = $1 ORDER BY created_at`)).
		WithArgs("Asha Rao").
		WillReturnRows(sqlmock.NewRows([]string{"id", "patient_name", "outpatient_no"}).
			AddRow(uuid.NewString(), "Asha Rao", "000001").
			AddRow(uuid.NewString(), "Asha Rao", "000009"))

	recs, err := repo.FindBy(context.Background(), patient.FieldPatientName, "Asha Rao")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_Numbers(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)

	mock.ExpectQuery(q(`SELECT "outpatient_no","registration_no" FROM "clinical"."patient_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"outpatient_no", "registration_no"}).
			AddRow("000001", "REG000001").
			AddRow("000002", "REG000002"))

	op, reg, err := repo.Numbers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"000001", "000002"}, op)
	assert.Equal(t, []string{"REG000001", "REG000002"}, reg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPatientRepository_Count(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPatientRepository(db)
	since := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q(`SELECT count(*) FROM "clinical"."patient_records" WHERE created_at >= $1`)).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	n, err := repo.Count(context.Background(), &since)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	mock.ExpectQuery(q(`SELECT count(*) FROM "clinical"."patient_records"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	n, err = repo.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepository_GetByUsername_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q(`SELECT * FROM "auth"."users" WHERE username = $1 AND deleted_at IS NULL`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_Create_Duplicate(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(q(`INSERT INTO "auth"."users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), &domain.User{Username: "desk1", DisplayName: "Desk", PasswordHash: "x", Role: domain.RoleReceptionist})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestUserRepository_UpdateLoginAttempt(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()
	until := time.Now().Add(15 * time.Minute)

	mock.ExpectExec(q(`UPDATE "auth"."users" SET "failed_login_count"=failed_login_count + 1,"locked_until"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateLoginAttempt(context.Background(), id, false, &until))

	mock.ExpectExec(q(`UPDATE "auth"."users" SET "failed_login_count"=$1,"last_login_at"=$2,"locked_until"=$3`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.UpdateLoginAttempt(context.Background(), id, true, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepository_Create(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditRepository(db)

	mock.ExpectQuery(q(`INSERT INTO "audit"."logs"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(uuid.NewString()))

	err := repo.Create(context.Background(), &domain.AuditLog{
		UserID:       uuid.New(),
		UserRole:     domain.RoleDoctor,
		Action:       domain.ActionRead,
		ResourceType: "patient_record",
		Changes:      "{}",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
