package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/mediahost"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/metrics"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errStoreDown = errors.New("store unavailable")

type fakeRecords struct {
	mu      sync.Mutex
	records []patient.Record
	clock   time.Time

	failCreate  bool
	failList    bool
	failNumbers bool
}

func (f *fakeRecords) Create(_ context.Context, r *patient.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errStoreDown
	}
	f.clock = f.clock.Add(time.Minute)
	r.ID = uuid.New()
	r.CreatedAt = f.clock
	r.UpdatedAt = f.clock
	f.records = append(f.records, *r)
	return nil
}

func (f *fakeRecords) GetByID(_ context.Context, id uuid.UUID) (*patient.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			r := f.records[i]
			return &r, nil
		}
	}
	return nil, patient.ErrRecordNotFound
}

func (f *fakeRecords) Overwrite(_ context.Context, r *patient.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == r.ID {
			r.CreatedAt = f.records[i].CreatedAt
			f.records[i] = *r
			return nil
		}
	}
	return patient.ErrRecordNotFound
}

func (f *fakeRecords) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return nil
		}
	}
	return patient.ErrRecordNotFound
}

func (f *fakeRecords) List(_ context.Context, q patient.ListQuery) ([]patient.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failList {
		return nil, errStoreDown
	}
	out := append([]patient.Record(nil), f.records...)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakeRecords) FindBy(_ context.Context, field patient.Field, value string) ([]patient.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []patient.Record
	for _, r := range f.records {
		if field == patient.FieldPatientName && r.PatientName == value {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Numbers(_ context.Context) ([]string, []string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNumbers {
		return nil, nil, errStoreDown
	}
	var op, reg []string
	for _, r := range f.records {
		op = append(op, r.OutpatientNo)
		reg = append(reg, r.RegistrationNo)
	}
	return op, reg, nil
}

func (f *fakeRecords) Count(_ context.Context, since *time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.records {
		if since == nil || !r.CreatedAt.Before(*since) {
			n++
		}
	}
	return n, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (f *fakeAudit) Create(_ context.Context, e *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, e)
	return nil
}

type fakeHost struct {
	mu      sync.Mutex
	uploads []mediahost.File
	failOn  map[string]bool
}

func (f *fakeHost) Upload(_ context.Context, file mediahost.File) (media.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, file)
	if f.failOn[file.Name] {
		return media.Attachment{}, mediahost.ErrUploadRejected
	}
	return media.Attachment{
		URL:      "https://cdn.example/" + file.Folder + "/" + file.Name,
		PublicID: file.Folder + "/" + file.Name,
		Kind:     media.KindOf(file.ContentType),
	}, nil
}

func (f *fakeHost) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type deskFixture struct {
	desk     *DeskService
	records  *fakeRecords
	host     *fakeHost
	spool    *session.Spool
	sessions *session.MemoryStore
	sess     *session.Session
}

var testNow = time.Date(2025, time.March, 10, 9, 15, 0, 0, time.UTC)

func newDeskFixture(t *testing.T) *deskFixture {
	t.Helper()

	log := zap.NewNop()
	m := metrics.NewCollector("test")
	records := &fakeRecords{clock: testNow.Add(-24 * time.Hour)}
	audit := NewAuditService(&fakeAudit{}, m, log)
	t.Cleanup(audit.Shutdown)

	forms, err := form.NewRegistry(media.ProfileSingle, media.ProfileMulti)
	require.NoError(t, err)

	host := &fakeHost{failOn: map[string]bool{}}
	spool := session.NewSpool(session.SpoolLimits{MaxBytes: 1 << 20, SessionFiles: 4, SessionBytes: 1 << 19}, time.Hour)
	sessions := session.NewMemoryStore(16, time.Hour)

	desk := NewDeskService(
		forms,
		NewPatientService(records, audit, log),
		NewNumberingService(records, m, log),
		sessions,
		spool,
		host,
		"patient-media",
		time.UTC,
		m,
		log,
	)
	desk.now = func() time.Time { return testNow }

	sess := session.New(&domain.User{
		ID:          uuid.New(),
		Username:    "desk1",
		DisplayName: "Front Desk",
		Role:        domain.RoleReceptionist,
	})
	require.NoError(t, sessions.Save(context.Background(), sess))

	return &deskFixture{desk: desk, records: records, host: host, spool: spool, sessions: sessions, sess: sess}
}

func (f *deskFixture) seed(names ...string) {
	dob := time.Date(1990, time.January, 15, 0, 0, 0, 0, time.UTC)
	for i, name := range names {
		rec := &patient.Record{
			DateOfBirth:      &dob,
			OutpatientNo:     fmt.Sprintf("%06d", i+1),
			RegistrationNo:   fmt.Sprintf("REG%06d", i+1),
			PatientName:      name,
			Gender:           patient.GenderMale,
			MaritalStatus:    patient.Unmarried,
			ConsultantDoctor: "Dr. Menon",
			OperatorName:     "Seeder",
		}
		_ = f.records.Create(context.Background(), rec)
	}
}

func validDeskInput(name string) *patient.Input {
	return &patient.Input{
		PatientName:      name,
		Gender:           "female",
		DateOfBirth:      "1988-07-01",
		ConsultantDoctor: "Dr. Iyer",
	}
}
