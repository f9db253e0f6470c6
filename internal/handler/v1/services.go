package v1

import (
	"context"
	"io"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/service"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/google/uuid"
)

// The handlers depend on these narrow views of the services.

type AuthService interface {
	Login(ctx context.Context, username, password, otpCode, ip string) (*domain.TokenPair, *session.Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	Logout(ctx context.Context, sess *session.Session, ip string) error
}

type DeskService interface {
	Forms() form.Registry
	Open(ctx context.Context, sess *session.Session, formName string) (*service.DeskView, error)
	Dispatch(ctx context.Context, sess *session.Session, formName string, action navigation.Action, in *patient.Input, ip string) (*service.DeskView, error)
	Key(ctx context.Context, sess *session.Session, formName, key, focusTag string, in *patient.Input, ip string) (*service.DeskView, bool, error)
	AttachMedia(ctx context.Context, sess *session.Session, formName, fileName string, size int64, r io.Reader) (*service.DeskView, error)
	RemoveMedia(ctx context.Context, sess *session.Session, formName string, index int) (*service.DeskView, error)
	PendingFile(sess *session.Session, id string) (*session.Blob, error)
}

type PatientService interface {
	List(ctx context.Context, q patient.ListQuery) ([]patient.Record, error)
	Find(ctx context.Context, field, value string) ([]patient.Record, error)
	Get(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) (*patient.Record, error)
	Delete(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole string, ip string) error
	Stats(ctx context.Context, now time.Time) (patient.Stats, error)
}

type ExportService interface {
	WriteRegister(ctx context.Context, w io.Writer, callerID uuid.UUID, callerRole string, ip string) error
}
