// Package session keeps the per-operator desk state between requests. A
// session is created on login and deleted on logout; each form variant gets
// its own workspace inside it.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session not found or expired")

type Session struct {
	ID          string                   `json:"id"`
	OperatorID  uuid.UUID                `json:"operator_id"`
	Username    string                   `json:"username"`
	DisplayName string                   `json:"display_name"`
	Role        domain.Role              `json:"role"`
	CreatedAt   time.Time                `json:"created_at"`
	Workspaces  map[form.Kind]*Workspace `json:"workspaces,omitempty"`
}

// Workspace is the state of one open form. Records is the locally cached
// list the navigator indexes into; it is only as fresh as the last reload.
type Workspace struct {
	Nav     navigation.Navigator `json:"nav"`
	Records []patient.Record     `json:"records"`

	// Draft carries what the operator cannot type: derived numbers,
	// operator name and already uploaded media.
	Draft   *patient.Record `json:"draft,omitempty"`
	Input   *patient.Input  `json:"input,omitempty"`
	Pending []media.Pending `json:"pending,omitempty"`
}

func New(user *domain.User) *Session {
	return &Session{
		ID:          uuid.NewString(),
		OperatorID:  user.ID,
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CreatedAt:   time.Now().UTC(),
		Workspaces:  make(map[form.Kind]*Workspace),
	}
}

func (s *Session) Workspace(kind form.Kind) (*Workspace, bool) {
	ws, ok := s.Workspaces[kind]
	return ws, ok
}

func (s *Session) SetWorkspace(kind form.Kind, ws *Workspace) {
	if s.Workspaces == nil {
		s.Workspaces = make(map[form.Kind]*Workspace)
	}
	s.Workspaces[kind] = ws
}

// CloseWorkspace drops a form's workspace and returns the pending file ids
// it held.
func (s *Session) CloseWorkspace(kind form.Kind) []string {
	ws, ok := s.Workspaces[kind]
	if !ok {
		return nil
	}
	delete(s.Workspaces, kind)
	return ws.PendingIDs()
}

// PendingIDs lists every spooled file referenced by the session.
func (s *Session) PendingIDs() []string {
	var ids []string
	for _, ws := range s.Workspaces {
		ids = append(ids, ws.PendingIDs()...)
	}
	return ids
}

// Current returns the cached record under the navigator, if any.
func (w *Workspace) Current() (*patient.Record, bool) {
	if !w.Nav.HasCurrent() || w.Nav.Index >= len(w.Records) {
		return nil, false
	}
	return &w.Records[w.Nav.Index], true
}

// IndexOf locates a record by id in the cached list, or returns -1.
func (w *Workspace) IndexOf(id uuid.UUID) int {
	for i := range w.Records {
		if w.Records[i].ID == id {
			return i
		}
	}
	return -1
}

// MediaCount is the number of files attached to the draft, uploaded or not.
func (w *Workspace) MediaCount() int {
	n := len(w.Pending)
	if w.Draft != nil {
		n += len(w.Draft.Media)
	}
	return n
}

func (w *Workspace) PendingIDs() []string {
	ids := make([]string, 0, len(w.Pending))
	for _, p := range w.Pending {
		ids = append(ids, p.ID)
	}
	return ids
}

// ClearDraft ends an edit or creation and returns the pending ids it held.
func (w *Workspace) ClearDraft() []string {
	ids := w.PendingIDs()
	w.Draft = nil
	w.Input = nil
	w.Pending = nil
	return ids
}

type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	// Save writes the session and restarts its time to live.
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
