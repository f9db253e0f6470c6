package session

import (
	"errors"
	"sync"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	ErrSessionQuota = errors.New("this desk already holds its limit of files waiting for upload; submit or remove some first")
	ErrSpoolFull    = errors.New("the upload area is full; try again shortly")
)

// Blob is a validated file waiting for its record to be submitted.
type Blob struct {
	SessionID string
	Pending   media.Pending
	Data      []byte
}

// SpoolLimits bound the spool. MaxBytes covers every session together;
// the session limits stop one desk from using up the rest.
type SpoolLimits struct {
	MaxBytes     int64
	SessionFiles int
	SessionBytes int64
}

type usage struct {
	files int
	bytes int64
}

// Spool holds pending uploads in memory until submit. Entries leave only
// by expiry or removal, never to make room for another session; files that
// expire before submit are reported as upload failures.
type Spool struct {
	files  *expirable.LRU[string, *Blob]
	limits SpoolLimits

	mu       sync.Mutex
	total    int64
	sessions map[string]usage
}

func NewSpool(limits SpoolLimits, ttl time.Duration) *Spool {
	s := &Spool{limits: limits, sessions: make(map[string]usage)}
	s.files = expirable.NewLRU[string, *Blob](0, s.release, ttl)
	return s
}

// Admit reports whether a file of size bytes would fit for the session.
// It is checked before the upload body is read.
func (s *Spool) Admit(sessionID string, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.admit(sessionID, size)
}

func (s *Spool) admit(sessionID string, size int64) error {
	u := s.sessions[sessionID]
	if s.limits.SessionFiles > 0 && u.files >= s.limits.SessionFiles {
		return ErrSessionQuota
	}
	if s.limits.SessionBytes > 0 && u.bytes+size > s.limits.SessionBytes {
		return ErrSessionQuota
	}
	if s.limits.MaxBytes > 0 && s.total+size > s.limits.MaxBytes {
		return ErrSpoolFull
	}
	return nil
}

func (s *Spool) Put(b *Blob) error {
	size := int64(len(b.Data))

	s.mu.Lock()
	if err := s.admit(b.SessionID, size); err != nil {
		s.mu.Unlock()
		return err
	}
	u := s.sessions[b.SessionID]
	u.files++
	u.bytes += size
	s.sessions[b.SessionID] = u
	s.total += size
	s.mu.Unlock()

	// The eviction callback runs under the LRU lock and takes s.mu, so the
	// LRU is never touched while s.mu is held.
	s.files.Remove(b.Pending.ID)
	s.files.Add(b.Pending.ID, b)
	return nil
}

func (s *Spool) release(_ string, b *Blob) {
	size := int64(len(b.Data))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.total -= size
	u := s.sessions[b.SessionID]
	u.files--
	u.bytes -= size
	if u.files <= 0 {
		delete(s.sessions, b.SessionID)
		return
	}
	s.sessions[b.SessionID] = u
}

// Get returns the blob only to the session that spooled it.
func (s *Spool) Get(sessionID, id string) (*Blob, bool) {
	b, ok := s.files.Peek(id)
	if !ok || b.SessionID != sessionID {
		return nil, false
	}
	return b, true
}

func (s *Spool) Remove(ids ...string) {
	for _, id := range ids {
		s.files.Remove(id)
	}
}

func (s *Spool) Len() int {
	return s.files.Len()
}

// Bytes is the size of every file currently held.
func (s *Spool) Bytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}
