package media

import (
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Attachment is a file already stored at the media host.
type Attachment struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
	Kind     Kind   `json:"kind"`
}

// Pending is a validated file held locally until the record is submitted.
type Pending struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (p Pending) Kind() Kind {
	return KindOf(p.ContentType)
}

// AllowedTypes is the MIME allow-list shared by every profile.
var AllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"video/mp4",
	"video/quicktime",
}

const (
	ProfileSingle = "single"
	ProfileMulti  = "multi"
)

// Policy bounds what a form accepts. MaxFiles of zero means unlimited.
type Policy struct {
	Profile  string
	MaxBytes int64
	MaxFiles int
}

func SingleFilePolicy() Policy {
	return Policy{Profile: ProfileSingle, MaxBytes: 10 << 20, MaxFiles: 1}
}

func MultiFilePolicy() Policy {
	return Policy{Profile: ProfileMulti, MaxBytes: 50 << 20}
}

// PolicyFor maps a configured profile name to its policy.
func PolicyFor(profile string) (Policy, error) {
	switch strings.ToLower(profile) {
	case ProfileSingle:
		return SingleFilePolicy(), nil
	case ProfileMulti:
		return MultiFilePolicy(), nil
	}
	return Policy{}, fmt.Errorf("unknown media profile %q", profile)
}

// CheckSize runs before any byte of the file is read. attached counts the
// files the record already holds, persisted and pending.
func (p Policy) CheckSize(size int64, attached int) error {
	if p.MaxFiles > 0 && attached >= p.MaxFiles {
		return ErrTooManyFiles
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > p.MaxBytes {
		return fmt.Errorf("%w: %d MB maximum", ErrFileTooLarge, p.MaxBytes>>20)
	}
	return nil
}

// CheckType validates a sniffed content type against the allow-list.
func (p Policy) CheckType(contentType string) error {
	if !IsAllowed(contentType) {
		return ErrUnsupportedType
	}
	return nil
}

func IsAllowed(contentType string) bool {
	ct := baseType(contentType)
	for _, a := range AllowedTypes {
		if ct == a {
			return true
		}
	}
	return false
}

// Detect sniffs the content type from the file's leading bytes and returns
// the matching allow-list entry, or the detected type when none matches.
func Detect(data []byte) string {
	mt := mimetype.Detect(data)
	for _, a := range AllowedTypes {
		if mt.Is(a) {
			return a
		}
	}
	return baseType(mt.String())
}

// KindOf infers the attachment kind from a MIME type.
func KindOf(contentType string) Kind {
	if strings.HasPrefix(baseType(contentType), "video/") {
		return KindVideo
	}
	return KindImage
}

func baseType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
