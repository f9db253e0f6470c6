// Package form describes the two desk form variants served by the single
// record controller.
package form

import (
	"errors"
	"fmt"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
)

var ErrUnknownForm = errors.New("unknown form")

type Kind string

const (
	KindRegistration Kind = "registration"
	KindOutpatient   Kind = "outpatient"
)

// Variant configures what a form shows and accepts.
type Variant struct {
	Kind  Kind
	Title string
	// Clinical enables vitals, history notes and review date input.
	Clinical bool
	// History binds F10 to the patient's earlier visits.
	History bool
	Media   media.Policy
}

func (v Variant) Bindings() navigation.KeyMap {
	return navigation.Bindings(v.History)
}

// Allows reports whether the variant offers the action at all.
func (v Variant) Allows(a navigation.Action) bool {
	if a == navigation.ActionHistory {
		return v.History
	}
	return a.IsValid()
}

func Registration(p media.Policy) Variant {
	return Variant{Kind: KindRegistration, Title: "New Registration", Media: p}
}

func Outpatient(p media.Policy) Variant {
	return Variant{Kind: KindOutpatient, Title: "Out-Patient Details", Clinical: true, History: true, Media: p}
}

// Registry holds the configured variants by kind.
type Registry map[Kind]Variant

// NewRegistry builds both variants from their media profile names.
func NewRegistry(registrationProfile, outpatientProfile string) (Registry, error) {
	regPolicy, err := media.PolicyFor(registrationProfile)
	if err != nil {
		return nil, fmt.Errorf("registration form: %w", err)
	}
	opPolicy, err := media.PolicyFor(outpatientProfile)
	if err != nil {
		return nil, fmt.Errorf("outpatient form: %w", err)
	}
	return Registry{
		KindRegistration: Registration(regPolicy),
		KindOutpatient:   Outpatient(opPolicy),
	}, nil
}

func (r Registry) Lookup(name string) (Variant, error) {
	v, ok := r[Kind(name)]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownForm, name)
	}
	return v, nil
}

// Kinds lists the configured variants in menu order.
func (r Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r))
	for _, k := range []Kind{KindRegistration, KindOutpatient} {
		if _, ok := r[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
