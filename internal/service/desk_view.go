package service

import (
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
)

// PendingMediaPath serves spooled files for preview before they are uploaded.
const PendingMediaPath = "/api/v1/desk/media/pending/"

// DeskView is everything a page needs to draw one form.
type DeskView struct {
	Form             form.Kind       `json:"form"`
	Title            string          `json:"title"`
	Mode             navigation.Mode `json:"mode"`
	Index            int             `json:"index"`
	Count            int             `json:"count"`
	ConfirmingDelete bool            `json:"confirming_delete"`
	Editable         bool            `json:"editable"`
	Clinical         bool            `json:"clinical"`
	HistoryEnabled   bool            `json:"history_enabled"`

	// Record is the shown record in view mode and the draft otherwise.
	Record      *patient.Record `json:"record,omitempty"`
	Input       *patient.Input  `json:"input,omitempty"`
	SpouseLabel string          `json:"spouse_label,omitempty"`
	Media       []MediaItem     `json:"media"`
	MediaLimits MediaLimits     `json:"media_limits"`

	History        []patient.Record  `json:"history,omitempty"`
	Keys           navigation.KeyMap `json:"keys"`
	Notice         string            `json:"notice,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	UploadFailures []UploadFailure   `json:"upload_failures,omitempty"`
	Redirect       string            `json:"redirect,omitempty"`
}

// MediaItem is one entry of the display list: uploaded files first, then
// files still waiting for submit.
type MediaItem struct {
	Index    int        `json:"index"`
	Name     string     `json:"name"`
	URL      string     `json:"url"`
	Kind     media.Kind `json:"kind"`
	Pending  bool       `json:"pending"`
	PublicID string     `json:"public_id,omitempty"`
}

type MediaLimits struct {
	MaxBytes     int64    `json:"max_bytes"`
	MaxFiles     int      `json:"max_files"`
	AllowedTypes []string `json:"allowed_types"`
}

type UploadFailure struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

func (v *DeskView) warn(msg string) {
	if msg != "" {
		v.Warnings = append(v.Warnings, msg)
	}
}

func render(variant form.Variant, ws *session.Workspace) *DeskView {
	v := &DeskView{
		Form:             variant.Kind,
		Title:            variant.Title,
		Mode:             ws.Nav.Mode,
		Index:            ws.Nav.Index,
		Count:            ws.Nav.Count,
		ConfirmingDelete: ws.Nav.ConfirmingDelete,
		Editable:         ws.Nav.Editable(),
		Clinical:         variant.Clinical,
		HistoryEnabled:   variant.History,
		Keys:             variant.Bindings(),
		Media:            []MediaItem{},
		MediaLimits: MediaLimits{
			MaxBytes:     variant.Media.MaxBytes,
			MaxFiles:     variant.Media.MaxFiles,
			AllowedTypes: media.AllowedTypes,
		},
	}

	if v.Editable {
		v.Record = ws.Draft
		if ws.Input != nil {
			in := *ws.Input
			v.Input = &in
		} else if ws.Draft != nil {
			in := patient.InputFromRecord(ws.Draft)
			v.Input = &in
		}
	} else if cur, ok := ws.Current(); ok {
		v.Record = cur
		in := patient.InputFromRecord(cur)
		v.Input = &in
	}

	if v.Input != nil {
		v.SpouseLabel = patient.SpouseLabel(patient.Gender(v.Input.Gender))
	}

	if v.Record != nil {
		for _, m := range v.Record.Media {
			v.Media = append(v.Media, MediaItem{
				Index:    len(v.Media),
				Name:     m.PublicID,
				URL:      m.URL,
				Kind:     m.Kind,
				PublicID: m.PublicID,
			})
		}
	}
	if v.Editable {
		for _, p := range ws.Pending {
			v.Media = append(v.Media, MediaItem{
				Index:   len(v.Media),
				Name:    p.FileName,
				URL:     PendingMediaPath + p.ID,
				Kind:    p.Kind(),
				Pending: true,
			})
		}
	}
	return v
}
