package v1

import (
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/middleware"
	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	patients PatientService
	forms    form.Registry
	loc      *time.Location
}

func NewDashboardHandler(patients PatientService, forms form.Registry, loc *time.Location) *DashboardHandler {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardHandler{patients: patients, forms: forms, loc: loc}
}

type FormLink struct {
	Kind  form.Kind `json:"kind"`
	Title string    `json:"title"`
	Path  string    `json:"path"`
}

type Dashboard struct {
	Operator operatorView  `json:"operator"`
	Stats    patient.Stats `json:"stats"`
	Forms    []FormLink    `json:"forms"`
}

// Build assembles the dashboard for the signed-in operator; the page
// renderer uses it too.
func (h *DashboardHandler) Build(c *gin.Context) (*Dashboard, error) {
	stats, err := h.patients.Stats(c.Request.Context(), time.Now().In(h.loc))
	if err != nil {
		return nil, err
	}

	sess := middleware.SessionFrom(c)
	d := &Dashboard{
		Operator: operatorView{
			ID:          sess.OperatorID.String(),
			Username:    sess.Username,
			DisplayName: sess.DisplayName,
			Role:        sess.Role,
		},
		Stats: stats,
	}
	for _, k := range h.forms.Kinds() {
		d.Forms = append(d.Forms, FormLink{Kind: k, Title: h.forms[k].Title, Path: "/desk/" + string(k)})
	}
	return d, nil
}

func (h *DashboardHandler) Show(c *gin.Context) {
	d, err := h.Build(c)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, d)
}
