package v1

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/middleware"
	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PatientHandler struct {
	patients PatientService
	export   ExportService
}

func NewPatientHandler(patients PatientService, export ExportService) *PatientHandler {
	return &PatientHandler{patients: patients, export: export}
}

// List orders by one whitelisted field: ?order_by=patient_name&desc=true&limit=100
func (h *PatientHandler) List(c *gin.Context) {
	q := patient.ListQuery{Limit: parseQueryInt(c, "limit", 0)}
	if raw := c.Query("order_by"); raw != "" {
		field, err := patient.ParseField(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		q.OrderBy = field
	}
	if raw := c.Query("desc"); raw != "" {
		desc, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid desc: must be true or false")
			return
		}
		q.Desc = desc
	}

	recs, err := h.patients.List(c.Request.Context(), q)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, recs)
}

// Search filters by exact match: ?field=patient_name&value=Asha
func (h *PatientHandler) Search(c *gin.Context) {
	recs, err := h.patients.Find(c.Request.Context(), c.Query("field"), c.Query("value"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, recs)
}

func (h *PatientHandler) Get(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	claims := middleware.ClaimsFrom(c)

	rec, err := h.patients.Get(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, rec)
}

func (h *PatientHandler) Delete(c *gin.Context) {
	id, ok := parseUUID(c, "id")
	if !ok {
		return
	}
	claims := middleware.ClaimsFrom(c)

	if err := h.patients.Delete(c.Request.Context(), id, claims.UserID, string(claims.Role), c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Export returns the register as an Excel workbook. It is built in memory
// first so a failure can still be answered with a JSON error.
func (h *PatientHandler) Export(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)

	var buf bytes.Buffer
	if err := h.export.WriteRegister(c.Request.Context(), &buf, claims.UserID, string(claims.Role), c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("patient-register-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
