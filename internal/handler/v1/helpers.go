package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/service"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type APIResponse[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

// DeskErrorResponse carries the redrawn form along with the failure, so the
// client never loses what the operator typed.
type DeskErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields []string          `json:"fields,omitempty"`
	View   *service.DeskView `json:"view,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse[any]{Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, APIResponse[any]{Data: data})
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

func respondServiceError(c *gin.Context, err error) {
	_ = c.Error(err)

	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	status, code := classify(err)
	switch status {
	case http.StatusInternalServerError:
		c.JSON(status, ErrorResponse{Error: "internal server error"})
	case http.StatusForbidden:
		c.JSON(status, ErrorResponse{Error: "access denied", Code: code})
	default:
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
	}
}

// respondDesk answers every desk call with the current view. Store and
// upload failures are reported as 503 so the client keeps the form open.
func respondDesk(c *gin.Context, view *service.DeskView, err error) {
	if err == nil {
		respondOK(c, view)
		return
	}
	_ = c.Error(err)

	resp := DeskErrorResponse{Error: err.Error(), View: view}
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		resp.Error = "validation failed"
		resp.Fields = validErr.Fields
		c.JSON(http.StatusBadRequest, resp)
		return
	}

	status, code := classify(err)
	resp.Code = code
	if status == http.StatusInternalServerError {
		if view == nil {
			c.JSON(status, ErrorResponse{Error: "internal server error"})
			return
		}
		status = http.StatusServiceUnavailable
		resp.Error = view.Notice
		resp.Code = "STORE_UNAVAILABLE"
	}
	c.JSON(status, resp)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, navigation.ErrUnknownAction):
		return http.StatusBadRequest, "UNKNOWN_ACTION"

	case errors.Is(err, navigation.ErrOperationPending),
		errors.Is(err, navigation.ErrConfirmationPending),
		errors.Is(err, navigation.ErrNoMoreRecords),
		errors.Is(err, navigation.ErrNoRecords),
		errors.Is(err, navigation.ErrNothingToSubmit),
		errors.Is(err, service.ErrFormReadOnly),
		errors.Is(err, service.ErrActionUnavailable):
		return http.StatusConflict, "ACTION_REJECTED"

	case errors.Is(err, patient.ErrRecordNotFound),
		errors.Is(err, service.ErrMediaNotFound),
		errors.Is(err, form.ErrUnknownForm):
		return http.StatusNotFound, ""

	case errors.Is(err, service.ErrMFARequired):
		return http.StatusUnauthorized, "MFA_REQUIRED"

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrSessionExpired),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid),
		errors.Is(err, auth.ErrTokenTypeMismatch):
		return http.StatusUnauthorized, ""

	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, ""

	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden, "ACCOUNT_INACTIVE"

	case errors.Is(err, service.ErrAccountLocked):
		return http.StatusTooManyRequests, "ACCOUNT_LOCKED"

	case errors.Is(err, session.ErrSpoolFull):
		return http.StatusServiceUnavailable, "SPOOL_FULL"
	}
	return http.StatusInternalServerError, ""
}

func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request: " + err.Error()})
		return false
	}

	return true
}

func parseUUID(c *gin.Context, param string) (uuid.UUID, bool) {
	raw := c.Param(param)
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid " + param + ": must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

func parseQueryInt(c *gin.Context, key string, defaultVal int) int {
	if raw := c.Query(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return defaultVal
}
