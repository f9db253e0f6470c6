package v1

import (
	"net/http"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/config"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/middleware"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth   AuthService
	cookie config.SessionConfig
}

func NewAuthHandler(auth AuthService, cookie config.SessionConfig) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

type loginRequest struct {
	Username string `json:"username" binding:"required,max=100"`
	Password string `json:"password" binding:"required,max=200"`
	OTPCode  string `json:"otp_code" binding:"omitempty,len=6,numeric"`
}

type operatorView struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"display_name"`
	Role        domain.Role `json:"role"`
}

type loginResponse struct {
	*domain.TokenPair
	Operator operatorView `json:"operator"`
}

// Login opens a desk session. The access token is also set as an HttpOnly
// cookie for the browser pages.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, sess, err := h.auth.Login(c.Request.Context(), req.Username, req.Password, req.OTPCode, c.ClientIP())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.setCookie(c, pair.AccessToken, time.Until(pair.ExpiresAt))
	respondOK(c, loginResponse{
		TokenPair: pair,
		Operator: operatorView{
			ID:          sess.OperatorID.String(),
			Username:    sess.Username,
			DisplayName: sess.DisplayName,
			Role:        sess.Role,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	h.setCookie(c, pair.AccessToken, time.Until(pair.ExpiresAt))
	respondOK(c, pair)
}

// Logout ends the session and clears the cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.SessionFrom(c), c.ClientIP()); err != nil {
		respondServiceError(c, err)
		return
	}
	h.ClearCookie(c)
	c.JSON(http.StatusOK, APIResponse[any]{Message: "logged out"})
}

func (h *AuthHandler) ClearCookie(c *gin.Context) {
	h.setCookie(c, "", -time.Second)
}

func (h *AuthHandler) setCookie(c *gin.Context, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cookie.CookieName, value, int(ttl.Seconds()), "/", "", h.cookie.CookieSecure, true)
}
