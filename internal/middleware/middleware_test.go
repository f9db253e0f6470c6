package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/service"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		assert.Equal(t, RequestIDFrom(c), service.RequestIDFrom(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	require.NoError(t, err)

	id := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, id)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, id, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

func TestRateLimiter(t *testing.T) {
	m := metrics.NewCollector("test")
	limiter := NewRateLimiter("login", 0.001, 2, 16, m)

	r := gin.New()
	r.POST("/login", limiter.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for range 3 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "192.0.2.10:5000"
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("login")))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.11:5000"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := metrics.NewCollector("test")
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/patients/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/patients/"+uuid.NewString(), nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/patients/:id", "200")))
}

type stubAuthenticator struct {
	token string
	sess  *session.Session
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*domain.Claims, *session.Session, error) {
	if token != s.token {
		return nil, nil, service.ErrSessionExpired
	}
	return &domain.Claims{UserID: s.sess.OperatorID, SessionID: s.sess.ID}, s.sess, nil
}

func TestRequireAuth(t *testing.T) {
	sess := session.New(&domain.User{ID: uuid.New(), Username: "desk1", Role: domain.RoleNurse})
	authn := stubAuthenticator{token: "good", sess: sess}

	r := gin.New()
	ok := func(c *gin.Context) {
		assert.Equal(t, sess.ID, SessionFrom(c).ID)
		assert.Equal(t, sess.OperatorID, ClaimsFrom(c).UserID)
		c.Status(http.StatusNoContent)
	}
	r.GET("/api", RequireAuth(authn, "clinicdesk_session", false, zap.NewNop()), ok)
	r.GET("/page", RequireAuth(authn, "clinicdesk_session", true, zap.NewNop()), ok)

	tests := []struct {
		name   string
		path   string
		header string
		cookie string
		want   int
	}{
		{"bearer", "/api", "Bearer good", "", http.StatusNoContent},
		{"cookie", "/api", "", "good", http.StatusNoContent},
		{"missing", "/api", "", "", http.StatusUnauthorized},
		{"wrong scheme", "/api", "Basic good", "", http.StatusUnauthorized},
		{"expired", "/api", "Bearer stale", "", http.StatusUnauthorized},
		{"page redirect", "/page", "", "", http.StatusSeeOther},
		{"page cookie", "/page", "", "good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "clinicdesk_session", Value: tt.cookie})
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
