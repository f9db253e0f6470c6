package v1

import "github.com/gin-gonic/gin"

// Routes groups the API handlers and the middleware they need.
type Routes struct {
	Auth      *AuthHandler
	Desk      *DeskHandler
	Patients  *PatientHandler
	Dashboard *DashboardHandler

	RequireAuth gin.HandlerFunc
	LoginLimit  gin.HandlerFunc
}

// Register mounts the API under /api/v1.
func (r Routes) Register(engine *gin.Engine) {
	api := engine.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.POST("/login", r.LoginLimit, r.Auth.Login)
	authGroup.POST("/refresh", r.LoginLimit, r.Auth.Refresh)
	authGroup.POST("/logout", r.RequireAuth, r.Auth.Logout)

	protected := api.Group("", r.RequireAuth)
	protected.GET("/dashboard", r.Dashboard.Show)

	patients := protected.Group("/patients")
	patients.GET("", r.Patients.List)
	patients.GET("/search", r.Patients.Search)
	patients.GET("/export.xlsx", r.Patients.Export)
	patients.GET("/:id", r.Patients.Get)
	patients.DELETE("/:id", r.Patients.Delete)

	desk := protected.Group("/desk")
	desk.GET("/media/pending/:id", r.Desk.PendingMedia)
	desk.GET("/:form", r.Desk.Show)
	desk.POST("/:form/actions/:action", r.Desk.Action)
	desk.POST("/:form/keys", r.Desk.Key)
	desk.POST("/:form/media", r.Desk.AttachMedia)
	desk.DELETE("/:form/media/:index", r.Desk.RemoveMedia)
}
