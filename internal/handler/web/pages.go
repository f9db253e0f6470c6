// Package web serves the browser pages of the desk. The pages are thin:
// every state change goes through the JSON API and the page reloads.
package web

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	v1 "github.com/KMahesh2005/patient-management-by-mahesh/internal/handler/v1"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/middleware"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/service"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// Templates parses the embedded page templates.
func Templates() *template.Template {
	return template.Must(template.New("").Funcs(template.FuncMap{
		"add": func(a, b int) int { return a + b },
	}).ParseFS(templateFS, "templates/*.html"))
}

type Pages struct {
	desk      v1.DeskService
	dashboard *v1.DashboardHandler
	auth      v1.AuthService
	cookies   *v1.AuthHandler
	log       *zap.Logger
}

func NewPages(desk v1.DeskService, dashboard *v1.DashboardHandler, auth v1.AuthService, cookies *v1.AuthHandler, log *zap.Logger) *Pages {
	return &Pages{desk: desk, dashboard: dashboard, auth: auth, cookies: cookies, log: log}
}

// Register mounts the pages. requireAuth must redirect to /login.
func (p *Pages) Register(engine *gin.Engine, requireAuth gin.HandlerFunc) {
	engine.GET("/", func(c *gin.Context) { c.Redirect(http.StatusSeeOther, "/dashboard") })
	engine.GET("/login", p.Login)

	pages := engine.Group("", requireAuth)
	pages.GET("/dashboard", p.Dashboard)
	pages.GET("/desk/:form", p.Desk)
	pages.GET("/logout", p.Logout)
}

func (p *Pages) Login(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", nil)
}

func (p *Pages) Dashboard(c *gin.Context) {
	d, err := p.dashboard.Build(c)
	if err != nil {
		p.log.Error("dashboard unavailable", zap.Error(err))
		p.fail(c, http.StatusServiceUnavailable, "The dashboard could not be loaded. Please try again.")
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", d)
}

type keyButton struct {
	Key    string
	Action navigation.Action
	Label  string
}

var actionLabels = map[navigation.Action]string{
	navigation.ActionNew:      "New",
	navigation.ActionEdit:     "Edit",
	navigation.ActionDelete:   "Delete",
	navigation.ActionSubmit:   "Submit",
	navigation.ActionCancel:   "Cancel",
	navigation.ActionHistory:  "History",
	navigation.ActionQuit:     "Quit",
	navigation.ActionFirst:    "First",
	navigation.ActionPrevious: "Previous",
	navigation.ActionNext:     "Next",
	navigation.ActionLast:     "Last",
}

type deskPage struct {
	Form            form.Kind
	View            *service.DeskView
	Operator        any
	KeyBar          []keyButton
	Genders         []patient.Gender
	MaritalStatuses []patient.MaritalStatus
	BloodGroups     []patient.BloodGroup
	Accept          string
	MaxMB           int64
}

func (p *Pages) Desk(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	view, err := p.desk.Open(c.Request.Context(), sess, c.Param("form"))
	if errors.Is(err, form.ErrUnknownForm) {
		p.fail(c, http.StatusNotFound, "There is no such form.")
		return
	}
	if view == nil {
		p.log.Error("desk unavailable", zap.Error(err))
		p.fail(c, http.StatusServiceUnavailable, "The form could not be opened. Please try again.")
		return
	}
	if err != nil {
		view.Warnings = append(view.Warnings, "Your session could not be saved; changes may be lost.")
	}

	c.HTML(http.StatusOK, "desk.html", deskPage{
		Form:            view.Form,
		View:            view,
		Operator:        operator(sess),
		KeyBar:          keyBar(view.Keys),
		Genders:         []patient.Gender{patient.GenderMale, patient.GenderFemale, patient.GenderOther},
		MaritalStatuses: []patient.MaritalStatus{patient.Unmarried, patient.Married},
		BloodGroups:     patient.BloodGroups,
		Accept:          strings.Join(media.AllowedTypes, ","),
		MaxMB:           view.MediaLimits.MaxBytes >> 20,
	})
}

// Logout ends the session and returns to the sign-in page, even when the
// session was already gone.
func (p *Pages) Logout(c *gin.Context) {
	if err := p.auth.Logout(c.Request.Context(), middleware.SessionFrom(c), c.ClientIP()); err != nil {
		p.log.Warn("logout failed", zap.Error(err))
	}
	p.cookies.ClearCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

type errorPage struct {
	Status   int
	Message  string
	Operator any
}

func (p *Pages) fail(c *gin.Context, status int, msg string) {
	c.HTML(status, "error.html", errorPage{Status: status, Message: msg, Operator: operator(middleware.SessionFrom(c))})
}

type operatorBadge struct {
	DisplayName string
	Role        string
}

func operator(sess *session.Session) *operatorBadge {
	return &operatorBadge{DisplayName: sess.DisplayName, Role: string(sess.Role)}
}

var keyOrder = []string{"F5", "F6", "F7", "F8", "F9", "F10", "F12", "Home", "PageUp", "PageDown", "End"}

// keyBar lists the bound keys in the order they sit on the keyboard.
func keyBar(keys navigation.KeyMap) []keyButton {
	bar := make([]keyButton, 0, len(keys))
	for _, k := range keyOrder {
		if a, ok := keys[k]; ok {
			bar = append(bar, keyButton{Key: k, Action: a, Label: actionLabels[a]})
		}
	}
	return bar
}
