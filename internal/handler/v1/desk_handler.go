package v1

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/middleware"
	"github.com/gin-gonic/gin"
)

// multipartOverhead allows for boundaries and part headers around the file.
const multipartOverhead = 1 << 20

type DeskHandler struct {
	desk DeskService
}

func NewDeskHandler(desk DeskService) *DeskHandler {
	return &DeskHandler{desk: desk}
}

// Show opens a form and reloads its record list.
func (h *DeskHandler) Show(c *gin.Context) {
	view, err := h.desk.Open(c.Request.Context(), middleware.SessionFrom(c), c.Param("form"))
	respondDesk(c, view, err)
}

// Action runs one navigation action. The optional JSON body is the form
// content as typed.
func (h *DeskHandler) Action(c *gin.Context) {
	in, ok := bindInput(c)
	if !ok {
		return
	}

	view, err := h.desk.Dispatch(
		c.Request.Context(),
		middleware.SessionFrom(c),
		c.Param("form"),
		navigation.Action(c.Param("action")),
		in,
		c.ClientIP(),
	)
	respondDesk(c, view, err)
}

type keyRequest struct {
	Key   string         `json:"key" binding:"required,max=32"`
	Focus string         `json:"focus" binding:"max=32"`
	Input *patient.Input `json:"input"`
}

type keyResponse struct {
	Handled bool `json:"handled"`
	View    any  `json:"view"`
}

// Key resolves a key press with the form's bindings.
func (h *DeskHandler) Key(c *gin.Context) {
	var req keyRequest
	if !bindJSON(c, &req) {
		return
	}

	view, handled, err := h.desk.Key(
		c.Request.Context(),
		middleware.SessionFrom(c),
		c.Param("form"),
		req.Key,
		req.Focus,
		req.Input,
		c.ClientIP(),
	)
	if err != nil {
		respondDesk(c, view, err)
		return
	}
	respondOK(c, keyResponse{Handled: handled, View: view})
}

// AttachMedia accepts one multipart "file". A request whose body is larger
// than the form allows is refused from its Content-Length alone.
func (h *DeskHandler) AttachMedia(c *gin.Context) {
	formName := c.Param("form")
	sess := middleware.SessionFrom(c)

	variant, err := h.desk.Forms().Lookup(formName)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	limit := variant.Media.MaxBytes + multipartOverhead
	if c.Request.ContentLength > limit {
		name := c.GetHeader("X-File-Name")
		view, err := h.desk.AttachMedia(c.Request.Context(), sess, formName, name, c.Request.ContentLength, http.NoBody)
		c.Header("Connection", "close")
		respondDesk(c, view, err)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "a multipart field named \"file\" is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "could not read the uploaded file")
		return
	}
	defer f.Close()

	view, err := h.desk.AttachMedia(c.Request.Context(), sess, formName, header.Filename, header.Size, f)
	respondDesk(c, view, err)
}

func (h *DeskHandler) RemoveMedia(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid index: must be a whole number")
		return
	}

	view, err := h.desk.RemoveMedia(c.Request.Context(), middleware.SessionFrom(c), c.Param("form"), index)
	respondDesk(c, view, err)
}

// PendingMedia serves a file that is attached but not yet uploaded, for
// preview on the form.
func (h *DeskHandler) PendingMedia(c *gin.Context) {
	blob, err := h.desk.PendingFile(middleware.SessionFrom(c), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": blob.Pending.FileName}))
	c.Data(http.StatusOK, blob.Pending.ContentType, blob.Data)
}

// bindInput reads an optional form body. An empty body means no input.
func bindInput(c *gin.Context) (*patient.Input, bool) {
	if c.Request.ContentLength == 0 {
		return nil, true
	}
	var in patient.Input
	if !bindJSON(c, &in) {
		return nil, false
	}
	return &in, true
}
