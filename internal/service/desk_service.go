package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/form"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/mediahost"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type MediaHost interface {
	Upload(ctx context.Context, f mediahost.File) (media.Attachment, error)
}

// DeskService drives the registration and outpatient forms. Each call runs
// one operator action against the caller's session and saves it.
type DeskService struct {
	forms    form.Registry
	patients *PatientService
	numbers  *NumberingService
	sessions session.Store
	spool    *session.Spool
	host     MediaHost
	folder   string
	metrics  *metrics.Collector
	tracer   trace.Tracer
	log      *zap.Logger
	now      func() time.Time
}

func NewDeskService(
	forms form.Registry,
	patients *PatientService,
	numbers *NumberingService,
	sessions session.Store,
	spool *session.Spool,
	host MediaHost,
	folderPrefix string,
	loc *time.Location,
	m *metrics.Collector,
	log *zap.Logger,
) *DeskService {
	if loc == nil {
		loc = time.Local
	}
	return &DeskService{
		forms:    forms,
		patients: patients,
		numbers:  numbers,
		sessions: sessions,
		spool:    spool,
		host:     host,
		folder:   folderPrefix,
		metrics:  m,
		tracer:   otel.Tracer("clinicdesk/desk"),
		log:      log,
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

func (s *DeskService) Forms() form.Registry {
	return s.forms
}

// Open shows a form, reloading its record list from the store.
func (s *DeskService) Open(ctx context.Context, sess *session.Session, formName string) (*DeskView, error) {
	variant, err := s.forms.Lookup(formName)
	if err != nil {
		return nil, err
	}

	ws, warnings := s.load(ctx, sess, variant)
	v := render(variant, ws)
	for _, w := range warnings {
		v.warn(w)
	}
	return v, s.save(ctx, sess)
}

// Dispatch runs one navigation action. in carries what the operator typed
// and is kept even when the action fails, so the form can be redrawn as is.
func (s *DeskService) Dispatch(ctx context.Context, sess *session.Session, formName string, action navigation.Action, in *patient.Input, ip string) (*DeskView, error) {
	ctx, span := s.tracer.Start(ctx, "desk.Dispatch", trace.WithAttributes(
		attribute.String("desk.form", formName),
		attribute.String("desk.action", string(action)),
	))
	defer span.End()

	variant, ws, warnings := s.workspace(ctx, sess, formName)
	if ws == nil {
		return nil, form.ErrUnknownForm
	}

	if ws.Nav.Editable() && in != nil {
		typed := *in
		ws.Input = &typed
	}

	if !action.IsValid() {
		return s.reject(ctx, sess, variant, ws, string(action), navigation.ErrUnknownAction)
	}
	if !variant.Allows(action) {
		return s.reject(ctx, sess, variant, ws, string(action), ErrActionUnavailable)
	}

	before := ws.Nav
	effect, err := ws.Nav.Dispatch(action)
	if err != nil {
		return s.reject(ctx, sess, variant, ws, string(action), err)
	}

	out, err := s.apply(ctx, sess, variant, ws, effect, before, ip)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	var v *DeskView
	if out.redirect != "" {
		v = &DeskView{Form: variant.Kind, Title: variant.Title, Redirect: out.redirect}
	} else {
		v = render(variant, ws)
		v.History = out.history
		v.UploadFailures = out.failures
		v.Notice = out.notice
	}
	for _, w := range append(warnings, out.warnings...) {
		v.warn(w)
	}
	if err != nil && v.Notice == "" {
		v.Notice = noticeFor(err)
	}

	if saveErr := s.save(ctx, sess); saveErr != nil && err == nil {
		err = saveErr
	}
	return v, err
}

// Key resolves a key press with the form's bindings. Keys typed into a text
// control, and unbound keys, leave the form as it is and report false.
func (s *DeskService) Key(ctx context.Context, sess *session.Session, formName, key, focusTag string, in *patient.Input, ip string) (*DeskView, bool, error) {
	variant, err := s.forms.Lookup(formName)
	if err != nil {
		return nil, false, err
	}

	action, ok := variant.Bindings().Resolve(key, focusTag)
	if !ok {
		_, ws, warnings := s.workspace(ctx, sess, formName)
		v := render(variant, ws)
		for _, w := range warnings {
			v.warn(w)
		}
		return v, false, s.save(ctx, sess)
	}

	v, err := s.Dispatch(ctx, sess, formName, action, in, ip)
	return v, true, err
}

// AttachMedia validates a file and holds it for upload on submit. The
// declared size is checked before anything is read, and the type is sniffed
// from the content rather than trusted from the client.
func (s *DeskService) AttachMedia(ctx context.Context, sess *session.Session, formName, fileName string, size int64, r io.Reader) (*DeskView, error) {
	variant, ws, _ := s.workspace(ctx, sess, formName)
	if ws == nil {
		return nil, form.ErrUnknownForm
	}
	if !ws.Nav.Editable() {
		return s.reject(ctx, sess, variant, ws, "attach", ErrFormReadOnly)
	}

	policy := variant.Media
	if err := policy.CheckSize(size, ws.MediaCount()); err != nil {
		return s.refuseMedia(ctx, sess, variant, ws, fileName, err)
	}
	if err := s.spool.Admit(sess.ID, size); err != nil {
		return s.refuseMedia(ctx, sess, variant, ws, fileName, err)
	}

	data, err := io.ReadAll(io.LimitReader(r, policy.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > policy.MaxBytes {
		return s.refuseMedia(ctx, sess, variant, ws, fileName, media.ErrFileTooLarge)
	}
	if len(data) == 0 {
		return s.refuseMedia(ctx, sess, variant, ws, fileName, media.ErrEmptyFile)
	}

	contentType := media.Detect(data)
	if err := policy.CheckType(contentType); err != nil {
		return s.refuseMedia(ctx, sess, variant, ws, fileName, err)
	}

	p := media.Pending{
		ID:          uuid.NewString(),
		FileName:    cleanFileName(fileName),
		ContentType: contentType,
		Size:        int64(len(data)),
	}
	if err := s.spool.Put(&session.Blob{SessionID: sess.ID, Pending: p, Data: data}); err != nil {
		return s.refuseMedia(ctx, sess, variant, ws, fileName, err)
	}
	ws.Pending = append(ws.Pending, p)

	return render(variant, ws), s.save(ctx, sess)
}

// RemoveMedia drops the attachment at a display index. Uploaded files are
// only detached from the draft; the host keeps them.
func (s *DeskService) RemoveMedia(ctx context.Context, sess *session.Session, formName string, index int) (*DeskView, error) {
	variant, ws, _ := s.workspace(ctx, sess, formName)
	if ws == nil {
		return nil, form.ErrUnknownForm
	}
	if !ws.Nav.Editable() {
		return s.reject(ctx, sess, variant, ws, "remove_media", ErrFormReadOnly)
	}
	s.ensureDraft(ctx, sess, ws)

	persisted := len(ws.Draft.Media)
	switch {
	case index < 0 || index >= ws.MediaCount():
		v := render(variant, ws)
		v.Notice = ErrMediaNotFound.Error()
		return v, ErrMediaNotFound
	case index < persisted:
		removed := ws.Draft.Media[index]
		ws.Draft.Media = slices.Delete(ws.Draft.Media, index, index+1)
		s.log.Info("attachment detached from draft; file remains at media host",
			zap.String("public_id", removed.PublicID),
			zap.String("outpatient_no", ws.Draft.OutpatientNo),
		)
	default:
		i := index - persisted
		s.spool.Remove(ws.Pending[i].ID)
		ws.Pending = slices.Delete(ws.Pending, i, i+1)
	}

	return render(variant, ws), s.save(ctx, sess)
}

// PendingFile returns a spooled file owned by the session.
func (s *DeskService) PendingFile(sess *session.Session, id string) (*session.Blob, error) {
	b, ok := s.spool.Get(sess.ID, id)
	if !ok {
		return nil, ErrMediaNotFound
	}
	return b, nil
}

type applied struct {
	notice   string
	warnings []string
	history  []patient.Record
	failures []UploadFailure
	redirect string
}

func (s *DeskService) apply(ctx context.Context, sess *session.Session, variant form.Variant, ws *session.Workspace, effect navigation.Effect, before navigation.Navigator, ip string) (applied, error) {
	var out applied

	switch effect {
	case navigation.EffectShow:
		s.discardDraft(ws)

	case navigation.EffectBlank:
		s.discardDraft(ws)
		out.warnings = append(out.warnings, s.startDraft(ctx, sess, ws))

	case navigation.EffectLoadEdit:
		cur, _ := ws.Current()
		s.discardDraft(ws)
		ws.Draft = cloneRecord(cur)
		in := patient.InputFromRecord(ws.Draft)
		ws.Input = &in

	case navigation.EffectConfirmDelete:
		cur, _ := ws.Current()
		out.notice = fmt.Sprintf("Delete record %s (%s)? Press F8 to confirm or F9 to cancel.", cur.OutpatientNo, cur.PatientName)

	case navigation.EffectDelete:
		warning, err := s.deleteCurrent(ctx, sess, variant, ws, before, ip)
		out.warnings = append(out.warnings, warning)
		if err != nil {
			return out, err
		}
		out.notice = "Record deleted."

	case navigation.EffectCreate, navigation.EffectUpdate:
		failures, warnings, err := s.submit(ctx, sess, variant, ws, effect, ip)
		out.failures = failures
		out.warnings = append(out.warnings, warnings...)
		if err != nil {
			return out, err
		}
		out.notice = "Record saved."

	case navigation.EffectHistory:
		cur, _ := ws.Current()
		history, err := s.patients.Find(ctx, string(patient.FieldPatientName), cur.PatientName)
		if err != nil {
			return out, err
		}
		out.history = history
		out.notice = fmt.Sprintf("%d visit(s) for %s.", len(history), cur.PatientName)

	case navigation.EffectQuit:
		s.spool.Remove(sess.CloseWorkspace(variant.Kind)...)
		out.redirect = "/dashboard"
	}

	return out, nil
}

// submit validates the typed input against the draft, uploads pending media
// one file at a time and writes the record. Upload failures are reported
// but do not stop the write. A failed write leaves the mode, the input and
// any media uploaded so far in place for another try.
func (s *DeskService) submit(ctx context.Context, sess *session.Session, variant form.Variant, ws *session.Workspace, effect navigation.Effect, ip string) ([]UploadFailure, []string, error) {
	ctx, span := s.tracer.Start(ctx, "desk.submit")
	defer span.End()

	var warnings []string
	if ws.Draft == nil {
		warnings = append(warnings, s.ensureDraft(ctx, sess, ws))
	}

	in := ws.Input
	if in == nil {
		fromDraft := patient.InputFromRecord(ws.Draft)
		in = &fromDraft
	}

	rec := cloneRecord(ws.Draft)
	if errs := rec.Apply(*in, variant.Clinical, s.now()); len(errs) > 0 {
		return nil, warnings, &ValidationError{Fields: errs}
	}

	failures := s.uploadPending(ctx, sess, ws, rec.OutpatientNo)
	rec.Media = slices.Clone(ws.Draft.Media)

	operation := "create"
	var err error
	if effect == navigation.EffectCreate {
		err = s.patients.Create(ctx, rec, sess.OperatorID, string(sess.Role), ip)
	} else {
		operation = "update"
		err = s.patients.Overwrite(ctx, rec, sess.OperatorID, string(sess.Role), ip)
	}
	if err != nil {
		return failures, warnings, err
	}
	s.metrics.RecordsWrittenTotal.WithLabelValues(string(variant.Kind), operation).Inc()

	s.discardDraft(ws)
	if err := s.refresh(ctx, ws); err != nil {
		warnings = append(warnings, "record saved but the list could not be reloaded; it may be out of date")
		if i := ws.IndexOf(rec.ID); i >= 0 {
			ws.Records[i] = *rec
		} else {
			ws.Records = append(ws.Records, *rec)
		}
	}

	idx := ws.IndexOf(rec.ID)
	if idx < 0 {
		idx = len(ws.Records) - 1
	}
	ws.Nav.Saved(idx, len(ws.Records))
	span.SetAttributes(attribute.String("desk.record_id", rec.ID.String()))

	return failures, warnings, nil
}

func (s *DeskService) uploadPending(ctx context.Context, sess *session.Session, ws *session.Workspace, outpatientNo string) []UploadFailure {
	if len(ws.Pending) == 0 {
		return nil
	}

	ctx, span := s.tracer.Start(ctx, "desk.uploadPending", trace.WithAttributes(
		attribute.Int("media.pending", len(ws.Pending)),
	))
	defer span.End()

	folder := path.Join(s.folder, outpatientNo)
	var (
		failures []UploadFailure
		kept     []media.Pending
	)
	for _, p := range ws.Pending {
		blob, ok := s.spool.Get(sess.ID, p.ID)
		if !ok {
			failures = append(failures, UploadFailure{FileName: p.FileName, Error: "file expired before upload; attach it again"})
			continue
		}

		start := time.Now()
		att, err := s.host.Upload(ctx, mediahost.File{
			Name:        p.FileName,
			ContentType: p.ContentType,
			Data:        blob.Data,
			Folder:      folder,
		})
		s.metrics.MediaUploadSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			s.metrics.MediaUploadsTotal.WithLabelValues("failure").Inc()
			s.log.Warn("media upload failed", zap.String("file", p.FileName), zap.Error(err))
			failures = append(failures, UploadFailure{FileName: p.FileName, Error: err.Error()})
			kept = append(kept, p)
			continue
		}

		s.metrics.MediaUploadsTotal.WithLabelValues("success").Inc()
		ws.Draft.Media = append(ws.Draft.Media, att)
		s.spool.Remove(p.ID)
	}
	ws.Pending = kept

	span.SetAttributes(attribute.Int("media.failed", len(failures)))
	return failures
}

func (s *DeskService) deleteCurrent(ctx context.Context, sess *session.Session, variant form.Variant, ws *session.Workspace, before navigation.Navigator, ip string) (string, error) {
	cur, ok := ws.Current()
	if !ok {
		ws.Nav = before
		ws.Nav.ConfirmingDelete = false
		return "", navigation.ErrNoRecords
	}
	id := cur.ID

	err := s.patients.Delete(ctx, id, sess.OperatorID, string(sess.Role), ip)
	if err != nil && !errors.Is(err, patient.ErrRecordNotFound) {
		ws.Nav = before
		ws.Nav.ConfirmingDelete = false
		return "", err
	}
	if err == nil {
		s.metrics.RecordsWrittenTotal.WithLabelValues(string(variant.Kind), "delete").Inc()
	}

	var warning string
	if err := s.refresh(ctx, ws); err != nil {
		warning = "record deleted but the list could not be reloaded; it may be out of date"
		if i := ws.IndexOf(id); i >= 0 {
			ws.Records = slices.Delete(ws.Records, i, i+1)
		}
	}

	ws.Nav.Deleted(len(ws.Records))
	if ws.Nav.Mode == navigation.ModeNew {
		if w := s.startDraft(ctx, sess, ws); w != "" {
			warning = w
		}
	}
	return warning, nil
}

func (s *DeskService) reject(ctx context.Context, sess *session.Session, variant form.Variant, ws *session.Workspace, action string, cause error) (*DeskView, error) {
	s.metrics.RejectedActions.WithLabelValues(string(variant.Kind), action).Inc()
	v := render(variant, ws)
	v.Notice = cause.Error()
	if err := s.save(ctx, sess); err != nil {
		return v, err
	}
	return v, cause
}

func (s *DeskService) refuseMedia(ctx context.Context, sess *session.Session, variant form.Variant, ws *session.Workspace, fileName string, cause error) (*DeskView, error) {
	s.metrics.MediaRejectedTotal.WithLabelValues(rejectReason(cause)).Inc()
	s.log.Info("attachment refused", zap.String("file", fileName), zap.Error(cause))

	v := render(variant, ws)
	v.Notice = fmt.Sprintf("%s: %s", cleanFileName(fileName), cause.Error())
	if err := s.save(ctx, sess); err != nil {
		return v, err
	}
	if errors.Is(cause, session.ErrSpoolFull) {
		return v, cause
	}
	return v, &ValidationError{Fields: []string{"media: " + cause.Error()}, Cause: cause}
}

// load creates or refreshes the form's workspace. A store failure keeps
// whatever list was cached and reports a warning.
func (s *DeskService) load(ctx context.Context, sess *session.Session, variant form.Variant) (*session.Workspace, []string) {
	var warnings []string

	ws, ok := sess.Workspace(variant.Kind)
	if !ok {
		ws = &session.Workspace{Nav: navigation.Start(0)}
		sess.SetWorkspace(variant.Kind, ws)
	}

	if err := s.refresh(ctx, ws); err != nil {
		warnings = append(warnings, "could not load records; the list may be incomplete")
	}
	if !ok {
		ws.Nav = navigation.Start(len(ws.Records))
	} else {
		ws.Nav.Refreshed(len(ws.Records))
	}

	if ws.Nav.Editable() && ws.Draft == nil {
		warnings = append(warnings, s.ensureDraft(ctx, sess, ws))
	}
	return ws, warnings
}

func (s *DeskService) workspace(ctx context.Context, sess *session.Session, formName string) (form.Variant, *session.Workspace, []string) {
	variant, err := s.forms.Lookup(formName)
	if err != nil {
		return form.Variant{}, nil, nil
	}
	if ws, ok := sess.Workspace(variant.Kind); ok {
		return variant, ws, nil
	}
	ws, warnings := s.load(ctx, sess, variant)
	return variant, ws, warnings
}

func (s *DeskService) refresh(ctx context.Context, ws *session.Workspace) error {
	recs, err := s.patients.All(ctx)
	if err != nil {
		s.log.Error("failed to reload records", zap.Error(err))
		return err
	}
	ws.Records = recs
	return nil
}

// ensureDraft gives an editable form without a draft something to edit:
// a copy of the current record in edit mode, a blank record otherwise.
func (s *DeskService) ensureDraft(ctx context.Context, sess *session.Session, ws *session.Workspace) string {
	if ws.Draft != nil {
		return ""
	}
	if ws.Nav.Mode == navigation.ModeEdit {
		if cur, ok := ws.Current(); ok {
			ws.Draft = cloneRecord(cur)
			return ""
		}
	}
	return s.startDraft(ctx, sess, ws)
}

func (s *DeskService) startDraft(ctx context.Context, sess *session.Session, ws *session.Workspace) string {
	nums, warning := s.numbers.Next(ctx)
	now := s.now()

	ws.Draft = &patient.Record{
		OutpatientNo:   nums.OutpatientNo,
		RegistrationNo: nums.RegistrationNo,
		AdmitDate:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		AdmitTime:      now.Format(patient.TimeLayout),
		MaritalStatus:  patient.Unmarried,
		OperatorName:   sess.DisplayName,
	}
	in := patient.InputFromRecord(ws.Draft)
	ws.Input = &in
	return warning
}

func (s *DeskService) discardDraft(ws *session.Workspace) {
	s.spool.Remove(ws.ClearDraft()...)
}

func (s *DeskService) save(ctx context.Context, sess *session.Session) error {
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.log.Error("failed to save session", zap.String("session_id", sess.ID), zap.Error(err))
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func cloneRecord(r *patient.Record) *patient.Record {
	c := *r
	c.Media = slices.Clone(r.Media)
	if r.Vitals != nil {
		v := *r.Vitals
		c.Vitals = &v
	}
	return &c
}

func cleanFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return name
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, media.ErrFileTooLarge):
		return "too_large"
	case errors.Is(err, media.ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, media.ErrTooManyFiles):
		return "too_many"
	case errors.Is(err, media.ErrEmptyFile):
		return "empty"
	case errors.Is(err, session.ErrSessionQuota):
		return "session_quota"
	case errors.Is(err, session.ErrSpoolFull):
		return "spool_full"
	}
	return "other"
}

// noticeFor turns a failed action into the message shown on the form.
func noticeFor(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return "Please correct: " + strings.Join(verr.Fields, "; ")
	}
	if errors.Is(err, ErrForbidden) {
		return "You are not allowed to do that."
	}
	return "Could not complete the operation; your input is kept. Please try again."
}
