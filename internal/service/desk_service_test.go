package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/navigation"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/session"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	jpegBytes = append([]byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, make([]byte, 64)...)
	pdfBytes  = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
)

// unreadable fails the test if anything reads from it.
type unreadable struct{ t *testing.T }

func (u unreadable) Read([]byte) (int, error) {
	u.t.Error("file content was read")
	return 0, io.EOF
}

func TestDesk_OpenEmptyStoreStartsNew(t *testing.T) {
	f := newDeskFixture(t)

	v, err := f.desk.Open(context.Background(), f.sess, "registration")
	require.NoError(t, err)

	assert.Equal(t, navigation.ModeNew, v.Mode)
	assert.Equal(t, 0, v.Count)
	assert.True(t, v.Editable)
	require.NotNil(t, v.Record)
	assert.Equal(t, "000001", v.Record.OutpatientNo)
	assert.Equal(t, "REG000001", v.Record.RegistrationNo)
	assert.Equal(t, "Front Desk", v.Record.OperatorName)
	assert.Equal(t, "2025-03-10", v.Input.AdmitDate)
	assert.Equal(t, "09:15", v.Input.AdmitTime)
	assert.Empty(t, v.Warnings)
}

func TestDesk_OpenShowsMostRecentRecord(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala", "Chitra")

	v, err := f.desk.Open(context.Background(), f.sess, "outpatient")
	require.NoError(t, err)

	assert.Equal(t, navigation.ModeView, v.Mode)
	assert.Equal(t, 2, v.Index)
	assert.Equal(t, 3, v.Count)
	assert.False(t, v.Editable)
	assert.Equal(t, "Chitra", v.Record.PatientName)
	assert.True(t, v.HistoryEnabled)
	assert.Equal(t, navigation.ActionHistory, v.Keys["F10"])
}

func TestDesk_OpenUnknownForm(t *testing.T) {
	f := newDeskFixture(t)

	_, err := f.desk.Open(context.Background(), f.sess, "billing")
	require.Error(t, err)
}

func TestDesk_OpenWithStoreDownWarns(t *testing.T) {
	f := newDeskFixture(t)
	f.records.failList = true
	f.records.failNumbers = true

	v, err := f.desk.Open(context.Background(), f.sess, "registration")
	require.NoError(t, err)

	assert.Equal(t, navigation.ModeNew, v.Mode)
	assert.Equal(t, "000001", v.Record.OutpatientNo)
	assert.Len(t, v.Warnings, 2)
}

func TestDesk_CreateRecord(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha")
	ctx := context.Background()

	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionNew, nil, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, navigation.ModeNew, v.Mode)
	assert.Equal(t, "000002", v.Record.OutpatientNo)
	assert.Equal(t, "REG000002", v.Record.RegistrationNo)

	v, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionSubmit, validDeskInput("Devi"), "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, navigation.ModeView, v.Mode)
	assert.Equal(t, 2, v.Count)
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, "Devi", v.Record.PatientName)
	assert.Equal(t, "000002", v.Record.OutpatientNo)
	assert.Equal(t, patient.GenderFemale, v.Record.Gender)
	assert.Equal(t, 36, v.Record.Age)
	assert.Equal(t, "Record saved.", v.Notice)
	assert.Len(t, f.records.records, 2)
}

func TestDesk_InvalidSubmitKeepsInput(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	in := validDeskInput("")
	in.Email = "not-an-email"
	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionSubmit, in, "")
	require.Error(t, err)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "patient_name is required")
	assert.Contains(t, verr.Fields, "email must be a valid email address")

	assert.Equal(t, navigation.ModeNew, v.Mode)
	assert.Equal(t, "not-an-email", v.Input.Email)
	assert.True(t, strings.HasPrefix(v.Notice, "Please correct:"))
	assert.Empty(t, f.records.records)
}

func TestDesk_StoreFailureKeepsDraft(t *testing.T) {
	f := newDeskFixture(t)
	f.records.failCreate = true
	ctx := context.Background()

	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionSubmit, validDeskInput("Devi"), "")
	require.ErrorIs(t, err, errStoreDown)

	assert.Equal(t, navigation.ModeNew, v.Mode)
	assert.Equal(t, "Devi", v.Input.PatientName)
	assert.Contains(t, v.Notice, "input is kept")

	f.records.failCreate = false
	v, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionSubmit, nil, "")
	require.NoError(t, err)
	assert.Equal(t, navigation.ModeView, v.Mode)
	assert.Equal(t, "Devi", v.Record.PatientName)
}

func TestDesk_EditInMiddleOfList(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala", "Chitra", "Dinesh", "Esha")
	ctx := context.Background()

	_, err := f.desk.Open(ctx, f.sess, "outpatient")
	require.NoError(t, err)
	for range 2 {
		_, err = f.desk.Dispatch(ctx, f.sess, "outpatient", navigation.ActionPrevious, nil, "")
		require.NoError(t, err)
	}

	v, err := f.desk.Dispatch(ctx, f.sess, "outpatient", navigation.ActionEdit, nil, "")
	require.NoError(t, err)
	require.Equal(t, navigation.ModeEdit, v.Mode)
	require.Equal(t, 2, v.Index)
	require.Equal(t, "Chitra", v.Input.PatientName)
	target := v.Record.ID

	in := *v.Input
	in.PatientName = "Chitra Rao"
	in.ConsultantDoctor = "Dr. Kapoor"
	in.Temperature = "37.2"
	v, err = f.desk.Dispatch(ctx, f.sess, "outpatient", navigation.ActionSubmit, &in, "")
	require.NoError(t, err)

	assert.Equal(t, navigation.ModeView, v.Mode)
	assert.Equal(t, 2, v.Index)
	assert.Equal(t, 5, v.Count)
	assert.Equal(t, target, v.Record.ID)
	assert.Equal(t, "Chitra Rao", v.Record.PatientName)
	assert.Equal(t, "000003", v.Record.OutpatientNo)
	assert.Equal(t, "Seeder", v.Record.OperatorName)
	require.NotNil(t, v.Record.Vitals)
	assert.InDelta(t, 37.2, *v.Record.Vitals.TemperatureC, 0.001)

	stored, err := f.records.GetByID(ctx, target)
	require.NoError(t, err)
	assert.Equal(t, "Dr. Kapoor", stored.ConsultantDoctor)
}

func TestDesk_RegistrationEditKeepsClinicalFields(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	visit := validDeskInput("Farah")
	visit.PatientHistory = "fever 3 days"
	visit.Temperature = "38.5"
	visit.BloodPressure = "120/80"
	_, err := f.desk.Dispatch(ctx, f.sess, "outpatient", navigation.ActionSubmit, visit, "")
	require.NoError(t, err)

	_, err = f.desk.Open(ctx, f.sess, "registration")
	require.NoError(t, err)
	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionEdit, nil, "")
	require.NoError(t, err)
	require.Equal(t, navigation.ModeEdit, v.Mode)

	in := *v.Input
	in.Address = "12 Lake Road"
	v, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionSubmit, &in, "")
	require.NoError(t, err)
	require.Equal(t, navigation.ModeView, v.Mode)

	stored, err := f.records.GetByID(ctx, v.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "12 Lake Road", stored.Address)
	assert.Equal(t, "fever 3 days", stored.PatientHistory)
	require.NotNil(t, stored.Vitals)
	assert.InDelta(t, 38.5, *stored.Vitals.TemperatureC, 0.001)
	assert.Equal(t, "120/80", stored.Vitals.BloodPressure)
}

func TestDesk_NavigationRejectedWhileEditing(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala")
	ctx := context.Background()

	_, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionEdit, nil, "")
	require.NoError(t, err)

	in := validDeskInput("Bala K")
	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionNext, in, "")
	require.ErrorIs(t, err, navigation.ErrOperationPending)

	assert.Equal(t, navigation.ModeEdit, v.Mode)
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, "Bala K", v.Input.PatientName)
	assert.Equal(t, navigation.ErrOperationPending.Error(), v.Notice)

	_, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionQuit, nil, "")
	require.ErrorIs(t, err, navigation.ErrOperationPending)
}

func TestDesk_CancelReturnsToShownRecord(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala", "Chitra")
	ctx := context.Background()

	_, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionFirst, nil, "")
	require.NoError(t, err)
	_, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionNew, nil, "")
	require.NoError(t, err)

	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionCancel, nil, "")
	require.NoError(t, err)
	assert.Equal(t, navigation.ModeView, v.Mode)
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, "Asha", v.Record.PatientName)
	assert.Len(t, f.records.records, 3)
}

func TestDesk_MoveBeyondEnds(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala")
	ctx := context.Background()

	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionNext, nil, "")
	require.ErrorIs(t, err, navigation.ErrNoMoreRecords)
	assert.Equal(t, 1, v.Index)

	_, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionFirst, nil, "")
	require.NoError(t, err)
	v, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionPrevious, nil, "")
	require.ErrorIs(t, err, navigation.ErrNoMoreRecords)
	assert.Equal(t, 0, v.Index)
}

func TestDesk_DeleteNeedsConfirmation(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala", "Chitra")
	ctx := context.Background()

	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionDelete, nil, "")
	require.NoError(t, err)
	assert.True(t, v.ConfirmingDelete)
	assert.Contains(t, v.Notice, "000003")

	_, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionFirst, nil, "")
	require.ErrorIs(t, err, navigation.ErrConfirmationPending)
	assert.Len(t, f.records.records, 3)

	v, err = f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionSubmit, nil, "")
	require.NoError(t, err)
	assert.False(t, v.ConfirmingDelete)
	assert.Equal(t, navigation.ModeView, v.Mode)
	assert.Equal(t, 2, v.Count)
	assert.Equal(t, 1, v.Index)
	assert.Equal(t, "Bala", v.Record.PatientName)
	assert.Len(t, f.records.records, 2)
}

func TestDesk_DeletingLastRecordStartsNew(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha")
	ctx := context.Background()

	_, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionDelete, nil, "")
	require.NoError(t, err)
	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionSubmit, nil, "")
	require.NoError(t, err)

	assert.Equal(t, navigation.ModeNew, v.Mode)
	assert.Equal(t, 0, v.Count)
	require.NotNil(t, v.Record)
	assert.Equal(t, "000001", v.Record.OutpatientNo)
}

func TestDesk_HistoryOnlyOnOutpatient(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala", "Asha")
	ctx := context.Background()

	_, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionHistory, nil, "")
	require.ErrorIs(t, err, ErrActionUnavailable)

	v, err := f.desk.Dispatch(ctx, f.sess, "outpatient", navigation.ActionHistory, nil, "")
	require.NoError(t, err)
	assert.Len(t, v.History, 2)
	assert.Equal(t, navigation.ModeView, v.Mode)
}

func TestDesk_UnknownActionRejected(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha")

	v, err := f.desk.Dispatch(context.Background(), f.sess, "registration", navigation.Action("print"), nil, "")
	require.ErrorIs(t, err, navigation.ErrUnknownAction)
	assert.Equal(t, navigation.ModeView, v.Mode)
}

func TestDesk_QuitClosesWorkspace(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha")
	ctx := context.Background()

	v, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionQuit, nil, "")
	require.NoError(t, err)
	assert.Equal(t, "/dashboard", v.Redirect)

	_, ok := f.sess.Workspaces["registration"]
	assert.False(t, ok)
}

func TestDesk_KeyPresses(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala")
	ctx := context.Background()

	v, handled, err := f.desk.Key(ctx, f.sess, "registration", "Home", "BODY", nil, "")
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 0, v.Index)

	v, handled, err = f.desk.Key(ctx, f.sess, "registration", "End", "input", nil, "")
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Equal(t, 0, v.Index)

	_, handled, err = f.desk.Key(ctx, f.sess, "registration", "F10", "BODY", nil, "")
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestDesk_AttachRejectsOversizeBeforeReading(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	v, err := f.desk.AttachMedia(ctx, f.sess, "outpatient", "scan.mp4", 60<<20, unreadable{t})
	require.ErrorIs(t, err, media.ErrFileTooLarge)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, v.Notice, "50 MB maximum")
	assert.Empty(t, v.Media)
	assert.Equal(t, 0, f.spool.Len())

	_, err = f.desk.Dispatch(ctx, f.sess, "outpatient", navigation.ActionSubmit, validDeskInput("Devi"), "")
	require.NoError(t, err)
	assert.Zero(t, f.host.calls())
}

func TestDesk_AttachRejectsUnsupportedType(t *testing.T) {
	f := newDeskFixture(t)

	v, err := f.desk.AttachMedia(context.Background(), f.sess, "outpatient", "report.png", int64(len(pdfBytes)), bytes.NewReader(pdfBytes))
	require.ErrorIs(t, err, media.ErrUnsupportedType)
	assert.Empty(t, v.Media)
	assert.Equal(t, 0, f.spool.Len())
}

func TestDesk_AttachRequiresEditableForm(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha")

	_, err := f.desk.AttachMedia(context.Background(), f.sess, "outpatient", "a.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.ErrorIs(t, err, ErrFormReadOnly)
}

func TestDesk_SingleProfileAcceptsOneFile(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	_, err := f.desk.AttachMedia(ctx, f.sess, "registration", "a.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)

	_, err = f.desk.AttachMedia(ctx, f.sess, "registration", "b.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.ErrorIs(t, err, media.ErrTooManyFiles)
	assert.Equal(t, 1, f.spool.Len())
}

func TestDesk_SpoolQuotaIsPerSession(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	other := session.New(&domain.User{
		ID:          uuid.New(),
		Username:    "desk2",
		DisplayName: "Back Desk",
		Role:        domain.RoleReceptionist,
	})
	require.NoError(t, f.sessions.Save(ctx, other))

	_, err := f.desk.AttachMedia(ctx, other, "outpatient", "theirs.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)

	for i := range 4 {
		_, err := f.desk.AttachMedia(ctx, f.sess, "outpatient", fmt.Sprintf("scan-%d.jpg", i), int64(len(jpegBytes)), bytes.NewReader(jpegBytes))
		require.NoError(t, err)
	}
	v, err := f.desk.AttachMedia(ctx, f.sess, "outpatient", "scan-4.jpg", int64(len(jpegBytes)), unreadable{t})
	require.ErrorIs(t, err, session.ErrSessionQuota)
	assert.Len(t, v.Media, 4)
	assert.Equal(t, 5, f.spool.Len())

	v, err = f.desk.Dispatch(ctx, other, "outpatient", navigation.ActionSubmit, validDeskInput("Gita"), "")
	require.NoError(t, err)
	assert.Empty(t, v.UploadFailures)
	require.Len(t, v.Record.Media, 1)
	assert.Equal(t, 4, f.spool.Len())
}

func TestDesk_SubmitUploadsSequentially(t *testing.T) {
	f := newDeskFixture(t)
	f.host.failOn["broken.jpg"] = true
	ctx := context.Background()

	_, err := f.desk.AttachMedia(ctx, f.sess, "outpatient", "C:\\scans\\front.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)
	v, err := f.desk.AttachMedia(ctx, f.sess, "outpatient", "broken.jpg", int64(len(jpegBytes)), bytes.NewReader(jpegBytes))
	require.NoError(t, err)
	require.Len(t, v.Media, 2)
	assert.True(t, v.Media[0].Pending)
	assert.Equal(t, "front.png", v.Media[0].Name)
	assert.Equal(t, media.KindImage, v.Media[1].Kind)

	v, err = f.desk.Dispatch(ctx, f.sess, "outpatient", navigation.ActionSubmit, validDeskInput("Devi"), "")
	require.NoError(t, err)

	require.Len(t, f.host.uploads, 2)
	assert.Equal(t, "front.png", f.host.uploads[0].Name)
	assert.Equal(t, "patient-media/000001", f.host.uploads[0].Folder)
	assert.Equal(t, "image/png", f.host.uploads[0].ContentType)

	require.Len(t, v.UploadFailures, 1)
	assert.Equal(t, "broken.jpg", v.UploadFailures[0].FileName)

	assert.Equal(t, navigation.ModeView, v.Mode)
	require.Len(t, v.Record.Media, 1)
	assert.Equal(t, "patient-media/000001/front.png", v.Record.Media[0].PublicID)
	assert.Equal(t, 0, f.spool.Len())
}

func TestDesk_RemoveMedia(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	_, err := f.desk.AttachMedia(ctx, f.sess, "outpatient", "a.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)

	_, err = f.desk.RemoveMedia(ctx, f.sess, "outpatient", 3)
	require.ErrorIs(t, err, ErrMediaNotFound)

	v, err := f.desk.RemoveMedia(ctx, f.sess, "outpatient", 0)
	require.NoError(t, err)
	assert.Empty(t, v.Media)
	assert.Equal(t, 0, f.spool.Len())
}

func TestDesk_PendingFileOwnedBySession(t *testing.T) {
	f := newDeskFixture(t)
	ctx := context.Background()

	v, err := f.desk.AttachMedia(ctx, f.sess, "outpatient", "a.png", int64(len(pngBytes)), bytes.NewReader(pngBytes))
	require.NoError(t, err)
	id := strings.TrimPrefix(v.Media[0].URL, PendingMediaPath)

	blob, err := f.desk.PendingFile(f.sess, id)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, blob.Data)

	other := *f.sess
	other.ID = "someone-else"
	_, err = f.desk.PendingFile(&other, id)
	require.ErrorIs(t, err, ErrMediaNotFound)
}

func TestDesk_SessionIsPersisted(t *testing.T) {
	f := newDeskFixture(t)
	f.seed("Asha", "Bala")
	ctx := context.Background()

	_, err := f.desk.Dispatch(ctx, f.sess, "registration", navigation.ActionFirst, nil, "")
	require.NoError(t, err)

	stored, err := f.sessions.Get(ctx, f.sess.ID)
	require.NoError(t, err)
	ws, ok := stored.Workspace("registration")
	require.True(t, ok)
	assert.Equal(t, 0, ws.Nav.Index)
	assert.Len(t, ws.Records, 2)
}
