package service

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain"
	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/patient"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const registerSheet = "Register"

var registerHeader = []string{
	"Outpatient No",
	"Registration No",
	"Admit Date",
	"Admit Time",
	"Patient Name",
	"Gender",
	"Age",
	"Date of Birth",
	"Marital Status",
	"Spouse",
	"Father",
	"Mother",
	"Blood Group",
	"Weight (kg)",
	"Email",
	"Address",
	"Consultant Doctor",
	"Reference Doctor",
	"Review Date",
	"Media Files",
	"Entered By",
}

var registerColumnWidths = []float64{14, 16, 12, 10, 28, 10, 6, 14, 14, 24, 24, 24, 11, 11, 28, 40, 24, 24, 12, 11, 20}

type ExportService struct {
	repo     patient.Repository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewExportService(repo patient.Repository, auditSvc *AuditService, log *zap.Logger) *ExportService {
	return &ExportService{repo: repo, auditSvc: auditSvc, log: log}
}

// WriteRegister writes every record, oldest first, as an Excel workbook.
func (s *ExportService) WriteRegister(ctx context.Context, w io.Writer, callerID uuid.UUID, callerRole string, ip string) error {
	if !canManageRecords(domain.Role(callerRole)) {
		return ErrForbidden
	}

	recs, err := s.repo.List(ctx, patient.ListQuery{OrderBy: patient.FieldCreatedAt})
	if err != nil {
		return err
	}

	f, err := buildRegister(recs)
	if err != nil {
		s.log.Error("failed to build register workbook", zap.Error(err))
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing register workbook: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:       callerID,
		UserRole:     callerRole,
		Action:       string(domain.ActionExport),
		ResourceType: "patient_register",
		IPAddress:    ip,
		Changes:      fmt.Sprintf(`{"rows":%d}`, len(recs)),
	})
	return nil
}

func buildRegister(recs []patient.Record) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(registerSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("removing default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}

	for col, header := range registerHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetCellValue(registerSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("setting header %s: %w", cell, err)
		}
		if err := f.SetCellStyle(registerSheet, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("styling header %s: %w", cell, err)
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(registerSheet, name, name, registerColumnWidths[col]); err != nil {
			f.Close()
			return nil, fmt.Errorf("setting column width: %w", err)
		}
	}

	for i := range recs {
		row := registerRow(&recs[i])
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetSheetRow(registerSheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if err := f.SetPanes(registerSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freezing header: %w", err)
	}

	return f, nil
}

func registerRow(r *patient.Record) []any {
	admit := ""
	if !r.AdmitDate.IsZero() {
		admit = r.AdmitDate.Format(patient.DateLayout)
	}
	weight := ""
	if r.WeightKg != nil {
		weight = strconv.FormatFloat(*r.WeightKg, 'f', -1, 64)
	}
	dob := ""
	if r.DateOfBirth != nil {
		dob = r.DateOfBirth.Format(patient.DateLayout)
	}
	review := ""
	if r.ReviewDate != nil {
		review = r.ReviewDate.Format(patient.DateLayout)
	}

	return []any{
		r.OutpatientNo,
		r.RegistrationNo,
		admit,
		r.AdmitTime,
		r.PatientName,
		string(r.Gender),
		r.Age,
		dob,
		string(r.MaritalStatus),
		r.SpouseName,
		r.FatherName,
		r.MotherName,
		string(r.BloodGroup),
		weight,
		r.Email,
		r.Address,
		r.ConsultantDoctor,
		r.ReferenceDoctor,
		review,
		len(r.Media),
		r.OperatorName,
	}
}
