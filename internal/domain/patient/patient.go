package patient

import (
	"time"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/media"
	"github.com/google/uuid"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	}
	return false
}

type MaritalStatus string

const (
	Unmarried MaritalStatus = "unmarried"
	Married   MaritalStatus = "married"
)

type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
)

var BloodGroups = []BloodGroup{
	BloodGroupAPos, BloodGroupANeg, BloodGroupBPos, BloodGroupBNeg,
	BloodGroupABPos, BloodGroupABNeg, BloodGroupOPos, BloodGroupONeg,
}

type Vitals struct {
	TemperatureC  *float64 `json:"temperature_c,omitempty"`
	PulseRateBPM  *int     `json:"pulse_rate_bpm,omitempty"`
	BloodPressure string   `json:"blood_pressure,omitempty"`
}

func (v *Vitals) IsEmpty() bool {
	return v == nil || (v.TemperatureC == nil && v.PulseRateBPM == nil && v.BloodPressure == "")
}

// Record is one registration or outpatient visit. Outpatient and
// registration numbers are display identifiers, not keys: nothing enforces
// their uniqueness.
type Record struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	OutpatientNo   string    `gorm:"column:outpatient_no;type:varchar(20);index" json:"outpatient_no"`
	RegistrationNo string    `gorm:"column:registration_no;type:varchar(20);index" json:"registration_no"`
	AdmitDate      time.Time `gorm:"column:admit_date;type:date" json:"admit_date"`
	AdmitTime      string    `gorm:"column:admit_time;type:varchar(5)" json:"admit_time"`

	PatientName   string        `gorm:"column:patient_name;type:varchar(200);not null;index" json:"patient_name"`
	MotherName    string        `gorm:"column:mother_name;type:varchar(200)" json:"mother_name,omitempty"`
	FatherName    string        `gorm:"column:father_name;type:varchar(200)" json:"father_name,omitempty"`
	Address       string        `gorm:"column:address;type:text" json:"address,omitempty"`
	Gender        Gender        `gorm:"column:gender;type:varchar(20);not null" json:"gender"`
	MaritalStatus MaritalStatus `gorm:"column:marital_status;type:varchar(20);default:'unmarried'" json:"marital_status"`
	SpouseName    string        `gorm:"column:spouse_name;type:varchar(200)" json:"spouse_name,omitempty"`
	DateOfBirth   *time.Time    `gorm:"column:date_of_birth;type:date" json:"date_of_birth,omitempty"`
	Age           int           `gorm:"column:age" json:"age"`
	WeightKg      *float64      `gorm:"column:weight_kg" json:"weight_kg,omitempty"`
	BloodGroup    BloodGroup    `gorm:"column:blood_group;type:varchar(5)" json:"blood_group,omitempty"`
	Email         string        `gorm:"column:email;type:varchar(255)" json:"email,omitempty"`

	ConsultantDoctor string     `gorm:"column:consultant_doctor;type:varchar(200);index" json:"consultant_doctor"`
	ReferenceDoctor  string     `gorm:"column:reference_doctor;type:varchar(200)" json:"reference_doctor,omitempty"`
	PatientHistory   string     `gorm:"column:patient_history;type:text" json:"patient_history,omitempty"` // PHI
	Vitals           *Vitals    `gorm:"column:vitals;serializer:json" json:"vitals,omitempty"`
	ReviewDate       *time.Time `gorm:"column:review_date;type:date" json:"review_date,omitempty"`

	// Display name of the operator who entered the record
	OperatorName string `gorm:"column:operator_name;type:varchar(200)" json:"operator_name"`

	// Upload order is display order
	Media []media.Attachment `gorm:"column:media;serializer:json" json:"media"`
}

func (Record) TableName() string {
	return "clinical.patient_records"
}

// AgeOn returns the age in whole years at the given instant.
func AgeOn(dob, at time.Time) int {
	years := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

// SpouseLabel names the spouse field after the patient's gender.
func SpouseLabel(g Gender) string {
	switch g {
	case GenderFemale:
		return "Husband's Name"
	case GenderMale:
		return "Wife's Name"
	}
	return "Spouse's Name"
}

// PublicIDs lists the media host ids of the record's attachments.
func (r *Record) PublicIDs() []string {
	ids := make([]string, 0, len(r.Media))
	for _, m := range r.Media {
		ids = append(ids, m.PublicID)
	}
	return ids
}

// Field names a column callers may filter or order by.
type Field string

const (
	FieldOutpatientNo     Field = "outpatient_no"
	FieldRegistrationNo   Field = "registration_no"
	FieldPatientName      Field = "patient_name"
	FieldConsultantDoctor Field = "consultant_doctor"
	FieldEmail            Field = "email"
	FieldAdmitDate        Field = "admit_date"
	FieldCreatedAt        Field = "created_at"
)

func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldOutpatientNo, FieldRegistrationNo, FieldPatientName, FieldConsultantDoctor,
		FieldEmail, FieldAdmitDate, FieldCreatedAt:
		return f, nil
	}
	return "", ErrUnknownField
}

// ListQuery orders and bounds a record listing. A zero Limit means no limit.
type ListQuery struct {
	OrderBy Field
	Desc    bool
	Limit   int
}

// Stats are the dashboard counters.
type Stats struct {
	Total int64 `json:"total_patients"`
	Today int64 `json:"today_registrations"`
}
