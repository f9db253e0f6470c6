package patient

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Input is the raw content of a desk form. Values stay strings so a
// rejected submit can be shown back exactly as typed.
type Input struct {
	AdmitDate string `json:"admit_date" form:"admit_date" validate:"omitempty,datetime=2006-01-02"`
	AdmitTime string `json:"admit_time" form:"admit_time" validate:"omitempty,datetime=15:04"`

	PatientName   string `json:"patient_name" form:"patient_name" validate:"required,max=200"`
	MotherName    string `json:"mother_name" form:"mother_name" validate:"max=200"`
	FatherName    string `json:"father_name" form:"father_name" validate:"max=200"`
	Address       string `json:"address" form:"address" validate:"max=1000"`
	Gender        string `json:"gender" form:"gender" validate:"required,oneof=male female other"`
	MaritalStatus string `json:"marital_status" form:"marital_status" validate:"omitempty,oneof=unmarried married"`
	SpouseName    string `json:"spouse_name" form:"spouse_name" validate:"max=200"`
	DateOfBirth   string `json:"date_of_birth" form:"date_of_birth" validate:"required,datetime=2006-01-02"`
	WeightKg      string `json:"weight_kg" form:"weight_kg"`
	BloodGroup    string `json:"blood_group" form:"blood_group" validate:"omitempty,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
	Email         string `json:"email" form:"email" validate:"omitempty,email"`

	ConsultantDoctor string `json:"consultant_doctor" form:"consultant_doctor" validate:"required,max=200"`
	ReferenceDoctor  string `json:"reference_doctor" form:"reference_doctor" validate:"max=200"`

	// Clinical fields; ignored by forms without clinical input.
	PatientHistory string `json:"patient_history" form:"patient_history"`
	Temperature    string `json:"temperature_c" form:"temperature_c"`
	PulseRate      string `json:"pulse_rate_bpm" form:"pulse_rate_bpm"`
	BloodPressure  string `json:"blood_pressure" form:"blood_pressure"`
	ReviewDate     string `json:"review_date" form:"review_date" validate:"omitempty,datetime=2006-01-02"`
}

var (
	validate             = newValidator()
	bloodPressurePattern = regexp.MustCompile(`^\d{2,3}/\d{2,3}$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// InputFromRecord renders a record back into form values.
func InputFromRecord(r *Record) Input {
	in := Input{
		AdmitTime:        r.AdmitTime,
		PatientName:      r.PatientName,
		MotherName:       r.MotherName,
		FatherName:       r.FatherName,
		Address:          r.Address,
		Gender:           string(r.Gender),
		MaritalStatus:    string(r.MaritalStatus),
		SpouseName:       r.SpouseName,
		BloodGroup:       string(r.BloodGroup),
		Email:            r.Email,
		ConsultantDoctor: r.ConsultantDoctor,
		ReferenceDoctor:  r.ReferenceDoctor,
		PatientHistory:   r.PatientHistory,
	}
	if !r.AdmitDate.IsZero() {
		in.AdmitDate = r.AdmitDate.Format(DateLayout)
	}
	if r.DateOfBirth != nil {
		in.DateOfBirth = r.DateOfBirth.Format(DateLayout)
	}
	if r.WeightKg != nil {
		in.WeightKg = strconv.FormatFloat(*r.WeightKg, 'f', -1, 64)
	}
	if r.ReviewDate != nil {
		in.ReviewDate = r.ReviewDate.Format(DateLayout)
	}
	if r.Vitals != nil {
		if r.Vitals.TemperatureC != nil {
			in.Temperature = strconv.FormatFloat(*r.Vitals.TemperatureC, 'f', -1, 64)
		}
		if r.Vitals.PulseRateBPM != nil {
			in.PulseRate = strconv.Itoa(*r.Vitals.PulseRateBPM)
		}
		in.BloodPressure = r.Vitals.BloodPressure
	}
	return in
}

// Apply validates in and, only when it is valid, copies it onto r. The
// returned slice lists one message per invalid field. Unless clinical is
// set, the clinical inputs are ignored and the stored ones kept. Age is always derived from the date of
// birth as of now, and the spouse name is kept only for married patients.
func (r *Record) Apply(in Input, clinical bool, now time.Time) []string {
	in = in.normalized()
	if !clinical {
		in.PatientHistory, in.Temperature, in.PulseRate, in.BloodPressure, in.ReviewDate = "", "", "", "", ""
	}

	errs := structErrors(validate.Struct(in))
	loc := now.Location()
	next := *r

	next.PatientName = in.PatientName
	next.MotherName = in.MotherName
	next.FatherName = in.FatherName
	next.Address = in.Address
	next.Gender = Gender(in.Gender)
	next.MaritalStatus = MaritalStatus(in.MaritalStatus)
	if next.MaritalStatus == "" {
		next.MaritalStatus = Unmarried
	}
	next.SpouseName = ""
	if next.MaritalStatus == Married {
		next.SpouseName = in.SpouseName
	}
	next.BloodGroup = BloodGroup(in.BloodGroup)
	next.Email = in.Email
	next.ConsultantDoctor = in.ConsultantDoctor
	next.ReferenceDoctor = in.ReferenceDoctor

	if d, err := time.ParseInLocation(DateLayout, in.AdmitDate, loc); err == nil {
		next.AdmitDate = d
	}
	if in.AdmitTime != "" {
		next.AdmitTime = in.AdmitTime
	}

	next.DateOfBirth = nil
	next.Age = 0
	if dob, err := time.ParseInLocation(DateLayout, in.DateOfBirth, loc); err == nil {
		if dob.After(now) {
			errs = append(errs, "date_of_birth: "+ErrInvalidDateOfBirth.Error())
		}
		next.DateOfBirth = &dob
		next.Age = AgeOn(dob, now)
	}

	next.WeightKg = nil
	if in.WeightKg != "" {
		w, err := strconv.ParseFloat(in.WeightKg, 64)
		if err != nil || w <= 0 || w > 500 {
			errs = append(errs, "weight_kg must be a number between 0 and 500")
		} else {
			next.WeightKg = &w
		}
	}

	if clinical {
		errs = append(errs, next.applyClinical(in, loc)...)
	}

	if len(errs) > 0 {
		return errs
	}
	*r = next
	return nil
}

// applyClinical sets the examination fields. Forms without them leave the
// stored values alone.
func (r *Record) applyClinical(in Input, loc *time.Location) []string {
	var errs []string
	r.PatientHistory = in.PatientHistory
	r.ReviewDate = nil
	if d, err := time.ParseInLocation(DateLayout, in.ReviewDate, loc); err == nil {
		r.ReviewDate = &d
	}

	vitals := &Vitals{BloodPressure: in.BloodPressure}
	if in.Temperature != "" {
		t, err := strconv.ParseFloat(in.Temperature, 64)
		if err != nil || t < 25 || t > 45 {
			errs = append(errs, "temperature_c must be a number between 25 and 45")
		} else {
			vitals.TemperatureC = &t
		}
	}
	if in.PulseRate != "" {
		p, err := strconv.Atoi(in.PulseRate)
		if err != nil || p < 20 || p > 250 {
			errs = append(errs, "pulse_rate_bpm must be a whole number between 20 and 250")
		} else {
			vitals.PulseRateBPM = &p
		}
	}
	if in.BloodPressure != "" && !bloodPressurePattern.MatchString(in.BloodPressure) {
		errs = append(errs, "blood_pressure must look like 120/80")
	}
	r.Vitals = nil
	if !vitals.IsEmpty() {
		r.Vitals = vitals
	}

	return errs
}

func (in Input) normalized() Input {
	v := reflect.ValueOf(&in).Elem()
	for i := 0; i < v.NumField(); i++ {
		if f := v.Field(i); f.Kind() == reflect.String {
			f.SetString(strings.TrimSpace(f.String()))
		}
	}
	in.Gender = strings.ToLower(in.Gender)
	in.MaritalStatus = strings.ToLower(in.MaritalStatus)
	in.BloodGroup = strings.ToUpper(in.BloodGroup)
	in.Email = strings.ToLower(in.Email)
	return in
}

func structErrors(err error) []string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return msgs
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	case "email":
		return name + " must be a valid email address"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
	case "datetime":
		layout := "YYYY-MM-DD"
		if fe.Param() == TimeLayout {
			layout = "HH:MM"
		}
		return fmt.Sprintf("%s must be formatted as %s", name, layout)
	}
	return name + " is invalid"
}
