package service

import (
	"context"

	"github.com/KMahesh2005/patient-management-by-mahesh/internal/domain/numbering"
	"github.com/KMahesh2005/patient-management-by-mahesh/pkg/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// NumberSource reads every number issued so far.
type NumberSource interface {
	Numbers(ctx context.Context) (outpatient, registration []string, err error)
}

type Numbers struct {
	OutpatientNo   string `json:"outpatient_no"`
	RegistrationNo string `json:"registration_no"`
}

type NumberingService struct {
	source  NumberSource
	metrics *metrics.Collector
	log     *zap.Logger
}

func NewNumberingService(source NumberSource, m *metrics.Collector, log *zap.Logger) *NumberingService {
	return &NumberingService{source: source, metrics: m, log: log}
}

// Next suggests the numbers for a new record. When the store cannot be
// read it falls back to the initial numbers and returns a warning for the
// operator instead of failing.
func (s *NumberingService) Next(ctx context.Context) (Numbers, string) {
	ctx, span := otel.Tracer("clinicdesk/numbering").Start(ctx, "numbering.Next")
	defer span.End()

	outpatient, registration, err := s.source.Numbers(ctx)
	if err != nil {
		s.metrics.NumberingFallbacks.Inc()
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("numbering.fallback", true))
		s.log.Warn("could not read issued numbers, using initial values", zap.Error(err))
		return Numbers{
			OutpatientNo:   numbering.InitialOutpatientNo,
			RegistrationNo: numbering.InitialRegistrationNo,
		}, "could not read existing records; numbers restarted at " + numbering.InitialOutpatientNo + ", check before saving"
	}

	n := Numbers{
		OutpatientNo:   numbering.NextOutpatientNo(outpatient),
		RegistrationNo: numbering.NextRegistrationNo(registration),
	}
	span.SetAttributes(attribute.String("numbering.outpatient_no", n.OutpatientNo))
	return n, ""
}
