package port

import "unification-service/internal/core/domain"

type MetricsPort interface {
	ProbeFinished(kind domain.SourceKind, status domain.ProbeStatus)
	CanonicalWritten(operation string)
	BackRefFailed(kind domain.SourceKind)
	GeocoderLookup(result string)
}

// NoopMetrics - для CLI-драйверов и тестов
type NoopMetrics struct{}

func (NoopMetrics) ProbeFinished(domain.SourceKind, domain.ProbeStatus) {}
func (NoopMetrics) CanonicalWritten(string)                             {}
func (NoopMetrics) BackRefFailed(domain.SourceKind)                     {}
func (NoopMetrics) GeocoderLookup(string)                               {}
