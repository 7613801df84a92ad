package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/orgtenant"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Lifecycle metrics
	OrganizationsCreatedTotal metric.Int64Counter
	OrganizationsRenamedTotal metric.Int64Counter
	OrganizationsDeletedTotal metric.Int64Counter
	CreateCompensationsTotal  metric.Int64Counter
	RenameCopyFallbacksTotal  metric.Int64Counter
	ContainerDropErrorsTotal  metric.Int64Counter
	LifecycleDuration         metric.Float64Histogram

	// Auth metrics
	LoginsTotal        metric.Int64Counter
	LoginFailuresTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.OrganizationsCreatedTotal, _ = meter.Int64Counter(
		"orgtenant.organizations.created.total",
		metric.WithDescription("Total number of organizations created"),
		metric.WithUnit("{organization}"),
	)

	m.OrganizationsRenamedTotal, _ = meter.Int64Counter(
		"orgtenant.organizations.renamed.total",
		metric.WithDescription("Total number of organizations renamed"),
		metric.WithUnit("{organization}"),
	)

	m.OrganizationsDeletedTotal, _ = meter.Int64Counter(
		"orgtenant.organizations.deleted.total",
		metric.WithDescription("Total number of organizations deleted"),
		metric.WithUnit("{organization}"),
	)

	m.CreateCompensationsTotal, _ = meter.Int64Counter(
		"orgtenant.create.compensations.total",
		metric.WithDescription("Total number of admin rollbacks after a lost organization name race"),
		metric.WithUnit("{rollback}"),
	)

	m.RenameCopyFallbacksTotal, _ = meter.Int64Counter(
		"orgtenant.rename.copy_fallbacks.total",
		metric.WithDescription("Total number of container renames that fell back to copy-then-drop"),
		metric.WithUnit("{rename}"),
	)

	m.ContainerDropErrorsTotal, _ = meter.Int64Counter(
		"orgtenant.containers.drop.errors.total",
		metric.WithDescription("Total number of container drops that failed during organization delete"),
		metric.WithUnit("{error}"),
	)

	m.LifecycleDuration, _ = meter.Float64Histogram(
		"orgtenant.lifecycle.duration",
		metric.WithDescription("Duration of lifecycle operations"),
		metric.WithUnit("ms"),
	)

	m.LoginsTotal, _ = meter.Int64Counter(
		"orgtenant.logins.total",
		metric.WithDescription("Total number of successful admin logins"),
		metric.WithUnit("{login}"),
	)

	m.LoginFailuresTotal, _ = meter.Int64Counter(
		"orgtenant.logins.failures.total",
		metric.WithDescription("Total number of rejected admin logins"),
		metric.WithUnit("{login}"),
	)

	return m
}
