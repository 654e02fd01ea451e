package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for role lifecycle operations.
type Metrics struct {
	RolesCreated prometheus.Counter
	RolesUpdated prometheus.Counter
	RolesDeleted prometheus.Counter

	// CompensationsTotal counts remote deletes issued to undo a role the
	// IdP accepted but the local store rejected.
	CompensationsTotal *prometheus.CounterVec

	AssignmentsUpserted prometheus.Counter
	AssignmentsRemoved  prometheus.Counter

	DriftRoles *prometheus.GaugeVec
}

// New registers and returns role metrics collectors.
func New() *Metrics {
	return &Metrics{
		RolesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_roles_created_total",
			Help: "Total number of roles created",
		}),
		RolesUpdated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_roles_updated_total",
			Help: "Total number of roles updated",
		}),
		RolesDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_roles_deleted_total",
			Help: "Total number of roles deleted",
		}),
		CompensationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flock_role_compensations_total",
			Help: "Total number of compensating remote deletes, labeled by outcome",
		}, []string{"outcome"}),
		AssignmentsUpserted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_role_assignments_upserted_total",
			Help: "Total number of group role assignments written",
		}),
		AssignmentsRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flock_role_assignments_removed_total",
			Help: "Total number of group role assignments removed",
		}),
		DriftRoles: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flock_role_drift_roles",
			Help: "Roles present on only one side of the IdP sync, labeled by side",
		}, []string{"side"}),
	}
}

func (m *Metrics) IncrementRolesCreated() { m.RolesCreated.Inc() }

func (m *Metrics) IncrementRolesUpdated() { m.RolesUpdated.Inc() }

func (m *Metrics) IncrementRolesDeleted() { m.RolesDeleted.Inc() }

func (m *Metrics) IncrementCompensations(outcome string) {
	m.CompensationsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddAssignmentsUpserted(count float64) { m.AssignmentsUpserted.Add(count) }

func (m *Metrics) AddAssignmentsRemoved(count float64) { m.AssignmentsRemoved.Add(count) }

func (m *Metrics) SetDriftRoles(side string, count float64) {
	m.DriftRoles.WithLabelValues(side).Set(count)
}
