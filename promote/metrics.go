package promote

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/teranos/factgate/errors"
)

// runMetrics describes the last promotion run for a node-exporter style
// textfile collector.
type runMetrics struct {
	registry *prometheus.Registry

	facts          *prometheus.GaugeVec
	quarantined    *prometheus.GaugeVec
	reasons        *prometheus.GaugeVec
	mentions       *prometheus.GaugeVec
	relationGroups prometheus.Gauge
	inputErrors    prometheus.Gauge
	duration       prometheus.Gauge
	lastRun        prometheus.Gauge
}

func newRunMetrics() (*runMetrics, error) {
	m := &runMetrics{registry: prometheus.NewRegistry()}

	m.facts = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factgate_promote_facts",
		Help: "Rows promoted in the last run",
	}, []string{"kind"})
	m.quarantined = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factgate_promote_quarantined",
		Help: "Rows quarantined in the last run",
	}, []string{"kind"})
	m.reasons = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factgate_promote_quarantine_reasons",
		Help: "Quarantined rows carrying each reason family in the last run",
	}, []string{"kind", "reason"})
	m.mentions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "factgate_promote_input_mentions",
		Help: "Mentions read in the last run",
	}, []string{"kind"})
	m.relationGroups = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factgate_promote_relation_groups",
		Help: "Distinct (subject, predicate, object) groups in the last run",
	})
	m.inputErrors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factgate_promote_input_errors",
		Help: "Malformed input lines skipped in the last run",
	})
	m.duration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factgate_promote_duration_seconds",
		Help: "Wall time of the last run",
	})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "factgate_promote_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})

	for _, c := range []prometheus.Collector{
		m.facts, m.quarantined, m.reasons, m.mentions,
		m.relationGroups, m.inputErrors, m.duration, m.lastRun,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "register promote metrics")
		}
	}
	return m, nil
}

func (m *runMetrics) observe(res *Result, rep *Report, now time.Time) {
	m.facts.WithLabelValues(KindEntity).Set(float64(res.Counts.PromotedEntities))
	m.facts.WithLabelValues(KindRelation).Set(float64(res.Counts.PromotedRelations))
	m.quarantined.WithLabelValues(KindEntity).Set(float64(res.Counts.QuarantinedEntities))
	m.quarantined.WithLabelValues(KindRelation).Set(float64(res.Counts.QuarantinedRelations))
	m.mentions.WithLabelValues(KindEntity).Set(float64(res.Counts.MentionsEntities))
	m.mentions.WithLabelValues(KindRelation).Set(float64(res.Counts.MentionsRelations))
	m.relationGroups.Set(float64(res.Counts.RelationGroups))
	m.inputErrors.Set(float64(rep.Errors))
	m.duration.Set(rep.DurationSeconds)
	m.lastRun.Set(float64(now.Unix()))

	for _, q := range res.QuarantinedEntities {
		for _, r := range q.Reasons {
			m.reasons.WithLabelValues(KindEntity, ReasonFamily(r)).Inc()
		}
	}
	for _, q := range res.QuarantinedRelations {
		for _, r := range q.Reasons {
			m.reasons.WithLabelValues(KindRelation, ReasonFamily(r)).Inc()
		}
	}
}

// ReasonFamily drops the field list from a missing_keys reason so label
// cardinality stays bounded: "missing_keys:subject:uri" becomes
// "missing_keys:subject" and "missing_keys:id,name" becomes "missing_keys".
func ReasonFamily(reason string) string {
	rest, ok := strings.CutPrefix(reason, MissingKeysPrefix)
	if !ok {
		return reason
	}
	for _, role := range []string{"subject", "object"} {
		if strings.HasPrefix(rest, role+":") {
			return MissingKeysPrefix + role
		}
	}
	return strings.TrimSuffix(MissingKeysPrefix, ":")
}

// WriteMetrics writes the run's metrics to path in the Prometheus text
// format. The file is replaced atomically.
func WriteMetrics(path string, res *Result, rep *Report, now time.Time) error {
	m, err := newRunMetrics()
	if err != nil {
		return err
	}
	m.observe(res, rep, now)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create metrics directory for %s", path)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics %s", path)
	}
	return nil
}
