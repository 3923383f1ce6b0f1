/*
Package metrics defines the controller's Prometheus metrics and the
component health registry behind the /ready and /components endpoints.

All metrics are registered with the default registry at package init and
exposed through Handler. Metric names are prefixed with self_healing_.

Counters:

  - self_healing_detections_total{kind,verdict}
  - self_healing_debounce_denied_total{kind}
  - self_healing_remediations_total{action,result}
  - self_healing_cycles_total{loop}
  - self_healing_fetch_errors_total{loop}
  - self_healing_notifications_total{result}

Histograms:

  - self_healing_cycle_duration_seconds{loop}
  - self_healing_rollback_duration_seconds

Gauges self_healing_debounce_keys and self_healing_events_dropped are
sampled by Collector.
*/
package metrics
