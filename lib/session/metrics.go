package session

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

var (
	scanPages   = metrics.NewCounter("pxkv_session_scan_pages_total")
	scanKeys    = metrics.NewCounter("pxkv_session_scan_keys_total")
	visitedKeys = metrics.NewCounter("pxkv_session_visited_keys_total")
)

func observeCommand(name string, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`pxkv_session_commands_total{command=%q}`, name)).Inc()
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`pxkv_session_command_errors_total{command=%q}`, name)).Inc()
	}
	metrics.GetOrCreateHistogram(fmt.Sprintf(`pxkv_session_command_duration_seconds{command=%q}`, name)).
		Update(time.Since(start).Seconds())
}

func observeOperation(op string, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`pxkv_session_operations_total{op=%q}`, op)).Inc()
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`pxkv_session_operation_errors_total{op=%q}`, op)).Inc()
	}
	metrics.GetOrCreateHistogram(fmt.Sprintf(`pxkv_session_operation_duration_seconds{op=%q}`, op)).
		Update(time.Since(start).Seconds())
}
