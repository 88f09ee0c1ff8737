package socket

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/gopherlabs/mintcp/internal/tcp"
)

func TestMetricsObserveSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	snap := tcp.Snapshot{
		InFlight:        1460,
		ConsecutiveRtx:  2,
		CurrentRTOMs:    400,
		Window:          64000,
		ReassemblyBytes: 2048,
	}
	m.observe("conn1", snap)

	if got := testutil.ToFloat64(m.sequenceNumbersInFlight.WithLabelValues("conn1")); got != 1460 {
		t.Errorf("sequenceNumbersInFlight = %v, want 1460", got)
	}
	if got := testutil.ToFloat64(m.consecutiveRetransmits.WithLabelValues("conn1")); got != 2 {
		t.Errorf("consecutiveRetransmits = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.currentRTO.WithLabelValues("conn1")); got != 400 {
		t.Errorf("currentRTO = %v, want 400", got)
	}
	if got := testutil.ToFloat64(m.windowSize.WithLabelValues("conn1")); got != 64000 {
		t.Errorf("windowSize = %v, want 64000", got)
	}
	if got := testutil.ToFloat64(m.reassemblyPendingBytes.WithLabelValues("conn1")); got != 2048 {
		t.Errorf("reassemblyPendingBytes = %v, want 2048", got)
	}
}

func TestMetricsForgetRemovesSeries(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.observe("conn1", tcp.Snapshot{InFlight: 10})
	m.forget("conn1")

	if got := testutil.ToFloat64(m.sequenceNumbersInFlight.WithLabelValues("conn1")); got != 0 {
		t.Errorf("sequenceNumbersInFlight after forget = %v, want 0 (fresh series)", got)
	}
}
