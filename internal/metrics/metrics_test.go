package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := New()

	r.ReserveRound()
	r.ReserveRound()
	r.Hosts(ActionReserved, 3)
	r.Hosts(ActionReleased, 0)
	r.Probe(true)
	r.Probe(false)
	r.Probe(false)
	r.Rebuild("ok")
	r.Job(0)
	r.Job(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(r.reserveRounds))
	assert.Equal(t, float64(3), testutil.ToFloat64(r.hostsTotal.WithLabelValues(ActionReserved)))
	assert.Equal(t, float64(0), testutil.ToFloat64(r.hostsTotal.WithLabelValues(ActionReleased)))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.probesTotal.WithLabelValues("up")))
	assert.Equal(t, float64(2), testutil.ToFloat64(r.probesTotal.WithLabelValues("down")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.rebuildsTotal.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.jobsTotal.WithLabelValues("failed")))
}

func TestRecorder_Operation(t *testing.T) {
	r := New()
	start := time.Unix(1_700_000_000, 0)

	r.Operation("reserve", start, start.Add(3*time.Second), nil)
	r.Operation("reserve", start, start.Add(time.Second), errors.New("boom"))

	assert.Equal(t, float64(start.Add(3*time.Second).Unix()), testutil.ToFloat64(r.lastSuccess.WithLabelValues("reserve")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.operationDuration))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ReserveRound()
		r.Hosts(ActionReserved, 1)
		r.Probe(true)
		r.Rebuild("failed")
		r.Job(1)
		r.Operation("x", time.Now(), time.Now(), nil)
	})
	assert.NoError(t, r.WriteTextfile("/nonexistent/metrics.prom"))
	assert.Nil(t, r.Registry())
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.Hosts(ActionUnavailable, 2)

	path := filepath.Join(t.TempDir(), "fleetctl.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `fleetctl_reservation_hosts_total{action="unavailable"} 2`)
}
