package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveLogin(false)
	m.ObserveLogin(true)
	m.ObserveNote(3 * time.Second)
	m.IncNoteFailure("profile")
	m.ObserveAction("like", true)
	m.ObserveAction("comment", false)
	m.IncFeedReload()
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsTotal.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotesExtracted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NoteFailures.WithLabelValues("profile")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActionsTotal.WithLabelValues("comment", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FeedReloads))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ActiveSessions))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveLogin(true)
		m.ObserveNote(time.Second)
		m.IncNoteFailure("detail")
		m.ObserveAction("like", true)
		m.IncFeedReload()
		m.SessionOpened()
		m.SessionClosed()
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.IncFeedReload()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "rednote_feed_reloads_total 1")
}
