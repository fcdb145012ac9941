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

func TestRecordTransition(t *testing.T) {
	sessionTransitions.Reset()

	RecordTransition("idle", "loading")
	RecordTransition("idle", "loading")
	RecordTransition("loading", "active")

	assert.Equal(t, 2.0, testutil.ToFloat64(sessionTransitions.WithLabelValues("idle", "loading")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sessionTransitions.WithLabelValues("loading", "active")))
}

func TestSessionsActive(t *testing.T) {
	before := testutil.ToFloat64(sessionsActive)
	SessionOpened()
	SessionOpened()
	SessionClosed()
	assert.Equal(t, before+1, testutil.ToFloat64(sessionsActive))
	SessionClosed()
}

func TestRecordFrameAndDrops(t *testing.T) {
	framesTotal.Reset()
	before := testutil.ToFloat64(framesDropped)

	RecordFrame("centered")
	RecordFrame("no_face")
	RecordFrameDropped()

	assert.Equal(t, 1.0, testutil.ToFloat64(framesTotal.WithLabelValues("centered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(framesTotal.WithLabelValues("no_face")))
	assert.Equal(t, before+1, testutil.ToFloat64(framesDropped))
}

func TestRecordBackendRequestAndUtterance(t *testing.T) {
	backendDuration.Reset()
	utterancesTotal.Reset()

	RecordBackendRequest("start", "200", 120*time.Millisecond)
	RecordUtterance("interrupted")

	assert.Equal(t, 1, testutil.CollectAndCount(backendDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(utterancesTotal.WithLabelValues("interrupted")))
}

func TestHandlerExposesSeries(t *testing.T) {
	RecordTransition("active", "ending")

	srv := httptest.NewServer(Handler(NewRegistry()))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "coach_session_transitions_total")
}
