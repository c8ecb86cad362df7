package main

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/grid-localization/api"
	"github.com/wricardo/grid-localization/game/config"
	"github.com/wricardo/grid-localization/game/service"
	"github.com/wricardo/grid-localization/game/session"
)

func startServer(t *testing.T) (*httptest.Server, service.GameService) {
	t.Helper()

	dir := t.TempDir()
	cfg := `{"name": "default", "board_size": 4, "sensor_accuracy": 0.95, "num_colors": 6, "seed": 5}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.json"), []byte(cfg), 0644))

	configs, err := config.NewManager(dir)
	require.NoError(t, err)

	svc := service.NewGameService(session.NewManager(), configs)
	ts := httptest.NewServer(api.NewServer(svc, nil))
	t.Cleanup(ts.Close)
	return ts, svc
}

func TestClient_SessionLifecycle(t *testing.T) {
	ts, _ := startServer(t)
	ctx := context.Background()
	c := NewClient(ts.URL)

	info, err := c.CreateSession(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, info.ID, c.sessionID)

	result, err := c.BulkStep(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, result.StepsExecuted)

	snap, err := c.Restart(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, snap.NumColors)
	assert.Equal(t, 0, snap.Step)

	_, err = c.Restart(ctx, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")

	require.NoError(t, c.DeleteSession(ctx))
	_, err = c.GetSession(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestDrive_DeletesCreatedSession(t *testing.T) {
	ts, svc := startServer(t)
	ctx := context.Background()

	out := drive(ctx, NewClient(ts.URL), Options{MaxSteps: 50, Batch: 7, Threshold: 1.1})

	require.NoError(t, out.Err)
	assert.False(t, out.Settled)
	assert.Equal(t, 50, out.Steps)

	sessions, err := svc.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestDrive_Settles(t *testing.T) {
	ts, _ := startServer(t)

	out := drive(context.Background(), NewClient(ts.URL), Options{MaxSteps: 2000, Batch: 100, Threshold: 0.3, Keep: true})

	require.NoError(t, out.Err)
	if out.Settled {
		assert.Greater(t, out.Estimate.Probability, 0.3)
	} else {
		assert.Equal(t, 2000, out.Steps)
	}
}

func TestDrive_ContinueSession(t *testing.T) {
	ts, svc := startServer(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, "")
	require.NoError(t, err)

	out := drive(ctx, NewClient(ts.URL), Options{SessionID: info.ID, MaxSteps: 10, Threshold: 1.1})
	require.NoError(t, out.Err)
	assert.Equal(t, info.ID, out.SessionID)

	// Resumed sessions are never deleted
	snap, err := svc.GetSnapshot(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, snap.Step)
}

func TestDrive_UnknownSession(t *testing.T) {
	ts, _ := startServer(t)

	out := drive(context.Background(), NewClient(ts.URL), Options{SessionID: "zzzz", MaxSteps: 10})
	require.Error(t, out.Err)
}

func TestDriveMany(t *testing.T) {
	ts, svc := startServer(t)

	outcomes := driveMany(context.Background(), ts.URL, 4, Options{MaxSteps: 30, Batch: 10, Threshold: 1.1, Keep: true})

	require.Len(t, outcomes, 4)
	ids := map[string]bool{}
	for _, o := range outcomes {
		require.NoError(t, o.Err)
		assert.Equal(t, 30, o.Steps)
		ids[o.SessionID] = true
	}
	assert.Len(t, ids, 4)

	sessions, err := svc.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, 4)
}
