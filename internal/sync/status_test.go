package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moneto/moneto-go/internal/cloud"
	"github.com/moneto/moneto-go/internal/plan"
)

func TestComparePlanStatus(t *testing.T) {
	at := plan.Timestamp(testBase)
	later := plan.Timestamp(testBase.Add(time.Minute))

	local := plan.Plan{ID: "plan-a", UpdatedAt: at}

	assert.Equal(t, StatusNotSynced, ComparePlanStatus(local, nil))
	assert.Equal(t, StatusSynced, ComparePlanStatus(local, &cloud.PlanMeta{UpdatedAt: at}))
	assert.Equal(t, StatusCloudNewer, ComparePlanStatus(local, &cloud.PlanMeta{UpdatedAt: later}))

	newer := plan.Plan{ID: "plan-a", UpdatedAt: later}
	assert.Equal(t, StatusLocalNewer, ComparePlanStatus(newer, &cloud.PlanMeta{UpdatedAt: at}))
}

func TestRefreshStatuses(t *testing.T) {
	repo := newFakeRepo()
	o := NewOrchestrator(repo, testDiag())

	synced := testPlan("plan-synced", "2025-01", testBase)
	seedRemote(t, repo, synced, "u1")

	stale := testPlan("plan-stale", "2025-02", testBase)
	seedRemote(t, repo, testPlan("plan-stale", "2025-02", testBase.Add(time.Hour)), "u1")

	seedRemote(t, repo, testPlan("plan-cloud", "2025-03", testBase), "u1")

	localOnly := testPlan("plan-local", "2025-04", testBase)

	infos, err := o.RefreshStatuses(context.Background(),
		[]plan.Plan{synced, stale, localOnly}, "u1")

	require.NoError(t, err)
	require.Len(t, infos, 4)

	assert.Equal(t, StatusSynced, infos["plan-synced"].Status)
	assert.Equal(t, StatusCloudNewer, infos["plan-stale"].Status)
	assert.Equal(t, StatusNotSynced, infos["plan-local"].Status)
	assert.Equal(t, StatusCloudOnly, infos["plan-cloud"].Status)

	assert.Nil(t, infos["plan-local"].CloudUpdatedAt)
	assert.Nil(t, infos["plan-cloud"].LocalUpdatedAt)
	require.NotNil(t, infos["plan-stale"].CloudUpdatedAt)
	assert.True(t, infos["plan-stale"].CloudUpdatedAt.After(*infos["plan-stale"].LocalUpdatedAt))
}

func TestRefreshStatuses_NilRepo(t *testing.T) {
	o := NewOrchestrator(nil, testDiag())

	_, err := o.RefreshStatuses(context.Background(), nil, "u1")

	assert.ErrorIs(t, err, ErrUnavailable)
}
