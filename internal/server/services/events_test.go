package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppend(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	ev, err := e.events.Append(ctx, "user_1", models.ActionSearch, map[string]any{"keywords": []any{"go"}},
		models.EventMeta{SessionID: "session_1", Client: &client})
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ID)
	assert.True(t, ev.Timestamp.Equal(t0))
	assert.Equal(t, uint64(1), ev.Seq)
	assert.Equal(t, "session_1", ev.SessionID)

	ev, err = e.events.Append(ctx, "user_1", models.ActionShare, nil, models.EventMeta{})
	require.NoError(t, err)
	assert.NotNil(t, ev.Details)

	_, err = e.events.Append(ctx, "user_1", models.ActionKind("teleport"), nil, models.EventMeta{})
	assert.ErrorIs(t, err, common.ErrValidation)
	_, err = e.events.Append(ctx, "", models.ActionLogin, nil, models.EventMeta{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestQuery(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := e.events.Append(ctx, "user_1", models.ActionOpportunityView, nil, models.EventMeta{})
		require.NoError(t, err)
		e.clock.Advance(time.Hour)
	}
	_, err := e.events.Append(ctx, "user_1", models.ActionAssessment, nil, models.EventMeta{})
	require.NoError(t, err)
	_, err = e.events.Append(ctx, "user_2", models.ActionAssessment, nil, models.EventMeta{})
	require.NoError(t, err)

	got, err := e.events.Query(ctx, EventFilter{UserID: "user_1"})
	require.NoError(t, err)
	require.Len(t, got, 6)
	assert.Equal(t, models.ActionAssessment, got[0].Kind, "newest first")
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.After(got[i-1].Timestamp))
	}

	got, err = e.events.Query(ctx, EventFilter{UserID: "user_1", Kind: models.ActionOpportunityView, Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].Timestamp.Equal(t0.Add(4*time.Hour)))

	got, err = e.events.Query(ctx, EventFilter{UserID: "user_1", Since: t0.Add(time.Hour), Until: t0.Add(3 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = e.events.Query(ctx, EventFilter{UserID: "user_3"})
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = e.events.Query(ctx, EventFilter{Kind: "nope"})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestQuery_DefaultLimit(t *testing.T) {
	clock := common.NewManualClock(t0)
	repos := repomanager.NewStoreRepositoryManager(store.NewMemoryStore(), 500, events.CapGlobal)
	log := NewEventLog(repos, clock, logging.Nop())
	ctx := context.Background()

	for i := 0; i < DefaultQueryLimit+20; i++ {
		_, err := log.Append(ctx, "user_1", models.ActionFilter, nil, models.EventMeta{})
		require.NoError(t, err)
	}
	got, err := log.Query(ctx, EventFilter{UserID: "user_1"})
	require.NoError(t, err)
	assert.Len(t, got, DefaultQueryLimit)
}

func TestAppend_CapEvictsOldest(t *testing.T) {
	clock := common.NewManualClock(t0)
	repos := repomanager.NewStoreRepositoryManager(store.NewMemoryStore(), 3, events.CapGlobal)
	log := NewEventLog(repos, clock, logging.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := log.Append(ctx, "user_1", models.ActionSearch, map[string]any{"i": i}, models.EventMeta{})
		require.NoError(t, err)
		clock.Advance(time.Second)
	}

	all, err := log.Window(ctx, t0, t0.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.EqualValues(t, 2, all[0].Details["i"])
}

func TestWindow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.events.Append(ctx, "user_1", models.ActionLogin, nil, models.EventMeta{})
	require.NoError(t, err)
	e.clock.Advance(48 * time.Hour)
	_, err = e.events.Append(ctx, "user_2", models.ActionLogin, nil, models.EventMeta{})
	require.NoError(t, err)
	_, err = e.events.Append(ctx, "user_1", models.ActionLogout, nil, models.EventMeta{})
	require.NoError(t, err)

	got, err := e.events.Window(ctx, t0.Add(time.Hour), t0.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "user_2", got[0].UserID, "ascending order")
	assert.Equal(t, models.ActionLogout, got[1].Kind)
}
