package preferences

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsert_DefaultsThenMutation(t *testing.T) {
	r := NewStoreRepository(store.NewMemoryStore())
	ctx := context.Background()

	_, err := r.Get(ctx, "user_1")
	require.ErrorIs(t, err, common.ErrPreferencesNotFound)

	got, err := r.Upsert(ctx, "user_1",
		func() *models.Preferences { return models.NewPreferences("user_1", time.Now()) },
		func(p *models.Preferences) error {
			p.WorkType = models.WorkRemote
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, models.WorkRemote, got.WorkType)
	assert.Equal(t, "weekly", got.EmailFrequency)

	stored, err := r.Get(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, models.WorkRemote, stored.WorkType)
}

func TestUpsert_AbortLeavesNothing(t *testing.T) {
	r := NewStoreRepository(store.NewMemoryStore())
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := r.Upsert(ctx, "user_1",
		func() *models.Preferences { return models.NewPreferences("user_1", time.Now()) },
		func(*models.Preferences) error { return boom })
	require.ErrorIs(t, err, boom)

	_, err = r.Get(ctx, "user_1")
	assert.ErrorIs(t, err, common.ErrPreferencesNotFound)
}
