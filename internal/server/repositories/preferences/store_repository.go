// Package preferences persists the per-user preference records.
package preferences

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/codec"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
)

type StoreRepository struct {
	s store.Store
}

func NewStoreRepository(s store.Store) *StoreRepository {
	return &StoreRepository{s: s}
}

func (r *StoreRepository) Get(ctx context.Context, userID string) (*models.Preferences, error) {
	recs, err := r.s.Load(ctx, store.Preferences)
	if err != nil {
		return nil, err
	}
	b, ok := recs[userID]
	if !ok {
		return nil, common.ErrPreferencesNotFound
	}
	return codec.Decode[models.Preferences](userID, b)
}

func (r *StoreRepository) Put(ctx context.Context, v *models.Preferences) error {
	body, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return r.s.Update(ctx, store.Preferences, func(recs store.Records) error {
		recs[v.UserID] = body
		return nil
	})
}

func (r *StoreRepository) Upsert(ctx context.Context, userID string, create func() *models.Preferences, fn func(v *models.Preferences) error) (*models.Preferences, error) {
	var out *models.Preferences
	err := r.s.Update(ctx, store.Preferences, func(recs store.Records) error {
		var (
			v   *models.Preferences
			err error
		)
		if b, ok := recs[userID]; ok {
			if v, err = codec.Decode[models.Preferences](userID, b); err != nil {
				return err
			}
		} else {
			v = create()
		}
		if err := fn(v); err != nil {
			return err
		}
		v.UserID = userID
		if recs[userID], err = codec.Encode(v); err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
