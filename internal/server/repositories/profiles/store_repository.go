// Package profiles persists the per-user profile records.
package profiles

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

func (r *StoreRepository) Get(ctx context.Context, userID string) (*models.Profile, error) {
	recs, err := r.s.Load(ctx, store.Profiles)
	if err != nil {
		return nil, err
	}
	b, ok := recs[userID]
	if !ok {
		return nil, common.ErrProfileNotFound
	}
	return codec.Decode[models.Profile](userID, b)
}

func (r *StoreRepository) Put(ctx context.Context, v *models.Profile) error {
	body, err := codec.Encode(v)
	if err != nil {
		return err
	}
	return r.s.Update(ctx, store.Profiles, func(recs store.Records) error {
		recs[v.UserID] = body
		return nil
	})
}

func (r *StoreRepository) Upsert(ctx context.Context, userID string, create func() *models.Profile, fn func(v *models.Profile) error) (*models.Profile, error) {
	var out *models.Profile
	err := r.s.Update(ctx, store.Profiles, func(recs store.Records) error {
		var (
			v   *models.Profile
			err error
		)
		if b, ok := recs[userID]; ok {
			if v, err = codec.Decode[models.Profile](userID, b); err != nil {
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
