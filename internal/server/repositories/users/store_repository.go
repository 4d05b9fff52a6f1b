// Package users persists identity records in the users collection.
package users

import (
	"context"
	"fmt"

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

func (r *StoreRepository) Create(ctx context.Context, u *models.User) error {
	body, err := codec.Encode(u)
	if err != nil {
		return err
	}

	return r.s.Update(ctx, store.Users, func(recs store.Records) error {
		for k, b := range recs {
			existing, err := codec.Decode[models.User](k, b)
			if err != nil {
				return err
			}
			if existing.Username == u.Username || existing.Email == u.Email {
				return common.ErrDuplicateIdentity
			}
		}
		if _, ok := recs[u.ID]; ok {
			return fmt.Errorf("user id %s: %w", u.ID, common.ErrDuplicateIdentity)
		}
		recs[u.ID] = body
		return nil
	})
}

func (r *StoreRepository) Get(ctx context.Context, id string) (*models.User, error) {
	recs, err := r.s.Load(ctx, store.Users)
	if err != nil {
		return nil, err
	}
	b, ok := recs[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return codec.Decode[models.User](id, b)
}

func (r *StoreRepository) List(ctx context.Context) ([]*models.User, error) {
	recs, err := r.s.Load(ctx, store.Users)
	if err != nil {
		return nil, err
	}
	return codec.DecodeAll[models.User](recs)
}

func (r *StoreRepository) Update(ctx context.Context, id string, fn func(u *models.User) error) (*models.User, error) {
	var out *models.User
	err := r.s.Update(ctx, store.Users, func(recs store.Records) error {
		b, ok := recs[id]
		if !ok {
			return common.ErrorNotFound
		}
		u, err := codec.Decode[models.User](id, b)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		if recs[id], err = codec.Encode(u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
