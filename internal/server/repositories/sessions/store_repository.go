// Package sessions persists login sessions keyed by session id.
package sessions

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

func (r *StoreRepository) Create(ctx context.Context, s *models.Session) error {
	body, err := codec.Encode(s)
	if err != nil {
		return err
	}
	return r.s.Update(ctx, store.Sessions, func(recs store.Records) error {
		if _, ok := recs[s.ID]; ok {
			return fmt.Errorf("session %s already exists: %w", s.ID, common.ErrorInternal)
		}
		recs[s.ID] = body
		return nil
	})
}

func (r *StoreRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	recs, err := r.s.Load(ctx, store.Sessions)
	if err != nil {
		return nil, err
	}
	b, ok := recs[id]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	return codec.Decode[models.Session](id, b)
}

func (r *StoreRepository) List(ctx context.Context) ([]*models.Session, error) {
	recs, err := r.s.Load(ctx, store.Sessions)
	if err != nil {
		return nil, err
	}
	return codec.DecodeAll[models.Session](recs)
}

func (r *StoreRepository) Update(ctx context.Context, id string, fn func(s *models.Session) error) (*models.Session, error) {
	var out *models.Session
	err := r.s.Update(ctx, store.Sessions, func(recs store.Records) error {
		b, ok := recs[id]
		if !ok {
			return common.ErrSessionNotFound
		}
		s, err := codec.Decode[models.Session](id, b)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		if recs[id], err = codec.Encode(s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *StoreRepository) UpdateWhere(ctx context.Context, pred func(s *models.Session) bool, fn func(s *models.Session) bool) (int, error) {
	n := 0
	err := r.s.Update(ctx, store.Sessions, func(recs store.Records) error {
		n = 0
		for k, b := range recs {
			s, err := codec.Decode[models.Session](k, b)
			if err != nil {
				return err
			}
			if !pred(s) || !fn(s) {
				continue
			}
			if recs[k], err = codec.Encode(s); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *StoreRepository) DeleteWhere(ctx context.Context, pred func(s *models.Session) bool) (int, error) {
	n := 0
	err := r.s.Update(ctx, store.Sessions, func(recs store.Records) error {
		n = 0
		for k, b := range recs {
			s, err := codec.Decode[models.Session](k, b)
			if err != nil {
				return err
			}
			if pred(s) {
				delete(recs, k)
				n++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
