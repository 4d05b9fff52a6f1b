// Package events persists the capped behavior log. Records are keyed by a
// zero-padded sequence number so key order is append order.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/codec"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
)

// CapScope decides what the cap bounds.
type CapScope string

const (
	// CapGlobal keeps the most recent cap events across all users.
	CapGlobal CapScope = "global"
	// CapPerUser keeps the most recent cap events of each user.
	CapPerUser CapScope = "user"
)

type StoreRepository struct {
	s     store.Store
	cap   int
	scope CapScope
}

func NewStoreRepository(s store.Store, cap int, scope CapScope) *StoreRepository {
	if cap <= 0 {
		cap = common.DefaultEventCap
	}
	if scope != CapPerUser {
		scope = CapGlobal
	}
	return &StoreRepository{s: s, cap: cap, scope: scope}
}

func seqKey(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

func (r *StoreRepository) Append(ctx context.Context, e *models.Event) error {
	return r.s.Update(ctx, store.Events, func(recs store.Records) error {
		keys := recs.Keys()

		var last uint64
		if len(keys) > 0 {
			n, err := strconv.ParseUint(keys[len(keys)-1], 10, 64)
			if err != nil {
				return fmt.Errorf("%w: bad event key %q: %w", common.ErrStoreIO, keys[len(keys)-1], err)
			}
			last = n
		}
		e.Seq = last + 1

		body, err := codec.Encode(e)
		if err != nil {
			return err
		}
		key := seqKey(e.Seq)
		recs[key] = body
		keys = append(keys, key)

		switch r.scope {
		case CapPerUser:
			return r.trimUser(recs, keys, e.UserID)
		default:
			for len(keys) > r.cap {
				delete(recs, keys[0])
				keys = keys[1:]
			}
			return nil
		}
	})
}

// trimUser drops the oldest events of userID beyond the cap.
func (r *StoreRepository) trimUser(recs store.Records, keys []string, userID string) error {
	var owner struct {
		UserID string `json:"user_id"`
	}
	mine := make([]string, 0)
	for _, k := range keys {
		owner.UserID = ""
		if err := json.Unmarshal(recs[k], &owner); err != nil {
			return fmt.Errorf("%w: decode %s: %w", common.ErrStoreIO, k, err)
		}
		if owner.UserID == userID {
			mine = append(mine, k)
		}
	}
	for len(mine) > r.cap {
		delete(recs, mine[0])
		mine = mine[1:]
	}
	return nil
}

func (r *StoreRepository) List(ctx context.Context) ([]*models.Event, error) {
	recs, err := r.s.Load(ctx, store.Events)
	if err != nil {
		return nil, err
	}
	return codec.DecodeAll[models.Event](recs)
}
