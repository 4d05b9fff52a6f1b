package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) Store { return NewMemoryStore() }},
		{"file", func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "data"))
			require.NoError(t, err)
			return s
		}},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "userkeeper.db"), logging.Nop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		}},
	}
}

func TestStore_LoadEmpty(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			for _, c := range AllCollections() {
				recs, err := s.Load(context.Background(), c)
				require.NoError(t, err)
				assert.Empty(t, recs)
			}
		})
	}
}

func TestStore_ReplaceThenLoad(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			require.NoError(t, s.Replace(ctx, Users, Records{
				"user_a": []byte(`{"id":"user_a"}`),
				"user_b": []byte(`{"id":"user_b"}`),
			}))
			require.NoError(t, s.Replace(ctx, Users, Records{
				"user_c": []byte(`{"id":"user_c"}`),
			}))

			recs, err := s.Load(ctx, Users)
			require.NoError(t, err)
			assert.Equal(t, []string{"user_c"}, recs.Keys(), "replace swaps the whole collection")
			assert.JSONEq(t, `{"id":"user_c"}`, string(recs["user_c"]))

			other, err := s.Load(ctx, Sessions)
			require.NoError(t, err)
			assert.Empty(t, other, "collections are independent")
		})
	}
}

func TestStore_Update(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()

			require.NoError(t, s.Replace(ctx, Profiles, Records{
				"keep":   []byte(`{"v":1}`),
				"change": []byte(`{"v":1}`),
				"drop":   []byte(`{"v":1}`),
			}))

			err := s.Update(ctx, Profiles, func(r Records) error {
				r["change"] = []byte(`{"v":2}`)
				r["new"] = []byte(`{"v":3}`)
				delete(r, "drop")
				return nil
			})
			require.NoError(t, err)

			recs, err := s.Load(ctx, Profiles)
			require.NoError(t, err)
			assert.Equal(t, []string{"change", "keep", "new"}, recs.Keys())
			assert.JSONEq(t, `{"v":2}`, string(recs["change"]))
			assert.JSONEq(t, `{"v":1}`, string(recs["keep"]))
			assert.JSONEq(t, `{"v":3}`, string(recs["new"]))
		})
	}
}

func TestStore_UpdateAbort(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			require.NoError(t, s.Replace(ctx, Users, Records{"a": []byte(`{}`)}))

			abort := errors.New("abort")
			err := s.Update(ctx, Users, func(r Records) error {
				r["b"] = []byte(`{}`)
				return abort
			})
			require.ErrorIs(t, err, abort)
			assert.NotErrorIs(t, err, common.ErrStoreIO)

			recs, err := s.Load(ctx, Users)
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, recs.Keys())
		})
	}
}

func TestStore_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			ctx := context.Background()
			const n = 25

			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					err := s.Update(ctx, Events, func(r Records) error {
						r[fmt.Sprintf("%020d", i)] = []byte(`{}`)
						return nil
					})
					assert.NoError(t, err)
				}(i)
			}
			wg.Wait()

			recs, err := s.Load(ctx, Events)
			require.NoError(t, err)
			assert.Len(t, recs, n)
		})
	}
}

func TestStore_UnknownCollection(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			_, err := s.Load(context.Background(), Collection("nope"))
			assert.ErrorIs(t, err, common.ErrStoreIO)
			assert.ErrorIs(t, s.Replace(context.Background(), Collection("nope"), Records{}), common.ErrStoreIO)
		})
	}
}

func TestRecords_CloneIsDeep(t *testing.T) {
	r := Records{"a": []byte("x")}
	c := r.Clone()
	c["a"][0] = 'y'
	c["b"] = []byte("z")

	assert.Equal(t, "x", string(r["a"]))
	assert.NotContains(t, r, "b")
}
