// Package store persists the five record collections as raw JSON documents.
//
// Every backend offers the same three primitives. Load returns a consistent
// snapshot of a collection. Replace swaps a whole collection atomically.
// Update runs a read-modify-write under the collection's lock so concurrent
// mutations never lose each other's writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/userkeeper/internal/common"
)

// Collection names a persisted record set.
type Collection string

const (
	Users       Collection = "users"
	Profiles    Collection = "profiles"
	Preferences Collection = "preferences"
	Sessions    Collection = "sessions"
	Events      Collection = "events"
)

// AllCollections lists every collection a backend must provide.
func AllCollections() []Collection {
	return []Collection{Users, Profiles, Preferences, Sessions, Events}
}

func (c Collection) valid() bool {
	switch c {
	case Users, Profiles, Preferences, Sessions, Events:
		return true
	}
	return false
}

// Records maps a record key to its JSON body.
type Records map[string][]byte

// Clone returns a deep copy so callers may mutate it freely.
func (r Records) Clone() Records {
	out := make(Records, len(r))
	for k, v := range r {
		b := make([]byte, len(v))
		copy(b, v)
		out[k] = b
	}
	return out
}

// Keys returns the record keys in ascending order.
func (r Records) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// UpdateFunc mutates records in place. Returning an error aborts the
// update and nothing is written; the error reaches the caller unchanged.
type UpdateFunc func(records Records) error

type Store interface {
	Load(ctx context.Context, c Collection) (Records, error)
	Replace(ctx context.Context, c Collection, records Records) error
	Update(ctx context.Context, c Collection, fn UpdateFunc) error
	Close() error
}

var errUnknownCollection = errors.New("unknown collection")

func checkCollection(c Collection) error {
	if !c.valid() {
		return fmt.Errorf("%w: %w %q", common.ErrStoreIO, errUnknownCollection, c)
	}
	return nil
}

func ioError(op string, c Collection, err error) error {
	return fmt.Errorf("%w: %s %s: %w", common.ErrStoreIO, op, c, err)
}

// locks hands out one write mutex per collection.
type locks struct {
	mu sync.Mutex
	m  map[Collection]*sync.Mutex
}

func (l *locks) get(c Collection) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[Collection]*sync.Mutex)
	}
	m, ok := l.m[c]
	if !ok {
		m = &sync.Mutex{}
		l.m[c] = m
	}
	return m
}
