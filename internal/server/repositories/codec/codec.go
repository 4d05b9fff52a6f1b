// Package codec converts between typed records and the store's raw JSON.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
)

// Decode unmarshals one record body.
func Decode[T any](key string, b []byte) (*T, error) {
	v := new(T)
	if err := json.Unmarshal(b, v); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", common.ErrStoreIO, key, err)
	}
	return v, nil
}

// Encode marshals one record body.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %w", common.ErrStoreIO, err)
	}
	return b, nil
}

// DecodeAll unmarshals every record in key order.
func DecodeAll[T any](recs store.Records) ([]*T, error) {
	out := make([]*T, 0, len(recs))
	for _, k := range recs.Keys() {
		v, err := Decode[T](k, recs[k])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
