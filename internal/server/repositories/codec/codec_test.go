package codec

import (
	"testing"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec struct {
	N int `json:"n"`
}

func TestDecodeAll_KeyOrder(t *testing.T) {
	got, err := DecodeAll[rec](store.Records{
		"b": []byte(`{"n":2}`),
		"a": []byte(`{"n":1}`),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].N)
	assert.Equal(t, 2, got[1].N)
}

func TestDecode_Corrupt(t *testing.T) {
	_, err := Decode[rec]("k", []byte(`{`))
	assert.ErrorIs(t, err, common.ErrStoreIO)
}

func TestEncode(t *testing.T) {
	b, err := Encode(rec{N: 3})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, string(b))

	_, err = Encode(func() {})
	assert.ErrorIs(t, err, common.ErrStoreIO)
}
