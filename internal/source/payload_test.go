package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fystack/taixiu-predictor/internal/game"
)

func TestDecodeHistory(t *testing.T) {
	body := []byte(`{"history":[
		{"session":"1002","dice":[6,5,4],"total":15,"result":"Tài"},
		{"session":1001,"dice":[1,2,3],"total":6,"result":"Xỉu"},
		{"session":1003,"dice":[2,2,2]},
		{"session":"abc","dice":[1,1,1],"result":"Xỉu"},
		{"session":1004,"result":"maybe"},
		{"session":1005}
	]}`)

	decoded, err := DecodeHistory(body)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.Skipped)
	require.Len(t, decoded.Sessions, 3)

	assert.Equal(t, []int64{1001, 1002, 1003}, []int64{
		decoded.Sessions[0].ID, decoded.Sessions[1].ID, decoded.Sessions[2].ID,
	})
	assert.Equal(t, game.Low, decoded.Sessions[0].Outcome)
	assert.Equal(t, game.High, decoded.Sessions[1].Outcome)

	third := decoded.Sessions[2]
	assert.Equal(t, 6, third.Total, "total derived from dice")
	assert.Equal(t, game.Low, third.Outcome, "outcome derived from total")
}

func TestDecodeHistory_Errors(t *testing.T) {
	_, err := DecodeHistory([]byte(`not json`))
	assert.Error(t, err)

	decoded, err := DecodeHistory([]byte(`{"history":[]}`))
	require.NoError(t, err)
	assert.Empty(t, decoded.Sessions)

	decoded, err = DecodeHistory([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, decoded.Sessions)
}

func TestDecodeMessage(t *testing.T) {
	single, err := DecodeMessage([]byte(`{"session":7,"dice":[6,6,6],"total":18,"result":"tai"}`))
	require.NoError(t, err)
	require.Len(t, single.Sessions, 1)
	assert.Equal(t, int64(7), single.Sessions[0].ID)

	list, err := DecodeMessage([]byte(` [{"session":9,"total":4},{"session":8,"total":12}]`))
	require.NoError(t, err)
	require.Len(t, list.Sessions, 2)
	assert.Equal(t, int64(8), list.Sessions[0].ID)

	wrapped, err := DecodeMessage([]byte(`{"history":[{"session":3,"total":11}]}`))
	require.NoError(t, err)
	require.Len(t, wrapped.Sessions, 1)
	assert.Equal(t, game.High, wrapped.Sessions[0].Outcome)

	_, err = DecodeMessage([]byte(`"ping"`))
	assert.Error(t, err)
}

func TestFlexInt(t *testing.T) {
	var f flexInt
	require.NoError(t, f.UnmarshalJSON([]byte(`"42"`)))
	assert.Equal(t, flexInt(42), f)
	require.NoError(t, f.UnmarshalJSON([]byte(`43.0`)))
	assert.Equal(t, flexInt(43), f)
	require.NoError(t, f.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, flexInt(0), f)
	assert.Error(t, f.UnmarshalJSON([]byte(`"x1"`)))
}
