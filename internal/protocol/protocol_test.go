package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tandemhq/tandem/backend/internal/board"
)

func TestDecodeValidFrame(t *testing.T) {
	env, err := Decode([]byte(`{"event":"whiteboard:join","data":{"workspaceId":"w1"}}`))
	require.NoError(t, err)
	assert.Equal(t, EventJoin, env.Event)

	var p JoinPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "w1", p.WorkspaceID)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	assert.Error(t, err)
}

func TestDecodeRejectsMissingEvent(t *testing.T) {
	_, err := Decode([]byte(`{"data":{"workspaceId":"w1"}}`))
	assert.Error(t, err)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	raw, err := Encode(EventErase, EraseBroadcast{WorkspaceID: "w1", X: 5, Y: 6, Radius: 10})
	require.NoError(t, err)

	env, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, EventErase, env.Event)

	var p EraseBroadcast
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, 5.0, p.X)
	assert.Equal(t, 10.0, p.Radius)
}

func TestErasePayloadOmittedRadius(t *testing.T) {
	var p ErasePayload
	require.NoError(t, json.Unmarshal([]byte(`{"workspaceId":"w1","x":1,"y":2}`), &p))
	assert.Nil(t, p.Radius, "absent radius must be distinguishable from zero")

	require.NoError(t, json.Unmarshal([]byte(`{"workspaceId":"w1","x":1,"y":2,"radius":4}`), &p))
	require.NotNil(t, p.Radius)
	assert.Equal(t, 4.0, *p.Radius)
}

func TestInitFrom(t *testing.T) {
	snap := board.Snapshot{
		Strokes: []board.Stroke{{ID: "l1"}},
		Shapes:  []board.Shape{{ID: "s1"}},
		Notes:   []board.Note{{ID: "t1"}},
	}

	p := InitFrom("w1", snap)
	assert.Equal(t, "w1", p.WorkspaceID)
	assert.Len(t, p.Lines, 1)
	assert.Len(t, p.Shapes, 1)
	assert.Len(t, p.Texts, 1)

	// Wire names matter to the clients: lines/shapes/texts.
	raw, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"lines"`)
	assert.Contains(t, string(raw), `"texts"`)
}
