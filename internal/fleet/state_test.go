package fleet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestControllerStateJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		state ControllerState
		want  string
	}{
		{
			name:  "plain state has no reason field",
			state: Ready(),
			want:  `{"state":"ready"}`,
		},
		{
			name:  "error state carries its reason",
			state: ErrorState("device unreachable"),
			want:  `{"state":"error","reason":"device unreachable"}`,
		},
		{
			name:  "deleting state",
			state: Deleting(),
			want:  `{"state":"deleting"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data, err := json.Marshal(tt.state)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(data))

			var decoded ControllerState
			require.NoError(t, json.Unmarshal(data, &decoded))
			assert.True(t, tt.state.Equal(decoded))
		})
	}
}

func TestControllerStateUnmarshalRejectsUnknown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "unknown variant",
			doc:  `{"state":"rebooting"}`,
		},
		{
			name: "empty variant",
			doc:  `{"state":""}`,
		},
		{
			name: "reason on a plain state",
			doc:  `{"state":"ready","reason":"looks good"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var decoded ControllerState
			assert.Error(t, json.Unmarshal([]byte(tt.doc), &decoded))
		})
	}
}

func TestControllerStateValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Initializing().Validate())
	assert.NoError(t, FetchingData().Validate())
	assert.NoError(t, Configuring().Validate())
	assert.NoError(t, Ready().Validate())
	assert.NoError(t, Deleting().Validate())
	assert.NoError(t, ErrorState("why").Validate())
	assert.NoError(t, ErrorState("").Validate())

	assert.Error(t, ControllerState{Name: "warming_up"}.Validate())
	assert.Error(t, ControllerState{Name: StateReady, Reason: "nope"}.Validate())
}

func TestControllerStateEqual(t *testing.T) {
	t.Parallel()

	assert.True(t, Ready().Equal(Ready()))
	assert.False(t, Ready().Equal(Configuring()))
	assert.True(t, ErrorState("a").Equal(ErrorState("a")))
	assert.False(t, ErrorState("a").Equal(ErrorState("b")))
}
