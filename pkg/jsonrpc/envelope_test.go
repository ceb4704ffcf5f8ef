package jsonrpc_test

import (
	"testing"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	assert "github.com/stretchr/testify/assert"
)

func Test_envelope_roundtrip_request(t *testing.T) {
	assert := assert.New(t)

	e, err := jsonrpc.NewRequest("1", "tools/call", map[string]any{"name": "echo"})
	assert.NoError(err)

	data, err := jsonrpc.Encode(e)
	assert.NoError(err)

	got, err := jsonrpc.Decode(data)
	assert.NoError(err)
	assert.NoError(jsonrpc.Validate(got))
	assert.Equal(jsonrpc.Request, jsonrpc.Classify(got))
	assert.Equal("tools/call", got.Method)
	assert.Equal("1", got.ID)
}

func Test_envelope_roundtrip_notification(t *testing.T) {
	assert := assert.New(t)

	e, err := jsonrpc.NewNotification("notifications/initialized", nil)
	assert.NoError(err)

	data, err := jsonrpc.Encode(e)
	assert.NoError(err)

	got, err := jsonrpc.Decode(data)
	assert.NoError(err)
	assert.NoError(jsonrpc.Validate(got))
	assert.Equal(jsonrpc.Notification, jsonrpc.Classify(got))
	assert.False(got.HasID())
}

func Test_envelope_roundtrip_success_response(t *testing.T) {
	assert := assert.New(t)

	e, err := jsonrpc.NewSuccessResponse(float64(7), map[string]any{"ok": true})
	assert.NoError(err)

	data, err := jsonrpc.Encode(e)
	assert.NoError(err)

	got, err := jsonrpc.Decode(data)
	assert.NoError(err)
	assert.NoError(jsonrpc.Validate(got))
	assert.Equal(jsonrpc.SuccessResponse, jsonrpc.Classify(got))
}

func Test_envelope_roundtrip_error_response(t *testing.T) {
	assert := assert.New(t)

	e := jsonrpc.NewErrorResponse(nil, jsonrpc.CodeParseError, "parse error", nil)

	data, err := jsonrpc.Encode(e)
	assert.NoError(err)

	got, err := jsonrpc.Decode(data)
	assert.NoError(err)
	assert.NoError(jsonrpc.Validate(got))
	assert.Equal(jsonrpc.ErrorResponse, jsonrpc.Classify(got))
	assert.Nil(got.ID)
	assert.True(got.HasID())
}

func Test_envelope_validate_rejects_malformed(t *testing.T) {
	assert := assert.New(t)

	cases := []string{
		`{"id":1,"method":"ping"}`,                          // missing jsonrpc
		`{"jsonrpc":"1.0","id":1,"method":"ping"}`,           // wrong version
		`{"jsonrpc":"2.0","id":1,"method":"ping","result":1}`, // request with result
		`{"jsonrpc":"2.0","id":1,"result":1,"method":"ping"}`, // response with method
		`{"jsonrpc":"2.0","id":1,"error":{"message":"x"}}`,    // error without code
		`{"jsonrpc":"2.0","id":1,"error":{"code":1}}`,         // error without message
		`{"jsonrpc":"2.0","id":1,"method":"ping","params":"x"}`, // params not object/array
		`{"jsonrpc":"2.0"}`, // neither request, notification, nor response
	}
	for _, c := range cases {
		e, err := jsonrpc.Decode([]byte(c))
		assert.NoError(err, c)
		assert.Error(jsonrpc.Validate(e), c)
	}
}

func Test_envelope_decode_top_level_not_object(t *testing.T) {
	assert := assert.New(t)
	_, err := jsonrpc.Decode([]byte(`[1,2,3]`))
	assert.Error(err)
}

func Test_envelope_decode_malformed_json(t *testing.T) {
	assert := assert.New(t)
	_, err := jsonrpc.Decode([]byte(`{not json`))
	assert.Error(err)
}

func Test_envelope_request_vs_notification(t *testing.T) {
	assert := assert.New(t)

	req, err := jsonrpc.Decode([]byte(`{"jsonrpc":"2.0","id":5,"method":"ping"}`))
	assert.NoError(err)
	assert.Equal(jsonrpc.Request, jsonrpc.Classify(req))

	notif, err := jsonrpc.Decode([]byte(`{"jsonrpc":"2.0","method":"notifications/progress"}`))
	assert.NoError(err)
	assert.Equal(jsonrpc.Notification, jsonrpc.Classify(notif))
}
