package jsonrpc_test

import (
	"testing"

	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	assert "github.com/stretchr/testify/assert"
)

func Test_Validate_accepts_error_code_zero(t *testing.T) {
	assert := assert.New(t)

	data := []byte(`{"jsonrpc":"2.0","id":1,"error":{"code":0,"message":"ok"}}`)
	e, err := jsonrpc.Decode(data)
	assert.NoError(err)
	assert.NoError(jsonrpc.Validate(e))
	assert.True(e.Error.HasCode())
	assert.Equal(0, e.Error.Code)
}

func Test_Validate_rejects_error_with_no_code(t *testing.T) {
	assert := assert.New(t)

	data := []byte(`{"jsonrpc":"2.0","id":1,"error":{"message":"missing code"}}`)
	e, err := jsonrpc.Decode(data)
	assert.NoError(err)
	assert.False(e.Error.HasCode())
	assert.Error(jsonrpc.Validate(e))
}

func Test_Validate_rejects_missing_version(t *testing.T) {
	assert := assert.New(t)

	e, err := jsonrpc.NewRequest("1", "ping", nil)
	assert.NoError(err)
	e.Version = "1.0"
	assert.Error(jsonrpc.Validate(e))
}
