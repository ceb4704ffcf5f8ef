package stdio_test

import (
	"context"
	"testing"
	"time"

	// Packages
	transport "github.com/mutablelogic/go-mcp/pkg/transport"
	stdio "github.com/mutablelogic/go-mcp/pkg/transport/stdio"
	assert "github.com/stretchr/testify/assert"
)

// echoScript reads one line from stdin and writes it straight back, looping
// until stdin closes. It stands in for a well-behaved MCP server for
// transport-level tests that don't need real JSON-RPC semantics.
const echoScript = `while IFS= read -r line; do echo "$line"; done`

func Test_stdio_roundtrip(t *testing.T) {
	assert := assert.New(t)

	tr, err := stdio.New(stdio.Config{
		Command: "sh",
		Args:    []string{"-c", echoScript},
	})
	assert.NoError(err)

	frames := make(chan transport.Frame, 1)
	err = tr.Start(context.Background(), func(f transport.Frame) {
		frames <- f
	})
	assert.NoError(err)
	assert.True(tr.Alive())

	err = tr.Send(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	assert.NoError(err)

	select {
	case f := <-frames:
		assert.Equal(`{"jsonrpc":"2.0","id":1,"method":"ping"}`, string(f.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echoed frame")
	}

	assert.NoError(tr.Close(context.Background()))
	assert.False(tr.Alive())
}

func Test_stdio_close_idempotent(t *testing.T) {
	assert := assert.New(t)

	tr, err := stdio.New(stdio.Config{Command: "sh", Args: []string{"-c", echoScript}})
	assert.NoError(err)
	assert.NoError(tr.Start(context.Background(), func(transport.Frame) {}))

	assert.NoError(tr.Close(context.Background()))
	assert.NoError(tr.Close(context.Background()))
}

func Test_stdio_unexpected_exit_is_fatal(t *testing.T) {
	assert := assert.New(t)

	tr, err := stdio.New(stdio.Config{Command: "sh", Args: []string{"-c", "exit 0"}})
	assert.NoError(err)

	fatal := make(chan error, 1)
	tr.OnFatal(func(err error) { fatal <- err })

	assert.NoError(tr.Start(context.Background(), func(transport.Frame) {}))

	select {
	case err := <-fatal:
		assert.Error(err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected fatal callback on unexpected exit")
	}
}

func Test_stdio_empty_command_rejected(t *testing.T) {
	assert := assert.New(t)

	_, err := stdio.New(stdio.Config{})
	assert.Error(err)
}

func Test_stdio_factory_registered(t *testing.T) {
	assert := assert.New(t)

	tr, err := transport.DefaultRegistry.New("stdio", stdio.Config{Command: "sh", Args: []string{"-c", "exit 0"}})
	assert.NoError(err)
	assert.NotNil(tr)
}
