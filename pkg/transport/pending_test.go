package transport_test

import (
	"sync"
	"testing"
	"time"

	// Packages
	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
	transport "github.com/mutablelogic/go-mcp/pkg/transport"
	assert "github.com/stretchr/testify/assert"
)

func Test_pending_register_deliver(t *testing.T) {
	assert := assert.New(t)

	table := transport.NewPendingTable()
	mailbox := table.Register("1", 0)
	assert.Equal(1, table.Len())

	ok := table.Deliver("1", &transport.Result{ID: "1", Result: []byte(`{"ok":true}`)})
	assert.True(ok)

	result := <-mailbox
	assert.Equal("1", result.ID)
	assert.Equal(0, table.Len())

	// Duplicate delivery is a no-op.
	assert.False(table.Deliver("1", &transport.Result{ID: "1"}))
}

func Test_pending_cancel(t *testing.T) {
	assert := assert.New(t)

	table := transport.NewPendingTable()
	mailbox := table.Register("2", 0)

	table.Cancel("2", &jsonrpc.RPCError{Code: jsonrpc.CodeInternalError, Message: "cancelled"})

	result := <-mailbox
	assert.NotNil(result.Err)
	assert.Equal("cancelled", result.Err.Message)
	assert.Equal(0, table.Len())
}

func Test_pending_timeout(t *testing.T) {
	assert := assert.New(t)

	table := transport.NewPendingTable()
	mailbox := table.Register("3", 10*time.Millisecond)

	select {
	case result := <-mailbox:
		assert.NotNil(result.Err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for timeout delivery")
	}
	assert.Equal(0, table.Len())
}

func Test_pending_fail_all(t *testing.T) {
	assert := assert.New(t)

	table := transport.NewPendingTable()
	m1 := table.Register("1", 0)
	m2 := table.Register("2", time.Minute)
	assert.Equal(2, table.Len())

	table.FailAll(&jsonrpc.RPCError{Code: jsonrpc.CodeInternalError, Message: "closed"})

	r1 := <-m1
	r2 := <-m2
	assert.Equal("closed", r1.Err.Message)
	assert.Equal("closed", r2.Err.Message)
	assert.Equal(0, table.Len())
}

func Test_pending_concurrent_interleaving(t *testing.T) {
	assert := assert.New(t)

	table := transport.NewPendingTable()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		id := string(rune('a' + i%26))
		wg.Add(1)
		go func() {
			defer wg.Done()
			mailbox := table.Register(id, 50*time.Millisecond)
			<-mailbox
		}()
		go table.Deliver(id, &transport.Result{ID: id})
	}
	wg.Wait()
	// No leaks: everything registered is eventually consumed either by
	// delivery or by its own timeout.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(0, table.Len())
}
