package handler_test

import (
	"testing"

	// Packages
	handler "github.com/mutablelogic/go-mcp/pkg/handler"
	assert "github.com/stretchr/testify/assert"
)

func Test_registry_store_complete(t *testing.T) {
	assert := assert.New(t)

	r := handler.NewRegistry()
	async := handler.NewAsyncResponse(0)
	r.Store("7", &handler.Entry{Async: async})
	assert.Equal(1, r.Size())

	assert.True(r.Complete("7", map[string]any{"answer": "yes"}))
	assert.Equal(0, r.Size())
	assert.Equal(handler.AsyncCompleted, async.State())
}

func Test_registry_unknown_id_is_noop(t *testing.T) {
	assert := assert.New(t)

	r := handler.NewRegistry()
	assert.False(r.Complete("missing", nil))
	assert.False(r.Reject("missing", "x"))
	assert.Nil(r.Retrieve("missing"))
}

func Test_registry_owner_scoping(t *testing.T) {
	assert := assert.New(t)

	r := handler.NewRegistry()
	a1 := r.ForOwner("session-a")
	a2 := r.ForOwner("session-b")

	a1.Store("1", &handler.Entry{Async: handler.NewAsyncResponse(0)})
	a2.Store("1", &handler.Entry{Async: handler.NewAsyncResponse(0)})

	// Same id ("1"), different owners: both resolve independently in the
	// shared map without colliding.
	assert.Equal(2, r.Size())
	assert.True(a1.Complete("1", "from-a"))
	assert.NotNil(a2.Retrieve("1"))
	assert.Equal(1, r.Size())
}

func Test_registry_release_owner(t *testing.T) {
	assert := assert.New(t)

	r := handler.NewRegistry()
	scoped := r.ForOwner("session-a")
	scoped.Store("1", &handler.Entry{Async: handler.NewAsyncResponse(0)})
	scoped.Store("2", &handler.Entry{Async: handler.NewAsyncResponse(0)})
	r.ForOwner("session-b").Store("1", &handler.Entry{Async: handler.NewAsyncResponse(0)})

	r.Release("session-a")
	assert.Equal(1, r.Size())
}

func Test_registry_approve_deny(t *testing.T) {
	assert := assert.New(t)

	r := handler.NewRegistry()
	async := handler.NewAsyncResponse(0)
	r.Store("42", &handler.Entry{Async: async})

	assert.True(r.Approve("42"))
	assert.Equal(handler.AsyncCompleted, async.State())

	async2 := handler.NewAsyncResponse(0)
	r.Store("43", &handler.Entry{Async: async2})
	assert.True(r.Deny("43", "no"))
	assert.Equal(handler.AsyncRejected, async2.State())
}
