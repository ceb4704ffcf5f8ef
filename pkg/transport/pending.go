package transport

import (
	"sync"
	"time"

	// Packages
	jsonrpc "github.com/mutablelogic/go-mcp/pkg/jsonrpc"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Mailbox is a single-shot channel a caller blocks on to receive the
// response to one outbound request.
type Mailbox <-chan *Result

// PendingTable is a thread-safe registry of outbound requests awaiting a
// response, keyed by request id. It provides O(1) registration, matching,
// and removal of single-shot mailboxes.
//
// Invariants: a successful deliver or cancel removes the entry atomically;
// after FailAll no entries remain; duplicate deliveries for the same id are
// dropped silently after the first.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

type pendingEntry struct {
	ch    chan *Result
	timer *time.Timer
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// NewPendingTable creates an empty pending table.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[string]*pendingEntry)}
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// Register creates a mailbox for id with the given deadline. If the
// deadline elapses before Deliver or Cancel, the mailbox receives a
// TimeoutError result automatically and the entry is removed. A zero
// deadline means no automatic timeout.
func (t *PendingTable) Register(id string, deadline time.Duration) Mailbox {
	ch := make(chan *Result, 1)
	entry := &pendingEntry{ch: ch}

	t.mu.Lock()
	t.entries[id] = entry
	if deadline > 0 {
		entry.timer = time.AfterFunc(deadline, func() {
			t.timeout(id)
		})
	}
	t.mu.Unlock()

	return ch
}

// Deliver matches a response to its pending mailbox and sends it. It
// returns false if no entry exists for id (already delivered, cancelled,
// timed out, or never registered - e.g. a duplicate response from a
// misbehaving server).
func (t *PendingTable) Deliver(id string, result *Result) bool {
	entry := t.remove(id)
	if entry == nil {
		return false
	}
	entry.ch <- result
	close(entry.ch)
	return true
}

// Cancel removes the entry for id, if present, and delivers err to its
// mailbox.
func (t *PendingTable) Cancel(id string, err *jsonrpc.RPCError) {
	entry := t.remove(id)
	if entry == nil {
		return
	}
	entry.ch <- &Result{Err: err}
	close(entry.ch)
}

// FailAll delivers err to every outstanding mailbox and clears the table.
// Used when a transport closes (expectedly or not) so no caller blocks
// forever.
func (t *PendingTable) FailAll(err *jsonrpc.RPCError) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*pendingEntry)
	t.mu.Unlock()

	for _, entry := range entries {
		if entry.timer != nil {
			entry.timer.Stop()
		}
		entry.ch <- &Result{Err: err}
		close(entry.ch)
	}
}

// Len returns the number of outstanding entries. Intended for tests.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *PendingTable) remove(id string) *pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[id]
	if !ok {
		return nil
	}
	delete(t.entries, id)
	if entry.timer != nil {
		entry.timer.Stop()
	}
	return entry
}

func (t *PendingTable) timeout(id string) {
	entry := t.remove(id)
	if entry == nil {
		// Already delivered/cancelled between the timer firing and this
		// goroutine acquiring the lock - drop it.
		return
	}
	entry.ch <- &Result{Err: &jsonrpc.RPCError{Code: jsonrpc.CodeRequestTimeout, Message: "request timed out"}}
	close(entry.ch)
}
