// Package stdio implements the subprocess-over-line-delimited-JSON
// transport: a child process is spawned, its stdout is read one JSON value
// per line, its stderr is forwarded to a logger, and shutdown follows a
// SIGTERM-then-SIGKILL discipline.
package stdio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	// Packages
	transport "github.com/mutablelogic/go-mcp/pkg/transport"
	logger "github.com/mutablelogic/go-server/pkg/logger"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

// Config describes how to spawn the child process. Env overrides are
// merged over the parent process's environment; Env wins on key conflict.
type Config struct {
	Command string
	Args    []string
	Env     map[string]string
	Logger  *logger.Logger

	// ShutdownGrace is how long Close waits after SIGTERM before SIGKILL.
	// Defaults to 2s.
	ShutdownGrace time.Duration
}

// Transport spawns and speaks line-delimited JSON-RPC to a single child
// process for its entire lifetime. It never auto-restarts: an unexpected
// exit is fatal and surfaces as a failed-all-pending error.
type Transport struct {
	cfg Config

	mu      sync.Mutex
	alive   bool
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	fn      transport.InboundFunc
	onFatal func(error)

	wg sync.WaitGroup
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

// New constructs a stdio transport. The child process is not started until
// Start is called.
func New(cfg Config) (*Transport, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("stdio: empty command")
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 2 * time.Second
	}
	return &Transport{cfg: cfg}, nil
}

// Factory adapts New to the transport.Factory signature for registration in
// a transport.Registry. config must be a Config value (or pointer).
func Factory(config any) (transport.Transport, error) {
	switch c := config.(type) {
	case Config:
		return New(c)
	case *Config:
		return New(*c)
	default:
		return nil, fmt.Errorf("stdio: unsupported config type %T", config)
	}
}

func init() {
	_ = transport.DefaultRegistry.Register("stdio", Factory)
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

// OnFatal registers a callback invoked once if the child process exits
// unexpectedly or a write fails fatally. The caller typically uses this to
// fail all pending requests and mark the owning session dead.
func (t *Transport) OnFatal(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFatal = fn
}

// Start spawns the child process and begins the stdout and stderr reader
// loops.
func (t *Transport) Start(ctx context.Context, fn transport.InboundFunc) error {
	t.mu.Lock()
	if t.alive {
		t.mu.Unlock()
		return fmt.Errorf("stdio: already started")
	}

	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	cmd.Env = mergeEnv(os.Environ(), t.cfg.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("stdio: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("stdio: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("stdio: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		t.mu.Unlock()
		return fmt.Errorf("stdio: start %s: %w", t.cfg.Command, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.fn = fn
	t.alive = true
	t.mu.Unlock()

	t.wg.Add(2)
	go t.readStdout(stdout)
	go t.readStderr(stderr)

	return nil
}

// Send writes one JSON-RPC message to the child's stdin, terminated by a
// newline.
func (t *Transport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	if !t.alive {
		t.mu.Unlock()
		return fmt.Errorf("stdio: transport closed")
	}
	stdin := t.stdin
	t.mu.Unlock()

	if _, err := stdin.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("stdio: write: %w", err)
	}
	return nil
}

// Close flips the running flag, closes stdin, sends SIGTERM with a grace
// period, then SIGKILL, and waits for both reader goroutines to finish.
// A Close from the OnFatal callback returns at once, since the reader has
// already marked the transport closed; Close must not be called from the
// inbound callback, which runs on the stdout reader that Close waits for.
func (t *Transport) Close(ctx context.Context) error {
	t.mu.Lock()
	if !t.alive {
		t.mu.Unlock()
		return nil
	}
	t.alive = false
	cmd := t.cmd
	stdin := t.stdin
	t.mu.Unlock()

	if stdin != nil {
		_ = stdin.Close()
	}

	if cmd != nil && cmd.Process != nil {
		_ = cmd.Process.Signal(syscall.SIGTERM)

		done := make(chan struct{})
		go func() {
			_ = cmd.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(t.cfg.ShutdownGrace):
			_ = cmd.Process.Kill()
			<-done
		}
	}

	t.wg.Wait()
	return nil
}

// Alive reports whether the transport believes the child process is still
// running.
func (t *Transport) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alive
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func (t *Transport) readStdout(r io.Reader) {
	defer t.wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		data := make([]byte, len(line))
		copy(data, line)
		t.fn(transport.Frame{Data: data})
	}

	// EOF or a read error: if we're still supposed to be alive, this is an
	// unexpected termination. Do not restart; surface it as fatal.
	t.mu.Lock()
	wasAlive := t.alive
	t.alive = false
	onFatal := t.onFatal
	t.mu.Unlock()

	if wasAlive && onFatal != nil {
		onFatal(fmt.Errorf("stdio: child process terminated unexpectedly"))
	}
}

func (t *Transport) readStderr(r io.Reader) {
	defer t.wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if t.cfg.Logger != nil {
			t.cfg.Logger.Print(context.Background(), line)
		}
	}
}

func mergeEnv(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}
	merged := make([]string, 0, len(base)+len(overrides))
	merged = append(merged, base...)
	for k, v := range overrides {
		merged = append(merged, k+"="+v)
	}
	return merged
}
