package mcp

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Transport supplies the byte pipes to the device-control subsystem.
// CommandTransport is the production implementation; PipeTransport backs
// tests with in-memory pipes.
type Transport interface {
	// Start establishes the connection and returns the write (our stdin to
	// the peer) and read (the peer's stdout) sides.
	Start() (io.WriteCloser, io.Reader, error)

	// Wait blocks until the peer terminates and returns its exit error.
	Wait() error

	// Kill forcibly terminates the peer.
	Kill() error
}

// CommandTransport runs the subsystem as a child process.
type CommandTransport struct {
	command string
	args    []string

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewCommandTransport creates a transport that spawns command args...
func NewCommandTransport(command string, args ...string) *CommandTransport {
	return &CommandTransport{command: command, args: args}
}

// Start spawns the child process with piped stdin/stdout. Stderr is
// inherited so subsystem diagnostics reach the daemon's own stderr.
func (t *CommandTransport) Start() (io.WriteCloser, io.Reader, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cmd := exec.Command(t.command, t.args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("mcp: start %s: %w", t.command, err)
	}
	t.cmd = cmd
	return stdin, stdout, nil
}

// Wait blocks until the child exits.
func (t *CommandTransport) Wait() error {
	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()
	if cmd == nil {
		return nil
	}
	return cmd.Wait()
}

// Kill terminates the child process.
func (t *CommandTransport) Kill() error {
	t.mu.Lock()
	cmd := t.cmd
	t.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// PipeTransport is an in-memory transport for tests. The test side reads
// client requests from ServerReader and writes responses to ServerWriter.
type PipeTransport struct {
	// client side
	stdin  io.WriteCloser
	stdout io.Reader

	// server side
	ServerReader io.Reader
	ServerWriter io.WriteCloser

	startErr error
	done     chan struct{}
	once     sync.Once
}

// NewPipeTransport creates a connected in-memory transport.
func NewPipeTransport() *PipeTransport {
	clientToServerR, clientToServerW := io.Pipe()
	serverToClientR, serverToClientW := io.Pipe()
	return &PipeTransport{
		stdin:        clientToServerW,
		stdout:       serverToClientR,
		ServerReader: clientToServerR,
		ServerWriter: serverToClientW,
		done:         make(chan struct{}),
	}
}

// FailNext makes the next Start call fail with err.
func (t *PipeTransport) FailNext(err error) { t.startErr = err }

// Start returns the client-side pipe ends.
func (t *PipeTransport) Start() (io.WriteCloser, io.Reader, error) {
	if t.startErr != nil {
		err := t.startErr
		t.startErr = nil
		return nil, nil, err
	}
	return t.stdin, t.stdout, nil
}

// Wait blocks until CloseServer is called.
func (t *PipeTransport) Wait() error {
	<-t.done
	return io.EOF
}

// Kill closes the server side.
func (t *PipeTransport) Kill() error {
	t.CloseServer()
	return nil
}

// CloseServer simulates peer termination: the client's read side sees EOF
// and Wait unblocks.
func (t *PipeTransport) CloseServer() {
	t.once.Do(func() {
		_ = t.ServerWriter.Close()
		close(t.done)
	})
}
