// Package toolserver manages long-lived tool server subprocesses: spawning,
// MCP sessions over their stdio, health checks, reconnects, and teardown.
// A Registry owns the named fleet; a Connection owns one subprocess.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"verity/internal/logging"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	// DefaultConnectTimeout bounds subprocess spawn plus protocol handshake.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultCallTimeout bounds a single tool call when the server config
	// does not set its own timeout.
	DefaultCallTimeout = 30 * time.Second

	// DefaultCloseGrace is how long a graceful close may take before the
	// subprocess is killed.
	DefaultCloseGrace = 5 * time.Second

	// DefaultReconnectCooldown separates close from the fresh connect during
	// a reconnect.
	DefaultReconnectCooldown = 1 * time.Second
)

// killWait bounds the wait for process exit after a forced kill.
const killWait = 2 * time.Second

// State is the connection lifecycle state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosing      State = "closing"
)

// ToolInfo is one entry of a server's discovered tool catalog.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"input_schema,omitempty"`
}

// Result is the tagged envelope for a successful tool invocation.
type Result struct {
	// Value holds the decoded payload when the response carried a single
	// textual part: parsed JSON if the text parses, the raw text otherwise.
	Value any
	// Parts holds multi-part responses, passed through unmodified.
	Parts []sdkmcp.Content
}

// TransportFactory builds the wire transport for a server config. The
// default spawns the configured subprocess and speaks MCP over its stdio;
// tests substitute in-memory transports. The returned cmd is nil when no
// subprocess is involved.
type TransportFactory func(cfg Config) (sdkmcp.Transport, *exec.Cmd, error)

// commandTransport is the production factory: one subprocess per server,
// stderr passed through for operator visibility.
func commandTransport(cfg Config) (sdkmcp.Transport, *exec.Cmd, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stderr = os.Stderr
	return &sdkmcp.CommandTransport{Command: cmd}, cmd, nil
}

// Connection owns one tool server subprocess and one protocol session.
//
// Concurrent Invoke calls against the same connection are safe: the
// underlying session correlates in-flight requests by JSON-RPC id.
type Connection struct {
	cfg     Config
	factory TransportFactory
	logger  *slog.Logger

	mu      sync.Mutex
	state   State
	session *sdkmcp.ClientSession
	cmd     *exec.Cmd
	catalog map[string]ToolInfo
}

// NewConnection creates a disconnected connection for the config.
func NewConnection(cfg Config) *Connection {
	return &Connection{
		cfg:     cfg,
		factory: commandTransport,
		logger:  logging.New("toolserver"),
		state:   StateDisconnected,
	}
}

// Name returns the config name this connection serves.
func (c *Connection) Name() string { return c.cfg.Name }

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connected reports liveness; it flips to false on unsolicited transport
// failure as well as on Close.
func (c *Connection) Connected() bool { return c.State() == StateConnected }

// Catalog returns the cached tool catalog, sorted by tool name.
func (c *Connection) Catalog() []ToolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ToolInfo, 0, len(c.catalog))
	for _, t := range c.catalog {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HasTool reports whether the cached catalog lists the tool.
func (c *Connection) HasTool(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.catalog[name]
	return ok
}

// Connect spawns the subprocess, performs the handshake under
// DefaultConnectTimeout, and caches the remote tool catalog. On failure the
// subprocess is terminated and no partial state remains attached. A failed
// catalog fetch degrades to an empty catalog: the connection is still
// usable for diagnostics.
func (c *Connection) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateClosing:
		state := c.state
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is %s", ErrConnection, c.cfg.Name, state)
	}
	c.state = StateConnecting
	c.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, DefaultConnectTimeout)
	defer cancel()

	transport, cmd, err := c.factory(c.cfg)
	if err != nil {
		c.setDisconnected()
		return fmt.Errorf("%w: %s: %v", ErrConnection, c.cfg.Name, err)
	}

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "verity", Version: "dev"}, nil)
	session, err := client.Connect(dialCtx, transport, nil)
	if err != nil {
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		c.setDisconnected()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s after %s", ErrConnectionTimeout, c.cfg.Name, DefaultConnectTimeout)
		}
		return fmt.Errorf("%w: %s: %v", ErrConnection, c.cfg.Name, err)
	}

	catalog := make(map[string]ToolInfo)
	if res, lerr := session.ListTools(dialCtx, nil); lerr != nil {
		c.logger.Warn("tool catalog fetch failed, continuing with empty catalog",
			"server", c.cfg.Name, "error", lerr)
	} else {
		for _, t := range res.Tools {
			catalog[t.Name] = ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		}
	}

	c.mu.Lock()
	c.state = StateConnected
	c.session = session
	c.cmd = cmd
	c.catalog = catalog
	c.mu.Unlock()

	c.logger.Info("connected", "server", c.cfg.Name, "tools", len(catalog))
	return nil
}

// Invoke calls a tool on the connected server and unwraps the response.
// A remote-reported error keeps the connection alive; a transport failure
// forces Disconnected before the error propagates.
func (c *Connection) Invoke(ctx context.Context, toolName string, args map[string]any) (*Result, error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDisconnected, c.cfg.Name)
	}
	session := c.session
	_, known := c.catalog[toolName]
	c.mu.Unlock()

	if !known {
		return nil, fmt.Errorf("%w: %q on %s", ErrToolNotFound, toolName, c.cfg.Name)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.callTimeout())
	defer cancel()

	res, err := session.CallTool(callCtx, &sdkmcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			// A slow tool is not a broken stream; the session stays usable.
			return nil, fmt.Errorf("%w: %s/%s after %s", ErrConnectionTimeout, c.cfg.Name, toolName, c.cfg.callTimeout())
		}
		c.markDisconnected("invoke", err)
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrConnection, c.cfg.Name, toolName, err)
	}

	if res.IsError {
		return nil, fmt.Errorf("%w: %s/%s: %s", ErrToolInvocation, c.cfg.Name, toolName, errorText(res))
	}

	return unwrap(res), nil
}

// Ping re-lists tools as a lightweight liveness round trip. It never returns
// an error; a healthy ping also refreshes the cached catalog.
func (c *Connection) Ping(ctx context.Context) bool {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return false
	}
	session := c.session
	c.mu.Unlock()

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.callTimeout())
	defer cancel()

	res, err := session.ListTools(pingCtx, nil)
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			c.markDisconnected("ping", err)
		}
		return false
	}

	catalog := make(map[string]ToolInfo, len(res.Tools))
	for _, t := range res.Tools {
		catalog[t.Name] = ToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
	}
	c.mu.Lock()
	if c.state == StateConnected {
		c.catalog = catalog
	}
	c.mu.Unlock()
	return true
}

// Reconnect closes the connection, waits a short cooldown, and connects
// fresh. Used after health-check failure or explicit operator request.
func (c *Connection) Reconnect(ctx context.Context) error {
	if err := c.Close(); err != nil {
		c.logger.Warn("close before reconnect", "server", c.cfg.Name, "error", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(DefaultReconnectCooldown):
	}
	return c.Connect(ctx)
}

// Close attempts a graceful protocol close, then ensures the subprocess is
// gone: if it has not exited within DefaultCloseGrace it is killed. The
// escalation is cancelled the instant the process exits. Closing an
// already-closed connection is a no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.state == StateDisconnected || c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	session := c.session
	cmd := c.cmd
	c.session = nil
	c.cmd = nil
	c.catalog = nil
	c.mu.Unlock()

	err := c.teardown(session, cmd)
	c.setDisconnected()
	return err
}

// teardown runs the graceful-then-forceful shutdown sequence for a session
// and its subprocess.
func (c *Connection) teardown(session *sdkmcp.ClientSession, cmd *exec.Cmd) error {
	if session == nil {
		if cmd != nil && cmd.Process != nil {
			_ = cmd.Process.Kill()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- session.Close() }()

	select {
	case err := <-done:
		// Clean close; the transport reaped the subprocess.
		return err
	case <-time.After(DefaultCloseGrace):
	}

	if cmd != nil && cmd.Process != nil {
		c.logger.Warn("graceful close timed out, killing subprocess",
			"server", c.cfg.Name, "grace", DefaultCloseGrace)
		_ = cmd.Process.Kill()
	}

	select {
	case err := <-done:
		return err
	case <-time.After(killWait):
		return fmt.Errorf("close %s: subprocess did not exit after kill", c.cfg.Name)
	}
}

// markDisconnected records an unsolicited transition out of Connected and
// releases the session and subprocess in the background.
func (c *Connection) markDisconnected(op string, cause error) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateDisconnected
	session := c.session
	cmd := c.cmd
	c.session = nil
	c.cmd = nil
	c.catalog = nil
	c.mu.Unlock()

	c.logger.Warn("connection lost", "server", c.cfg.Name, "op", op, "error", cause)
	go func() { _ = c.teardown(session, cmd) }()
}

func (c *Connection) setDisconnected() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.mu.Unlock()
}

// unwrap converts a call-tool result into the tagged Result envelope: a
// single textual part is JSON-decoded when possible, anything else passes
// through unmodified.
func unwrap(res *sdkmcp.CallToolResult) *Result {
	if len(res.Content) == 1 {
		if tc, ok := res.Content[0].(*sdkmcp.TextContent); ok {
			var v any
			if err := json.Unmarshal([]byte(tc.Text), &v); err == nil {
				return &Result{Value: v}
			}
			return &Result{Value: tc.Text}
		}
	}
	return &Result{Parts: res.Content}
}

// errorText extracts the remote error message from a failed result.
func errorText(res *sdkmcp.CallToolResult) string {
	for _, part := range res.Content {
		if tc, ok := part.(*sdkmcp.TextContent); ok && tc.Text != "" {
			return tc.Text
		}
	}
	return "tool returned an error without a message"
}
