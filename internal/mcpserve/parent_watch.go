package mcpserve

import (
	"context"
	"os"
	"time"

	"verity/internal/logging"
)

// DefaultParentPollInterval is how often the watchdog checks the parent PID.
var DefaultParentPollInterval = 2 * time.Second

// WatchParent monitors for parent process death in a background goroutine.
// When the parent PID changes (the agent host disconnected or restarted),
// it calls cancelFn to trigger graceful shutdown. This prevents zombie
// MCP server processes from accumulating.
//
// IMPORTANT: This must NOT read from stdin; the MCP SDK's StdioTransport
// owns stdin exclusively. Reading from stdin here would steal bytes and
// corrupt the JSON-RPC protocol.
//
// The goroutine exits when ctx is canceled or parent death is detected.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	logger := logging.New("mcpserve")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(DefaultParentPollInterval):
				if os.Getppid() != ppid {
					logger.Warn("parent process died, initiating shutdown", "was_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
