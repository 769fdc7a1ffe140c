package mcp

import (
	"context"
	"os"
	"time"

	"envjudge/internal/logging"
)

// WatchParent monitors for parent process death in a background goroutine.
// When the parent PID changes (the MCP client disconnected), it calls
// cancelFn to trigger graceful shutdown, so server processes do not
// accumulate as zombies.
//
// This must NOT read from stdin: the SDK's stdio transport owns stdin
// exclusively, and reading here would corrupt the JSON-RPC stream.
func WatchParent(ctx context.Context, cancelFn context.CancelFunc) {
	ppid := os.Getppid()
	logger := logging.New("mcp-server")
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
				if os.Getppid() != ppid {
					logger.Warn("parent process died, initiating shutdown", "was_pid", ppid)
					cancelFn()
					return
				}
			}
		}
	}()
}
