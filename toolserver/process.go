package toolserver

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/conductorhq/conductor/core"
)

// probeTimeout bounds the PATH lookup in probeCommand (spec §4.1 step 1).
const probeTimeout = 3 * time.Second

// probeCommand checks that the main command of a shell-like invocation
// resolves on PATH, the way/where equivalent: bounded to probeTimeout so a
// hung filesystem or network mount can't stall fleet startup.
func probeCommand(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty command", core.ErrEnvironment)
	}

	done := make(chan error, 1)
	go func() {
		_, err := exec.LookPath(fields[0])
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %s: %v", core.ErrEnvironment, fields[0], err)
		}
		return nil
	case <-time.After(probeTimeout):
		return fmt.Errorf("%w: probing %s timed out after %s", core.ErrEnvironment, fields[0], probeTimeout)
	}
}

// splitCommand splits a shell-like command line into its argv on POSIX
// shells. Tool-server commands in mcp.json are plain "program arg1 arg2"
// strings (spec §6.2), not full shell syntax, so whitespace splitting is
// sufficient and avoids shelling out through /bin/sh.
func splitCommand(command string) (string, []string) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// envSlice converts the env mapping from config into "K=V" pairs, the
// format exec.Cmd and mcp-go's stdio client both expect.
func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

// withTimeout is a small helper so connect/call sites don't repeat the
// context.WithTimeout/defer cancel boilerplate.
func withTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
