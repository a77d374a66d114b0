// Package toolserver owns every tool-server subprocess: connecting,
// executing tool calls with retry semantics, and periodically healing the
// fleet. It is grounded on the teacher's MCP stdio toolset but generalized
// from a single lazily-connected toolset into a multi-server supervisor with
// an explicit connect/disconnect/reconcile lifecycle.
package toolserver

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conductorhq/conductor/core"
	"github.com/conductorhq/conductor/metrics"
)

// maxConcurrentConnects bounds how many servers connect in parallel during
// ConnectAll, so a large fleet doesn't spawn every subprocess in the same
// instant.
const maxConcurrentConnects = 8

// maxCallAttempts is the total number of attempts (the first try plus
// retries) made for one tool call before giving up.
const maxCallAttempts = 2

// maxReconnectsPerCycle bounds how many unhealthy servers the reconciliation
// loop will attempt to reconnect in a single pass, to avoid a reconnect
// storm when many servers go stale at once.
const maxReconnectsPerCycle = 2

// dialFunc opens a fresh RPC connection to a tool server. It is a variable
// so tests can substitute a fake client instead of spawning a subprocess.
type dialFunc func(ctx context.Context, serverID string, cfg core.ToolServerConfig) (rpcClient, error)

// conn is everything the supervisor owns for one tool server: its live
// state, its RPC handle (nil when disconnected), and the tool keys it
// contributed to the shared tool index.
type conn struct {
	mu       sync.Mutex
	server   core.ToolServer
	client   rpcClient
	toolKeys []string
}

// Supervisor owns every tool-server subprocess and the canonical in-memory
// server/tool registry built from them.
type Supervisor struct {
	log         *slog.Logger
	metrics     *metrics.Supervisor
	dial        dialFunc
	connTimeout time.Duration
	callTimeout time.Duration

	mu      sync.RWMutex
	configs map[string]core.ToolServerConfig
	conns   map[string]*conn
	tools   map[string]core.Tool // keyed by Tool.Key()

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a Supervisor. connTimeout bounds the connect handshake;
// callTimeout bounds each tool call attempt.
func New(log *slog.Logger, m *metrics.Supervisor, connTimeout, callTimeout time.Duration) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		log:         log,
		metrics:     m,
		dial:        func(ctx context.Context, id string, cfg core.ToolServerConfig) (rpcClient, error) { return dialStdio(ctx, id, cfg) },
		connTimeout: connTimeout,
		callTimeout: callTimeout,
		configs:     make(map[string]core.ToolServerConfig),
		conns:       make(map[string]*conn),
		tools:       make(map[string]core.Tool),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// connectServer implements the connection protocol of spec §4.1: probe,
// spawn, handshake, listTools, mark connected. A command that can't be
// found or a handshake that fails returns false without aborting fleet
// startup — failure for one server is always local.
func (s *Supervisor) connectServer(ctx context.Context, id string, cfg core.ToolServerConfig) bool {
	cfg.SetDefaults()
	cfg.ID = id

	if err := probeCommand(cfg.Command); err != nil {
		s.log.Warn("tool server command not found, skipping", "server", id, "error", err)
		s.recordConnect(id, false)
		return false
	}

	connectCtx, cancel := withTimeout(ctx, s.connTimeout)
	defer cancel()

	client, err := s.dial(connectCtx, id, cfg)
	if err != nil {
		s.log.Warn("tool server connect failed", "server", id, "error", err)
		s.recordConnect(id, false)
		return false
	}
	if err := client.Initialize(connectCtx); err != nil {
		client.Close()
		s.log.Warn("tool server handshake failed", "server", id, "error", err)
		s.recordConnect(id, false)
		return false
	}
	tools, err := client.ListTools(connectCtx)
	if err != nil {
		client.Close()
		s.log.Warn("tool server listTools failed", "server", id, "error", err)
		s.recordConnect(id, false)
		return false
	}
	for i := range tools {
		tools[i].Domain = cfg.Domain
	}

	s.mu.Lock()
	s.configs[id] = cfg
	keys := make([]string, 0, len(tools))
	for _, t := range tools {
		s.tools[t.Key()] = t
		keys = append(keys, t.Key())
	}
	s.conns[id] = &conn{
		server: core.ToolServer{
			ID: id, Name: id, Description: cfg.Description, Command: cfg.Command,
			Args: cfg.Args, Env: cfg.Env, Priority: cfg.Priority, Enabled: cfg.Enabled,
			Domain: cfg.Domain, State: core.StateConnected, LastHeartbeat: time.Now(),
		},
		client:   client,
		toolKeys: keys,
	}
	s.mu.Unlock()

	s.log.Info("tool server connected", "server", id, "tools", len(tools))
	s.recordConnect(id, true)
	s.metrics.SetHealthy(id, true)
	return true
}

func (s *Supervisor) recordConnect(id string, ok bool) {
	if s.metrics != nil {
		s.metrics.ObserveConnect(id, ok)
	}
}

// disconnectServer tears down a server's connection and removes its tools
// from the shared index. An unknown id is a no-op.
func (s *Supervisor) disconnectServer(id string) {
	s.mu.Lock()
	c, ok := s.conns[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.conns, id)
	for _, k := range c.toolKeys {
		delete(s.tools, k)
	}
	s.mu.Unlock()

	c.mu.Lock()
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			s.log.Warn("error closing tool server", "server", id, "error", err)
		}
	}
	c.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetHealthy(id, false)
	}
}

// callTool executes a tool call with the validation, normalization, and
// retry semantics of spec §4.1's execution path.
func (s *Supervisor) callTool(ctx context.Context, serverID, toolName string, args map[string]interface{}) core.ToolExecutionResult {
	s.mu.RLock()
	c, connOK := s.conns[serverID]
	tool, toolOK := s.tools[serverID+"/"+toolName]
	s.mu.RUnlock()

	if !connOK {
		return core.NewFailure(fmt.Sprintf("tool server %q is not connected", serverID), core.ErrTransport)
	}
	if !toolOK {
		return core.NewFailure(fmt.Sprintf("tool %q not found on server %q", toolName, serverID), core.ErrValidation)
	}

	if missing := tool.MissingRequired(args); len(missing) > 0 {
		return core.NewFailure(fmt.Sprintf("missing required arguments: %v", missing), core.ErrValidation)
	}
	normalized := tool.NormalizeArgs(args)
	if err := tool.ValidateArgs(normalized); err != nil {
		return core.NewFailure(err.Error(), core.ErrValidation)
	}

	var lastErr error
	var lastErrContent string
	for attempt := 1; attempt <= maxCallAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return core.NewFailure(fmt.Sprintf("tool %q on %q: %v", toolName, serverID, ctx.Err()), ctx.Err())
			}
		}

		callCtx, cancel := withTimeout(ctx, s.callTimeout)
		c.mu.Lock()
		content, isError, err := c.client.CallTool(callCtx, toolName, normalized)
		c.mu.Unlock()
		cancel()

		if err == nil && !isError {
			s.touchHeartbeat(serverID)
			if s.metrics != nil {
				s.metrics.ObserveCall(serverID, toolName, attempt, true)
			}
			return core.NewSuccess(&tool, content, "")
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = core.ErrToolFailure
			lastErrContent = content
		}
		if s.metrics != nil {
			s.metrics.ObserveCall(serverID, toolName, attempt, false)
		}
	}

	s.markUnhealthy(serverID)
	msg := fmt.Sprintf("tool %q on server %q failed after %d attempts", toolName, serverID, maxCallAttempts)
	if lastErrContent != "" {
		msg = fmt.Sprintf("%s: %s", msg, lastErrContent)
	}
	return core.NewFailure(msg, lastErr)
}

func (s *Supervisor) touchHeartbeat(serverID string) {
	s.mu.Lock()
	if c, ok := s.conns[serverID]; ok {
		c.server.LastHeartbeat = time.Now()
		c.server.State = core.StateConnected
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetHealthy(serverID, true)
	}
}

func (s *Supervisor) markUnhealthy(serverID string) {
	s.mu.Lock()
	if c, ok := s.conns[serverID]; ok {
		c.server.State = core.StateUnhealthy
	}
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SetHealthy(serverID, false)
	}
}

// getAllAvailableTools returns every tool on a currently-connected server,
// sorted by key for deterministic prompt rendering.
func (s *Supervisor) getAllAvailableTools() []core.Tool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// CallTool is the exported entry point callers outside this package use to
// invoke a tool; it is the same validated, retried call path callTool
// implements internally.
func (s *Supervisor) CallTool(ctx context.Context, serverID, toolName string, args map[string]interface{}) core.ToolExecutionResult {
	return s.callTool(ctx, serverID, toolName, args)
}

// Tools is the exported entry point for getAllAvailableTools, the tool
// catalog discovery and the strategies build their candidate lists from.
func (s *Supervisor) Tools() []core.Tool {
	return s.getAllAvailableTools()
}

// LoadConfigs registers server configurations without connecting, so
// refreshConnections can discover and connect them on its next pass. Used
// at startup to seed the fleet from config before the reconciliation loop
// takes over.
func (s *Supervisor) LoadConfigs(configs map[string]core.ToolServerConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cfg := range configs {
		if _, known := s.configs[id]; !known {
			s.configs[id] = cfg
		}
	}
}

// ConnectAll connects every configured server concurrently, bounded to
// maxConcurrentConnects in flight at once, and registers every config for
// the reconciliation loop regardless of whether its initial connect
// succeeded (per-server failure at startup is never fatal, spec §4.1).
func (s *Supervisor) ConnectAll(ctx context.Context, configs map[string]core.ToolServerConfig) {
	s.LoadConfigs(configs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentConnects)
	for id, cfg := range configs {
		id, cfg := id, cfg
		g.Go(func() error {
			s.connectServer(gctx, id, cfg)
			return nil
		})
	}
	_ = g.Wait()
}

// refreshConnections implements the reconciliation loop of spec §4.1: it
// connects servers newly present in configuration, and reconnects servers
// whose heartbeat has gone stale, capped at maxReconnectsPerCycle attempts
// regardless of fleet size.
func (s *Supervisor) refreshConnections(ctx context.Context) {
	s.mu.RLock()
	var toConnect []string
	for id := range s.configs {
		if _, connected := s.conns[id]; !connected {
			toConnect = append(toConnect, id)
		}
	}
	var stale []string
	now := time.Now()
	for id, c := range s.conns {
		c.mu.Lock()
		healthy := c.server.Healthy(now)
		c.mu.Unlock()
		if !healthy {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	sort.Strings(toConnect)
	for _, id := range toConnect {
		s.mu.RLock()
		cfg := s.configs[id]
		s.mu.RUnlock()
		s.connectServer(ctx, id, cfg)
	}

	sort.Strings(stale)
	reconnected := 0
	for _, id := range stale {
		if reconnected >= maxReconnectsPerCycle {
			s.log.Debug("reconnect cap reached for this cycle", "remaining", len(stale)-reconnected)
			break
		}
		s.mu.RLock()
		cfg, ok := s.configs[id]
		s.mu.RUnlock()
		if !ok {
			continue
		}
		s.disconnectServer(id)
		if s.metrics != nil {
			s.metrics.ObserveReconnect(id)
		}
		s.connectServer(ctx, id, cfg)
		reconnected++
	}
}

// Run starts the reconciliation loop, firing refreshConnections every
// interval until the context is cancelled or Close is called. Intended to
// run in its own goroutine.
func (s *Supervisor) Run(ctx context.Context, interval time.Duration) {
	defer close(s.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refreshConnections(ctx)
		}
	}
}

// Close releases every child process. It first signals Run to stop and waits
// up to 5 seconds for Run to return before proceeding regardless; if Run was
// never started, that wait lasts the full 5 seconds.
func (s *Supervisor) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	select {
	case <-s.doneCh:
	case <-time.After(5 * time.Second):
	}

	s.mu.RLock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		s.disconnectServer(id)
	}
}
