package toolserver

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/conductorhq/conductor/core"
)

// fakeClient is a scriptable rpcClient stand-in so supervisor tests never
// spawn a real subprocess.
type fakeClient struct {
	id          string
	tools       []core.Tool
	callCount   int32
	failUntil   int32 // CallTool fails (transport error) for attempts <= failUntil
	returnError bool  // CallTool succeeds transport-wise but server flags isError
	closed      bool
}

func (f *fakeClient) Initialize(ctx context.Context) error { return nil }

func (f *fakeClient) ListTools(ctx context.Context) ([]core.Tool, error) {
	out := make([]core.Tool, len(f.tools))
	for i, t := range f.tools {
		t.ServerID = f.id
		out[i] = t
	}
	return out, nil
}

func (f *fakeClient) CallTool(ctx context.Context, name string, args map[string]interface{}) (string, bool, error) {
	n := atomic.AddInt32(&f.callCount, 1)
	if n <= f.failUntil {
		return "", false, errors.New("boom")
	}
	if f.returnError {
		return "tool reported a problem", true, nil
	}
	return "ok", false, nil
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func newTestSupervisor(client rpcClient) (*Supervisor, *fakeClient) {
	fc, _ := client.(*fakeClient)
	s := New(nil, nil, time.Second, time.Second)
	s.dial = func(ctx context.Context, id string, cfg core.ToolServerConfig) (rpcClient, error) {
		return client, nil
	}
	return s, fc
}

func echoTool() core.Tool {
	return core.Tool{
		Name: "echo",
		Schema: core.ToolSchema{
			Properties: map[string]core.ToolParameter{
				"msg": {Type: "string"},
			},
			Required: []string{"msg"},
		},
	}
}

func TestConnectServerRegistersTools(t *testing.T) {
	fc := &fakeClient{tools: []core.Tool{echoTool()}}
	s, _ := newTestSupervisor(fc)

	ok := s.connectServer(context.Background(), "echo-server", core.ToolServerConfig{
		Command: "true", Enabled: true,
	})
	if !ok {
		t.Fatal("expected connectServer to succeed")
	}
	tools := s.getAllAvailableTools()
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestConnectServerSkipsMissingCommand(t *testing.T) {
	s, _ := newTestSupervisor(&fakeClient{})
	ok := s.connectServer(context.Background(), "ghost", core.ToolServerConfig{
		Command: "definitely-not-a-real-binary-xyz", Enabled: true,
	})
	if ok {
		t.Fatal("expected connectServer to fail for a missing command")
	}
}

func TestCallToolValidatesRequiredArgs(t *testing.T) {
	fc := &fakeClient{tools: []core.Tool{echoTool()}}
	s, _ := newTestSupervisor(fc)
	s.connectServer(context.Background(), "echo-server", core.ToolServerConfig{Command: "true", Enabled: true})

	result := s.callTool(context.Background(), "echo-server", "echo", map[string]interface{}{})
	if result.Success {
		t.Fatal("expected failure for missing required arg")
	}
	if !errors.Is(result.Cause, core.ErrValidation) {
		t.Errorf("cause = %v, want ErrValidation", result.Cause)
	}
}

func TestCallToolRetriesThenSucceeds(t *testing.T) {
	fc := &fakeClient{tools: []core.Tool{echoTool()}, failUntil: 1}
	s, _ := newTestSupervisor(fc)
	s.connectServer(context.Background(), "echo-server", core.ToolServerConfig{Command: "true", Enabled: true})

	result := s.callTool(context.Background(), "echo-server", "echo", map[string]interface{}{"msg": "hi"})
	if !result.Success {
		t.Fatalf("expected eventual success, got %v", result.Error())
	}
	if fc.callCount != 2 {
		t.Errorf("callCount = %d, want 2 (one retry)", fc.callCount)
	}
}

func TestCallToolFailsAfterMaxAttempts(t *testing.T) {
	fc := &fakeClient{tools: []core.Tool{echoTool()}, failUntil: 5}
	s, _ := newTestSupervisor(fc)
	s.connectServer(context.Background(), "echo-server", core.ToolServerConfig{Command: "true", Enabled: true})

	result := s.callTool(context.Background(), "echo-server", "echo", map[string]interface{}{"msg": "hi"})
	if result.Success {
		t.Fatal("expected failure")
	}
	if fc.callCount != maxCallAttempts {
		t.Errorf("callCount = %d, want %d", fc.callCount, maxCallAttempts)
	}
}

func TestCallToolUnknownServer(t *testing.T) {
	s, _ := newTestSupervisor(&fakeClient{})
	result := s.callTool(context.Background(), "nope", "echo", nil)
	if result.Success {
		t.Fatal("expected failure for unknown server")
	}
}

func TestDisconnectServerRemovesTools(t *testing.T) {
	fc := &fakeClient{tools: []core.Tool{echoTool()}}
	s, _ := newTestSupervisor(fc)
	s.connectServer(context.Background(), "echo-server", core.ToolServerConfig{Command: "true", Enabled: true})

	s.disconnectServer("echo-server")
	if len(s.getAllAvailableTools()) != 0 {
		t.Error("expected no tools after disconnect")
	}
	if !fc.closed {
		t.Error("expected client to be closed")
	}
}

func TestDisconnectServerUnknownIDIsNoop(t *testing.T) {
	s, _ := newTestSupervisor(&fakeClient{})
	s.disconnectServer("never-connected")
}

func TestRefreshConnectionsCapsReconnectsPerCycle(t *testing.T) {
	s := New(nil, nil, time.Second, time.Second)
	s.dial = func(ctx context.Context, id string, cfg core.ToolServerConfig) (rpcClient, error) {
		return &fakeClient{id: id, tools: []core.Tool{echoTool()}}, nil
	}
	s.LoadConfigs(map[string]core.ToolServerConfig{
		"a": {Command: "true", Enabled: true},
		"b": {Command: "true", Enabled: true},
		"c": {Command: "true", Enabled: true},
	})

	s.refreshConnections(context.Background())
	if len(s.getAllAvailableTools()) != 3*1 {
		t.Fatalf("expected all 3 servers connected on first pass, got %d tools", len(s.getAllAvailableTools()))
	}

	past := time.Now().Add(-2 * core.HeartbeatWindow)
	s.mu.Lock()
	for _, c := range s.conns {
		c.server.LastHeartbeat = past
	}
	s.mu.Unlock()

	s.refreshConnections(context.Background())

	s.mu.RLock()
	reconnectedFresh := 0
	for _, c := range s.conns {
		if c.server.LastHeartbeat.After(past) {
			reconnectedFresh++
		}
	}
	s.mu.RUnlock()
	if reconnectedFresh != maxReconnectsPerCycle {
		t.Errorf("reconnected %d servers, want exactly %d (the cap)", reconnectedFresh, maxReconnectsPerCycle)
	}
}
