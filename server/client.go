package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/intcode/vm"
)

// Caller performs one unary call of a MachineService procedure.
type Caller interface {
	CallUnary(ctx context.Context, procedure string, req *structpb.Struct) (*structpb.Struct, error)
	Close() error
}

// connectCaller speaks the Connect protocol over net/http.
type connectCaller struct {
	httpClient connect.HTTPClient
	baseURL    string
	opts       []connect.ClientOption

	mu      sync.Mutex
	clients map[string]*connect.Client[structpb.Struct, structpb.Struct]
}

// NewConnectCaller returns a Caller for the server at baseURL, e.g.
// "http://localhost:8420".
func NewConnectCaller(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) Caller {
	return &connectCaller{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
		clients:    make(map[string]*connect.Client[structpb.Struct, structpb.Struct]),
	}
}

func (c *connectCaller) client(procedure string) *connect.Client[structpb.Struct, structpb.Struct] {
	c.mu.Lock()
	defer c.mu.Unlock()

	cl, ok := c.clients[procedure]
	if !ok {
		cl = connect.NewClient[structpb.Struct, structpb.Struct](c.httpClient, c.baseURL+procedure, c.opts...)
		c.clients[procedure] = cl
	}
	return cl
}

func (c *connectCaller) CallUnary(ctx context.Context, procedure string, req *structpb.Struct) (*structpb.Struct, error) {
	resp, err := c.client(procedure).CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *connectCaller) Close() error {
	return nil
}

// grpcCaller speaks gRPC over a grpc-go connection.
type grpcCaller struct {
	conn *grpc.ClientConn
}

// DialGRPC returns a Caller using gRPC over cleartext HTTP/2 to target,
// e.g. "localhost:8420".
func DialGRPC(target string, opts ...grpc.DialOption) (Caller, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("server: dial %s: %w", target, err)
	}
	return &grpcCaller{conn: conn}, nil
}

func (c *grpcCaller) CallUnary(ctx context.Context, procedure string, req *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, procedure, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *grpcCaller) Close() error {
	return c.conn.Close()
}

// Client is a typed MachineService client over any Caller.
type Client struct {
	caller Caller
}

// NewClient wraps caller.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

// RunResult is the reply to Run.
type RunResult struct {
	Output   []int64
	Address0 int64
	Steps    int64
}

func (c *Client) call(ctx context.Context, procedure string, fields map[string]any) (*structpb.Struct, error) {
	req, err := newStruct(fields)
	if err != nil {
		return nil, err
	}
	return c.caller.CallUnary(ctx, procedure, req)
}

// Run executes program remotely with the given inputs.
func (c *Client) Run(ctx context.Context, program []int64, input ...int64) (RunResult, error) {
	resp, err := c.call(ctx, MachineServiceRunProcedure, map[string]any{
		"program": vm.FormatProgram(program),
		"input":   vm.FormatProgram(input),
	})
	if err != nil {
		return RunResult{}, err
	}

	var res RunResult
	if res.Output, err = valuesField(resp, "output"); err != nil {
		return RunResult{}, err
	}
	if res.Address0, err = intField(resp, "address0"); err != nil {
		return RunResult{}, err
	}
	if res.Steps, err = intField(resp, "steps"); err != nil {
		return RunResult{}, err
	}
	return res, nil
}

// Start creates a remote session for program.
func (c *Client) Start(ctx context.Context, program []int64) (string, error) {
	resp, err := c.call(ctx, MachineServiceStartProcedure, map[string]any{
		"program": vm.FormatProgram(program),
	})
	if err != nil {
		return "", err
	}
	return requiredString(resp, "session")
}

// Step advances a remote session by one suspension point.
func (c *Client) Step(ctx context.Context, session string, input int64) (vm.Event, error) {
	resp, err := c.call(ctx, MachineServiceStepProcedure, map[string]any{
		"session": session,
		"input":   formatInt(input),
	})
	if err != nil {
		return vm.Event{}, err
	}

	status, err := requiredString(resp, "status")
	if err != nil {
		return vm.Event{}, err
	}
	var ev vm.Event
	switch status {
	case vm.StatusAwaitingInput.String():
		ev.Status = vm.StatusAwaitingInput
	case vm.StatusOutput.String():
		ev.Status = vm.StatusOutput
		if ev.Value, err = intField(resp, "value"); err != nil {
			return vm.Event{}, err
		}
	case vm.StatusTerminated.String():
		ev.Status = vm.StatusTerminated
	default:
		return vm.Event{}, fmt.Errorf("server: unknown status %q", status)
	}
	return ev, nil
}

// Save snapshots a remote session and returns the snapshot id.
func (c *Client) Save(ctx context.Context, session, name string) (string, error) {
	resp, err := c.call(ctx, MachineServiceSaveProcedure, map[string]any{
		"session": session,
		"name":    name,
	})
	if err != nil {
		return "", err
	}
	return requiredString(resp, "snapshot")
}

// Restore creates a remote session from a snapshot. awaiting reports
// whether the restored engine is waiting for an input value.
func (c *Client) Restore(ctx context.Context, snapshot string) (session string, awaiting bool, err error) {
	resp, err := c.call(ctx, MachineServiceRestoreProcedure, map[string]any{
		"snapshot": snapshot,
	})
	if err != nil {
		return "", false, err
	}
	if session, err = requiredString(resp, "session"); err != nil {
		return "", false, err
	}
	status, _, err := stringField(resp, "status")
	if err != nil {
		return "", false, err
	}
	return session, status == vm.StatusAwaitingInput.String(), nil
}

// Close ends a remote session.
func (c *Client) Close(ctx context.Context, session string) error {
	_, err := c.call(ctx, MachineServiceCloseProcedure, map[string]any{"session": session})
	return err
}

// Drive runs a remote session to termination, exchanging values with io
// the way vm.Run does for a local engine. awaiting must be set when the
// session's engine is already waiting for input, as after Restore.
func (c *Client) Drive(ctx context.Context, session string, io vm.IO, awaiting bool) error {
	var in int64
	if awaiting {
		v, err := io.Input()
		if err != nil {
			return err
		}
		in = v
	}
	for {
		ev, err := c.Step(ctx, session, in)
		if err != nil {
			return err
		}
		switch ev.Status {
		case vm.StatusAwaitingInput:
			if in, err = io.Input(); err != nil {
				return err
			}
		case vm.StatusOutput:
			in = 0
			if err := io.Output(ev.Value); err != nil {
				return err
			}
		case vm.StatusTerminated:
			return nil
		}
	}
}
