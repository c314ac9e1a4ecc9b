package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/chazu/intcode/store"
	"github.com/chazu/intcode/vm"
)

const (
	// MachineServiceName is the fully-qualified name of the service.
	MachineServiceName = "intcode.v1.MachineService"

	MachineServiceRunProcedure     = "/intcode.v1.MachineService/Run"
	MachineServiceStartProcedure   = "/intcode.v1.MachineService/Start"
	MachineServiceStepProcedure    = "/intcode.v1.MachineService/Step"
	MachineServiceSaveProcedure    = "/intcode.v1.MachineService/Save"
	MachineServiceRestoreProcedure = "/intcode.v1.MachineService/Restore"
	MachineServiceCloseProcedure   = "/intcode.v1.MachineService/Close"
)

type (
	request  = connect.Request[structpb.Struct]
	response = connect.Response[structpb.Struct]
)

// MachineService runs Intcode programs for remote clients, either to
// completion in one call or step by step inside a session.
type MachineService struct {
	sessions *SessionStore
	store    *store.Store
	opts     []vm.Option
}

// NewMachineService creates a MachineService. st may be nil, in which case
// Save and Restore are unavailable.
func NewMachineService(sessions *SessionStore, st *store.Store, cfg Config) *MachineService {
	return &MachineService{
		sessions: sessions,
		store:    st,
		opts:     cfg.engineOptions(),
	}
}

// NewMachineServiceHandler builds an HTTP handler serving every procedure
// of svc. It returns the path prefix to mount it on.
func NewMachineServiceHandler(svc *MachineService, opts ...connect.HandlerOption) (string, http.Handler) {
	runHandler := connect.NewUnaryHandler(MachineServiceRunProcedure, svc.Run, opts...)
	startHandler := connect.NewUnaryHandler(MachineServiceStartProcedure, svc.Start, opts...)
	stepHandler := connect.NewUnaryHandler(MachineServiceStepProcedure, svc.Step, opts...)
	saveHandler := connect.NewUnaryHandler(MachineServiceSaveProcedure, svc.Save, opts...)
	restoreHandler := connect.NewUnaryHandler(MachineServiceRestoreProcedure, svc.Restore, opts...)
	closeHandler := connect.NewUnaryHandler(MachineServiceCloseProcedure, svc.Close, opts...)

	return "/" + MachineServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case MachineServiceRunProcedure:
			runHandler.ServeHTTP(w, r)
		case MachineServiceStartProcedure:
			startHandler.ServeHTTP(w, r)
		case MachineServiceStepProcedure:
			stepHandler.ServeHTTP(w, r)
		case MachineServiceSaveProcedure:
			saveHandler.ServeHTTP(w, r)
		case MachineServiceRestoreProcedure:
			restoreHandler.ServeHTTP(w, r)
		case MachineServiceCloseProcedure:
			closeHandler.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

// Run executes a program to completion with a fixed input list.
func (s *MachineService) Run(ctx context.Context, req *request) (*response, error) {
	program, err := programField(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	input, err := valuesField(req.Msg, "input")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	e := vm.New(program, s.opts...)
	buf := vm.NewBuffer(input...)
	if err := vm.Run(e, buf); err != nil {
		return nil, engineError(err)
	}
	addr0, _ := e.Peek(0)

	return reply(map[string]any{
		"output":   vm.FormatProgram(buf.Outputs()),
		"address0": formatInt(addr0),
		"steps":    formatInt(e.Steps()),
	})
}

// Start creates a session holding a fresh engine.
func (s *MachineService) Start(ctx context.Context, req *request) (*response, error) {
	program, err := programField(req.Msg)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	session := s.sessions.Create(vm.New(program, s.opts...))
	return reply(map[string]any{"session": session.ID})
}

// Step advances a session's engine to its next suspension point. The
// input field is only used when the engine is awaiting input.
func (s *MachineService) Step(ctx context.Context, req *request) (*response, error) {
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	input, err := intField(req.Msg, "input")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	result, err := session.worker.Do(func(e *vm.Engine) (any, error) {
		return e.Step(input)
	})
	if err != nil {
		return nil, engineError(err)
	}
	ev := result.(vm.Event)

	fields := map[string]any{"status": ev.Status.String()}
	if ev.Status == vm.StatusOutput {
		fields["value"] = formatInt(ev.Value)
	}
	return reply(fields)
}

// Save stores a snapshot of a session's engine.
func (s *MachineService) Save(ctx context.Context, req *request) (*response, error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("no snapshot store configured"))
	}
	session, err := s.session(req.Msg)
	if err != nil {
		return nil, err
	}
	name, _, err := stringField(req.Msg, "name")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	result, err := session.worker.Do(func(e *vm.Engine) (any, error) {
		return s.store.Save(ctx, name, e)
	})
	if err != nil {
		return nil, engineError(err)
	}
	return reply(map[string]any{"snapshot": result.(string)})
}

// Restore creates a session from a stored snapshot.
func (s *MachineService) Restore(ctx context.Context, req *request) (*response, error) {
	if s.store == nil {
		return nil, connect.NewError(connect.CodeUnavailable, fmt.Errorf("no snapshot store configured"))
	}
	id, err := requiredString(req.Msg, "snapshot")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	e, err := s.store.Load(ctx, id, s.opts...)
	if errors.Is(err, store.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	status := "ready"
	switch {
	case e.AwaitingInput():
		status = vm.StatusAwaitingInput.String()
	case e.Halted():
		status = vm.StatusTerminated.String()
	}
	session := s.sessions.Create(e)
	return reply(map[string]any{"session": session.ID, "status": status})
}

// Close ends a session.
func (s *MachineService) Close(ctx context.Context, req *request) (*response, error) {
	id, err := requiredString(req.Msg, "session")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if !s.sessions.Destroy(id) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return reply(nil)
}

func (s *MachineService) session(msg *structpb.Struct) (*Session, error) {
	id, err := requiredString(msg, "session")
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return session, nil
}

func reply(fields map[string]any) (*response, error) {
	msg, err := newStruct(fields)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// engineError maps engine and driver failures to Connect codes.
func engineError(err error) error {
	var fault *vm.Fault
	switch {
	case errors.As(err, &fault),
		errors.Is(err, vm.ErrHalted),
		errors.Is(err, vm.ErrInputExhausted):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, errWorkerStopped):
		return connect.NewError(connect.CodeNotFound, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}
