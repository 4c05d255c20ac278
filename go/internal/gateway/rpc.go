package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// TimerServiceName is the fully-qualified name of the timer RPC service.
const TimerServiceName = "timer.v1.TimerService"

const (
	TimerServiceGetStateProcedure   = "/" + TimerServiceName + "/GetState"
	TimerServiceStartProcedure      = "/" + TimerServiceName + "/Start"
	TimerServicePauseProcedure      = "/" + TimerServiceName + "/Pause"
	TimerServiceToggleProcedure     = "/" + TimerServiceName + "/Toggle"
	TimerServiceResetProcedure      = "/" + TimerServiceName + "/Reset"
	TimerServiceSelectModeProcedure = "/" + TimerServiceName + "/SelectMode"
	TimerServiceListModesProcedure  = "/" + TimerServiceName + "/ListModes"
)

// RPCHandler exposes the timer as a Connect service. Messages are protobuf
// well-known types so no generated code is needed.
type RPCHandler struct {
	controller Controller
}

// NewRPCHandler creates a new RPC handler
func NewRPCHandler(controller Controller) *RPCHandler {
	return &RPCHandler{controller: controller}
}

// GetState returns the current snapshot.
func (h *RPCHandler) GetState(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	return h.snapshotResponse()
}

// SelectMode switches to the mode with the given minutes.
func (h *RPCHandler) SelectMode(ctx context.Context, req *connect.Request[wrapperspb.Int32Value]) (*connect.Response[structpb.Struct], error) {
	err := Dispatch(h.controller, ClientMessage{Action: "mode", Minutes: int(req.Msg.GetValue())})
	if errors.Is(err, ErrInvalidMinutes) {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return h.snapshotResponse()
}

// ListModes returns the selectable modes.
func (h *RPCHandler) ListModes(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	infos := ModeInfos(h.controller)
	modes := make([]any, 0, len(infos))
	for _, m := range infos {
		modes = append(modes, map[string]any{
			"name":    m.Name,
			"minutes": m.Minutes,
			"active":  m.Active,
		})
	}
	msg, err := structpb.NewStruct(map[string]any{"modes": modes})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

func (h *RPCHandler) action(name string) func(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	return func(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
		if err := Dispatch(h.controller, ClientMessage{Action: name}); err != nil {
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		return h.snapshotResponse()
	}
}

func (h *RPCHandler) snapshotResponse() (*connect.Response[structpb.Struct], error) {
	msg, err := SnapshotStruct(h.controller)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(msg), nil
}

// SnapshotStruct renders the controller's snapshot with the same field names
// as the JSON surfaces.
func SnapshotStruct(c Controller) (*structpb.Struct, error) {
	snap := c.Snapshot()
	msg, err := structpb.NewStruct(map[string]any{
		"status":           string(snap.Status),
		"remainingSeconds": snap.RemainingSeconds,
		"activeMinutes":    snap.ActiveMinutes,
		"display": map[string]any{
			"minutesText": snap.Display.MinutesText,
			"secondsText": snap.Display.SecondsText,
			"isRunning":   snap.Display.IsRunning,
		},
		"at": snap.At.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return msg, nil
}

// RegisterRoutes mounts every procedure on mux.
func (h *RPCHandler) RegisterRoutes(mux *http.ServeMux, opts ...connect.HandlerOption) {
	unary := []struct {
		procedure string
		fn        func(context.Context, *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error)
	}{
		{TimerServiceGetStateProcedure, h.GetState},
		{TimerServiceListModesProcedure, h.ListModes},
		{TimerServiceStartProcedure, h.action("start")},
		{TimerServicePauseProcedure, h.action("pause")},
		{TimerServiceToggleProcedure, h.action("toggle")},
		{TimerServiceResetProcedure, h.action("reset")},
	}
	for _, u := range unary {
		mux.Handle(u.procedure, connect.NewUnaryHandler(u.procedure, u.fn, opts...))
	}
	mux.Handle(TimerServiceSelectModeProcedure, connect.NewUnaryHandler(TimerServiceSelectModeProcedure, h.SelectMode, opts...))
}

// TimerClient calls a remote timer service.
type TimerClient struct {
	getState   *connect.Client[emptypb.Empty, structpb.Struct]
	listModes  *connect.Client[emptypb.Empty, structpb.Struct]
	actions    map[string]*connect.Client[emptypb.Empty, structpb.Struct]
	selectMode *connect.Client[wrapperspb.Int32Value, structpb.Struct]
}

// NewTimerClient creates a client for the service at baseURL.
func NewTimerClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *TimerClient {
	baseURL = strings.TrimRight(baseURL, "/")
	newClient := func(procedure string) *connect.Client[emptypb.Empty, structpb.Struct] {
		return connect.NewClient[emptypb.Empty, structpb.Struct](httpClient, baseURL+procedure, opts...)
	}
	return &TimerClient{
		getState:  newClient(TimerServiceGetStateProcedure),
		listModes: newClient(TimerServiceListModesProcedure),
		actions: map[string]*connect.Client[emptypb.Empty, structpb.Struct]{
			"start":  newClient(TimerServiceStartProcedure),
			"pause":  newClient(TimerServicePauseProcedure),
			"toggle": newClient(TimerServiceToggleProcedure),
			"reset":  newClient(TimerServiceResetProcedure),
		},
		selectMode: connect.NewClient[wrapperspb.Int32Value, structpb.Struct](httpClient, baseURL+TimerServiceSelectModeProcedure, opts...),
	}
}

// GetState fetches the remote snapshot.
func (c *TimerClient) GetState(ctx context.Context) (*structpb.Struct, error) {
	res, err := c.getState.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// ListModes fetches the remote mode list.
func (c *TimerClient) ListModes(ctx context.Context) (*structpb.Struct, error) {
	res, err := c.listModes.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// Do sends start, pause, toggle or reset.
func (c *TimerClient) Do(ctx context.Context, action string) (*structpb.Struct, error) {
	client, ok := c.actions[strings.ToLower(action)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	res, err := client.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}

// SelectMode switches the remote timer's mode.
func (c *TimerClient) SelectMode(ctx context.Context, minutes int) (*structpb.Struct, error) {
	res, err := c.selectMode.CallUnary(ctx, connect.NewRequest(wrapperspb.Int32(int32(minutes))))
	if err != nil {
		return nil, err
	}
	return res.Msg, nil
}
