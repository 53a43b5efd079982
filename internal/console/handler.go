// handler.go implements a JSON-RPC-style handler over gRPC unary calls.
// Clients send an RPCRequest and receive an RPCResponse, both JSON encoded.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName and CallMethod identify the single gRPC method.
const (
	ServiceName = "cvmbatch.v1.Console"
	CallMethod  = "/" + ServiceName + "/Call"
)

// RPCRequest is a generic JSON-RPC-style request.
type RPCRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// RPCResponse is a generic JSON-RPC-style response.
type RPCResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Handler dispatches JSON-RPC requests to the Service.
type Handler struct {
	service  *Service
	dispatch map[string]handlerFunc
}

type handlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// NewHandler creates a handler backed by the given service.
func NewHandler(svc *Service) *Handler {
	h := &Handler{service: svc}
	h.dispatch = map[string]handlerFunc{
		"credentials.extract": h.handleExtractCredentials,
		"batch.run":           h.handleRunBatch,
		"run.artifacts":       h.handleListArtifacts,
		"audit.verify":        h.handleVerifyAudit,
	}
	return h
}

// Handle processes a JSON-RPC request and returns a response.
func (h *Handler) Handle(ctx context.Context, req *RPCRequest) *RPCResponse {
	fn, ok := h.dispatch[req.Method]
	if !ok {
		return &RPCResponse{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		return &RPCResponse{Error: err.Error()}
	}

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return &RPCResponse{Error: fmt.Sprintf("encoding result: %v", err)}
	}
	return &RPCResponse{Result: resultJSON}
}

// RegisterWithGRPC registers the handler as a generic gRPC service.
func (h *Handler) RegisterWithGRPC(s *grpc.Server) {
	sd := grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*consoleServiceHandler)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "Call",
				Handler:    h.grpcCallHandler,
			},
		},
		Streams: []grpc.StreamDesc{},
	}
	s.RegisterService(&sd, h)
}

// consoleServiceHandler is the interface type for gRPC service registration.
type consoleServiceHandler interface{}

func (h *Handler) grpcCallHandler(_ any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	var req RPCRequest
	if err := dec(&req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if interceptor == nil {
		return h.Handle(ctx, &req), nil
	}
	info := &grpc.UnaryServerInfo{Server: h, FullMethod: CallMethod}
	return interceptor(ctx, &req, info, func(ctx context.Context, r any) (any, error) {
		return h.Handle(ctx, r.(*RPCRequest)), nil
	})
}

func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return errors.New("invalid params: missing")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

// --- Handler implementations ---

type textParam struct {
	Text string `json:"text"`
}

func (h *Handler) handleExtractCredentials(_ context.Context, params json.RawMessage) (any, error) {
	var p textParam
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return h.service.ExtractCredentials(p.Text), nil
}

func (h *Handler) handleRunBatch(ctx context.Context, params json.RawMessage) (any, error) {
	var req BatchRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if req.Operator == "" {
		req.Operator = "rpc"
	}
	return h.service.RunBatch(ctx, req)
}

type runParam struct {
	RunID string `json:"run_id"`
}

func (h *Handler) handleListArtifacts(_ context.Context, params json.RawMessage) (any, error) {
	var p runParam
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return h.service.ListArtifacts(p.RunID)
}

func (h *Handler) handleVerifyAudit(_ context.Context, _ json.RawMessage) (any, error) {
	return h.service.VerifyAudit()
}
