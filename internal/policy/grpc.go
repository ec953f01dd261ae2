package policy

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// PredictMethod is the unary method the model server exposes. Request and
// response are google.protobuf.Struct values:
//
//	request:  {observation: [5 numbers], deterministic: bool}
//	response: {action: number, confidence: number}
const PredictMethod = "/habitcity.policy.v1.PolicyService/Predict"

// GRPC calls a model server over gRPC.
type GRPC struct {
	conn *grpc.ClientConn
}

// DialGRPC creates a client for addr. The connection is lazy; Ready probes
// the standard health service.
func DialGRPC(addr string, opts ...grpc.DialOption) (*GRPC, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
	dialOpts = append(dialOpts, opts...)

	conn, err := grpc.NewClient(addr, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial policy %s: %w", addr, err)
	}
	return &GRPC{conn: conn}, nil
}

// Predict invokes the model server's Predict method.
func (g *GRPC) Predict(ctx context.Context, obs Observation, deterministic bool) (Prediction, error) {
	values := make([]any, len(obs))
	for i, v := range obs {
		values[i] = v
	}
	req, err := structpb.NewStruct(map[string]any{
		"observation":   values,
		"deterministic": deterministic,
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, PredictMethod, req, resp); err != nil {
		return Prediction{}, fmt.Errorf("policy rpc: %w", err)
	}

	fields := resp.GetFields()
	act, ok := fields["action"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return Prediction{}, fmt.Errorf("policy rpc: response missing numeric action")
	}
	conf, ok := fields["confidence"].GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return Prediction{}, fmt.Errorf("policy rpc: response missing numeric confidence")
	}
	return decodePrediction(act.NumberValue, conf.NumberValue)
}

// Ready runs one health check against the server.
func (g *GRPC) Ready(ctx context.Context) error {
	resp, err := grpc_health_v1.NewHealthClient(g.conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("policy health: %w", err)
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("policy health: status %s", resp.GetStatus())
	}
	return nil
}

// Close closes the connection.
func (g *GRPC) Close() error {
	return g.conn.Close()
}
