package doctor

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// checkGRPCHealth dials a self-hosted gateway's gRPC endpoint and runs the
// standard health check against the overall server.
func checkGRPCHealth(ctx context.Context, target string) Check {
	const name = "gateway.health_grpc"

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("dial %s: %v", target, err)}
	}
	defer conn.Close()

	conn.Connect()
	if err := waitForReady(ctx, conn); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("connect %s: %v", target, err)}
	}

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("health check %s: %v", target, err)}
	}
	if status := resp.GetStatus(); status != healthpb.HealthCheckResponse_SERVING {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s reports %s", target, status)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("serving at %s", target)}
}

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait timed out in state %s", state.String())
		}
	}
}
