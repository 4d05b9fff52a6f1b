package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/analytics"
	"github.com/dmitrijs2005/userkeeper/internal/server/auth"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/events"
	"github.com/dmitrijs2005/userkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"github.com/dmitrijs2005/userkeeper/internal/server/store"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

var t0 = time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)

func newServices(clock common.Clock) Services {
	log := logging.Nop()
	repos := repomanager.NewStoreRepositoryManager(store.NewMemoryStore(), 1000, events.CapGlobal)
	issuer := auth.NewIssuer([]byte("test-secret"), clock, auth.TTLs{
		Access: 24 * time.Hour, Refresh: 30 * 24 * time.Hour, Reset: time.Hour,
	})
	identity := services.NewIdentityManager(repos, clock, log)
	sessions := services.NewSessionManager(repos, issuer, clock, 24*time.Hour, log)
	evlog := services.NewEventLog(repos, clock, log)
	return Services{
		Auth:      services.NewAuthService(identity, sessions, evlog, log),
		Identity:  identity,
		Sessions:  sessions,
		Events:    evlog,
		Analytics: analytics.NewEngine(evlog, identity, clock, log),
		Export:    services.NewExportService(identity, evlog, nil, clock, log),
	}
}

// startServer serves a fresh in-memory Keeper over bufconn.
func startServer(t *testing.T) *grpc.ClientConn {
	t.Helper()
	srv := NewGRPCServer("bufnet", logging.Nop(), newServices(common.NewManualClock(t0)))

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		conn.Close()
		cancel()
		<-done
	})
	return conn
}

func call(t *testing.T, ctx context.Context, conn *grpc.ClientConn, method string, req map[string]any) (map[string]any, error) {
	t.Helper()
	if req == nil {
		req = map[string]any{}
	}
	in, err := structpb.NewStruct(req)
	require.NoError(t, err)
	out := &structpb.Struct{}
	if err := conn.Invoke(ctx, FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func withToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.AccessTokenHeaderName, token)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop(), Services{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop(), Services{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected error from Run on bad address, got nil")
	}
}

func TestServiceDesc(t *testing.T) {
	desc := serviceDesc()
	require.Equal(t, ServiceName, desc.ServiceName)
	require.Len(t, desc.Methods, 23)

	public := 0
	for _, m := range methods {
		if m.public {
			public++
		}
	}
	require.Equal(t, 5, public)
	require.True(t, publicMethods[FullMethod("Login")])
	require.False(t, publicMethods[FullMethod("Logout")])
}
