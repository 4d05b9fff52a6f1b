package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/analytics"
	"github.com/dmitrijs2005/userkeeper/internal/server/services"
	"google.golang.org/grpc"
)

// Services bundles what the gRPC layer calls into.
type Services struct {
	Auth      *services.AuthService
	Identity  *services.IdentityManager
	Sessions  *services.SessionManager
	Events    *services.EventLog
	Analytics *analytics.Engine
	Export    *services.ExportService
}

type GRPCServer struct {
	address   string
	auth      *services.AuthService
	identity  *services.IdentityManager
	sessions  *services.SessionManager
	events    *services.EventLog
	analytics *analytics.Engine
	export    *services.ExportService
	logger    logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, svc Services) *GRPCServer {
	return &GRPCServer{
		address:   address,
		auth:      svc.Auth,
		identity:  svc.Identity,
		sessions:  svc.Sessions,
		events:    svc.Events,
		analytics: svc.Analytics,
		export:    svc.Export,
		logger:    l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	srv.RegisterService(serviceDesc(), s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
