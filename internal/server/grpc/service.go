package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name. Every method takes
// and returns a google.protobuf.Struct holding a JSON object.
const ServiceName = "userkeeper.v1.Keeper"

// FullMethod returns the wire name of a Keeper method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type unaryFunc func(s *GRPCServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

type method struct {
	name   string
	fn     unaryFunc
	public bool
}

// methods lists the Keeper API. Public methods are served without an
// access token.
var methods = []method{
	{"Register", (*GRPCServer).Register, true},
	{"Login", (*GRPCServer).Login, true},
	{"Logout", (*GRPCServer).Logout, false},
	{"Refresh", (*GRPCServer).Refresh, true},
	{"RequestPasswordReset", (*GRPCServer).RequestPasswordReset, true},
	{"ConfirmPasswordReset", (*GRPCServer).ConfirmPasswordReset, true},
	{"ChangePassword", (*GRPCServer).ChangePassword, false},
	{"DeleteAccount", (*GRPCServer).DeleteAccount, false},
	{"GetProfile", (*GRPCServer).GetProfile, false},
	{"UpdateProfile", (*GRPCServer).UpdateProfile, false},
	{"GetPreferences", (*GRPCServer).GetPreferences, false},
	{"UpdatePreferences", (*GRPCServer).UpdatePreferences, false},
	{"ListSessions", (*GRPCServer).ListSessions, false},
	{"LogEvent", (*GRPCServer).LogEvent, false},
	{"QueryEvents", (*GRPCServer).QueryEvents, false},
	{"Journey", (*GRPCServer).Journey, false},
	{"FeatureAdoption", (*GRPCServer).FeatureAdoption, false},
	{"Segments", (*GRPCServer).Segments, false},
	{"Funnel", (*GRPCServer).Funnel, false},
	{"Retention", (*GRPCServer).Retention, false},
	{"Insights", (*GRPCServer).Insights, false},
	{"Statistics", (*GRPCServer).Statistics, false},
	{"Export", (*GRPCServer).Export, false},
}

var publicMethods = func() map[string]bool {
	m := make(map[string]bool)
	for _, md := range methods {
		if md.public {
			m[FullMethod(md.name)] = true
		}
	}
	return m
}()

// keeperServer is the handler type registered with grpc.
type keeperServer interface {
	keeper()
}

func (s *GRPCServer) keeper() {}

func methodHandler(name string, fn unaryFunc) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		s := srv.(*GRPCServer)
		if interceptor == nil {
			return fn(s, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return fn(s, ctx, req.(*structpb.Struct))
		})
	}
}

func serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*keeperServer)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "userkeeper/v1/keeper.proto",
	}
	for _, md := range methods {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: md.name,
			Handler:    methodHandler(md.name, md.fn),
		})
	}
	return desc
}
