package grpc

import (
	"context"
	"encoding/json"
	"net"

	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decode fills v from the JSON form of in. Unknown keys are ignored.
func decode(in *structpb.Struct, v any) error {
	b, err := protojson.Marshal(in)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	return nil
}

// encode turns v, which must marshal to a JSON object, into a Struct.
func encode(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

// clientInfo prefers what the caller reported and falls back to the
// transport peer and user-agent header.
func clientInfo(ctx context.Context, ip, userAgent string) models.ClientInfo {
	if ip == "" {
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			ip = p.Addr.String()
			if host, _, err := net.SplitHostPort(ip); err == nil {
				ip = host
			}
		}
	}
	if userAgent == "" {
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get("user-agent"); len(v) > 0 {
				userAgent = v[0]
			}
		}
	}
	return models.ClientInfo{IPAddress: ip, UserAgent: userAgent}
}
