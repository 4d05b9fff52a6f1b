package grpc

import (
	"context"

	"github.com/dmitrijs2005/userkeeper/internal/common"
	"github.com/dmitrijs2005/userkeeper/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const tokenInfoKey ctxKey = "tokenInfo"

// accessTokenInterceptor verifies the access token of every non-public
// method and stores the verified token in the context.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if publicMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	ti, err := s.sessions.VerifyToken(ctx, accessToken)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	ctx = context.WithValue(ctx, tokenInfoKey, ti)
	return handler(ctx, req)
}

func tokenInfo(ctx context.Context) (*models.TokenInfo, error) {
	ti, ok := ctx.Value(tokenInfoKey).(*models.TokenInfo)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	return ti, nil
}
