// Package grpcrepo exposes a metadata source and an artifact directory over
// gRPC, and implements the client side as both a metadata.Source and a
// repository.Transport.
//
// Messages are google.protobuf.Struct values; the field layout of
// descriptors follows the metadata catalogue format.
package grpcrepo

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "depresolve.repository.v1.Repository"

const (
	retrieveMethod          = "/" + ServiceName + "/Retrieve"
	availableVersionsMethod = "/" + ServiceName + "/AvailableVersions"
	fetchMethod             = "/" + ServiceName + "/Fetch"
)

// RepositoryServer is the server API of the repository service.
type RepositoryServer interface {
	Retrieve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AvailableVersions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Fetch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterRepositoryServer(s grpc.ServiceRegistrar, srv RepositoryServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unaryHandler(method string, call func(RepositoryServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RepositoryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RepositoryServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RepositoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Retrieve", Handler: unaryHandler(retrieveMethod, RepositoryServer.Retrieve)},
		{MethodName: "AvailableVersions", Handler: unaryHandler(availableVersionsMethod, RepositoryServer.AvailableVersions)},
		{MethodName: "Fetch", Handler: unaryHandler(fetchMethod, RepositoryServer.Fetch)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "depresolve/repository/v1/repository.proto",
}
