package grpcrepo

import (
	"bytes"
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

// Server answers metadata queries from a Source and serves artifact files
// from a directory in repository layout.
type Server struct {
	source metadata.Source
	files  repository.Transport
	remote repository.Remote
}

// NewServer serves metadata from source and files below root.
func NewServer(source metadata.Source, root string) *Server {
	return &Server{
		source: source,
		files:  repository.FileTransport{},
		remote: repository.NewRemote("local", root),
	}
}

var _ RepositoryServer = (*Server)(nil)

func (s *Server) Retrieve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	c, err := requestCoordinate(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	d, err := s.source.Retrieve(ctx, c, nil)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := encodeDescriptor(c, d)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) AvailableVersions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	c, err := requestCoordinate(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	list, err := s.source.AvailableVersions(ctx, c, nil)
	if err != nil {
		return nil, toStatus(err)
	}
	return encodeVersions(list), nil
}

func (s *Server) Fetch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	c, err := requestCoordinate(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	since, err := requestSince(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var buf bytes.Buffer
	modified, err := s.files.FetchIfNewer(ctx, c, s.remote, since, &buf)
	if err != nil {
		return nil, toStatus(err)
	}
	log.FromContext(ctx).V(1).Info("served artifact", "artifact", c.String(), "modified", modified, "bytes", buf.Len())
	return encodeContent(modified, buf.Bytes()), nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, metadata.ErrNotFound), errors.Is(err, metadata.ErrNoVersions), errors.Is(err, repository.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
