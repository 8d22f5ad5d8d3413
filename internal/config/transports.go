package config

import (
	"fmt"
	"io"

	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/repository/grpcrepo"
	"github.com/bayleafwalker/depresolve/internal/repository/httprepo"
	"github.com/bayleafwalker/depresolve/internal/repository/s3repo"
)

// Router returns a transport for every supported scheme. The closer releases
// gRPC connections opened on demand.
func (s Settings) Router() (*repository.Router, io.Closer, error) {
	router := repository.NewRouter()
	router.Register(httprepo.New(), "http", "https")

	if s.S3.Endpoint != "" {
		tr, err := s3repo.New(s3repo.Config{
			Endpoint:  s.S3.Endpoint,
			Region:    s.S3.Region,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			UseSSL:    s.S3.UseSSL,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("config: s3: %w", err)
		}
		router.Register(tr, "s3")
	}

	grpcTransport := grpcrepo.NewTransport()
	router.Register(grpcTransport, "grpc")
	return router, grpcTransport, nil
}
