package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/healthz"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"
	"sigs.k8s.io/controller-runtime/pkg/metrics"

	"github.com/bayleafwalker/depresolve/internal/config"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository/grpcrepo"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	var configPath string
	var catalogPath string
	var rootDir string

	flag.StringVar(&configPath, "config", "", "Path to a settings file (YAML, JSON or TOML).")
	flag.StringVar(&catalogPath, "catalog", "", "Metadata catalogue to serve. Overrides server.catalog.")
	flag.StringVar(&rootDir, "root", "", "Repository directory to serve files from. Overrides server.root.")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		setupLog.Error(err, "unable to read .env file")
	}

	settings, err := config.Load(configPath)
	if err != nil {
		setupLog.Error(err, "unable to load settings")
		os.Exit(1)
	}
	if catalogPath != "" {
		settings.Server.Catalog = catalogPath
	}
	if rootDir != "" {
		settings.Server.Root = rootDir
	}
	if settings.Server.Root == "" {
		setupLog.Error(errors.New("server.root is required"), "invalid settings")
		os.Exit(1)
	}

	var (
		source  metadata.Source = metadata.NewStatic()
		catalog *metadata.CatalogFile
		cache   *metadata.Cached
	)
	if settings.Server.Catalog != "" {
		catalog, err = metadata.OpenCatalog(settings.Server.Catalog)
		if err != nil {
			setupLog.Error(err, "unable to load catalogue", "path", settings.Server.Catalog)
			os.Exit(1)
		}
		setupLog.Info("loaded catalogue", "path", settings.Server.Catalog, "artifacts", catalog.Len())
		source = catalog
	}
	if settings.MetadataCache.Size > 0 {
		cache = metadata.NewCached(source, settings.MetadataCache.Size, settings.MetadataCache.TTL)
		source = cache
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor))
	grpcrepo.RegisterRepositoryServer(grpcServer, grpcrepo.NewServer(source, settings.Server.Root))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: settings.Server.MetricsAddr, Handler: metricsMux, ReadHeaderTimeout: 10 * time.Second}

	checks := &healthz.Handler{Checks: map[string]healthz.Checker{"ping": healthz.Ping}}
	probeMux := http.NewServeMux()
	probeMux.Handle("/healthz/", http.StripPrefix("/healthz", checks))
	probeMux.Handle("/readyz/", http.StripPrefix("/readyz", checks))
	probeServer := &http.Server{Addr: settings.Server.ProbeAddr, Handler: probeMux, ReadHeaderTimeout: 10 * time.Second}

	lis, err := net.Listen("tcp", settings.Server.Listen)
	if err != nil {
		setupLog.Error(err, "unable to listen", "address", settings.Server.Listen)
		os.Exit(1)
	}

	ctx := ctrl.SetupSignalHandler()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		setupLog.Info("serving repository", "address", lis.Addr().String(), "root", settings.Server.Root)
		healthServer.SetServingStatus(grpcrepo.ServiceName, healthpb.HealthCheckResponse_SERVING)
		return grpcServer.Serve(lis)
	})
	for _, srv := range []*http.Server{metricsServer, probeServer} {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	if catalog != nil {
		g.Go(func() error {
			err := catalog.Watch(log.IntoContext(ctx, ctrl.Log.WithName("catalog")), func() {
				if cache != nil {
					cache.Purge()
				}
			})
			if err != nil {
				setupLog.Error(err, "catalogue reloading disabled")
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return errors.Join(metricsServer.Shutdown(shutdownCtx), probeServer.Shutdown(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		setupLog.Error(err, "problem running repository server")
		os.Exit(1)
	}
}

// loggingInterceptor attaches a request-scoped logger to the handler context.
func loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	logger := ctrl.Log.WithName("repository").WithValues("method", info.FullMethod)
	start := time.Now()
	resp, err := handler(log.IntoContext(ctx, logger), req)
	if err != nil {
		logger.V(1).Info("request failed", "error", err.Error(), "durationMs", time.Since(start).Milliseconds())
	}
	return resp, err
}
