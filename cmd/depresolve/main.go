package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/config"
	"github.com/bayleafwalker/depresolve/internal/listener"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/repository/grpcrepo"
	"github.com/bayleafwalker/depresolve/internal/resolution"
	"github.com/bayleafwalker/depresolve/internal/resolver"
)

type options struct {
	configPath string
	catalog    string
	server     string
	scope      string
	offline    bool
	force      bool
	collect    bool
	withRoot   bool
	tree       bool
	dotPath    string
	trace      bool
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to a settings file.")
	flag.StringVar(&o.catalog, "catalog", "", "Metadata catalogue file.")
	flag.StringVar(&o.server, "server", "", "Repository server address; metadata is read from it instead of a catalogue.")
	flag.StringVar(&o.scope, "scope", "runtime", "Classpath scope to resolve: compile, runtime or test.")
	flag.BoolVar(&o.offline, "offline", false, "Never contact remote repositories.")
	flag.BoolVar(&o.force, "force-update", false, "Re-check every remote regardless of update policy.")
	flag.BoolVar(&o.collect, "collect-only", false, "Build the dependency tree without fetching files.")
	flag.BoolVar(&o.withRoot, "resolve-root", false, "Also fetch the root artifact.")
	flag.BoolVar(&o.tree, "tree", false, "Print the dependency tree.")
	flag.StringVar(&o.dotPath, "dot", "", "Write the dependency graph in DOT format to this file.")
	flag.BoolVar(&o.trace, "trace", false, "Log every collector decision.")

	zapOpts := zap.Options{Development: true}
	zapOpts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&zapOpts)))
	logger := ctrl.Log.WithName("depresolve")

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: depresolve [flags] group:artifact[:type[:classifier]]:version")
		os.Exit(2)
	}

	ctx := log.IntoContext(ctrl.SetupSignalHandler(), logger)
	if err := run(ctx, o, flag.Arg(0), os.Stdout); err != nil {
		logger.Error(err, "resolution failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, rootCoord string, out io.Writer) error {
	root, err := artifact.ParseCoordinate(rootCoord)
	if err != nil {
		return err
	}
	scope := artifact.Scope(strings.ToLower(o.scope))
	if !scope.Valid() {
		return fmt.Errorf("unknown scope %q", o.scope)
	}

	settings, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	remotes, err := settings.Remotes()
	if err != nil {
		return err
	}

	source, closeSource, err := openSource(o)
	if err != nil {
		return err
	}
	defer closeSource()

	local, err := repository.NewLocal(settings.LocalRepository, nil)
	if err != nil {
		return err
	}
	router, closer, err := settings.Router()
	if err != nil {
		return err
	}
	defer closer.Close()

	opts := []resolver.Option{resolver.WithWorkers(settings.Workers)}
	if settings.MetadataCache.Size > 0 {
		opts = append(opts, resolver.WithMetadataCache(settings.MetadataCache.Size, settings.MetadataCache.TTL))
	}
	r := resolver.NewDefault(source, local, router, opts...)

	req := resolver.Request{
		Root:                root,
		Repositories:        remotes,
		Offline:             settings.Offline || o.offline,
		ForceUpdate:         settings.ForceUpdate || o.force,
		ResolveRoot:         o.withRoot,
		ResolveTransitively: true,
		ResolutionFilter:    artifact.NewScopeFilter(scope),
	}
	if o.trace {
		req.Listeners = append(req.Listeners, listener.Debug(log.FromContext(ctx).WithName("collector")))
	}

	var result *resolution.Result
	if o.collect {
		result, err = r.Collect(ctx, req)
	} else {
		result, err = r.Resolve(ctx, req)
	}
	if err != nil {
		return err
	}

	if err := report(result, o, out); err != nil {
		return err
	}
	return resolution.DefaultErrorHandler{}.Handle(result)
}

func openSource(o options) (metadata.Source, func(), error) {
	switch {
	case o.server != "":
		conn, err := grpc.NewClient(o.server, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", o.server, err)
		}
		return grpcrepo.NewClient(conn), func() { conn.Close() }, nil
	case o.catalog != "":
		catalog, err := metadata.LoadCatalog(o.catalog)
		if err != nil {
			return nil, nil, err
		}
		return catalog, func() {}, nil
	}
	return nil, nil, fmt.Errorf("either -catalog or -server is required")
}

func report(result *resolution.Result, o options, out io.Writer) error {
	g := result.Graph()
	if o.tree && g != nil {
		if err := g.Render(out); err != nil {
			return err
		}
	}
	if o.dotPath != "" && g != nil {
		f, err := os.Create(o.dotPath)
		if err != nil {
			return err
		}
		if err := g.WriteDOT(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	for _, a := range result.Artifacts() {
		line := fmt.Sprintf("%s:%s", a.Coordinate, a.Scope.OrDefault())
		if a.Resolved {
			line += " -> " + a.File
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return err
		}
	}
	return nil
}
