package grpcrepo

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/repository"
	"github.com/bayleafwalker/depresolve/internal/version"
)

// Client talks to one repository server.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

var (
	_ metadata.Source      = (*Client)(nil)
	_ repository.Transport = (*Client)(nil)
)

func (c *Client) Retrieve(ctx context.Context, coord artifact.Coordinate, _ []repository.Remote) (metadata.Descriptor, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, retrieveMethod, coordinateRequest(coord), out); err != nil {
		return metadata.Descriptor{}, fromStatus(coord, err, metadata.ErrNotFound)
	}
	return decodeDescriptor(out)
}

func (c *Client) AvailableVersions(ctx context.Context, coord artifact.Coordinate, _ []repository.Remote) ([]version.Version, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, availableVersionsMethod, coordinateRequest(coord), out); err != nil {
		return nil, fromStatus(coord, err, metadata.ErrNoVersions)
	}
	return decodeVersions(out)
}

func (c *Client) Fetch(ctx context.Context, coord artifact.Coordinate, remote repository.Remote, w io.Writer) error {
	_, err := c.FetchIfNewer(ctx, coord, remote, time.Time{}, w)
	return err
}

func (c *Client) FetchIfNewer(ctx context.Context, coord artifact.Coordinate, _ repository.Remote, since time.Time, w io.Writer) (bool, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fetchMethod, fetchRequest(coord, since), out); err != nil {
		return false, fromStatus(coord, err, repository.ErrNotFound)
	}
	modified, content, err := decodeContent(out)
	if err != nil || !modified {
		return false, err
	}
	if _, err := w.Write(content); err != nil {
		return false, fmt.Errorf("grpcrepo: write %s: %w", coord, err)
	}
	return true, nil
}

func fromStatus(coord artifact.Coordinate, err error, notFound error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("grpcrepo: %s: %w", coord, notFound)
	}
	return fmt.Errorf("grpcrepo: %s: %w", coord, err)
}

// Transport routes grpc:// remotes to lazily created clients, one per host.
type Transport struct {
	mu      sync.Mutex
	opts    []grpc.DialOption
	clients map[string]*Client
	conns   []*grpc.ClientConn
}

// NewTransport dials with opts, or with insecure credentials when none are
// given.
func NewTransport(opts ...grpc.DialOption) *Transport {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Transport{opts: opts, clients: map[string]*Client{}}
}

func (t *Transport) client(remote repository.Remote) (*Client, error) {
	u, err := url.Parse(remote.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("grpcrepo: repository %s: url %q: %w", remote.ID, remote.URL, repository.ErrBadURL)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.clients[u.Host]; ok {
		return c, nil
	}
	conn, err := grpc.NewClient(u.Host, t.opts...)
	if err != nil {
		return nil, fmt.Errorf("grpcrepo: dial %s: %w", u.Host, err)
	}
	c := NewClient(conn)
	t.clients[u.Host] = c
	t.conns = append(t.conns, conn)
	return c, nil
}

func (t *Transport) Fetch(ctx context.Context, coord artifact.Coordinate, remote repository.Remote, w io.Writer) error {
	c, err := t.client(remote)
	if err != nil {
		return err
	}
	return c.Fetch(ctx, coord, remote, w)
}

func (t *Transport) FetchIfNewer(ctx context.Context, coord artifact.Coordinate, remote repository.Remote, since time.Time, w io.Writer) (bool, error) {
	c, err := t.client(remote)
	if err != nil {
		return false, err
	}
	return c.FetchIfNewer(ctx, coord, remote, since, w)
}

// Close closes every connection the transport opened.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	var first error
	for _, conn := range t.conns {
		if err := conn.Close(); err != nil && first == nil {
			first = err
		}
	}
	t.conns, t.clients = nil, map[string]*Client{}
	return first
}
