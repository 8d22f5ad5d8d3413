// Package config loads resolver and server settings from an optional file,
// DEPRESOLVE_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bayleafwalker/depresolve/internal/fetch"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

const EnvPrefix = "DEPRESOLVE"

type Settings struct {
	LocalRepository string       `mapstructure:"localRepository"`
	Offline         bool         `mapstructure:"offline"`
	ForceUpdate     bool         `mapstructure:"forceUpdate"`
	Workers         int          `mapstructure:"workers"`
	Repositories    []Repository `mapstructure:"repositories"`
	MetadataCache   Cache        `mapstructure:"metadataCache"`
	S3              S3           `mapstructure:"s3"`
	Server          Server       `mapstructure:"server"`
}

type Repository struct {
	ID        string `mapstructure:"id"`
	URL       string `mapstructure:"url"`
	Releases  Policy `mapstructure:"releases"`
	Snapshots Policy `mapstructure:"snapshots"`
}

// Policy leaves Enabled nil to mean enabled.
type Policy struct {
	Enabled        *bool  `mapstructure:"enabled"`
	UpdatePolicy   string `mapstructure:"updatePolicy"`
	ChecksumPolicy string `mapstructure:"checksumPolicy"`
}

type Cache struct {
	Size int           `mapstructure:"size"`
	TTL  time.Duration `mapstructure:"ttl"`
}

// S3 configures the transport for s3:// repositories; an empty endpoint
// leaves it unregistered.
type S3 struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"accessKey"`
	SecretKey string `mapstructure:"secretKey"`
	UseSSL    bool   `mapstructure:"useSSL"`
}

type Server struct {
	Listen      string `mapstructure:"listen"`
	MetricsAddr string `mapstructure:"metricsAddr"`
	ProbeAddr   string `mapstructure:"probeAddr"`
	Catalog     string `mapstructure:"catalog"`
	Root        string `mapstructure:"root"`
}

func Default() Settings {
	local := ".m2/repository"
	if home, err := os.UserHomeDir(); err == nil {
		local = filepath.Join(home, ".m2", "repository")
	}
	return Settings{
		LocalRepository: local,
		Workers:         fetch.DefaultWorkers,
		MetadataCache:   Cache{Size: 1024, TTL: 10 * time.Minute},
		S3:              S3{Region: "us-east-1"},
		Server: Server{
			Listen:      ":50051",
			MetricsAddr: ":8080",
			ProbeAddr:   ":8081",
		},
	}
}

// Load reads path if it is not empty, then applies environment overrides
// such as DEPRESOLVE_WORKERS or DEPRESOLVE_SERVER_LISTEN.
func Load(path string) (Settings, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("localRepository", defaults.LocalRepository)
	v.SetDefault("offline", defaults.Offline)
	v.SetDefault("forceUpdate", defaults.ForceUpdate)
	v.SetDefault("workers", defaults.Workers)
	v.SetDefault("repositories", []map[string]any{})
	v.SetDefault("metadataCache.size", defaults.MetadataCache.Size)
	v.SetDefault("metadataCache.ttl", defaults.MetadataCache.TTL)
	v.SetDefault("s3.endpoint", defaults.S3.Endpoint)
	v.SetDefault("s3.region", defaults.S3.Region)
	v.SetDefault("s3.accessKey", defaults.S3.AccessKey)
	v.SetDefault("s3.secretKey", defaults.S3.SecretKey)
	v.SetDefault("s3.useSSL", defaults.S3.UseSSL)
	v.SetDefault("server.listen", defaults.Server.Listen)
	v.SetDefault("server.metricsAddr", defaults.Server.MetricsAddr)
	v.SetDefault("server.probeAddr", defaults.Server.ProbeAddr)
	v.SetDefault("server.catalog", defaults.Server.Catalog)
	v.SetDefault("server.root", defaults.Server.Root)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

var (
	ErrNoLocalRepository = errors.New("localRepository is required")
	ErrDuplicateID       = errors.New("duplicate repository id")
)

func (s Settings) Validate() error {
	if strings.TrimSpace(s.LocalRepository) == "" {
		return fmt.Errorf("config: %w", ErrNoLocalRepository)
	}
	if s.Workers < 0 {
		return fmt.Errorf("config: workers must not be negative, got %d", s.Workers)
	}
	if s.MetadataCache.Size < 0 || s.MetadataCache.TTL < 0 {
		return fmt.Errorf("config: metadataCache size and ttl must not be negative")
	}
	_, err := s.Remotes()
	return err
}

// Remotes converts the configured repositories, in declaration order.
func (s Settings) Remotes() ([]repository.Remote, error) {
	seen := map[string]bool{}
	out := make([]repository.Remote, 0, len(s.Repositories))
	for _, r := range s.Repositories {
		remote := repository.NewRemote(strings.TrimSpace(r.ID), strings.TrimSpace(r.URL))
		if err := remote.Validate(); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if seen[remote.ID] {
			return nil, fmt.Errorf("config: %s: %w", remote.ID, ErrDuplicateID)
		}
		seen[remote.ID] = true

		var err error
		if remote.Releases, err = r.Releases.apply(remote.Releases); err != nil {
			return nil, fmt.Errorf("config: repository %s releases: %w", remote.ID, err)
		}
		if remote.Snapshots, err = r.Snapshots.apply(remote.Snapshots); err != nil {
			return nil, fmt.Errorf("config: repository %s snapshots: %w", remote.ID, err)
		}
		out = append(out, remote)
	}
	return out, nil
}

func (p Policy) apply(base repository.Policy) (repository.Policy, error) {
	if p.Enabled != nil {
		base.Enabled = *p.Enabled
	}
	if p.UpdatePolicy != "" {
		u, err := repository.ParseUpdatePolicy(p.UpdatePolicy)
		if err != nil {
			return base, err
		}
		base.Update = u
	}
	if p.ChecksumPolicy != "" {
		c, err := repository.ParseChecksumPolicy(p.ChecksumPolicy)
		if err != nil {
			return base, err
		}
		base.Checksum = c
	}
	return base, nil
}
