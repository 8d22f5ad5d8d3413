package metadata

import (
	"fmt"
	"os"
	"sort"

	"sigs.k8s.io/yaml"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/repository"
)

// Catalog is the YAML/JSON document form of a Static source:
//
//	artifacts:
//	- coordinate: org.example:app:1.0
//	  dependencies:
//	  - coordinate: org.example:lib:[1.0,2.0)
//	    scope: runtime
//	    exclusions: ["org.unwanted:*"]
//	  managed:
//	  - coordinate: org.example:util:2.1
//	  repositories:
//	  - id: internal
//	    url: https://repo.example.org/maven
type Catalog struct {
	Artifacts []CatalogEntry `json:"artifacts"`
}

type CatalogEntry struct {
	Coordinate   string              `json:"coordinate"`
	Dependencies []CatalogDependency `json:"dependencies,omitempty"`
	Managed      []CatalogDependency `json:"managed,omitempty"`
	Repositories []CatalogRepository `json:"repositories,omitempty"`
}

type CatalogDependency struct {
	Coordinate string   `json:"coordinate"`
	Scope      string   `json:"scope,omitempty"`
	Optional   bool     `json:"optional,omitempty"`
	Exclusions []string `json:"exclusions,omitempty"`
	SystemPath string   `json:"systemPath,omitempty"`
}

type CatalogRepository struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Releases  string `json:"releases,omitempty"`
	Snapshots string `json:"snapshots,omitempty"`
}

// LoadCatalog reads a catalogue file into a new Static source.
func LoadCatalog(path string) (*Static, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metadata: read catalog: %w", err)
	}
	return ParseCatalog(raw)
}

// ParseCatalog decodes a YAML or JSON catalogue.
func ParseCatalog(raw []byte) (*Static, error) {
	var cat Catalog
	if err := yaml.UnmarshalStrict(raw, &cat); err != nil {
		return nil, fmt.Errorf("metadata: decode catalog: %w", err)
	}
	s := NewStatic()
	for i, entry := range cat.Artifacts {
		c, d, err := entry.descriptor()
		if err != nil {
			return nil, fmt.Errorf("metadata: catalog entry %d: %w", i, err)
		}
		if err := s.Add(c, d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewCatalogEntry renders the descriptor of c in catalogue form. Managed
// entries are sorted by key.
func NewCatalogEntry(c artifact.Coordinate, d Descriptor) CatalogEntry {
	e := CatalogEntry{Coordinate: c.String()}
	for _, decl := range d.Dependencies {
		e.Dependencies = append(e.Dependencies, catalogDependency(decl.Coordinate, decl.Scope, decl.Optional, decl.Exclusions, decl.SystemPath))
	}
	keys := make([]artifact.Key, 0, len(d.Managed))
	for k := range d.Managed {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	for _, k := range keys {
		m := d.Managed[k]
		c := artifact.Coordinate{GroupID: k.GroupID, ArtifactID: k.ArtifactID, Classifier: k.Classifier, Type: k.Type, Version: m.Version}
		e.Managed = append(e.Managed, catalogDependency(c, m.Scope, false, m.Exclusions, m.SystemPath))
	}
	for _, r := range d.Repositories {
		e.Repositories = append(e.Repositories, CatalogRepository{
			ID:        r.ID,
			URL:       r.URL,
			Releases:  policyString(r.Releases),
			Snapshots: policyString(r.Snapshots),
		})
	}
	return e
}

func catalogDependency(c artifact.Coordinate, scope artifact.Scope, optional bool, exclusions []artifact.Exclusion, systemPath string) CatalogDependency {
	d := CatalogDependency{Coordinate: c.String(), Scope: string(scope), Optional: optional, SystemPath: systemPath}
	for _, x := range exclusions {
		d.Exclusions = append(d.Exclusions, x.String())
	}
	return d
}

func policyString(p repository.Policy) string {
	if !p.Enabled {
		return "disabled"
	}
	return p.Update.String()
}

// Descriptor decodes e back into a coordinate and its descriptor.
func (e CatalogEntry) Descriptor() (artifact.Coordinate, Descriptor, error) {
	return e.descriptor()
}

func (e CatalogEntry) descriptor() (artifact.Coordinate, Descriptor, error) {
	c, err := artifact.ParseCoordinate(e.Coordinate)
	if err != nil {
		return artifact.Coordinate{}, Descriptor{}, err
	}
	var d Descriptor
	for _, dep := range e.Dependencies {
		decl, err := dep.declaration()
		if err != nil {
			return c, d, err
		}
		d.Dependencies = append(d.Dependencies, decl)
	}
	if len(e.Managed) > 0 {
		d.Managed = artifact.ManagedVersions{}
		for _, m := range e.Managed {
			decl, err := m.declaration()
			if err != nil {
				return c, d, err
			}
			d.Managed[decl.Coordinate.Key()] = artifact.Managed{
				Version:    decl.Coordinate.Version,
				Scope:      decl.Scope,
				Exclusions: decl.Exclusions,
				SystemPath: decl.SystemPath,
			}
		}
	}
	for _, r := range e.Repositories {
		remote, err := r.remote()
		if err != nil {
			return c, d, err
		}
		d.Repositories = append(d.Repositories, remote)
	}
	return c, d, nil
}

func (d CatalogDependency) declaration() (Declaration, error) {
	c, err := artifact.ParseCoordinate(d.Coordinate)
	if err != nil {
		return Declaration{}, err
	}
	scope := artifact.Scope(d.Scope)
	if !scope.Valid() {
		return Declaration{}, fmt.Errorf("dependency %s: unknown scope %q", d.Coordinate, d.Scope)
	}
	decl := Declaration{Coordinate: c, Scope: scope, Optional: d.Optional, SystemPath: d.SystemPath}
	for _, x := range d.Exclusions {
		decl.Exclusions = append(decl.Exclusions, artifact.ParseExclusion(x))
	}
	return decl, nil
}

func (r CatalogRepository) remote() (repository.Remote, error) {
	remote := repository.NewRemote(r.ID, r.URL)
	for _, p := range []struct {
		raw    string
		target *repository.Policy
	}{{r.Releases, &remote.Releases}, {r.Snapshots, &remote.Snapshots}} {
		switch p.raw {
		case "":
		case "disabled":
			p.target.Enabled = false
		default:
			u, err := repository.ParseUpdatePolicy(p.raw)
			if err != nil {
				return remote, err
			}
			p.target.Update = u
		}
	}
	return remote, remote.Validate()
}
