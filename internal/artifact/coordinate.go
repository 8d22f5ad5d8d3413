package artifact

import (
	"fmt"
	"path"
	"strings"

	"github.com/bayleafwalker/depresolve/internal/version"
)

// DefaultType is assumed when a coordinate carries no type.
const DefaultType = "jar"

// Coordinate identifies an artifact. Version may hold a range spec while the
// coordinate is still being collected.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Type       string
}

// Key is the conflict identity of a coordinate: everything except the version.
type Key struct {
	GroupID    string
	ArtifactID string
	Classifier string
	Type       string
}

func (k Key) String() string {
	s := k.GroupID + ":" + k.ArtifactID + ":" + k.Type
	if k.Classifier != "" {
		s += ":" + k.Classifier
	}
	return s
}

func (c Coordinate) Key() Key {
	return Key{GroupID: c.GroupID, ArtifactID: c.ArtifactID, Classifier: c.Classifier, Type: c.typ()}
}

func (c Coordinate) typ() string {
	if c.Type == "" {
		return DefaultType
	}
	return c.Type
}

// String renders g:a:type[:classifier]:version.
func (c Coordinate) String() string {
	return c.Key().String() + ":" + c.Version
}

func (c Coordinate) WithVersion(v string) Coordinate {
	c.Version = v
	return c
}

func (c Coordinate) IsSnapshot() bool { return version.IsSnapshot(c.Version) }

// Extension maps the artifact type onto the file extension used in a
// repository layout.
func (c Coordinate) Extension() string {
	switch t := c.typ(); t {
	case "test-jar", "maven-plugin", "ejb", "ejb-client", "java-source", "javadoc", "bundle":
		return "jar"
	default:
		return t
	}
}

// Path returns the repository layout path of the artifact file:
// group/as/dirs/artifact/version/artifact-version[-classifier].ext
func (c Coordinate) Path() string {
	file := c.ArtifactID + "-" + c.Version
	if c.Classifier != "" {
		file += "-" + c.Classifier
	}
	file += "." + c.Extension()
	return path.Join(strings.ReplaceAll(c.GroupID, ".", "/"), c.ArtifactID, c.Version, file)
}

// Validate checks that the identifying fields are present.
func (c Coordinate) Validate() error {
	switch {
	case strings.TrimSpace(c.GroupID) == "":
		return fmt.Errorf("artifact: %q: %w", c.String(), ErrMissingGroup)
	case strings.TrimSpace(c.ArtifactID) == "":
		return fmt.Errorf("artifact: %q: %w", c.String(), ErrMissingArtifact)
	}
	return nil
}

// ParseCoordinate parses "g:a:v", "g:a:type:v" or "g:a:type:classifier:v".
func ParseCoordinate(raw string) (Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	var c Coordinate
	switch len(parts) {
	case 3:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Version: parts[2]}
	case 4:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Type: parts[2], Version: parts[3]}
	case 5:
		c = Coordinate{GroupID: parts[0], ArtifactID: parts[1], Type: parts[2], Classifier: parts[3], Version: parts[4]}
	default:
		return Coordinate{}, fmt.Errorf("artifact: parse coordinate %q: %w", raw, ErrBadCoordinate)
	}
	if c.Type == "" {
		c.Type = DefaultType
	}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

func MustParseCoordinate(raw string) Coordinate {
	c, err := ParseCoordinate(raw)
	if err != nil {
		panic(err)
	}
	return c
}
