package grpcrepo

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/bayleafwalker/depresolve/internal/artifact"
	"github.com/bayleafwalker/depresolve/internal/metadata"
	"github.com/bayleafwalker/depresolve/internal/version"
)

const (
	fieldCoordinate = "coordinate"
	fieldVersions   = "versions"
	fieldSince      = "since"
	fieldModified   = "modified"
	fieldContent    = "content"
)

func coordinateRequest(c artifact.Coordinate) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldCoordinate: structpb.NewStringValue(c.String()),
	}}
}

func fetchRequest(c artifact.Coordinate, since time.Time) *structpb.Struct {
	s := coordinateRequest(c)
	if !since.IsZero() {
		s.Fields[fieldSince] = structpb.NewStringValue(since.UTC().Format(time.RFC3339Nano))
	}
	return s
}

func requestCoordinate(s *structpb.Struct) (artifact.Coordinate, error) {
	raw := s.GetFields()[fieldCoordinate].GetStringValue()
	return artifact.ParseCoordinate(raw)
}

func requestSince(s *structpb.Struct) (time.Time, error) {
	raw := s.GetFields()[fieldSince].GetStringValue()
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, raw)
}

// encodeDescriptor carries d in the catalogue entry layout.
func encodeDescriptor(c artifact.Coordinate, d metadata.Descriptor) (*structpb.Struct, error) {
	raw, err := json.Marshal(metadata.NewCatalogEntry(c, d))
	if err != nil {
		return nil, err
	}
	s := &structpb.Struct{}
	if err := s.UnmarshalJSON(raw); err != nil {
		return nil, err
	}
	return s, nil
}

func decodeDescriptor(s *structpb.Struct) (metadata.Descriptor, error) {
	raw, err := s.MarshalJSON()
	if err != nil {
		return metadata.Descriptor{}, err
	}
	var entry metadata.CatalogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return metadata.Descriptor{}, fmt.Errorf("grpcrepo: decode descriptor: %w", err)
	}
	_, d, err := entry.Descriptor()
	return d, err
}

func encodeVersions(list []version.Version) *structpb.Struct {
	values := make([]*structpb.Value, 0, len(list))
	for _, v := range list {
		values = append(values, structpb.NewStringValue(v.String()))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldVersions: structpb.NewListValue(&structpb.ListValue{Values: values}),
	}}
}

func decodeVersions(s *structpb.Struct) ([]version.Version, error) {
	var out []version.Version
	for _, v := range s.GetFields()[fieldVersions].GetListValue().GetValues() {
		parsed, err := version.Parse(v.GetStringValue())
		if err != nil {
			return nil, fmt.Errorf("grpcrepo: decode versions: %w", err)
		}
		out = append(out, parsed)
	}
	return out, nil
}

func encodeContent(modified bool, content []byte) *structpb.Struct {
	s := &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldModified: structpb.NewBoolValue(modified),
	}}
	if modified {
		s.Fields[fieldContent] = structpb.NewStringValue(base64.StdEncoding.EncodeToString(content))
	}
	return s
}

func decodeContent(s *structpb.Struct) (bool, []byte, error) {
	if !s.GetFields()[fieldModified].GetBoolValue() {
		return false, nil, nil
	}
	content, err := base64.StdEncoding.DecodeString(s.GetFields()[fieldContent].GetStringValue())
	if err != nil {
		return false, nil, fmt.Errorf("grpcrepo: decode content: %w", err)
	}
	return true, content, nil
}
