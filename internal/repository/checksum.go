package repository

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bayleafwalker/depresolve/internal/artifact"
)

// ChecksumPolicy decides what a failed checksum verification means for a
// download.
type ChecksumPolicy string

const (
	ChecksumFail   ChecksumPolicy = "fail"
	ChecksumWarn   ChecksumPolicy = "warn"
	ChecksumIgnore ChecksumPolicy = "ignore"
)

// ParseChecksumPolicy parses "fail", "warn" or "ignore". An empty string
// means warn.
func ParseChecksumPolicy(raw string) (ChecksumPolicy, error) {
	switch p := ChecksumPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return ChecksumWarn, nil
	case ChecksumFail, ChecksumWarn, ChecksumIgnore:
		return p, nil
	}
	return "", fmt.Errorf("repository: checksum policy %q: %w", raw, ErrBadPolicy)
}

func (p ChecksumPolicy) String() string {
	if p == "" {
		return string(ChecksumWarn)
	}
	return string(p)
}

// ChecksumFile returns the coordinate of the SHA-1 file published next to
// the file of c.
func ChecksumFile(c artifact.Coordinate) artifact.Coordinate {
	c.Type = c.Extension() + checksumSuffix
	return c
}

// ParseChecksum extracts the digest from the contents of a checksum file.
// Both "digest  name" and "SHA1 (name) = digest" layouts are accepted.
func ParseChecksum(raw string) string {
	s := strings.TrimSpace(raw)
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "MD") || strings.HasPrefix(upper, "SHA") {
		return s[strings.LastIndexByte(s, ' ')+1:]
	}
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i]
	}
	return s
}

// VerifyChecksum fetches the SHA-1 that remote publishes for c and compares
// it with actual. Failures wrap ErrChecksumFailed and never ErrNotFound.
func VerifyChecksum(ctx context.Context, t Transport, c artifact.Coordinate, remote Remote, actual string) error {
	var buf bytes.Buffer
	if err := t.Fetch(ctx, ChecksumFile(c), remote, &buf); err != nil {
		return fmt.Errorf("%w: retrieving checksum of %s from %s: %v", ErrChecksumFailed, c, remote.ID, err)
	}
	expected := ParseChecksum(buf.String())
	if !strings.EqualFold(expected, actual) {
		return fmt.Errorf("%w: %s from %s: local %q, remote %q", ErrChecksumFailed, c, remote.ID, actual, expected)
	}
	return nil
}
