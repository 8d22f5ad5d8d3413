package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type UpdateKind string

const (
	UpdateAlways   UpdateKind = "always"
	UpdateDaily    UpdateKind = "daily"
	UpdateInterval UpdateKind = "interval"
	UpdateNever    UpdateKind = "never"
)

// UpdatePolicy decides when a cached copy must be re-checked remotely.
type UpdatePolicy struct {
	Kind     UpdateKind
	Interval time.Duration
}

// ParseUpdatePolicy parses "always", "daily", "never" or "interval:N" with N
// in minutes. An empty string means daily.
func ParseUpdatePolicy(raw string) (UpdatePolicy, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", string(UpdateDaily):
		return UpdatePolicy{Kind: UpdateDaily}, nil
	case string(UpdateAlways):
		return UpdatePolicy{Kind: UpdateAlways}, nil
	case string(UpdateNever):
		return UpdatePolicy{Kind: UpdateNever}, nil
	}
	if rest, ok := strings.CutPrefix(s, string(UpdateInterval)+":"); ok {
		minutes, err := strconv.Atoi(rest)
		if err != nil || minutes < 0 {
			return UpdatePolicy{}, fmt.Errorf("repository: update policy %q: %w", raw, ErrBadPolicy)
		}
		return UpdatePolicy{Kind: UpdateInterval, Interval: time.Duration(minutes) * time.Minute}, nil
	}
	return UpdatePolicy{}, fmt.Errorf("repository: update policy %q: %w", raw, ErrBadPolicy)
}

// UpdateRequired reports whether a copy last checked at lastChecked is stale
// at now. A zero lastChecked always requires an update.
func (p UpdatePolicy) UpdateRequired(lastChecked, now time.Time) bool {
	if lastChecked.IsZero() {
		return true
	}
	switch p.Kind {
	case UpdateAlways:
		return true
	case UpdateNever:
		return false
	case UpdateInterval:
		return lastChecked.Add(p.Interval).Before(now)
	default:
		y, m, d := now.Date()
		midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
		return lastChecked.Before(midnight)
	}
}

func (p UpdatePolicy) String() string {
	if p.Kind == UpdateInterval {
		return fmt.Sprintf("%s:%d", UpdateInterval, int(p.Interval/time.Minute))
	}
	if p.Kind == "" {
		return string(UpdateDaily)
	}
	return string(p.Kind)
}
