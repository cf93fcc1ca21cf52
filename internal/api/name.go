package api

import (
	"fmt"
	"strconv"
	"strings"
)

// segmentSeparator joins segments in the comparable key. It cannot appear in a
// segment, so two different segment lists never produce the same key.
const segmentSeparator = "\x1f"

// ServiceName is a hierarchical, ordered sequence of segments that uniquely
// identifies a service, e.g. "tether.bootstrap.marker.installed".
//
// ServiceName is an immutable value type: it is comparable with == and can be
// used directly as a map key. The zero value is the empty name and is never
// accepted by the registry.
type ServiceName struct {
	key string
}

// NewServiceName builds a name from the given segments.
//
// Args:
//   - segments: one or more non-empty segments
//
// Returns:
//   - ServiceName: the name
//   - error: if no segment was given or a segment is empty or contains a control separator
func NewServiceName(segments ...string) (ServiceName, error) {
	if len(segments) == 0 {
		return ServiceName{}, fmt.Errorf("service name needs at least one segment")
	}
	for _, s := range segments {
		if err := validateSegment(s); err != nil {
			return ServiceName{}, err
		}
	}
	return ServiceName{key: strings.Join(segments, segmentSeparator)}, nil
}

// MustServiceName is like NewServiceName but panics on invalid input.
// It is intended for package-level name constants.
func MustServiceName(segments ...string) ServiceName {
	n, err := NewServiceName(segments...)
	if err != nil {
		panic(err)
	}
	return n
}

func validateSegment(s string) error {
	if s == "" {
		return fmt.Errorf("service name segment must not be empty")
	}
	if strings.Contains(s, segmentSeparator) {
		return fmt.Errorf("service name segment %q contains a control character", s)
	}
	return nil
}

// ParseServiceName parses the canonical form produced by String. Segments are
// separated by dots; a segment that itself contains a dot must be quoted.
//
// Example:
//
//	n, err := api.ParseServiceName(`unit."org.example.core".active`)
//	// n.Segments() == []string{"unit", "org.example.core", "active"}
func ParseServiceName(s string) (ServiceName, error) {
	if s == "" {
		return ServiceName{}, fmt.Errorf("empty service name")
	}

	var segments []string
	for len(s) > 0 {
		var seg string
		if s[0] == '"' {
			quoted, err := strconv.QuotedPrefix(s)
			if err != nil {
				return ServiceName{}, fmt.Errorf("invalid quoted segment in %q: %w", s, err)
			}
			seg, err = strconv.Unquote(quoted)
			if err != nil {
				return ServiceName{}, fmt.Errorf("invalid quoted segment in %q: %w", s, err)
			}
			s = s[len(quoted):]
			if len(s) > 0 {
				if s[0] != '.' {
					return ServiceName{}, fmt.Errorf("expected '.' after quoted segment, got %q", s)
				}
				s = s[1:]
				if s == "" {
					return ServiceName{}, fmt.Errorf("service name must not end with '.'")
				}
			}
		} else {
			idx := strings.IndexByte(s, '.')
			if idx < 0 {
				seg, s = s, ""
			} else {
				seg, s = s[:idx], s[idx+1:]
				if s == "" {
					return ServiceName{}, fmt.Errorf("service name must not end with '.'")
				}
			}
		}
		segments = append(segments, seg)
	}

	return NewServiceName(segments...)
}

// Append returns a child name with the given segments added. It panics if a
// segment is invalid, mirroring MustServiceName.
func (n ServiceName) Append(segments ...string) ServiceName {
	if len(segments) == 0 {
		return n
	}
	child := MustServiceName(segments...)
	if n.key == "" {
		return child
	}
	return ServiceName{key: n.key + segmentSeparator + child.key}
}

// Parent returns the name without its last segment. The second return value
// is false for single-segment (root) names and the empty name.
func (n ServiceName) Parent() (ServiceName, bool) {
	idx := strings.LastIndex(n.key, segmentSeparator)
	if idx < 0 {
		return ServiceName{}, false
	}
	return ServiceName{key: n.key[:idx]}, true
}

// Segments returns a copy of the name's segments.
func (n ServiceName) Segments() []string {
	if n.key == "" {
		return nil
	}
	return strings.Split(n.key, segmentSeparator)
}

// Last returns the final segment.
func (n ServiceName) Last() string {
	idx := strings.LastIndex(n.key, segmentSeparator)
	return n.key[idx+1:]
}

// IsZero reports whether n is the empty name.
func (n ServiceName) IsZero() bool {
	return n.key == ""
}

// IsParentOf reports whether n is a strict ancestor of other.
func (n ServiceName) IsParentOf(other ServiceName) bool {
	if n.key == "" || len(other.key) <= len(n.key) {
		return false
	}
	return strings.HasPrefix(other.key, n.key+segmentSeparator)
}

// Compare orders names segment by segment. Shorter names sort before their
// children.
func (n ServiceName) Compare(other ServiceName) int {
	a, b := n.Segments(), other.Segments()
	for i := 0; i < len(a) && i < len(b); i++ {
		if c := strings.Compare(a[i], b[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// String returns the canonical, dot-separated form.
func (n ServiceName) String() string {
	segments := n.Segments()
	for i, s := range segments {
		if strings.ContainsAny(s, ".\"") {
			segments[i] = strconv.Quote(s)
		}
	}
	return strings.Join(segments, ".")
}

// MarshalText implements encoding.TextMarshaler.
func (n ServiceName) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *ServiceName) UnmarshalText(text []byte) error {
	parsed, err := ParseServiceName(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
