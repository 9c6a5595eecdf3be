package entities

import "fmt"

// TimeRange bounds the timestamp metadata field. Empty bounds are open.
// Comparison is lexicographic, so both bounds must use the same zero-padded ISO-8601 layout as the stored timestamps.
type TimeRange struct {
	Gte string `json:"$gte,omitempty"`
	Lte string `json:"$lte,omitempty"`
}

// FilterSpec is a conjunctive predicate over message metadata. Nil fields are unconstrained.
type FilterSpec struct {
	Sender    *string    `json:"sender,omitempty"`
	IsSystem  *bool      `json:"is_system,omitempty"`
	Timestamp *TimeRange `json:"timestamp,omitempty"`
}

// BySender filters on an exact sender name.
func BySender(name string) FilterSpec {
	return FilterSpec{Sender: &name}
}

// ByDateRange filters on start <= timestamp <= end.
func ByDateRange(start, end string) FilterSpec {
	return FilterSpec{Timestamp: &TimeRange{Gte: start, Lte: end}}
}

// BySystem filters on the system flag.
func BySystem(isSystem bool) FilterSpec {
	return FilterSpec{IsSystem: &isSystem}
}

// And merges two specs. Keys set on other replace the same keys on f.
func (f FilterSpec) And(other FilterSpec) FilterSpec {
	out := f
	if other.Sender != nil {
		out.Sender = other.Sender
	}
	if other.IsSystem != nil {
		out.IsSystem = other.IsSystem
	}
	if other.Timestamp != nil {
		out.Timestamp = other.Timestamp
	}
	return out
}

// IsEmpty reports whether the spec constrains nothing.
func (f FilterSpec) IsEmpty() bool {
	return f.Sender == nil && f.IsSystem == nil && f.Timestamp == nil
}

// Validate rejects predicates no index can evaluate.
func (f FilterSpec) Validate() error {
	if f.Timestamp != nil && f.Timestamp.Gte == "" && f.Timestamp.Lte == "" {
		return fmt.Errorf("timestamp range needs $gte or $lte: %w", ErrInvalidArgument)
	}
	if f.Timestamp != nil && f.Timestamp.Gte != "" && f.Timestamp.Lte != "" && f.Timestamp.Gte > f.Timestamp.Lte {
		return fmt.Errorf("timestamp range %q > %q: %w", f.Timestamp.Gte, f.Timestamp.Lte, ErrInvalidArgument)
	}
	return nil
}

// Matches evaluates the predicate against one record's metadata.
func (f FilterSpec) Matches(md Metadata) bool {
	if f.Sender != nil && md.Sender != *f.Sender {
		return false
	}
	if f.IsSystem != nil && md.IsSystem != *f.IsSystem {
		return false
	}
	if f.Timestamp != nil {
		if f.Timestamp.Gte != "" && md.Timestamp < f.Timestamp.Gte {
			return false
		}
		if f.Timestamp.Lte != "" && md.Timestamp > f.Timestamp.Lte {
			return false
		}
	}
	return true
}

// ComposeFilter builds the predicate actually sent to the index for a caller's filters.
// System messages are excluded unless the caller set IsSystem; an empty result means no filter.
func ComposeFilter(filters *FilterSpec) *FilterSpec {
	var composed FilterSpec
	if filters != nil {
		composed = *filters
	}
	if composed.IsSystem == nil {
		composed.IsSystem = boolPtr(false)
	}
	if composed.IsEmpty() {
		return nil
	}
	return &composed
}

func boolPtr(b bool) *bool { return &b }
