// Package watchkey defines the watch-key model used by the watch service:
// event kinds, the TopLevelKey/SubKey variants, the watch-descriptor
// registry owned by the poller, and the ready queue through which signaled
// keys are handed to callers.
//
// A TopLevelKey is created for every user registration. When modify
// interest is requested on a directory, the poller additionally creates
// one SubKey per regular file inside it; SubKey events are always
// delivered as Modify events through the owning TopLevelKey.
package watchkey

import "strings"

// InvalidWatchDescriptor is the sentinel value for a descriptor that was
// never assigned by the native event facility.
const InvalidWatchDescriptor = -1

// Kind describes a watch event kind. Kinds are bit flags so a set of
// requested kinds is expressed as their union.
type Kind uint32

// Watch event kinds.
const (
	Create   Kind = 1 << iota // entry created in a watched directory
	Delete                    // entry deleted from a watched directory
	Modify                    // watched file content changed
	Overflow                  // event producer lost records
)

// Has reports whether kind is contained in the set k.
func (k Kind) Has(kind Kind) bool {
	return k&kind != 0
}

// String returns a human-readable name for a single kind, or a
// comma-separated list for a set.
func (k Kind) String() string {
	if k == 0 {
		return "NONE"
	}

	names := make([]string, 0, 4)
	if k.Has(Create) {
		names = append(names, "CREATE")
	}
	if k.Has(Delete) {
		names = append(names, "DELETE")
	}
	if k.Has(Modify) {
		names = append(names, "MODIFY")
	}
	if k.Has(Overflow) {
		names = append(names, "OVERFLOW")
	}

	if len(names) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(names, ",")
}

// ParseKind maps a kind name (case-insensitive) to its Kind value.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "create":
		return Create, nil
	case "delete":
		return Delete, nil
	case "modify":
		return Modify, nil
	case "overflow":
		return Overflow, nil
	default:
		return 0, ErrUnknownKind
	}
}

// ParseKinds parses a comma-separated list of kind names into a set.
func ParseKinds(list string) (Kind, error) {
	var set Kind
	for _, name := range strings.Split(list, ",") {
		if name == "" {
			continue
		}
		kind, err := ParseKind(name)
		if err != nil {
			return 0, err
		}
		set |= kind
	}
	if set == 0 {
		return 0, ErrUnknownKind
	}
	return set, nil
}

// State describes the lifecycle state of a key. Cancelled is terminal.
type State uint8

// Key lifecycle states.
const (
	Active State = iota
	Cancelled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Active:
		return "ACTIVE"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Event is one signaled (kind, context) pair delivered through a
// TopLevelKey's pending queue.
type Event struct {
	// Kind is the event kind.
	Kind Kind

	// Name is the affected file name relative to the watched directory,
	// when the event producer reported one.
	Name string
}
