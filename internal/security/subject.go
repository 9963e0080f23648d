package security

import "taskdesk/internal/acl"

type subjectKind int

const (
	subjectNone subjectKind = iota
	subjectID
	subjectSnapshot
	subjectOptions
)

// Snapshot is an already-loaded entity reduced to the facts voters read.
type Snapshot struct {
	CreatorID int64
	CompanyID int64
	ProjectID int64
	Public    bool
}

// Options carries precomputed relationship facts the caller assembles
// before asking a voter. Voters never fetch data themselves.
type Options struct {
	ProjectID int64

	// UserHasProject is the caller's grant for the relevant project,
	// nil when no grant exists.
	UserHasProject acl.Set

	// AllowedTaskIDs is the set of task ids already resolved as visible
	// to the caller.
	AllowedTaskIDs map[int64]struct{}

	// TaskID is the parent task a repeating task hangs off.
	TaskID int64
}

// Subject is the thing an authorization check is evaluated against:
// nothing (list-level), a bare id, an entity snapshot, or an options bag.
type Subject struct {
	kind     subjectKind
	id       int64
	snapshot Snapshot
	options  Options
}

// NoSubject is the list-level subject.
func NoSubject() Subject { return Subject{kind: subjectNone} }

// ByID wraps a bare resource id.
func ByID(id int64) Subject { return Subject{kind: subjectID, id: id} }

// BySnapshot wraps a loaded entity's snapshot.
func BySnapshot(s Snapshot) Subject { return Subject{kind: subjectSnapshot, snapshot: s} }

// ByOptions wraps a bag of precomputed facts.
func ByOptions(o Options) Subject { return Subject{kind: subjectOptions, options: o} }

func (s Subject) IsNone() bool { return s.kind == subjectNone }

func (s Subject) AsID() (int64, bool) {
	return s.id, s.kind == subjectID
}

func (s Subject) AsSnapshot() (Snapshot, bool) {
	return s.snapshot, s.kind == subjectSnapshot
}

func (s Subject) AsOptions() (Options, bool) {
	return s.options, s.kind == subjectOptions
}
