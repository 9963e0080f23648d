// Package filter compiles a declarative listing request into a
// normalized predicate set. The request is a flat key/value map (query
// parameters or a saved filter body); the output is a CompiledFilter
// with disjoint predicate buckets plus the canonical query-string
// fragment pagination links are rebuilt from.
//
// Two sentinel tokens change interpretation instead of carrying a
// literal id: "current-user" substitutes the caller's identity before
// bucket assignment, and "not" flips the whole field into the null-check
// or negated-membership bucket depending on how many tokens accompany it.
package filter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"taskdesk/internal/actor"
)

const (
	sentinelCurrentUser = "current-user"
	sentinelNot         = "not"
)

// Kind classifies a custom attribute's value shape.
type Kind int

const (
	KindOther Kind = iota
	KindCheckbox
	KindDate
)

// KindLookup resolves a custom attribute's declared kind. The second
// return is false for unknown attribute ids, which the compiler skips
// silently.
type KindLookup interface {
	AttributeKind(id int64) (Kind, bool)
}

// KindLookupFunc adapts a plain function to KindLookup.
type KindLookupFunc func(id int64) (Kind, bool)

func (f KindLookupFunc) AttributeKind(id int64) (Kind, bool) { return f(id) }

// DateRange is a half-open-or-closed time window; at least one side is
// set in every emitted entry.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) empty() bool { return r.From == nil && r.To == nil }

// NegatedIn excludes rows whose NotField matches any of Values. The
// query layer pairs it with an IS NULL escape on EqualField so rows
// without the relation survive the exclusion.
type NegatedIn struct {
	NotField   string
	EqualField string
	Values     []int64
}

// Fragment is one canonical "&field=value" piece of the pagination URL,
// holding the original pre-substitution text.
type Fragment struct {
	Field string
	Value string
}

// Compiled is the normalized output. A given field appears in at most
// one of Equal, In, IsNull and NegatedIn. Custom attributes get their
// own buckets keyed by attribute id.
type Compiled struct {
	Equal     map[string]int64
	In        map[string][]int64
	IsNull    []string
	DateRange map[string]DateRange
	NegatedIn []NegatedIn

	CustomEqual map[int64]int
	CustomDate  map[int64]DateRange
	CustomIn    map[int64][]string

	Search string

	fragments []Fragment
}

// Fragments returns the canonical fragments in field-processing order.
func (c *Compiled) Fragments() []Fragment { return c.fragments }

// URLFragment renders the fragments as a literal query-string suffix.
// The order is stable so regenerated pagination links stay identical.
func (c *Compiled) URLFragment() string {
	var b strings.Builder
	for _, f := range c.fragments {
		b.WriteString("&")
		b.WriteString(f.Field)
		b.WriteString("=")
		b.WriteString(f.Value)
	}
	return b.String()
}

// MalformedFilterError reports a token that cannot be parsed as its
// field's type. The surrounding HTTP layer maps it to a 4xx response.
type MalformedFilterError struct {
	Field  string
	Value  string
	Reason string
}

func (e MalformedFilterError) Error() string {
	return fmt.Sprintf("filter field %s: %s (value %q)", e.Field, e.Reason, e.Value)
}

// Compiler turns raw filter parameters into a Compiled set. Kinds backs
// the addedParameters lookup and Now anchors the NOW sentinel; both are
// injected so compilation stays a pure function of its inputs.
type Compiler struct {
	Kinds KindLookup
	Now   func() time.Time
}

// Task fields with current-user/not sentinel semantics, in processing
// order, mapped to the canonical column names the query layer consumes.
var sentinelFields = []struct {
	field  string
	column string
}{
	{"project", "project.id"},
	{"creator", "creator.id"},
	{"requester", "requester.id"},
	{"assigned", "assigned.id"},
	{"follower", "follower.id"},
	{"company", "company.id"},
}

// Plain id-list fields, no sentinel handling.
var plainFields = []struct {
	field  string
	column string
}{
	{"status", "status.id"},
	{"tag", "tag.id"},
}

// Date-range fields mapped to their timestamp columns.
var dateFields = []struct {
	field  string
	column string
}{
	{"createdTime", "task.created_at"},
	{"startedTime", "task.started_at"},
	{"deadlineTime", "task.deadline_at"},
	{"closedTime", "task.closed_at"},
}

func (c Compiler) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Compile normalizes params for the given actor. Unknown top-level
// fields are ignored; tokens that cannot be parsed for their field's
// type return a MalformedFilterError.
func (c Compiler) Compile(params map[string][]string, a *actor.Actor) (*Compiled, error) {
	out := &Compiled{
		Equal:       map[string]int64{},
		In:          map[string][]int64{},
		DateRange:   map[string]DateRange{},
		CustomEqual: map[int64]int{},
		CustomDate:  map[int64]DateRange{},
		CustomIn:    map[int64][]string{},
	}

	for _, f := range plainFields {
		raw, ok := rawValue(params, f.field)
		if !ok {
			continue
		}
		ids, err := parseIDList(f.field, raw)
		if err != nil {
			return nil, err
		}
		out.In[f.column] = ids
		out.appendFragment(f.field, raw)
	}

	for _, f := range sentinelFields {
		raw, ok := rawValue(params, f.field)
		if !ok {
			continue
		}
		if err := out.compileSentinelField(f.field, f.column, raw, a); err != nil {
			return nil, err
		}
		out.appendFragment(f.field, raw)
	}

	for _, f := range dateFields {
		raw, ok := rawValue(params, f.field)
		if !ok {
			continue
		}
		r, err := parseRange(f.field, raw, "=", c.now)
		if err != nil {
			return nil, err
		}
		if !r.empty() {
			out.DateRange[f.column] = r
		}
		out.appendFragment(f.field, raw)
	}

	// "archived" inverts onto the project's active flag; anything but a
	// true value is a silent no-op, matching how saved links behave when
	// the checkbox is cleared.
	if raw, ok := rawValue(params, "archived"); ok && strings.EqualFold(strings.TrimSpace(raw), "true") {
		out.Equal["project.is_active"] = 0
		out.appendFragment("archived", raw)
	}
	if raw, ok := rawValue(params, "important"); ok && strings.EqualFold(strings.TrimSpace(raw), "true") {
		out.Equal["task.important"] = 1
		out.appendFragment("important", raw)
	}

	if raw, ok := rawValue(params, "search"); ok && raw != "" {
		out.Search = raw
		out.appendFragment("search", raw)
	}

	// Repeated addedParameters entries are themselves "&"-delimited
	// pair lists, so they rejoin on "&" rather than ",".
	if vals, ok := params["addedParameters"]; ok {
		raw := strings.Join(vals, "&")
		if raw != "" {
			if err := out.compileAddedParameters(raw, c); err != nil {
				return nil, err
			}
			out.appendFragment("addedParameters", raw)
		}
	}

	return out, nil
}

func (out *Compiled) appendFragment(field, value string) {
	out.fragments = append(out.fragments, Fragment{Field: field, Value: value})
}

// rawValue joins all supplied values for a field back into one
// comma-delimited string, so array and scalar inputs tokenize the same.
func rawValue(params map[string][]string, field string) (string, bool) {
	vals, ok := params[field]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return strings.Join(vals, ","), true
}

func parseIDList(field, raw string) ([]int64, error) {
	var ids []int64
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return nil, MalformedFilterError{Field: field, Value: tok, Reason: "expected a numeric id"}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// compileSentinelField applies current-user substitution and the
// three-way not branch. Counting includes the not token itself: a lone
// "not" null-checks the field, "not" plus anything else negates the
// substituted id set.
func (out *Compiled) compileSentinelField(field, column, raw string, a *actor.Actor) error {
	tokens := strings.Split(raw, ",")
	hasNot := false
	total := 0
	var ids []int64
	for _, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		total++
		if strings.EqualFold(tok, sentinelNot) {
			hasNot = true
			continue
		}
		if strings.EqualFold(tok, sentinelCurrentUser) {
			sub, err := substituteCurrentUser(field, a)
			if err != nil {
				return err
			}
			ids = append(ids, sub...)
			continue
		}
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return MalformedFilterError{Field: field, Value: tok, Reason: "expected a numeric id or sentinel"}
		}
		ids = append(ids, id)
	}

	switch {
	case hasNot && total == 1:
		// the lone token was "not" itself: the field is required absent
		out.IsNull = append(out.IsNull, column)
	case hasNot && len(ids) > 0:
		out.NegatedIn = append(out.NegatedIn, NegatedIn{
			NotField:   column,
			EqualField: column,
			Values:     ids,
		})
	case hasNot:
		// "not" next to only junk tokens has no defined meaning
		return MalformedFilterError{Field: field, Value: raw, Reason: "negation requires ids or a lone not token"}
	case len(ids) > 0:
		out.In[column] = ids
	}
	return nil
}

func substituteCurrentUser(field string, a *actor.Actor) ([]int64, error) {
	if a == nil {
		return nil, MalformedFilterError{Field: field, Value: sentinelCurrentUser, Reason: "no authenticated actor to substitute"}
	}
	switch field {
	case "company":
		if a.CompanyID() == 0 {
			return nil, nil
		}
		return []int64{a.CompanyID()}, nil
	case "project":
		return a.OwnedProjects(), nil
	default:
		return []int64{a.ID()}, nil
	}
}

// compileAddedParameters handles the dynamic custom-attribute block:
// "attrId=value&attrId2=value2...". Unknown or non-numeric attribute
// ids are skipped; the attribute's declared kind picks the bucket.
func (out *Compiled) compileAddedParameters(raw string, c Compiler) error {
	for _, pair := range strings.Split(raw, "&") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		attrID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			continue
		}
		if c.Kinds == nil {
			continue
		}
		kind, known := c.Kinds.AttributeKind(attrID)
		if !known {
			continue
		}
		switch kind {
		case KindCheckbox:
			switch {
			case strings.EqualFold(value, "true"):
				out.CustomEqual[attrID] = 1
			case strings.EqualFold(value, "false"):
				out.CustomEqual[attrID] = 0
			default:
				return MalformedFilterError{Field: "addedParameters", Value: value, Reason: "checkbox attribute expects true or false"}
			}
		case KindDate:
			r, err := parseRange("addedParameters", value, ":", c.now)
			if err != nil {
				return err
			}
			if !r.empty() {
				out.CustomDate[attrID] = r
			}
		default:
			var vals []string
			for _, v := range strings.Split(value, ",") {
				v = strings.TrimSpace(v)
				if v != "" {
					vals = append(vals, v)
				}
			}
			if len(vals) > 0 {
				out.CustomIn[attrID] = vals
			}
		}
	}
	return nil
}

// parseRange extracts a FROM/TO window by keyword position: everything
// between "FROM<sep>" and "TO<sep>" is the lower bound, everything after
// "TO<sep>" the upper. Keywords are case-insensitive; a missing half
// stays nil; TO accepts NOW, resolved against the injected clock at
// compile time.
func parseRange(field, raw string, sep string, now func() time.Time) (DateRange, error) {
	upper := strings.ToUpper(raw)
	fromKey := "FROM" + sep
	toKey := "TO" + sep
	idxFrom := strings.Index(upper, fromKey)
	idxTo := strings.Index(upper, toKey)

	var r DateRange
	if idxFrom >= 0 {
		start := idxFrom + len(fromKey)
		end := len(raw)
		if idxTo > idxFrom {
			end = idxTo
		}
		text := strings.TrimSpace(raw[start:end])
		if text != "" {
			secs, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return DateRange{}, MalformedFilterError{Field: field, Value: text, Reason: "FROM expects an epoch timestamp"}
			}
			t := time.Unix(secs, 0).UTC()
			r.From = &t
		}
	}
	if idxTo >= 0 {
		start := idxTo + len(toKey)
		end := len(raw)
		if idxFrom > idxTo {
			end = idxFrom
		}
		text := strings.TrimSpace(raw[start:end])
		if text != "" {
			if strings.EqualFold(text, "now") {
				t := now().UTC()
				r.To = &t
			} else {
				secs, err := strconv.ParseInt(text, 10, 64)
				if err != nil {
					return DateRange{}, MalformedFilterError{Field: field, Value: text, Reason: "TO expects an epoch timestamp or NOW"}
				}
				t := time.Unix(secs, 0).UTC()
				r.To = &t
			}
		}
	}
	return r, nil
}
