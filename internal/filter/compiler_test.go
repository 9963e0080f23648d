package filter

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"taskdesk/internal/acl"
	"taskdesk/internal/actor"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testCompiler(kinds map[int64]Kind) Compiler {
	return Compiler{
		Kinds: KindLookupFunc(func(id int64) (Kind, bool) {
			k, ok := kinds[id]
			return k, ok
		}),
		Now: func() time.Time { return fixedNow },
	}
}

func testActor() *actor.Actor {
	return actor.New(42, 6, false, nil, nil, []int64{3, 8})
}

func compileOK(t *testing.T, params map[string][]string) *Compiled {
	t.Helper()
	out, err := testCompiler(nil).Compile(params, testActor())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return out
}

func TestPlainInBuckets(t *testing.T) {
	out := compileOK(t, map[string][]string{
		"status": {"1,2"},
		"tag":    {"4", "9"},
	})
	if !reflect.DeepEqual(out.In["status.id"], []int64{1, 2}) {
		t.Fatalf("status bucket: %v", out.In["status.id"])
	}
	if !reflect.DeepEqual(out.In["tag.id"], []int64{4, 9}) {
		t.Fatalf("tag bucket: %v", out.In["tag.id"])
	}
}

func TestCurrentUserSubstitutionIdempotent(t *testing.T) {
	sentinel := compileOK(t, map[string][]string{"creator": {"current-user"}})
	literal := compileOK(t, map[string][]string{"creator": {"42"}})
	if !reflect.DeepEqual(sentinel.In["creator.id"], literal.In["creator.id"]) {
		t.Fatalf("current-user != literal id: %v vs %v",
			sentinel.In["creator.id"], literal.In["creator.id"])
	}
}

func TestCurrentUserCompanyAndProject(t *testing.T) {
	out := compileOK(t, map[string][]string{
		"company": {"current-user"},
		"project": {"current-user"},
	})
	if !reflect.DeepEqual(out.In["company.id"], []int64{6}) {
		t.Fatalf("company bucket: %v", out.In["company.id"])
	}
	// project expands to the actor's owned project set
	if !reflect.DeepEqual(out.In["project.id"], []int64{3, 8}) {
		t.Fatalf("project bucket: %v", out.In["project.id"])
	}
}

func TestNegationThreeWayBranch(t *testing.T) {
	// two tokens + not: negated membership of the substituted id
	out := compileOK(t, map[string][]string{"assigned": {"current-user,not"}})
	if len(out.NegatedIn) != 1 {
		t.Fatalf("expected one negatedIn entry: %+v", out.NegatedIn)
	}
	got := out.NegatedIn[0]
	if got.NotField != "assigned.id" || !reflect.DeepEqual(got.Values, []int64{42}) {
		t.Fatalf("negatedIn entry: %+v", got)
	}
	if _, dup := out.In["assigned.id"]; dup {
		t.Fatalf("field duplicated across buckets")
	}

	// lone not: null check
	out = compileOK(t, map[string][]string{"assigned": {"not"}})
	if !reflect.DeepEqual(out.IsNull, []string{"assigned.id"}) {
		t.Fatalf("isNull bucket: %v", out.IsNull)
	}
	if len(out.NegatedIn) != 0 {
		t.Fatalf("lone not must not negate")
	}

	// no not: plain membership
	out = compileOK(t, map[string][]string{"assigned": {"5,7"}})
	if !reflect.DeepEqual(out.In["assigned.id"], []int64{5, 7}) {
		t.Fatalf("in bucket: %v", out.In["assigned.id"])
	}
	if len(out.IsNull) != 0 || len(out.NegatedIn) != 0 {
		t.Fatalf("unexpected negation buckets")
	}
}

func TestNotWithOnlyJunkIsMalformed(t *testing.T) {
	_, err := testCompiler(nil).Compile(map[string][]string{"assigned": {" ,not,not"}}, testActor())
	var mfe MalformedFilterError
	if !errors.As(err, &mfe) {
		t.Fatalf("expected MalformedFilterError, got %v", err)
	}
}

func TestBucketDisjointness(t *testing.T) {
	out := compileOK(t, map[string][]string{
		"creator":   {"1,2"},
		"assigned":  {"not"},
		"requester": {"3,4,not"},
		"important": {"true"},
	})
	seen := map[string]string{}
	record := func(field, bucket string) {
		t.Helper()
		if prev, dup := seen[field]; dup {
			t.Fatalf("field %s in both %s and %s", field, prev, bucket)
		}
		seen[field] = bucket
	}
	for f := range out.Equal {
		record(f, "equal")
	}
	for f := range out.In {
		record(f, "in")
	}
	for _, f := range out.IsNull {
		record(f, "isNull")
	}
	for _, n := range out.NegatedIn {
		record(n.NotField, "negatedIn")
	}
}

func TestDateRangeParsing(t *testing.T) {
	out := compileOK(t, map[string][]string{"createdTime": {"FROM=1000TO=2000"}})
	r, ok := out.DateRange["task.created_at"]
	if !ok {
		t.Fatalf("expected created range")
	}
	if r.From == nil || r.From.Unix() != 1000 || r.To == nil || r.To.Unix() != 2000 {
		t.Fatalf("range: %+v", r)
	}

	out = compileOK(t, map[string][]string{"deadlineTime": {"TO=NOW"}})
	r = out.DateRange["task.deadline_at"]
	if r.From != nil {
		t.Fatalf("FROM should be absent")
	}
	if r.To == nil || !r.To.Equal(fixedNow) {
		t.Fatalf("NOW must resolve to the injected clock: %v", r.To)
	}

	// keywords are case-insensitive
	out = compileOK(t, map[string][]string{"closedTime": {"from=5to=now"}})
	r = out.DateRange["task.closed_at"]
	if r.From == nil || r.From.Unix() != 5 || r.To == nil || !r.To.Equal(fixedNow) {
		t.Fatalf("case-insensitive range: %+v", r)
	}

	// neither keyword present: no bucket entry at all
	out = compileOK(t, map[string][]string{"startedTime": {"gibberish"}})
	if _, ok := out.DateRange["task.started_at"]; ok {
		t.Fatalf("empty range must not be emitted")
	}

	_, err := testCompiler(nil).Compile(map[string][]string{"createdTime": {"FROM=abcTO=5"}}, testActor())
	var mfe MalformedFilterError
	if !errors.As(err, &mfe) {
		t.Fatalf("non-numeric FROM must be malformed, got %v", err)
	}
}

func TestBooleanFlags(t *testing.T) {
	// scenario C from the listing contract: archived=false disappears
	out := compileOK(t, map[string][]string{
		"status":    {"1,2"},
		"important": {"true"},
		"archived":  {"false"},
	})
	if !reflect.DeepEqual(out.In["status.id"], []int64{1, 2}) {
		t.Fatalf("status bucket: %v", out.In["status.id"])
	}
	if out.Equal["task.important"] != 1 {
		t.Fatalf("important must set task.important = 1")
	}
	if _, ok := out.Equal["project.is_active"]; ok {
		t.Fatalf("archived=false must be a no-op")
	}
	for _, f := range out.Fragments() {
		if f.Field == "archived" {
			t.Fatalf("no fragment for an omitted field")
		}
	}

	// archived maps onto the inverted project active flag
	out = compileOK(t, map[string][]string{"archived": {"TRUE"}})
	if v, ok := out.Equal["project.is_active"]; !ok || v != 0 {
		t.Fatalf("archived=true must set project.is_active = 0")
	}
}

func TestSearchSlot(t *testing.T) {
	out := compileOK(t, map[string][]string{"search": {"printer broken"}})
	if out.Search != "printer broken" {
		t.Fatalf("search: %q", out.Search)
	}
	if len(out.In) != 0 || len(out.Equal) != 0 {
		t.Fatalf("search must not touch the predicate buckets")
	}
}

func TestURLFragmentStableOrder(t *testing.T) {
	params := map[string][]string{
		"status":   {"1,2"},
		"assigned": {"current-user,not"},
		"search":   {"vpn"},
	}
	first := compileOK(t, params).URLFragment()
	for i := 0; i < 10; i++ {
		if got := compileOK(t, params).URLFragment(); got != first {
			t.Fatalf("fragment order unstable: %q vs %q", got, first)
		}
	}
	// original pre-substitution text is preserved
	if first != "&status=1,2&assigned=current-user,not&search=vpn" {
		t.Fatalf("fragment: %q", first)
	}
}

func TestAddedParameters(t *testing.T) {
	c := testCompiler(map[int64]Kind{
		10: KindCheckbox,
		11: KindDate,
		12: KindOther,
	})

	out, err := c.Compile(map[string][]string{
		"addedParameters": {"10=true&11=FROM:100TO:NOW&12=red,blue&99=whatever"},
	}, testActor())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if out.CustomEqual[10] != 1 {
		t.Fatalf("checkbox true must compile to 1")
	}
	r := out.CustomDate[11]
	if r.From == nil || r.From.Unix() != 100 || r.To == nil || !r.To.Equal(fixedNow) {
		t.Fatalf("custom date range: %+v", r)
	}
	if !reflect.DeepEqual(out.CustomIn[12], []string{"red", "blue"}) {
		t.Fatalf("custom in: %v", out.CustomIn[12])
	}
	// unknown attribute 99 silently skipped
	if _, ok := out.CustomIn[99]; ok {
		t.Fatalf("unknown attribute must be skipped")
	}

	out, err = c.Compile(map[string][]string{"addedParameters": {"10=FALSE"}}, testActor())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if v, ok := out.CustomEqual[10]; !ok || v != 0 {
		t.Fatalf("checkbox false must compile to 0")
	}

	_, err = c.Compile(map[string][]string{"addedParameters": {"10=maybe"}}, testActor())
	var mfe MalformedFilterError
	if !errors.As(err, &mfe) {
		t.Fatalf("checkbox garbage must be malformed, got %v", err)
	}
}

func TestAddedParametersRepeatedValues(t *testing.T) {
	c := testCompiler(map[int64]Kind{
		10: KindCheckbox,
		12: KindOther,
	})

	// each repeated entry is its own pair list; they must not collapse
	// into one pair whose value swallows the rest
	out, err := c.Compile(map[string][]string{
		"addedParameters": {"10=true", "12=red"},
	}, testActor())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if v, ok := out.CustomEqual[10]; !ok || v != 1 {
		t.Fatalf("checkbox entry lost: %v", out.CustomEqual)
	}
	if !reflect.DeepEqual(out.CustomIn[12], []string{"red"}) {
		t.Fatalf("select entry lost: %v", out.CustomIn[12])
	}
	if got := out.URLFragment(); got != "&addedParameters=10=true&12=red" {
		t.Fatalf("fragment: %q", got)
	}
}

func TestMalformedIDToken(t *testing.T) {
	for _, params := range []map[string][]string{
		{"status": {"1,zebra"}},
		{"creator": {"12abc"}},
	} {
		_, err := testCompiler(nil).Compile(params, testActor())
		var mfe MalformedFilterError
		if !errors.As(err, &mfe) {
			t.Fatalf("params %v: expected MalformedFilterError, got %v", params, err)
		}
	}
}

func TestUnknownFieldsIgnored(t *testing.T) {
	out := compileOK(t, map[string][]string{
		"status":        {"1"},
		"utm_source":    {"newsletter"},
		"somethingElse": {"x"},
	})
	if len(out.In) != 1 {
		t.Fatalf("only status should compile: %+v", out.In)
	}
	if out.URLFragment() != "&status=1" {
		t.Fatalf("unknown fields must not produce fragments: %q", out.URLFragment())
	}
}

func TestRoleTokensDoNotLeakIntoFilters(t *testing.T) {
	// a filter naming a project the actor merely has a grant in is kept
	// verbatim: visibility trimming is the resolver's job, not the
	// compiler's
	a := actor.New(42, 6, false, acl.NewSet(acl.RoleListTasks), nil, nil)
	out, err := testCompiler(nil).Compile(map[string][]string{"project": {"77"}}, a)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !reflect.DeepEqual(out.In["project.id"], []int64{77}) {
		t.Fatalf("project bucket: %v", out.In["project.id"])
	}
}
