package workflow_test

import (
	"errors"
	"strings"
	"testing"
	"unicode"

	"github.com/google/go-cmp/cmp"

	"github.com/ravi-parthasarathy/forge/pkg/catalog"
	"github.com/ravi-parthasarathy/forge/pkg/workflow"
)

func testCatalog() *catalog.Catalog {
	return catalog.MustNew(
		catalog.Service{Name: "user", Functions: []string{"create_user", "Create_User", "delete_user"}},
		catalog.Service{Name: "License", Functions: []string{"add_license", "revoke_license"}},
	)
}

type nodeDef struct {
	id, service, function string
	next                  []string
}

func buildGraph(t *testing.T, name, version string, nodes ...nodeDef) *workflow.Graph {
	t.Helper()
	g := workflow.NewGraph(name, version)
	for _, n := range nodes {
		if err := g.AddNode(workflow.Node{ID: n.id, Service: n.service, Function: n.function, Successors: n.next}); err != nil {
			t.Fatalf("AddNode(%s): %v", n.id, err)
		}
	}
	return g
}

func mustSerialize(t *testing.T, g *workflow.Graph, opts ...workflow.Option) workflow.Document {
	t.Helper()
	v, err := workflow.Validate(g, testCatalog(), opts...)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return workflow.Serialize(v)
}

// ─── Graph tests ──────────────────────────────────────────────────────────────

func TestGraph_AddNodeRejectsDuplicates(t *testing.T) {
	g := workflow.NewGraph("w", "v1")
	if err := g.AddNode(workflow.Node{ID: "a"}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if err := g.AddNode(workflow.Node{ID: "a"}); !errors.Is(err, workflow.ErrDuplicateNodeID) {
		t.Errorf("err = %v, want ErrDuplicateNodeID", err)
	}
	if err := g.AddNode(workflow.Node{}); !errors.Is(err, workflow.ErrEmptyNodeID) {
		t.Errorf("err = %v, want ErrEmptyNodeID", err)
	}
}

func TestGraph_ConnectAndOrder(t *testing.T) {
	g := buildGraph(t, "w", "v1",
		nodeDef{id: "b", service: "user", function: "create_user"},
		nodeDef{id: "a", service: "user", function: "delete_user"},
	)
	if err := g.Connect("b", "a"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := g.Connect("missing", "a"); !errors.Is(err, workflow.ErrUnknownNode) {
		t.Errorf("err = %v, want ErrUnknownNode", err)
	}

	var ids []string
	for _, n := range g.Nodes() {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"b", "a"}, ids); diff != "" {
		t.Errorf("insertion order mismatch (-want +got):\n%s", diff)
	}
	b, _ := g.Node("b")
	if diff := cmp.Diff([]string{"a"}, b.Successors); diff != "" {
		t.Errorf("successors mismatch (-want +got):\n%s", diff)
	}
	if g.EdgeCount() != 1 {
		t.Errorf("EdgeCount = %d, want 1", g.EdgeCount())
	}
}

func TestGraph_NodeCopiesAreIndependent(t *testing.T) {
	next := []string{"b"}
	g := buildGraph(t, "w", "v1", nodeDef{id: "a", service: "user", function: "create_user", next: next})
	next[0] = "mutated"

	n, _ := g.Node("a")
	if n.Successors[0] != "b" {
		t.Errorf("graph aliased caller slice: %v", n.Successors)
	}
	n.Successors[0] = "again"
	if again, _ := g.Node("a"); again.Successors[0] != "b" {
		t.Errorf("Node returned an aliased slice: %v", again.Successors)
	}
}

// ─── Validator tests ──────────────────────────────────────────────────────────

func TestValidate_Valid(t *testing.T) {
	g := buildGraph(t, "w", "v1",
		nodeDef{id: "a", service: "User", function: "create_user", next: []string{"b"}},
		nodeDef{id: "b", service: "LICENSE", function: "add_license", next: []string{"a"}}, // cycles are allowed
	)
	v, err := workflow.Validate(g, testCatalog())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if v.Len() != 2 || v.EdgeCount() != 2 {
		t.Errorf("Len/EdgeCount = %d/%d, want 2/2", v.Len(), v.EdgeCount())
	}
}

func TestValidate_EmptyGraphIsValid(t *testing.T) {
	if _, err := workflow.Validate(workflow.NewGraph("w", "v1"), testCatalog()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	g := buildGraph(t, "", "",
		nodeDef{id: "x", service: "Billing", function: "charge"},
		nodeDef{id: "y", service: "user", function: "create_user", next: []string{"ghost", "x", "x"}},
		nodeDef{id: "z", service: "license", function: "Add_License"},
	)
	got := workflow.Lint(g, testCatalog())
	want := []workflow.ValidationError{
		{Kind: workflow.ErrEmptyNameOrVersion, Field: "name"},
		{Kind: workflow.ErrEmptyNameOrVersion, Field: "version"},
		{Kind: workflow.ErrUnknownService, NodeID: "x", Service: "Billing"},
		{Kind: workflow.ErrUnknownFunction, NodeID: "z", Service: "license", Function: "Add_License"},
		{Kind: workflow.ErrDanglingEdge, NodeID: "y", TargetID: "ghost"},
		{Kind: workflow.ErrDuplicateEdge, NodeID: "y", TargetID: "x"},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b error) bool { return a == b })); diff != "" {
		t.Errorf("Lint mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate_UnknownServiceAndDanglingEdgeBothReported(t *testing.T) {
	g := buildGraph(t, "w", "v1",
		nodeDef{id: "X", service: "Nope", function: "create_user"},
		nodeDef{id: "Y", service: "user", function: "create_user", next: []string{"missing"}},
	)
	_, err := workflow.Validate(g, testCatalog())
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, workflow.ErrUnknownService) {
		t.Errorf("error does not include ErrUnknownService: %v", err)
	}
	if !errors.Is(err, workflow.ErrDanglingEdge) {
		t.Errorf("error does not include ErrDanglingEdge: %v", err)
	}
	var verrs workflow.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 2 {
		t.Fatalf("errors.As ValidationErrors = %v (len %d), want 2 entries", verrs, len(verrs))
	}
	if !strings.Contains(err.Error(), `node "X": unknown service "Nope"`) {
		t.Errorf("message missing node context: %s", err)
	}
}

func TestValidate_DescriptorCollision(t *testing.T) {
	g := buildGraph(t, "w", "v1",
		nodeDef{id: "a", service: "User", function: "create_user"},
		nodeDef{id: "b", service: "user", function: "create_user"},
	)
	errs := workflow.Lint(g, testCatalog())
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
	}
	e := errs[0]
	if !errors.Is(e, workflow.ErrDescriptorCollision) || e.NodeID != "b" || e.TargetID != "a" {
		t.Errorf("unexpected collision error: %+v", e)
	}

	if _, err := workflow.Validate(g, testCatalog(), workflow.WithCollisionPolicy(workflow.LastWriteWins)); err != nil {
		t.Errorf("last-write-wins should accept collisions: %v", err)
	}
}

func TestValidate_SnapshotIsFrozen(t *testing.T) {
	g := buildGraph(t, "w", "v1", nodeDef{id: "a", service: "user", function: "create_user"})
	v, err := workflow.Validate(g, testCatalog())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	before := workflow.Serialize(v).String()

	if err := g.SetCall("a", "Billing", "charge"); err != nil {
		t.Fatalf("SetCall: %v", err)
	}
	if err := g.Connect("a", "nowhere"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if after := workflow.Serialize(v).String(); after != before {
		t.Errorf("validated snapshot changed after graph edit:\n before %s\n after  %s", before, after)
	}
}

func TestValidate_NilInputs(t *testing.T) {
	if _, err := workflow.Validate(nil, testCatalog()); err == nil {
		t.Error("expected error for nil graph")
	}
	if _, err := workflow.Validate(workflow.NewGraph("w", "v"), nil); !errors.Is(err, workflow.ErrNilInput) {
		t.Errorf("err = %v, want ErrNilInput for nil catalog", err)
	}
}

func TestLint_NilInputs(t *testing.T) {
	errs := workflow.Lint(nil, testCatalog())
	if len(errs) != 1 || !errors.Is(errs[0], workflow.ErrNilInput) || errs[0].Field != "graph" {
		t.Errorf("Lint(nil graph) = %v, want one ErrNilInput on graph", errs)
	}
	errs = workflow.Lint(workflow.NewGraph("w", "v"), nil)
	if len(errs) != 1 || !errors.Is(errs[0], workflow.ErrNilInput) || errs[0].Field != "catalog" {
		t.Errorf("Lint(nil catalog) = %v, want one ErrNilInput on catalog", errs)
	}
}

func TestValidate_BlankNameAndVersion(t *testing.T) {
	got := workflow.Lint(workflow.NewGraph("   ", "\t"), testCatalog())
	want := []workflow.ValidationError{
		{Kind: workflow.ErrEmptyNameOrVersion, Field: "name"},
		{Kind: workflow.ErrEmptyNameOrVersion, Field: "version"},
	}
	if diff := cmp.Diff(want, got, cmp.Comparer(func(a, b error) bool { return a == b })); diff != "" {
		t.Errorf("Lint mismatch (-want +got):\n%s", diff)
	}
}

func TestParseCollisionPolicy(t *testing.T) {
	for in, want := range map[string]workflow.CollisionPolicy{
		"":                workflow.RejectCollisions,
		"reject":          workflow.RejectCollisions,
		"Last-Write-Wins": workflow.LastWriteWins,
	} {
		got, err := workflow.ParseCollisionPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseCollisionPolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := workflow.ParseCollisionPolicy("merge"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

// ─── Serializer tests ─────────────────────────────────────────────────────────

func TestSerialize_UserRegistration(t *testing.T) {
	c := catalog.MustNew(
		catalog.Service{Name: "User", Functions: []string{"create_user"}},
		catalog.Service{Name: "License", Functions: []string{"add_license"}},
	)
	g := buildGraph(t, "user_registration", "v0.1.0",
		nodeDef{id: "A", service: "User", function: "create_user", next: []string{"B"}},
		nodeDef{id: "B", service: "License", function: "add_license"},
	)
	v, err := workflow.Validate(g, c)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	want := `(name:"user_registration",version:"v0.1.0",schema:"v0.1.0",workflow:{` +
		`(service:"user",function:"create_user"):[(service:"license",function:"add_license")],` +
		`(service:"license",function:"add_license"):[]})`
	doc := workflow.Serialize(v)
	if got := doc.String(); got != want {
		t.Errorf("Serialize mismatch:\n got  %s\n want %s", got, want)
	}
	if string(doc.Bytes()) != want {
		t.Error("Bytes differs from String")
	}
	if doc.Name() != "user_registration" || doc.Version() != "v0.1.0" {
		t.Errorf("Name/Version = %q/%q", doc.Name(), doc.Version())
	}
}

func TestSerialize_EmptyGraph(t *testing.T) {
	doc := mustSerialize(t, workflow.NewGraph("X", "Y"))
	want := `(name:"X",version:"Y",schema:"v0.1.0",workflow:{})`
	if doc.String() != want {
		t.Errorf("got %s, want %s", doc, want)
	}
}

func TestSerialize_PreservesSuccessorOrder(t *testing.T) {
	g := buildGraph(t, "w", "v1",
		nodeDef{id: "a", service: "user", function: "create_user", next: []string{"c", "b"}},
		nodeDef{id: "b", service: "license", function: "add_license"},
		nodeDef{id: "c", service: "license", function: "revoke_license"},
	)
	got := mustSerialize(t, g).String()
	want := `(service:"user",function:"create_user"):[(service:"license",function:"revoke_license"),(service:"license",function:"add_license")]`
	if !strings.Contains(got, want) {
		t.Errorf("successor order not preserved:\n%s", got)
	}
}

func TestSerialize_CaseNormalization(t *testing.T) {
	g := buildGraph(t, "w", "v1", nodeDef{id: "a", service: "User", function: "Create_User"})
	got := mustSerialize(t, g).String()
	if !strings.Contains(got, `(service:"user",function:"Create_User")`) {
		t.Errorf("expected lowercased service and verbatim function:\n%s", got)
	}
}

func TestSerialize_NoWhitespaceOutsideLiterals(t *testing.T) {
	g := buildGraph(t, "user registration flow", "v 1",
		nodeDef{id: "a", service: "user", function: "create_user", next: []string{"b"}},
		nodeDef{id: "b", service: "license", function: "add_license", next: []string{"a"}},
	)
	got := mustSerialize(t, g).String()

	inQuote, escaped := false, false
	for i, r := range got {
		switch {
		case escaped:
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case !inQuote && unicode.IsSpace(r):
			t.Fatalf("whitespace at offset %d outside literal: %s", i, got)
		}
	}
	if !strings.Contains(got, `name:"user registration flow"`) {
		t.Errorf("whitespace inside literal was not preserved: %s", got)
	}
}

func TestSerialize_EscapesQuotes(t *testing.T) {
	g := buildGraph(t, `say "hi"`, `v\1`)
	got := mustSerialize(t, g).String()
	want := `(name:"say \"hi\"",version:"v\\1",schema:"v0.1.0",workflow:{})`
	if got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestSerialize_Deterministic(t *testing.T) {
	defs := []nodeDef{
		{id: "n1", service: "user", function: "create_user", next: []string{"n3", "n2"}},
		{id: "n2", service: "license", function: "add_license"},
		{id: "n3", service: "license", function: "revoke_license", next: []string{"n1"}},
	}
	first := mustSerialize(t, buildGraph(t, "w", "v1", defs...))
	for i := 0; i < 20; i++ {
		again := mustSerialize(t, buildGraph(t, "w", "v1", defs...))
		if again.String() != first.String() {
			t.Fatalf("run %d differs:\n%s\n%s", i, again, first)
		}
		if again.Digest() != first.Digest() {
			t.Fatalf("run %d digest differs", i)
		}
	}
	if len(first.Digest()) != 64 {
		t.Errorf("digest length = %d, want 64", len(first.Digest()))
	}
}

func TestSerialize_LastWriteWinsKeepsFirstPosition(t *testing.T) {
	g := buildGraph(t, "w", "v1",
		nodeDef{id: "a", service: "user", function: "create_user", next: []string{"b"}},
		nodeDef{id: "b", service: "license", function: "add_license"},
		nodeDef{id: "c", service: "User", function: "create_user"},
	)
	got := mustSerialize(t, g, workflow.WithCollisionPolicy(workflow.LastWriteWins)).String()
	want := `(name:"w",version:"v1",schema:"v0.1.0",workflow:{` +
		`(service:"user",function:"create_user"):[],` +
		`(service:"license",function:"add_license"):[]})`
	if got != want {
		t.Errorf("got  %s\nwant %s", got, want)
	}
}

func TestSerialize_PanicsWithoutValidation(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for nil Validated")
		}
	}()
	workflow.Serialize(nil)
}

// ─── Canonicalize tests ───────────────────────────────────────────────────────

func TestCanonicalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"( a : \"b c\" )", `(a:"b c")`},
		{"\t[\n  x ,\r\n y ]", "[x,y]"},
		{`"a \" b" c`, `"a \" b"c`},
		{`"a\\" b "c d"`, `"a\\"b"c d"`},
		{"", ""},
	}
	for _, tc := range cases {
		if got := workflow.Canonicalize(tc.in); got != tc.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
