package wikibase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/c360studio/krawl/rdf"
	"github.com/c360studio/krawl/vocabulary/okh"
	"github.com/c360studio/krawl/wikibase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loomBase = "https://github.com/a/loom/1.0/"

// memoryStore is an in-memory Store. Properties are known by id only, so
// every label reaching Reconcile is reported missing until created.
type memoryStore struct {
	mu sync.Mutex

	props map[string]string // id -> datatype
	items map[string]string // reconcile value -> id

	calls      [][]wikibase.Statement
	created    []string
	labels     map[string]string
	fail       map[string]bool // subjects rejected with a server error
	failLabel  bool
	echoCreate bool // CreateProperty returns the label, which never resolves
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		props:  map[string]string{reconcileProp: wikibase.DatatypeURL},
		items:  map[string]string{},
		labels: map[string]string{},
		fail:   map[string]bool{},
	}
}

func (s *memoryStore) Reconcile(_ context.Context, prop string, statements []wikibase.Statement) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, statements)

	key := ""
	for _, st := range statements {
		if _, ok := s.props[st.Property]; !ok {
			return "", &wikibase.SchemaMissingError{Property: st.Property}
		}
		if st.Property == prop {
			key = st.Value
		}
	}
	if s.fail[key] {
		return "", &wikibase.ReconcileTransportError{StatusCode: 500}
	}
	id, ok := s.items[key]
	if !ok {
		id = fmt.Sprintf("Q%d", len(s.items)+1)
		s.items[key] = id
	}
	return id, nil
}

func (s *memoryStore) CreateProperty(_ context.Context, label, datatype string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, label)
	if s.echoCreate {
		return label, nil
	}
	id := fmt.Sprintf("P%d", len(s.props)+1)
	s.props[id] = datatype
	return id, nil
}

func (s *memoryStore) SetLabel(_ context.Context, id, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLabel {
		return &wikibase.LabelAssignmentError{EntityID: id, Label: label, Err: errors.New("rejected")}
	}
	s.labels[id] = label
	return nil
}

// statementsFor returns the statements of the last call reconciling subject.
func (s *memoryStore) statementsFor(subject string) []wikibase.Statement {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if len(s.calls[i]) > 0 && s.calls[i][0].Value == subject {
			return s.calls[i]
		}
	}
	return nil
}

// loomGraph is a module with a readme and one part whose source file is a
// separate entity.
func loomGraph() *rdf.Graph {
	g := rdf.NewGraph(loomBase)
	module, part, source, readme := loomBase+"Loom", loomBase+"Frame", loomBase+"Frame_source", loomBase+"Readme"

	g.Add(module, okh.RDFType, rdf.IRI(okh.ClassModule))
	g.Add(module, okh.RDFSLabel, rdf.Literal("Loom"))
	g.Add(module, okh.Namespace+"hasReadme", rdf.IRI(readme))
	g.Add(module, okh.Namespace+"hasComponent", rdf.IRI(part))
	g.Add(module, okh.Namespace+"repo", rdf.IRI("https://github.com/a/loom"))
	g.Add(module, loomBase+"maxWidth", rdf.Box(int64(120)))
	g.Add(module, "http://purl.org/dc/terms/creator", rdf.Literal("Jens"))

	g.Add(part, okh.RDFType, rdf.IRI(okh.ClassPart))
	g.Add(part, okh.RDFSLabel, rdf.Literal("Frame"))
	g.Add(part, okh.Namespace+"source", rdf.IRI(source))

	g.Add(source, okh.RDFType, rdf.IRI(okh.ClassSourceFile))
	g.Add(source, okh.Namespace+"fileUrl", rdf.IRI("https://raw.githubusercontent.com/a/loom/abc/frame.fcstd"))

	g.Add(readme, okh.RDFType, rdf.IRI(okh.ClassReadme))
	g.Add(readme, okh.Namespace+"fileFormat", rdf.Literal("md"))
	return g
}

func find(statements []wikibase.Statement, property string) (wikibase.Statement, bool) {
	for _, s := range statements {
		if s.Property == property {
			return s, true
		}
	}
	return wikibase.Statement{}, false
}

func TestEntities(t *testing.T) {
	entities := wikibase.Entities(loomGraph(), reconcileProp)
	require.Len(t, entities, 4)

	var order []string
	for _, e := range entities {
		order = append(order, e.Subject)
	}
	assert.Equal(t, []string{
		loomBase + "Frame_source",
		loomBase + "Frame",
		loomBase + "Readme",
		loomBase + "Loom",
	}, order, "items in dependency order, modules last")

	module := entities[3]
	assert.True(t, module.Module)
	assert.Equal(t, "Loom", module.Label)
	assert.Equal(t, wikibase.Statement{Property: reconcileProp, Value: loomBase + "Loom", Datatype: wikibase.DatatypeURL}, module.Statements[0])

	readme, ok := find(module.Statements, "hasReadme")
	require.True(t, ok)
	assert.Equal(t, wikibase.DatatypeItem, readme.Datatype)
	assert.Equal(t, loomBase+"Readme", readme.Ref)

	repo, ok := find(module.Statements, "repo")
	require.True(t, ok)
	assert.Equal(t, wikibase.DatatypeURL, repo.Datatype)
	assert.Empty(t, repo.Ref)

	width, ok := find(module.Statements, "maxWidth")
	require.True(t, ok)
	assert.Equal(t, wikibase.DatatypeString, width.Datatype)
	assert.Equal(t, "120", width.Value)

	typ, ok := find(module.Statements, "type")
	require.True(t, ok)
	assert.Equal(t, okh.ClassModule, typ.Value)

	_, ok = find(module.Statements, "creator")
	assert.False(t, ok, "predicates outside known namespaces are not pushed")
	_, ok = find(module.Statements, "label")
	assert.False(t, ok, "the label is set separately")

	source := entities[0]
	assert.False(t, source.Module)
	assert.Equal(t, "Frame_source", source.Label, "labelless entities use their local name")
}

func TestReconcile_SubstitutesReferences(t *testing.T) {
	store := newMemoryStore()
	r := wikibase.NewReconciler(store, reconcileProp)

	res, err := r.Reconcile(context.Background(), loomGraph())
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Len(t, res.IDs, 4)
	assert.Equal(t, []string{loomBase + "Loom"}, res.Modules)
	assert.Equal(t, res.IDs[loomBase+"Loom"], res.ModuleID())

	refValue := func(subject, ref string) string {
		for _, s := range store.statementsFor(subject) {
			if s.Ref == ref {
				return s.Value
			}
		}
		return ""
	}
	assert.Equal(t, res.IDs[loomBase+"Readme"], refValue(loomBase+"Loom", loomBase+"Readme"))
	assert.Equal(t, res.IDs[loomBase+"Frame"], refValue(loomBase+"Loom", loomBase+"Frame"))
	assert.Equal(t, res.IDs[loomBase+"Frame_source"], refValue(loomBase+"Frame", loomBase+"Frame_source"))
	assert.Equal(t, "Loom", store.labels[res.ModuleID()])
}

func TestReconcile_Idempotent(t *testing.T) {
	store := newMemoryStore()
	r := wikibase.NewReconciler(store, reconcileProp)

	first, err := r.Reconcile(context.Background(), loomGraph())
	require.NoError(t, err)
	created := len(store.created)
	assert.NotZero(t, created)

	second, err := r.Reconcile(context.Background(), loomGraph())
	require.NoError(t, err)
	assert.Equal(t, first.IDs, second.IDs)
	assert.Len(t, store.created, created, "properties are resolved once per run")
}

func TestReconcile_FailureIsolated(t *testing.T) {
	store := newMemoryStore()
	store.fail[loomBase+"Readme"] = true
	r := wikibase.NewReconciler(store, reconcileProp)

	res, err := r.Reconcile(context.Background(), loomGraph())
	require.NoError(t, err)

	require.Contains(t, res.Failed, loomBase+"Readme")
	var transportErr *wikibase.ReconcileTransportError
	assert.True(t, errors.As(res.Failed[loomBase+"Readme"], &transportErr))
	assert.Error(t, res.Err())

	assert.NotEmpty(t, res.ModuleID(), "the module is pushed without the failed item")
	for _, s := range store.statementsFor(loomBase + "Loom") {
		assert.NotEqual(t, loomBase+"Readme", s.Ref)
	}
	assert.Contains(t, res.IDs, loomBase+"Frame")
}

func TestPush_RetriesOncePerMissingProperty(t *testing.T) {
	store := newMemoryStore()
	r := wikibase.NewReconciler(store, reconcileProp)

	id, err := r.Push(context.Background(), wikibase.Entity{
		Subject: loomBase + "Loom",
		Label:   "Loom",
		Statements: []wikibase.Statement{
			{Property: reconcileProp, Value: loomBase + "Loom", Datatype: wikibase.DatatypeURL},
			{Property: "P999", Value: "CC-BY-SA-4.0", Datatype: wikibase.DatatypeString},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Q1", id)
	assert.Len(t, store.calls, 2)
	assert.Equal(t, []string{"P999"}, store.created)
	assert.Equal(t, "P2", store.calls[1][1].Property)
	assert.Equal(t, wikibase.DatatypeString, store.props["P2"])
}

func TestPush_RepairBudget(t *testing.T) {
	store := newMemoryStore()
	store.echoCreate = true
	r := wikibase.NewReconciler(store, reconcileProp)

	_, err := r.Push(context.Background(), wikibase.Entity{
		Subject: loomBase + "Loom",
		Label:   "Loom",
		Statements: []wikibase.Statement{
			{Property: reconcileProp, Value: loomBase + "Loom"},
			{Property: "spdxLicense", Value: "MIT", Datatype: wikibase.DatatypeString},
		},
	})
	assert.ErrorIs(t, err, wikibase.ErrRetryBudgetExhausted)
	assert.Len(t, store.calls, wikibase.DefaultMaxSchemaRepairs+1)
	assert.Len(t, store.created, wikibase.DefaultMaxSchemaRepairs)
}

func TestPush_CustomBudget(t *testing.T) {
	store := newMemoryStore()
	store.echoCreate = true
	r := wikibase.NewReconciler(store, reconcileProp, wikibase.WithMaxSchemaRepairs(2))

	_, err := r.Push(context.Background(), wikibase.Entity{
		Subject:    loomBase + "Loom",
		Statements: []wikibase.Statement{{Property: "x", Value: "y"}},
	})
	assert.ErrorIs(t, err, wikibase.ErrRetryBudgetExhausted)
	assert.Len(t, store.calls, 3)
}

func TestPush_LabelFailure(t *testing.T) {
	store := newMemoryStore()
	store.failLabel = true
	r := wikibase.NewReconciler(store, reconcileProp)

	_, err := r.Push(context.Background(), wikibase.Entity{
		Subject:    loomBase + "Loom",
		Label:      "Loom",
		Statements: []wikibase.Statement{{Property: reconcileProp, Value: loomBase + "Loom"}},
	})
	var labelErr *wikibase.LabelAssignmentError
	require.True(t, errors.As(err, &labelErr))
	assert.Equal(t, "Q1", labelErr.EntityID)
}

func TestReconcile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newMemoryStore()
	_, err := wikibase.NewReconciler(store, reconcileProp).Reconcile(ctx, loomGraph())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "schema_repair", wikibase.StateSchemaRepair.String())
	assert.Equal(t, "labeled", wikibase.StateLabeled.String())
	assert.Equal(t, "state(9)", wikibase.State(9).String())
}
