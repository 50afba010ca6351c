package wikibase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/krawl/metrics"
	"github.com/c360studio/krawl/rdf"
)

// DefaultMaxSchemaRepairs bounds the property creations per entity.
const DefaultMaxSchemaRepairs = 40

// Store is the remote knowledge base.
type Store interface {
	Reconcile(ctx context.Context, reconcileProp string, statements []Statement) (string, error)
	CreateProperty(ctx context.Context, label, datatype string) (string, error)
	SetLabel(ctx context.Context, entityID, label string) error
}

// State is the reconciliation state of one entity.
type State int

const (
	StatePending State = iota
	StateReconciling
	StateSchemaRepair
	StateLabeled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateReconciling:
		return "reconciling"
	case StateSchemaRepair:
		return "schema_repair"
	case StateLabeled:
		return "labeled"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Reconciler pushes graphs entity by entity. Property ids learned during a
// run are remembered so later entities skip the repair round trip. It is safe
// for concurrent use.
type Reconciler struct {
	store         Store
	reconcileProp string
	maxRepairs    int
	logger        *slog.Logger

	mu         sync.Mutex
	properties map[string]string
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMaxSchemaRepairs overrides DefaultMaxSchemaRepairs.
func WithMaxSchemaRepairs(n int) ReconcilerOption {
	return func(r *Reconciler) {
		r.maxRepairs = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// NewReconciler creates a reconciler keyed on reconcileProp.
func NewReconciler(store Store, reconcileProp string, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		store:         store,
		reconcileProp: reconcileProp,
		maxRepairs:    DefaultMaxSchemaRepairs,
		logger:        slog.Default(),
		properties:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result maps graph subjects to remote ids. Failed holds the entities that
// reached StateFailed.
type Result struct {
	IDs     map[string]string
	Failed  map[string]error
	Modules []string
}

// ModuleID returns the remote id of the first module, or "".
func (r *Result) ModuleID() string {
	if len(r.Modules) == 0 {
		return ""
	}
	return r.IDs[r.Modules[0]]
}

// Err joins the failures, or returns nil.
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for subject, err := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", subject, err))
	}
	return errors.Join(errs...)
}

// Reconcile pushes every entity of g. Items go first, sequentially and in
// dependency order; their remote ids replace the references to them before
// the modules are pushed. A failing entity does not stop the others; only
// cancellation does.
func (r *Reconciler) Reconcile(ctx context.Context, g *rdf.Graph) (*Result, error) {
	res := &Result{IDs: make(map[string]string), Failed: make(map[string]error)}
	for _, e := range Entities(g, r.reconcileProp) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if e.Module {
			res.Modules = append(res.Modules, e.Subject)
		}
		e.Statements = r.resolveRefs(e, res)

		id, err := r.Push(ctx, e)
		if err != nil {
			res.Failed[e.Subject] = err
			continue
		}
		res.IDs[e.Subject] = id
	}
	return res, nil
}

// resolveRefs substitutes remote ids for references to other entities.
// References to entities without id are dropped.
func (r *Reconciler) resolveRefs(e Entity, res *Result) []Statement {
	out := make([]Statement, 0, len(e.Statements))
	for _, s := range e.Statements {
		if s.Ref != "" {
			id, ok := res.IDs[s.Ref]
			if !ok {
				r.logger.Warn("Dropping statement, referenced entity was not pushed",
					"subject", e.Subject, "property", s.Property, "ref", s.Ref)
				continue
			}
			s.Value = id
		}
		out = append(out, s)
	}
	return out
}

// Push reconciles one entity and sets its label. Missing properties are
// created and the same statements resubmitted, at most maxRepairs times.
func (r *Reconciler) Push(ctx context.Context, e Entity) (string, error) {
	started := time.Now()
	kind := "item"
	if e.Module {
		kind = "module"
	}

	statements := r.knownProperties(e.Statements)
	state := StatePending
	repairs := 0
	var (
		id      string
		missing string
		err     error
	)

	for state != StateLabeled && state != StateFailed {
		switch state {
		case StatePending:
			state = StateReconciling

		case StateReconciling:
			id, err = r.store.Reconcile(ctx, r.reconcileProp, statements)
			var schemaErr *SchemaMissingError
			switch {
			case err == nil:
				if err = r.store.SetLabel(ctx, id, e.Label); err != nil {
					state = StateFailed
					break
				}
				state = StateLabeled
			case errors.As(err, &schemaErr):
				missing = schemaErr.Property
				state = StateSchemaRepair
			default:
				state = StateFailed
			}

		case StateSchemaRepair:
			repairs++
			if repairs > r.maxRepairs {
				err = fmt.Errorf("%w after %d attempts", ErrRetryBudgetExhausted, r.maxRepairs)
				state = StateFailed
				break
			}
			statements, err = r.repair(ctx, statements, missing)
			if err != nil {
				state = StateFailed
				break
			}
			state = StateReconciling
		}
		r.logger.Debug("Entity state", "subject", e.Subject, "state", state)
	}

	if state == StateFailed {
		r.logger.Error("Entity reconciliation failed", "subject", e.Subject, "label", e.Label, "error", err)
		metrics.RecordEntity(kind, metrics.StatusFailed, started)
		return "", err
	}
	r.logger.Info("Entity reconciled", "subject", e.Subject, "id", id, "label", e.Label, "repairs", repairs)
	metrics.RecordEntity(kind, metrics.StatusOK, started)
	return id, nil
}

// repair creates the missing property and substitutes its id into the
// statements that name it.
func (r *Reconciler) repair(ctx context.Context, statements []Statement, property string) ([]Statement, error) {
	datatype, found := "", false
	for _, s := range statements {
		if s.Property == property {
			datatype, found = s.Datatype, true
			break
		}
	}
	if !found {
		return nil, &PropertyCreationError{Property: property, Reason: "not used by any statement"}
	}

	id, err := r.store.CreateProperty(ctx, property, datatype)
	if err != nil {
		return nil, err
	}
	metrics.SchemaRepairs.Inc()

	r.mu.Lock()
	r.properties[property] = id
	r.mu.Unlock()

	out := make([]Statement, len(statements))
	for i, s := range statements {
		if s.Property == property {
			s.Property = id
		}
		out[i] = s
	}
	return out, nil
}

// knownProperties replaces property labels already resolved in this run.
func (r *Reconciler) knownProperties(statements []Statement) []Statement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Statement, len(statements))
	for i, s := range statements {
		if id, ok := r.properties[s.Property]; ok {
			s.Property = id
		}
		out[i] = s
	}
	return out
}
