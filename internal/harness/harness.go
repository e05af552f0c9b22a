package harness

import (
	"context"
	"fmt"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/bomdef"
	"github.com/aldersyn/bomrev/internal/engine"
	"github.com/aldersyn/bomrev/internal/store"
)

// TraceEvent is one executed step in a scenario trace. Entities appear
// under their symbolic names so traces compare byte-identically across
// runs.
type TraceEvent struct {
	Step     int    `json:"step"`
	Op       string `json:"op"`
	Order    string `json:"order,omitempty"`
	Product  string `json:"product,omitempty"`
	State    string `json:"state,omitempty"`
	Revision int64  `json:"revision,omitempty"`
	Pending  int    `json:"pending,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TraceSnapshot is the golden-file payload for one scenario run.
type TraceSnapshot struct {
	Scenario string       `json:"scenario"`
	Trace    []TraceEvent `json:"trace"`
}

// Result carries the trace and any assertion failures.
type Result struct {
	Snapshot TraceSnapshot
	Errors   []string
}

// Passed reports whether every step and assertion held.
func (r *Result) Passed() bool {
	return len(r.Errors) == 0
}

type runner struct {
	engine *engine.Engine
	store  *store.Store
	orders map[string]bom.OrderID
}

// Run executes a scenario against a fresh in-memory store.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("harness: open store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	eng, err := engine.New(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("harness: engine: %w", err)
	}

	r := &runner{
		engine: eng,
		store:  st,
		orders: make(map[string]bom.OrderID),
	}

	result := &Result{Snapshot: TraceSnapshot{Scenario: scenario.Name}}
	for i, step := range scenario.Steps {
		ev, err := r.executeStep(ctx, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("harness: step %d: %w", i+1, err)
		}
		result.Snapshot.Trace = append(result.Snapshot.Trace, ev)
	}

	for i, a := range scenario.Assertions {
		if msg := r.checkAssertion(ctx, a); msg != "" {
			result.Errors = append(result.Errors, fmt.Sprintf("assertion %d (%s): %s", i+1, a.Type, msg))
		}
	}
	return result, nil
}

func (r *runner) executeStep(ctx context.Context, n int, step Step) (TraceEvent, error) {
	switch {
	case step.Promote != nil:
		return r.runPromote(ctx, n, step.Promote)
	case step.CreateOrder != nil:
		return r.runCreateOrder(ctx, n, step.CreateOrder)
	case step.Start != nil:
		return r.runTransition(ctx, n, "start", step.Start, r.engine.StartRevision)
	case step.Edit != nil:
		return r.runEdit(ctx, n, step.Edit)
	case step.Rebase != nil:
		return r.runTransition(ctx, n, "rebase", step.Rebase, r.engine.ApplyRebase)
	case step.Resolve != nil:
		return r.runTransition(ctx, n, "resolve", step.Resolve, r.engine.ResolveConflict)
	case step.Apply != nil:
		return r.runTransition(ctx, n, "apply", step.Apply, r.engine.Apply)
	case step.Cancel != nil:
		return r.runTransition(ctx, n, "cancel", step.Cancel, r.engine.Cancel)
	default:
		return TraceEvent{}, fmt.Errorf("empty step")
	}
}

func (r *runner) runPromote(ctx context.Context, n int, step *PromoteStep) (TraceEvent, error) {
	doc := &bomdef.Document{Product: step.Product, Lines: step.Lines}
	if err := bomdef.Validate(doc); err != nil {
		return TraceEvent{}, err
	}
	specs, err := doc.LineSpecs()
	if err != nil {
		return TraceEvent{}, err
	}
	v, err := r.engine.PromoteVersion(ctx, doc.ProductID(), specs)
	if err != nil {
		return TraceEvent{}, err
	}
	return TraceEvent{Step: n, Op: "promote", Product: step.Product, Revision: v.Revision}, nil
}

func (r *runner) runCreateOrder(ctx context.Context, n int, step *CreateOrderStep) (TraceEvent, error) {
	if step.As == "" {
		return TraceEvent{}, fmt.Errorf("create_order needs 'as'")
	}
	order, err := r.engine.CreateOrder(ctx, bomdef.ResolveID(step.Product))
	if err != nil {
		return TraceEvent{}, err
	}
	r.orders[step.As] = order.ID
	return TraceEvent{Step: n, Op: "create_order", Order: step.As, Product: step.Product, State: string(order.State)}, nil
}

func (r *runner) runTransition(ctx context.Context, n int, op string, ref *OrderRef, fn func(context.Context, bom.OrderID) (bom.ChangeOrder, error)) (TraceEvent, error) {
	id, ok := r.orders[ref.Order]
	if !ok {
		return TraceEvent{}, fmt.Errorf("unknown order %q", ref.Order)
	}

	order, err := fn(ctx, id)
	if err != nil {
		code := stateErrorCode(err)
		if ref.ExpectError == "" {
			return TraceEvent{}, err
		}
		if code != ref.ExpectError {
			return TraceEvent{}, fmt.Errorf("expected error %q, got: %v", ref.ExpectError, err)
		}
		return TraceEvent{Step: n, Op: op, Order: ref.Order, Error: code}, nil
	}
	if ref.ExpectError != "" {
		return TraceEvent{}, fmt.Errorf("expected error %q, step succeeded", ref.ExpectError)
	}

	pending, err := r.store.CountRecordsForOrder(ctx, id)
	if err != nil {
		return TraceEvent{}, err
	}
	return TraceEvent{Step: n, Op: op, Order: ref.Order, State: string(order.State), Pending: pending}, nil
}

func (r *runner) runEdit(ctx context.Context, n int, step *EditStep) (TraceEvent, error) {
	versionID, ev, err := r.editTarget(ctx, step)
	if err != nil {
		return TraceEvent{}, err
	}
	ev.Step = n
	ev.Op = "edit_" + step.Action

	component := bomdef.ResolveID(step.Component)
	switch step.Action {
	case "add":
		value, err := editValue(step)
		if err != nil {
			return TraceEvent{}, err
		}
		_, err = r.engine.InsertLine(ctx, versionID, component, value)
		return ev, err
	case "set":
		value, err := editValue(step)
		if err != nil {
			return TraceEvent{}, err
		}
		line, err := r.findLine(ctx, versionID, component)
		if err != nil {
			return TraceEvent{}, err
		}
		return ev, r.engine.UpdateLine(ctx, versionID, line.ID, value)
	case "remove":
		line, err := r.findLine(ctx, versionID, component)
		if err != nil {
			return TraceEvent{}, err
		}
		return ev, r.engine.DeleteLine(ctx, versionID, line.ID)
	default:
		return TraceEvent{}, fmt.Errorf("unknown edit action %q", step.Action)
	}
}

func (r *runner) editTarget(ctx context.Context, step *EditStep) (bom.VersionID, TraceEvent, error) {
	switch {
	case step.Order != "":
		id, ok := r.orders[step.Order]
		if !ok {
			return bom.VersionID{}, TraceEvent{}, fmt.Errorf("unknown order %q", step.Order)
		}
		order, err := r.engine.Order(ctx, id)
		if err != nil {
			return bom.VersionID{}, TraceEvent{}, err
		}
		if order.CandidateVersion == nil {
			return bom.VersionID{}, TraceEvent{}, fmt.Errorf("order %q has no candidate", step.Order)
		}
		return *order.CandidateVersion, TraceEvent{Order: step.Order}, nil
	case step.Product != "":
		active, err := r.engine.ActiveVersion(ctx, bomdef.ResolveID(step.Product))
		if err != nil {
			return bom.VersionID{}, TraceEvent{}, err
		}
		return active.ID, TraceEvent{Product: step.Product}, nil
	default:
		return bom.VersionID{}, TraceEvent{}, fmt.Errorf("edit needs 'product' or 'order'")
	}
}

func (r *runner) findLine(ctx context.Context, versionID bom.VersionID, component bom.ProductID) (bom.ComponentLine, error) {
	v, err := r.engine.Version(ctx, versionID)
	if err != nil {
		return bom.ComponentLine{}, err
	}
	line, ok := v.FindLine(component)
	if !ok {
		return bom.ComponentLine{}, fmt.Errorf("no line for component in version %s", versionID)
	}
	return line, nil
}

func editValue(step *EditStep) (bom.LineValue, error) {
	qty, err := bom.ParseQuantity(step.Quantity)
	if err != nil {
		return bom.LineValue{}, err
	}
	if step.Unit == "" {
		return bom.LineValue{}, fmt.Errorf("edit needs 'unit'")
	}
	return bom.LineValue{Quantity: qty, Unit: step.Unit, Operation: step.Operation}, nil
}

func stateErrorCode(err error) string {
	switch {
	case engine.IsInvalidState(err):
		return "INVALID_STATE"
	case engine.IsPendingRebase(err):
		return "PENDING_REBASE"
	case engine.IsNotFound(err):
		return "NOT_FOUND"
	default:
		return ""
	}
}
