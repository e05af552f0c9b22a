package harness

import (
	"context"
	"fmt"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/bomdef"
)

// checkAssertion evaluates one assertion, returning "" when it holds.
func (r *runner) checkAssertion(ctx context.Context, a Assertion) string {
	switch a.Type {
	case "order_state":
		return r.checkOrderState(ctx, a)
	case "record_count":
		return r.checkRecordCount(ctx, a)
	case "line_value":
		return r.checkLineValue(ctx, a)
	case "line_absent":
		return r.checkLineAbsent(ctx, a)
	case "rebased":
		return r.checkRebased(ctx, a)
	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
}

func (r *runner) lookupOrder(ctx context.Context, name string) (bom.ChangeOrder, string) {
	id, ok := r.orders[name]
	if !ok {
		return bom.ChangeOrder{}, fmt.Sprintf("unknown order %q", name)
	}
	order, err := r.engine.Order(ctx, id)
	if err != nil {
		return bom.ChangeOrder{}, err.Error()
	}
	return order, ""
}

func (r *runner) checkOrderState(ctx context.Context, a Assertion) string {
	order, msg := r.lookupOrder(ctx, a.Order)
	if msg != "" {
		return msg
	}
	if string(order.State) != a.State {
		return fmt.Sprintf("order %s state = %s, want %s", a.Order, order.State, a.State)
	}
	return ""
}

func (r *runner) checkRecordCount(ctx context.Context, a Assertion) string {
	order, msg := r.lookupOrder(ctx, a.Order)
	if msg != "" {
		return msg
	}
	n, err := r.store.CountRecordsForOrder(ctx, order.ID)
	if err != nil {
		return err.Error()
	}
	if n != a.Count {
		return fmt.Sprintf("order %s has %d record(s), want %d", a.Order, n, a.Count)
	}
	return ""
}

// assertedVersion resolves the version an assertion inspects: the
// product's active version or an order's candidate.
func (r *runner) assertedVersion(ctx context.Context, a Assertion) (bom.Version, string) {
	switch a.Version {
	case "", "active":
		v, err := r.engine.ActiveVersion(ctx, bomdef.ResolveID(a.Product))
		if err != nil {
			return bom.Version{}, err.Error()
		}
		return v, ""
	case "candidate":
		order, msg := r.lookupOrder(ctx, a.Order)
		if msg != "" {
			return bom.Version{}, msg
		}
		if order.CandidateVersion == nil {
			return bom.Version{}, fmt.Sprintf("order %s has no candidate", a.Order)
		}
		v, err := r.engine.Version(ctx, *order.CandidateVersion)
		if err != nil {
			return bom.Version{}, err.Error()
		}
		return v, ""
	default:
		return bom.Version{}, fmt.Sprintf("unknown version selector %q", a.Version)
	}
}

func (r *runner) checkLineValue(ctx context.Context, a Assertion) string {
	v, msg := r.assertedVersion(ctx, a)
	if msg != "" {
		return msg
	}
	line, ok := v.FindLine(bomdef.ResolveID(a.Component))
	if !ok {
		return fmt.Sprintf("component %s has no line", a.Component)
	}
	want := bom.LineValue{Quantity: bom.MustQuantity(a.Quantity), Unit: a.Unit}
	if !line.Value.Equal(want) {
		return fmt.Sprintf("component %s = %s, want %s", a.Component, line.Value, want)
	}
	return ""
}

func (r *runner) checkLineAbsent(ctx context.Context, a Assertion) string {
	v, msg := r.assertedVersion(ctx, a)
	if msg != "" {
		return msg
	}
	if _, ok := v.FindLine(bomdef.ResolveID(a.Component)); ok {
		return fmt.Sprintf("component %s unexpectedly present", a.Component)
	}
	return ""
}

func (r *runner) checkRebased(ctx context.Context, a Assertion) string {
	order, msg := r.lookupOrder(ctx, a.Order)
	if msg != "" {
		return msg
	}
	active, err := r.engine.ActiveVersion(ctx, order.Product)
	if err != nil {
		return err.Error()
	}
	if order.BaseVersion != active.ID {
		return fmt.Sprintf("order %s base %s is not the active version %s", a.Order, order.BaseVersion, active.ID)
	}
	return ""
}
