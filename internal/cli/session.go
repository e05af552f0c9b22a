package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/aldersyn/bomrev/internal/bom"
	"github.com/aldersyn/bomrev/internal/bomdef"
	"github.com/aldersyn/bomrev/internal/engine"
	"github.com/aldersyn/bomrev/internal/store"
)

// session bundles what every command needs once flags are parsed.
type session struct {
	engine *engine.Engine
	store  *store.Store
	out    *OutputFormatter
}

// openSession opens the database and wires the engine. The caller must
// close the returned session.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	if opts.Database != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.Database), 0o755); err != nil {
			return nil, WrapExitError(ExitCommandError, "creating database directory", err)
		}
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "opening database", err)
	}
	eng, err := engine.New(cmd.Context(), st)
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "starting engine", err)
	}
	return &session{
		engine: eng,
		store:  st,
		out: &OutputFormatter{
			Format:  opts.Format,
			Writer:  cmd.OutOrStdout(),
			Verbose: opts.Verbose,
		},
	}, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// parseOrderID requires a literal order uuid.
func parseOrderID(arg string) (bom.OrderID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return bom.OrderID{}, WrapExitError(ExitCommandError, fmt.Sprintf("invalid order id %q", arg), err)
	}
	return id, nil
}

// parseProductID accepts a uuid or a symbolic product name.
func parseProductID(arg string) bom.ProductID {
	return bomdef.ResolveID(arg)
}

// renderDomainError converts engine errors into formatter output plus an
// exit code; unexpected errors pass through untouched.
func (s *session) renderDomainError(err error) error {
	var serr *engine.StateError
	if !errors.As(err, &serr) {
		return err
	}
	_ = s.out.Error(string(serr.Code), serr.Error(), nil)
	return WrapExitError(ExitFailure, serr.Error(), err)
}

// orderSummary is the JSON payload describing an order.
type orderSummary struct {
	ID               string  `json:"id"`
	Product          string  `json:"product"`
	State            string  `json:"state"`
	BaseVersion      string  `json:"base_version"`
	CandidateVersion *string `json:"candidate_version,omitempty"`
	PendingRecords   int     `json:"pending_records"`
}

func (s *session) summarize(ctx context.Context, order bom.ChangeOrder) (orderSummary, error) {
	pending, err := s.store.CountRecordsForOrder(ctx, order.ID)
	if err != nil {
		return orderSummary{}, err
	}
	sum := orderSummary{
		ID:             order.ID.String(),
		Product:        order.Product.String(),
		State:          string(order.State),
		BaseVersion:    order.BaseVersion.String(),
		PendingRecords: pending,
	}
	if order.CandidateVersion != nil {
		v := order.CandidateVersion.String()
		sum.CandidateVersion = &v
	}
	return sum, nil
}

func (sum orderSummary) text() string {
	out := fmt.Sprintf("order %s\n  product:  %s\n  state:    %s\n  base:     %s",
		sum.ID, sum.Product, sum.State, sum.BaseVersion)
	if sum.CandidateVersion != nil {
		out += fmt.Sprintf("\n  candidate: %s", *sum.CandidateVersion)
	}
	if sum.PendingRecords > 0 {
		out += fmt.Sprintf("\n  pending:  %d record(s)", sum.PendingRecords)
	}
	return out
}

// emitOrder renders an order in the configured format.
func (s *session) emitOrder(ctx context.Context, order bom.ChangeOrder) error {
	sum, err := s.summarize(ctx, order)
	if err != nil {
		return err
	}
	return s.out.SuccessText(sum.text(), sum)
}
