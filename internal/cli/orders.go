package cli

import (
	"github.com/spf13/cobra"

	"github.com/aldersyn/bomrev/internal/bom"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <product>",
		Short: "Open a draft change order against a product's active version",
		Example: `  bomrev create garden-table
  bomrev create 4b2c6f0e-8f4a-4c1d-9e2b-7a5d3c1f9b0e`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			order, err := s.engine.CreateOrder(cmd.Context(), parseProductID(args[0]))
			if err != nil {
				return s.renderDomainError(err)
			}
			return s.emitOrder(cmd.Context(), order)
		},
	}
}

// NewStartCommand creates the start command.
func NewStartCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "start <order-id>",
		Short:         "Start a revision: clone the base into a candidate version",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderTransition(cmd, opts, args[0], func(s *session, id bom.OrderID) (bom.ChangeOrder, error) {
				return s.engine.StartRevision(cmd.Context(), id)
			})
		},
	}
}

// NewRebaseCommand creates the rebase command.
func NewRebaseCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebase <order-id>",
		Short: "Replay pending change records onto the candidate version",
		Long: `Replay pending change records onto the candidate version.

Records that replay cleanly are consumed. Divergent records are kept and
flagged, and the order moves to the conflict state for review.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderTransition(cmd, opts, args[0], func(s *session, id bom.OrderID) (bom.ChangeOrder, error) {
				return s.engine.ApplyRebase(cmd.Context(), id)
			})
		},
	}
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "resolve <order-id>",
		Short:         "Resolve a conflicted rebase by accepting the base-side values",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderTransition(cmd, opts, args[0], func(s *session, id bom.OrderID) (bom.ChangeOrder, error) {
				return s.engine.ResolveConflict(cmd.Context(), id)
			})
		},
	}
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "apply <order-id>",
		Short:         "Activate the candidate version and close the order",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderTransition(cmd, opts, args[0], func(s *session, id bom.OrderID) (bom.ChangeOrder, error) {
				return s.engine.Apply(cmd.Context(), id)
			})
		},
	}
}

// NewCancelCommand creates the cancel command.
func NewCancelCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cancel <order-id>",
		Short:         "Abandon an order, dropping its candidate and records",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrderTransition(cmd, opts, args[0], func(s *session, id bom.OrderID) (bom.ChangeOrder, error) {
				return s.engine.Cancel(cmd.Context(), id)
			})
		},
	}
}

// NewDeleteDraftCommand creates the delete-draft command.
func NewDeleteDraftCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete-draft <order-id>",
		Short:         "Hard-delete a draft order that never started a revision",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.engine.DeleteDraft(cmd.Context(), id); err != nil {
				return s.renderDomainError(err)
			}
			return s.out.SuccessText("draft deleted", map[string]string{"deleted": id.String()})
		},
	}
}

// runOrderTransition shares the parse/open/emit plumbing of the
// single-order lifecycle commands.
func runOrderTransition(cmd *cobra.Command, opts *RootOptions, arg string, fn func(*session, bom.OrderID) (bom.ChangeOrder, error)) error {
	id, err := parseOrderID(arg)
	if err != nil {
		return err
	}
	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	order, err := fn(s, id)
	if err != nil {
		return s.renderDomainError(err)
	}
	return s.emitOrder(cmd.Context(), order)
}
