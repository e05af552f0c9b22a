package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aldersyn/bomrev/internal/bom"
)

// EditOptions holds flags for the edit subcommands.
type EditOptions struct {
	*RootOptions
	Quantity  string
	Unit      string
	Operation string
	Candidate bool
}

// NewEditCommand creates the edit command group. Edits target the
// product's active version by default; --candidate routes them to an
// order's candidate instead (candidate edits are never diff-captured).
func NewEditCommand(opts *RootOptions) *cobra.Command {
	editOpts := &EditOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit component lines of a version",
		Long: `Edit component lines of a version.

The target argument is a product (edits its active version) or, with
--candidate, an order id (edits that order's candidate version). Active
version edits are diff-captured into every open order based on it.`,
	}

	cmd.PersistentFlags().BoolVar(&editOpts.Candidate, "candidate", false, "target an order's candidate version instead of a product's active version")

	add := &cobra.Command{
		Use:           "add <target> <component>",
		Short:         "Add a component line",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, editOpts, args[0], args[1], editAdd)
		},
	}
	add.Flags().StringVar(&editOpts.Quantity, "qty", "", "line quantity (required)")
	add.Flags().StringVar(&editOpts.Unit, "unit", "", "unit of measure (required)")
	add.Flags().StringVar(&editOpts.Operation, "op", "", "routing operation tag")
	add.MarkFlagRequired("qty")
	add.MarkFlagRequired("unit")

	set := &cobra.Command{
		Use:           "set <target> <component>",
		Short:         "Replace a component line's value",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, editOpts, args[0], args[1], editSet)
		},
	}
	set.Flags().StringVar(&editOpts.Quantity, "qty", "", "line quantity (required)")
	set.Flags().StringVar(&editOpts.Unit, "unit", "", "unit of measure (required)")
	set.Flags().StringVar(&editOpts.Operation, "op", "", "routing operation tag")
	set.MarkFlagRequired("qty")
	set.MarkFlagRequired("unit")

	remove := &cobra.Command{
		Use:           "remove <target> <component>",
		Short:         "Remove a component line",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEdit(cmd, editOpts, args[0], args[1], editRemove)
		},
	}

	cmd.AddCommand(add, set, remove)
	return cmd
}

type editFn func(cmd *cobra.Command, s *session, opts *EditOptions, versionID bom.VersionID, component bom.ProductID) error

func runEdit(cmd *cobra.Command, opts *EditOptions, target, component string, fn editFn) error {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	versionID, err := resolveEditTarget(cmd, s, opts, target)
	if err != nil {
		return s.renderDomainError(err)
	}
	if err := fn(cmd, s, opts, versionID, parseProductID(component)); err != nil {
		return s.renderDomainError(err)
	}
	return nil
}

// resolveEditTarget maps the target argument to the version being edited.
func resolveEditTarget(cmd *cobra.Command, s *session, opts *EditOptions, target string) (bom.VersionID, error) {
	if opts.Candidate {
		orderID, err := parseOrderID(target)
		if err != nil {
			return bom.VersionID{}, err
		}
		order, err := s.engine.Order(cmd.Context(), orderID)
		if err != nil {
			return bom.VersionID{}, err
		}
		if order.CandidateVersion == nil {
			return bom.VersionID{}, WrapExitError(ExitFailure,
				fmt.Sprintf("order %s has no candidate version (state %s)", orderID, order.State), nil)
		}
		return *order.CandidateVersion, nil
	}

	active, err := s.engine.ActiveVersion(cmd.Context(), parseProductID(target))
	if err != nil {
		return bom.VersionID{}, err
	}
	return active.ID, nil
}

func (o *EditOptions) lineValue() (bom.LineValue, error) {
	qty, err := bom.ParseQuantity(o.Quantity)
	if err != nil {
		return bom.LineValue{}, WrapExitError(ExitCommandError, "invalid --qty", err)
	}
	if o.Unit == "" {
		return bom.LineValue{}, WrapExitError(ExitCommandError, "--unit must not be empty", nil)
	}
	return bom.LineValue{Quantity: qty, Unit: o.Unit, Operation: o.Operation}, nil
}

func editAdd(cmd *cobra.Command, s *session, opts *EditOptions, versionID bom.VersionID, component bom.ProductID) error {
	value, err := opts.lineValue()
	if err != nil {
		return err
	}
	line, err := s.engine.InsertLine(cmd.Context(), versionID, component, value)
	if err != nil {
		return err
	}
	return s.out.SuccessText(
		fmt.Sprintf("added %s: %s", component, value),
		map[string]string{"line_id": line.ID.String(), "version": versionID.String()},
	)
}

func editSet(cmd *cobra.Command, s *session, opts *EditOptions, versionID bom.VersionID, component bom.ProductID) error {
	value, err := opts.lineValue()
	if err != nil {
		return err
	}
	line, err := findLine(cmd, s, versionID, component)
	if err != nil {
		return err
	}
	if err := s.engine.UpdateLine(cmd.Context(), versionID, line.ID, value); err != nil {
		return err
	}
	return s.out.SuccessText(
		fmt.Sprintf("set %s: %s", component, value),
		map[string]string{"line_id": line.ID.String(), "version": versionID.String()},
	)
}

func editRemove(cmd *cobra.Command, s *session, _ *EditOptions, versionID bom.VersionID, component bom.ProductID) error {
	line, err := findLine(cmd, s, versionID, component)
	if err != nil {
		return err
	}
	if err := s.engine.DeleteLine(cmd.Context(), versionID, line.ID); err != nil {
		return err
	}
	return s.out.SuccessText(
		fmt.Sprintf("removed %s", component),
		map[string]string{"line_id": line.ID.String(), "version": versionID.String()},
	)
}

func findLine(cmd *cobra.Command, s *session, versionID bom.VersionID, component bom.ProductID) (bom.ComponentLine, error) {
	v, err := s.engine.Version(cmd.Context(), versionID)
	if err != nil {
		return bom.ComponentLine{}, err
	}
	line, ok := v.FindLine(component)
	if !ok {
		return bom.ComponentLine{}, WrapExitError(ExitFailure,
			fmt.Sprintf("version %s has no line for component %s", versionID, component), nil)
	}
	return line, nil
}
