package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status <product>",
		Short:         "Show a product's active version and open change orders",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			product := parseProductID(args[0])

			active, err := s.engine.ActiveVersion(ctx, product)
			if err != nil {
				return s.renderDomainError(err)
			}
			orders, err := s.engine.OrdersForProduct(ctx, product)
			if err != nil {
				return err
			}

			type lineView struct {
				Component string `json:"component"`
				Value     string `json:"value"`
			}
			payload := struct {
				Product  string         `json:"product"`
				Version  string         `json:"version"`
				Revision int64          `json:"revision"`
				Lines    []lineView     `json:"lines"`
				Orders   []orderSummary `json:"orders"`
			}{
				Product:  product.String(),
				Version:  active.ID.String(),
				Revision: active.Revision,
			}
			for _, l := range active.Lines {
				payload.Lines = append(payload.Lines, lineView{
					Component: l.Component.String(),
					Value:     l.Value.String(),
				})
			}
			for _, o := range orders {
				if o.State.Terminal() {
					continue
				}
				sum, err := s.summarize(ctx, o)
				if err != nil {
					return err
				}
				payload.Orders = append(payload.Orders, sum)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "product %s\nactive version %s (revision %d)\n", payload.Product, payload.Version, payload.Revision)
			for _, l := range payload.Lines {
				fmt.Fprintf(&b, "  %s  %s\n", l.Component, l.Value)
			}
			if len(payload.Orders) == 0 {
				b.WriteString("no open change orders")
			} else {
				fmt.Fprintf(&b, "%d open change order(s):", len(payload.Orders))
				for _, o := range payload.Orders {
					fmt.Fprintf(&b, "\n  %s  %-13s pending=%d", o.ID, o.State, o.PendingRecords)
				}
			}
			return s.out.SuccessText(b.String(), payload)
		},
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "history <product>",
		Short:         "Show a product's version chain and activation log",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			product := parseProductID(args[0])

			versions, err := s.engine.VersionHistory(ctx, product)
			if err != nil {
				return err
			}
			activations, err := s.engine.Activations(ctx, product)
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				msg := fmt.Sprintf("product %s has no versions", product)
				_ = s.out.Error("NOT_FOUND", msg, nil)
				return WrapExitError(ExitFailure, msg, nil)
			}

			type versionView struct {
				Version  string `json:"version"`
				Revision int64  `json:"revision"`
				Active   bool   `json:"active"`
			}
			type activationView struct {
				Seq        int64   `json:"seq"`
				OldVersion *string `json:"old_version,omitempty"`
				NewVersion string  `json:"new_version"`
				Source     string  `json:"source"`
				OccurredAt string  `json:"occurred_at"`
			}
			payload := struct {
				Product     string           `json:"product"`
				Versions    []versionView    `json:"versions"`
				Activations []activationView `json:"activations"`
			}{Product: product.String()}

			for _, v := range versions {
				payload.Versions = append(payload.Versions, versionView{
					Version:  v.ID.String(),
					Revision: v.Revision,
					Active:   v.Active,
				})
			}
			for _, a := range activations {
				view := activationView{
					Seq:        a.Seq,
					NewVersion: a.NewVersion.String(),
					Source:     a.Source,
					OccurredAt: a.OccurredAt.Format(time.RFC3339),
				}
				if a.OldVersion != nil {
					old := a.OldVersion.String()
					view.OldVersion = &old
				}
				payload.Activations = append(payload.Activations, view)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "product %s\nversions:\n", payload.Product)
			for _, v := range payload.Versions {
				marker := " "
				if v.Active {
					marker = "*"
				}
				fmt.Fprintf(&b, "  %s r%-4d %s\n", marker, v.Revision, v.Version)
			}
			b.WriteString("activations:")
			for _, a := range payload.Activations {
				from := "-"
				if a.OldVersion != nil {
					from = *a.OldVersion
				}
				fmt.Fprintf(&b, "\n  #%d %s: %s -> %s (%s)", a.Seq, a.Source, from, a.NewVersion, a.OccurredAt)
			}
			return s.out.SuccessText(b.String(), payload)
		},
	}
}
