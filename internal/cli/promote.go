package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aldersyn/bomrev/internal/bomdef"
	"github.com/aldersyn/bomrev/internal/ingest"
)

// NewPromoteCommand creates the promote command.
func NewPromoteCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "promote <bom.yaml>",
		Short: "Create and activate a version from a BOM definition document",
		Long: `Create and activate a version from a BOM definition document.

The document is validated against the embedded schema. The first
promotion for a product creates revision 1; later ones supersede the
active version, and open change orders are re-targeted with the diff.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := bomdef.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "loading document", err)
			}
			return promoteDocument(cmd, opts, doc)
		},
	}
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Product string
}

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	importOpts := &ImportOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Promote a version read from a spreadsheet or CSV file",
		Long: `Promote a version read from a spreadsheet or CSV file.

The file needs a header row with component, quantity and unit columns
(operation optional). Rows become the promoted version's lines.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := ingest.ReadFile(args[0], importOpts.Product)
			if err != nil {
				return WrapExitError(ExitCommandError, "reading file", err)
			}
			return promoteDocument(cmd, opts, doc)
		},
	}

	cmd.Flags().StringVar(&importOpts.Product, "product", "", "product the file describes (required)")
	cmd.MarkFlagRequired("product")
	return cmd
}

func promoteDocument(cmd *cobra.Command, opts *RootOptions, doc *bomdef.Document) error {
	specs, err := doc.LineSpecs()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid document", err)
	}

	s, err := openSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	v, err := s.engine.PromoteVersion(cmd.Context(), doc.ProductID(), specs)
	if err != nil {
		return s.renderDomainError(err)
	}
	return s.out.SuccessText(
		fmt.Sprintf("promoted %s revision %d (version %s, %d lines)",
			doc.Product, v.Revision, v.ID, len(v.Lines)),
		map[string]any{
			"product":  v.Product.String(),
			"version":  v.ID.String(),
			"revision": v.Revision,
			"lines":    len(v.Lines),
		},
	)
}
