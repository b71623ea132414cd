package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/ir"
)

// FeatureDiagram is a rendered Mermaid diagram.
type FeatureDiagram struct {
	Feature string `json:"feature"`
	Mermaid string `json:"mermaid"`
}

// NewGraphCommand creates the graph command.
func NewGraphCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		rulesDir  string
		highlight string
		diagram   engine.DiagramOptions
	)

	cmd := &cobra.Command{
		Use:   "graph [feature]",
		Short: "Render features as Mermaid state diagrams",
		Long: `Render one feature, or every feature in the rules directory, as a
Mermaid stateDiagram-v2.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			rs, err := loadRules(f, rulesDir)
			if err != nil {
				return err
			}

			specs := rs.Features()
			if len(args) == 1 {
				t, err := featureTable(f, rs, args[0])
				if err != nil {
					return err
				}
				specs = []*ir.FeatureSpec{t.Spec()}
			}

			diagram.Highlight = highlight
			out := make([]FeatureDiagram, 0, len(specs))
			for _, spec := range specs {
				out = append(out, FeatureDiagram{Feature: spec.Name, Mermaid: engine.Diagram(spec, diagram)})
			}

			if f.JSON() {
				return f.Success(out)
			}
			for i, d := range out {
				if i > 0 {
					fmt.Fprintln(f.Writer)
				}
				fmt.Fprint(f.Writer, d.Mermaid)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesDir, "rules", ".", "rules directory")
	cmd.Flags().StringVar(&highlight, "highlight", "", "state to highlight")
	cmd.Flags().BoolVar(&diagram.Fenced, "fenced", false, "wrap output in a mermaid code fence")
	cmd.Flags().BoolVar(&diagram.Descriptions, "descriptions", false, "label edges with transition descriptions")

	return cmd
}
