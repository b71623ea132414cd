package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/warden/internal/ir"
)

// DiagramOptions controls Mermaid rendering.
type DiagramOptions struct {
	// Fenced wraps the output in a ```mermaid code fence.
	Fenced bool
	// Highlight marks a state, typically the current one.
	Highlight string
	// Descriptions labels edges with transition descriptions.
	Descriptions bool
}

// Diagram renders a feature as a Mermaid state diagram. Terminal states
// get an edge to [*] and the finalState class.
func Diagram(spec *ir.FeatureSpec, opts DiagramOptions) string {
	var sb strings.Builder

	if opts.Fenced {
		sb.WriteString("```mermaid\n")
	}
	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    %%%% feature: %s\n", spec.Name)
	fmt.Fprintf(&sb, "    [*] --> %s\n", spec.InitialState)

	outgoing := make(map[string][]ir.TransitionDef)
	for _, tr := range spec.Transitions {
		outgoing[tr.From] = append(outgoing[tr.From], tr)
	}

	for _, st := range spec.States {
		if st.Description != "" {
			fmt.Fprintf(&sb, "    %s: %s\n", st.Name, st.Description)
		}
		for _, tr := range outgoing[st.Name] {
			label := ""
			if opts.Descriptions && tr.Description != "" {
				label = ": " + tr.Description
			}
			fmt.Fprintf(&sb, "    %s --> %s%s\n", tr.From, tr.To, label)
		}

		final := st.Terminal || len(outgoing[st.Name]) == 0
		switch {
		case st.Name == opts.Highlight:
			fmt.Fprintf(&sb, "    class %s highlighted\n", st.Name)
		case final:
			fmt.Fprintf(&sb, "    class %s finalState\n", st.Name)
		}
		if final {
			fmt.Fprintf(&sb, "    %s --> [*]\n", st.Name)
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef finalState fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n")
	sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")

	if opts.Fenced {
		sb.WriteString("```\n")
	}
	return sb.String()
}
