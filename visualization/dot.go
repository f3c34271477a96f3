package visualization

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/anggasct/signalflow"
)

// DOTGenerator generates Graphviz DOT format representations of the signal cycle
type DOTGenerator struct {
	approaches *signalflow.Approaches
	config     signalflow.SignalConfig
	state      *signalflow.IntersectionState
	options    DOTOptions
}

// DOTOptions configures the DOT generation
type DOTOptions struct {
	ShowTimings   bool
	ShowOverrides bool
	RankDirection string // "TB", "LR", "BT", "RL"
	NodeShape     string
	OverrideStyle string
}

// DefaultDOTOptions returns sensible default options for DOT generation
func DefaultDOTOptions() DOTOptions {
	return DOTOptions{
		ShowTimings:   true,
		ShowOverrides: false,
		RankDirection: "LR",
		NodeShape:     "box",
		OverrideStyle: "dashed",
	}
}

// NewDOTGenerator creates a new DOT generator for the autonomous cycle of approaches
func NewDOTGenerator(approaches *signalflow.Approaches, config signalflow.SignalConfig, options ...DOTOptions) *DOTGenerator {
	opts := DefaultDOTOptions()
	if len(options) > 0 {
		opts = options[0]
	}

	return &DOTGenerator{
		approaches: approaches,
		config:     config,
		options:    opts,
	}
}

// WithState highlights the phases of a snapshot
func (g *DOTGenerator) WithState(state signalflow.IntersectionState) *DOTGenerator {
	g.state = &state
	return g
}

// Generate creates a DOT representation of the signal cycle
func (g *DOTGenerator) Generate() (string, error) {
	if g.approaches == nil || g.approaches.Len() == 0 {
		return "", fmt.Errorf("no approaches to render")
	}

	var dot strings.Builder

	// DOT header
	dot.WriteString("digraph SignalCycle {\n")
	dot.WriteString(fmt.Sprintf("  rankdir=%s;\n", g.options.RankDirection))
	dot.WriteString(fmt.Sprintf("  node [shape=%s style=\"filled\"];\n", g.options.NodeShape))
	dot.WriteString("  edge [fontsize=10];\n\n")

	g.generatePhases(&dot)
	g.generateCycle(&dot)
	if g.options.ShowOverrides {
		g.generateOverrides(&dot)
	}

	// DOT footer
	dot.WriteString("}\n")

	return dot.String(), nil
}

func nodeID(approach signalflow.Approach, phase signalflow.Phase) string {
	return fmt.Sprintf("%s_%s", approach, phase)
}

// generatePhases generates the green and yellow node of every approach
func (g *DOTGenerator) generatePhases(dot *strings.Builder) {
	initial := g.config.InitialApproach
	if initial == "" {
		initial = g.approaches.First()
	}

	dot.WriteString("  // Phases\n")

	for _, approach := range g.approaches.All() {
		for _, phase := range []signalflow.Phase{signalflow.PhaseGreen, signalflow.PhaseYellow} {
			label := fmt.Sprintf("%s\\n%s", approach, phase)
			if approach == initial && phase == signalflow.PhaseGreen {
				label += "\\n(initial)"
			}

			penwidth := 1
			if g.state != nil && g.state.Phase(approach) == phase {
				penwidth = 3
				label += "\\n(current)"
			}

			dot.WriteString(fmt.Sprintf("  \"%s\" [fillcolor=%s penwidth=%d label=\"%s\"];\n",
				nodeID(approach, phase), fillColor(phase), penwidth, label))
		}
	}
	dot.WriteString("\n")
}

// generateCycle generates the autonomous round-robin edges
func (g *DOTGenerator) generateCycle(dot *strings.Builder) {
	dot.WriteString("  // Autonomous cycle\n")

	for _, approach := range g.approaches.All() {
		next := g.approaches.Next(approach)

		greenLabel, yellowLabel := "", ""
		if g.options.ShowTimings {
			greenLabel = fmt.Sprintf(" [label=\"after %s\"]", g.config.DefaultGreen)
			yellowLabel = fmt.Sprintf(" [label=\"after %s\"]", g.config.Yellow)
		}

		dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\"%s;\n",
			nodeID(approach, signalflow.PhaseGreen), nodeID(approach, signalflow.PhaseYellow), greenLabel))
		dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\"%s;\n",
			nodeID(approach, signalflow.PhaseYellow), nodeID(next, signalflow.PhaseGreen), yellowLabel))
	}
}

// generateOverrides generates the edges a decision may take after clearance
func (g *DOTGenerator) generateOverrides(dot *strings.Builder) {
	dot.WriteString("\n  // Overrides\n")

	all := g.approaches.All()
	for _, from := range all {
		for _, to := range all {
			if from == to || g.approaches.Next(from) == to {
				continue
			}
			dot.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\" [style=%s label=\"apply\"];\n",
				nodeID(from, signalflow.PhaseYellow), nodeID(to, signalflow.PhaseGreen), g.options.OverrideStyle))
		}
	}
}

func fillColor(phase signalflow.Phase) string {
	switch phase {
	case signalflow.PhaseGreen:
		return "palegreen"
	case signalflow.PhaseYellow:
		return "lightyellow"
	default:
		return "lightcoral"
	}
}

// GenerateToFile writes the DOT representation to a file
func (g *DOTGenerator) GenerateToFile(filename string) error {
	content, err := g.Generate()
	if err != nil {
		return err
	}

	return os.WriteFile(filename, []byte(content), 0644)
}

// GenerateSequence renders recorded phase changes as a timeline, one node per change
func GenerateSequence(changes []signalflow.PhaseChange) string {
	var dot strings.Builder

	dot.WriteString("digraph PhaseSequence {\n")
	dot.WriteString("  rankdir=TB;\n")
	dot.WriteString("  node [shape=box style=\"filled\"];\n\n")

	if len(changes) == 0 {
		dot.WriteString("}\n")
		return dot.String()
	}

	start := changes[0].At
	for i, change := range changes {
		dot.WriteString(fmt.Sprintf("  \"c%d\" [fillcolor=%s label=\"+%s\\n%s %s -> %s\\n(%s)\"];\n",
			i, fillColor(change.To), change.At.Sub(start), change.Approach, change.From, change.To, change.Cause))
		if i > 0 {
			dot.WriteString(fmt.Sprintf("  \"c%d\" -> \"c%d\";\n", i-1, i))
		}
	}

	dot.WriteString("}\n")
	return dot.String()
}

// SVGGenerator generates SVG representations by calling Graphviz
type SVGGenerator struct {
	dotGenerator *DOTGenerator
}

// NewSVGGenerator creates a new SVG generator
func NewSVGGenerator(approaches *signalflow.Approaches, config signalflow.SignalConfig, options ...DOTOptions) *SVGGenerator {
	return &SVGGenerator{
		dotGenerator: NewDOTGenerator(approaches, config, options...),
	}
}

// Generate creates an SVG representation of the signal cycle
func (g *SVGGenerator) Generate() (string, error) {
	dotContent, err := g.dotGenerator.Generate()
	if err != nil {
		return "", err
	}

	// Use Graphviz dot command to convert DOT to SVG
	cmd := exec.Command("dot", "-Tsvg")
	cmd.Stdin = strings.NewReader(dotContent)

	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("failed to execute dot command: %w (make sure Graphviz is installed)", err)
	}

	return out.String(), nil
}

// GenerateSVG creates an SVG representation of the signal cycle
func (g *DOTGenerator) GenerateSVG() (string, error) {
	svgGen := &SVGGenerator{dotGenerator: g}
	return svgGen.Generate()
}
