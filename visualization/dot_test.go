package visualization_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/anggasct/signalflow"
	"github.com/anggasct/signalflow/visualization"
)

func newGenerator(options ...visualization.DOTOptions) *visualization.DOTGenerator {
	config := signalflow.DefaultConfig()
	return visualization.NewDOTGenerator(signalflow.MustApproaches(config.Approaches...), config.Signal, options...)
}

func TestDOTGeneration(t *testing.T) {
	dotContent, err := newGenerator().Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	if !strings.Contains(dotContent, "digraph SignalCycle") {
		t.Error("DOT content should contain graph declaration")
	}

	if !strings.Contains(dotContent, "\"north_green\" -> \"north_yellow\" [label=\"after 30s\"]") {
		t.Error("DOT content should contain the green to yellow edge with default green time")
	}

	if !strings.Contains(dotContent, "\"west_yellow\" -> \"north_green\" [label=\"after 3s\"]") {
		t.Error("DOT content should wrap the cycle from west back to north")
	}

	if !strings.Contains(dotContent, "(initial)") {
		t.Error("DOT content should mark the initial approach")
	}

	if strings.Contains(dotContent, "apply") {
		t.Error("DOT content should not contain override edges by default")
	}

	t.Logf("Generated DOT content:\n%s", dotContent)
}

func TestDOTGenerationWithOverrides(t *testing.T) {
	options := visualization.DefaultDOTOptions()
	options.ShowOverrides = true
	options.ShowTimings = false

	dotContent, err := newGenerator(options).Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	if !strings.Contains(dotContent, "\"north_yellow\" -> \"south_green\" [style=dashed label=\"apply\"]") {
		t.Error("DOT content should contain override edges")
	}

	// the cyclic successor is already an autonomous edge; 4 approaches x 2 others
	if got := strings.Count(dotContent, "label=\"apply\""); got != 8 {
		t.Errorf("Expected 8 override edges, got %d", got)
	}

	if strings.Contains(dotContent, "after") {
		t.Error("DOT content should not contain timings")
	}
}

func TestDOTGenerationWithState(t *testing.T) {
	state := signalflow.IntersectionState{
		Phases: map[signalflow.Approach]signalflow.Phase{signalflow.East: signalflow.PhaseYellow},
		Active: signalflow.East,
	}

	dotContent, err := newGenerator().WithState(state).Generate()
	if err != nil {
		t.Fatalf("Failed to generate DOT: %v", err)
	}

	if !strings.Contains(dotContent, "\"east_yellow\" [fillcolor=lightyellow penwidth=3") {
		t.Error("DOT content should highlight the current phase")
	}
}

func TestDOTGeneration_NoApproaches(t *testing.T) {
	generator := visualization.NewDOTGenerator(nil, signalflow.DefaultConfig().Signal)
	if _, err := generator.Generate(); err == nil {
		t.Error("Expected error without approaches")
	}
}

func TestGenerateSequence(t *testing.T) {
	start := time.Now()
	changes := []signalflow.PhaseChange{
		{Approach: signalflow.North, From: signalflow.PhaseGreen, To: signalflow.PhaseYellow, At: start, Cause: signalflow.CauseOverride},
		{Approach: signalflow.North, From: signalflow.PhaseYellow, To: signalflow.PhaseRed, At: start.Add(3 * time.Second), Cause: signalflow.CauseOverride},
		{Approach: signalflow.East, From: signalflow.PhaseRed, To: signalflow.PhaseGreen, At: start.Add(3 * time.Second), Cause: signalflow.CauseOverride},
	}

	dotContent := visualization.GenerateSequence(changes)

	if !strings.Contains(dotContent, "\"c1\" -> \"c2\"") {
		t.Error("Sequence should chain changes")
	}

	if !strings.Contains(dotContent, "+3s\\nnorth yellow -> red") {
		t.Error("Sequence should label changes with their offset")
	}

	if empty := visualization.GenerateSequence(nil); !strings.Contains(empty, "digraph PhaseSequence") {
		t.Error("Empty sequence should still be a valid graph")
	}
}

func TestDOTGenerator_GenerateToFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "cycle.dot")

	if err := newGenerator().GenerateToFile(filename); err != nil {
		t.Fatalf("Failed to generate DOT file: %v", err)
	}

	content, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("Failed to read DOT file: %v", err)
	}

	if !strings.Contains(string(content), "digraph SignalCycle") {
		t.Error("DOT file should contain the graph")
	}
}

func TestSVGGenerator(t *testing.T) {
	if _, err := exec.LookPath("dot"); err != nil {
		t.Skip("Graphviz not installed")
	}

	config := signalflow.DefaultConfig()
	generator := visualization.NewSVGGenerator(signalflow.MustApproaches(config.Approaches...), config.Signal)

	svgContent, err := generator.Generate()
	if err != nil {
		t.Fatalf("Failed to generate SVG: %v", err)
	}

	if !strings.Contains(svgContent, "<svg") {
		t.Error("Content should be valid SVG")
	}
}
