package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aldersyn/bomrev/internal/bomdef"
)

func promoteLine(component, quantity, unit string) []bomdef.Line {
	return []bomdef.Line{{Component: component, Quantity: quantity, Unit: unit}}
}

// TestScenarios runs every scenario file against its golden trace.
func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)
		t.Run(scenario.Name, func(t *testing.T) {
			RunWithGolden(t, scenario)
		})
	}
}

func TestLoadScenario_Errors(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestRun_AssertionFailureReported(t *testing.T) {
	scenario := &Scenario{
		Name: "failing-assertion",
		Steps: []Step{
			{Promote: &PromoteStep{
				Product: "table",
				Lines:   promoteLine("table-leg", "4", "pcs"),
			}},
		},
		Assertions: []Assertion{
			{Type: "line_value", Product: "table", Version: "active", Component: "table-leg", Quantity: "5", Unit: "pcs"},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "line_value")
}

func TestRun_UnexpectedStepErrorFails(t *testing.T) {
	scenario := &Scenario{
		Name: "apply-from-draft",
		Steps: []Step{
			{Promote: &PromoteStep{
				Product: "table",
				Lines:   promoteLine("table-leg", "4", "pcs"),
			}},
			{CreateOrder: &CreateOrderStep{As: "O1", Product: "table"}},
			{Apply: &OrderRef{Order: "O1"}},
		},
	}
	_, err := Run(scenario)
	assert.Error(t, err)
}

func TestRun_ExpectedStepError(t *testing.T) {
	scenario := &Scenario{
		Name: "apply-from-draft-expected",
		Steps: []Step{
			{Promote: &PromoteStep{
				Product: "table",
				Lines:   promoteLine("table-leg", "4", "pcs"),
			}},
			{CreateOrder: &CreateOrderStep{As: "O1", Product: "table"}},
			{Apply: &OrderRef{Order: "O1", ExpectError: "INVALID_STATE"}},
		},
	}
	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Passed())
	assert.Equal(t, "INVALID_STATE", result.Snapshot.Trace[2].Error)
}
