package harness

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/aldersyn/bomrev/internal/bomdef"
)

// Scenario is a declarative end-to-end exercise of the engine: a list of
// steps executed in order against a fresh in-memory store, followed by
// assertions on the resulting state.
//
// Products, components and orders are addressed by symbolic names; the
// runner maps them to ids, so scenarios and their golden traces stay
// deterministic.
type Scenario struct {
	// Name uniquely identifies this scenario (and its golden file).
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps is the flow to execute, in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	Promote     *PromoteStep     `yaml:"promote,omitempty"`
	CreateOrder *CreateOrderStep `yaml:"create_order,omitempty"`
	Start       *OrderRef        `yaml:"start,omitempty"`
	Edit        *EditStep        `yaml:"edit,omitempty"`
	Rebase      *OrderRef        `yaml:"rebase,omitempty"`
	Resolve     *OrderRef        `yaml:"resolve,omitempty"`
	Apply       *OrderRef        `yaml:"apply,omitempty"`
	Cancel      *OrderRef        `yaml:"cancel,omitempty"`
}

// PromoteStep promotes a full BOM for a product.
type PromoteStep struct {
	Product string        `yaml:"product"`
	Lines   []bomdef.Line `yaml:"lines"`
}

// CreateOrderStep opens a draft order and binds it to a symbolic name.
type CreateOrderStep struct {
	As      string `yaml:"as"`
	Product string `yaml:"product"`
}

// OrderRef names an order for a lifecycle step. ExpectError asserts the
// step fails with the given error code instead of succeeding.
type OrderRef struct {
	Order       string `yaml:"order"`
	ExpectError string `yaml:"expect_error,omitempty"`
}

// EditStep mutates a component line. Product targets the product's
// active version (diff-captured); Order targets that order's candidate.
type EditStep struct {
	Product   string `yaml:"product,omitempty"`
	Order     string `yaml:"order,omitempty"`
	Action    string `yaml:"action"` // "add" | "set" | "remove"
	Component string `yaml:"component"`
	Quantity  string `yaml:"quantity,omitempty"`
	Unit      string `yaml:"unit,omitempty"`
	Operation string `yaml:"operation,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type selects the check:
	//   - "order_state": the order is in State.
	//   - "record_count": the order holds Count pending records.
	//   - "line_value": Version ("active" of Product / "candidate" of
	//     Order) holds a Component line with Quantity and Unit.
	//   - "line_absent": that version has no line for Component.
	//   - "rebased": the order's base is the product's active version.
	Type string `yaml:"type"`

	Order     string `yaml:"order,omitempty"`
	State     string `yaml:"state,omitempty"`
	Count     int    `yaml:"count,omitempty"`
	Product   string `yaml:"product,omitempty"`
	Version   string `yaml:"version,omitempty"`
	Component string `yaml:"component,omitempty"`
	Quantity  string `yaml:"quantity,omitempty"`
	Unit      string `yaml:"unit,omitempty"`
}

// LoadScenario reads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: read %s: %w", path, err)
	}
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("harness: parse %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, fmt.Errorf("harness: %s: scenario has no name", path)
	}
	return &s, nil
}
