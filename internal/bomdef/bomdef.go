// Package bomdef reads BOM definition documents: YAML files naming a
// product and its component lines. Documents are validated against an
// embedded CUE schema plus semantic checks (parsable quantities, no
// duplicate components) before being handed to the engine.
//
// Products and components may be named either by literal uuid or by a
// symbolic name; symbolic names map to stable uuids, so re-importing a
// document always addresses the same entities.
package bomdef

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/aldersyn/bomrev/internal/bom"
)

//go:embed schema.cue
var schemaCUE string

// Namespace for deriving entity ids from symbolic names.
var nameNamespace = uuid.MustParse("9f2c1a47-5c84-4a1e-9d0a-3b6f0c2e8d11")

// Line is one component entry of a document.
type Line struct {
	Component string `yaml:"component" json:"component"`
	Quantity  string `yaml:"quantity" json:"quantity"`
	Unit      string `yaml:"unit" json:"unit"`
	Operation string `yaml:"operation,omitempty" json:"operation,omitempty"`
}

// Document is a full BOM definition for one product.
type Document struct {
	Product string `yaml:"product" json:"product"`
	Lines   []Line `yaml:"lines" json:"lines"`
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("bomdef: decode: %w", err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and validates a document file.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bomdef: read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("bomdef: %s: %w", path, err)
	}
	return doc, nil
}

// Validate unifies the document with the embedded #Bom schema and then
// applies the checks CUE cannot express.
func Validate(doc *Document) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("bomdef: schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Bom"))
	if !def.Exists() {
		return fmt.Errorf("bomdef: schema: #Bom not found")
	}

	val := ctx.Encode(doc)
	if err := val.Err(); err != nil {
		return fmt.Errorf("bomdef: encode: %w", err)
	}
	unified := def.Unify(val)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return fmt.Errorf("bomdef: invalid document: %w", err)
	}

	seen := make(map[string]bool, len(doc.Lines))
	for _, l := range doc.Lines {
		if seen[l.Component] {
			return fmt.Errorf("bomdef: duplicate component %q", l.Component)
		}
		seen[l.Component] = true
		if _, err := bom.ParseQuantity(l.Quantity); err != nil {
			return fmt.Errorf("bomdef: component %q: %w", l.Component, err)
		}
	}
	return nil
}

// ResolveID maps a product or component name to its uuid: literal uuids
// pass through, anything else derives a stable name-based uuid.
func ResolveID(name string) bom.ProductID {
	if id, err := uuid.Parse(name); err == nil {
		return id
	}
	return uuid.NewSHA1(nameNamespace, []byte(name))
}

// ProductID resolves the document's product identifier.
func (d *Document) ProductID() bom.ProductID {
	return ResolveID(d.Product)
}

// LineSpecs converts the document's lines into engine line specs.
func (d *Document) LineSpecs() ([]bom.LineSpec, error) {
	specs := make([]bom.LineSpec, 0, len(d.Lines))
	for _, l := range d.Lines {
		qty, err := bom.ParseQuantity(l.Quantity)
		if err != nil {
			return nil, fmt.Errorf("bomdef: component %q: %w", l.Component, err)
		}
		specs = append(specs, bom.LineSpec{
			Component: ResolveID(l.Component),
			Value: bom.LineValue{
				Quantity:  qty,
				Unit:      l.Unit,
				Operation: l.Operation,
			},
		})
	}
	return specs, nil
}
