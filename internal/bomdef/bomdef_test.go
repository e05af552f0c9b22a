package bomdef

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDoc = `
product: garden-table
lines:
  - component: table-leg
    quantity: "4"
    unit: pcs
  - component: table-top
    quantity: "1"
    unit: pcs
    operation: assembly
`

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)
	assert.Equal(t, "garden-table", doc.Product)
	require.Len(t, doc.Lines, 2)
	assert.Equal(t, "assembly", doc.Lines[1].Operation)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"missing product": `
lines:
  - {component: leg, quantity: "4", unit: pcs}
`,
		"empty component": `
product: table
lines:
  - {component: "", quantity: "4", unit: pcs}
`,
		"negative quantity": `
product: table
lines:
  - {component: leg, quantity: "-4", unit: pcs}
`,
		"non-numeric quantity": `
product: table
lines:
  - {component: leg, quantity: four, unit: pcs}
`,
		"missing unit": `
product: table
lines:
  - {component: leg, quantity: "4", unit: ""}
`,
		"duplicate component": `
product: table
lines:
  - {component: leg, quantity: "4", unit: pcs}
  - {component: leg, quantity: "2", unit: pcs}
`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestResolveID(t *testing.T) {
	// Symbolic names derive stable ids.
	assert.Equal(t, ResolveID("table-leg"), ResolveID("table-leg"))
	assert.NotEqual(t, ResolveID("table-leg"), ResolveID("table-top"))

	// Literal uuids pass through.
	id := uuid.New()
	assert.Equal(t, id, ResolveID(id.String()))
}

func TestLineSpecs(t *testing.T) {
	doc, err := Parse([]byte(validDoc))
	require.NoError(t, err)

	specs, err := doc.LineSpecs()
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, ResolveID("table-leg"), specs[0].Component)
	assert.Equal(t, "4", specs[0].Value.Quantity.String())
	assert.Equal(t, "pcs", specs[0].Value.Unit)
	assert.Equal(t, "assembly", specs[1].Value.Operation)
}
