package shop

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `
cars:
  - make: Toyota
    model: Camry
    year: 2021
    price: "23500.00"
    condition: USED
  - make: Lada
    model: Vesta
    year: 2023
    price: "1250000"
    condition: NEW
`

func TestParseCatalog(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Cars, 2)

	car, err := c.Cars[1].Car()
	require.NoError(t, err)
	assert.Equal(t, "Lada", car.Make)
	assert.Equal(t, 2023, car.Year)
	assert.Equal(t, "1250000", car.Price.String())
	assert.Equal(t, ConditionNew, car.Condition)
}

func TestParseCatalogEmpty(t *testing.T) {
	c, err := ParseCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Cars)
}

func TestParseCatalogInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":     "cars:\n  - make: A\n    model: B\n    year: 2000\n    price: \"1\"\n    condition: NEW\n    color: red\n",
		"missing model":     "cars:\n  - make: A\n    year: 2000\n    price: \"1\"\n    condition: NEW\n",
		"zero year":         "cars:\n  - make: A\n    model: B\n    year: 0\n    price: \"1\"\n    condition: NEW\n",
		"price not numeric": "cars:\n  - make: A\n    model: B\n    year: 2000\n    price: cheap\n    condition: NEW\n",
		"unknown condition": "cars:\n  - make: A\n    model: B\n    year: 2000\n    price: \"1\"\n    condition: RUSTY\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cars.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, c.Cars, 2)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
