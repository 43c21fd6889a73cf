package shop

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Catalog is a YAML list of cars to stock the dealership with on startup:
//
//	cars:
//	  - make: Toyota
//	    model: Camry
//	    year: 2021
//	    price: "23500.00"
//	    condition: USED
type Catalog struct {
	Cars []CatalogEntry `yaml:"cars" validate:"dive"`
}

type CatalogEntry struct {
	Make      string `yaml:"make" validate:"required"`
	Model     string `yaml:"model" validate:"required"`
	Year      int    `yaml:"year" validate:"gt=0"`
	Price     string `yaml:"price" validate:"required,numeric"`
	Condition string `yaml:"condition" validate:"required,oneof=NEW USED PRE_OWNED REPUBLIC REPAIRED SALVAGE DEMO TEST_VEHICLE"`
}

// Car converts the entry, rejecting negative prices.
func (e CatalogEntry) Car() (Car, error) {
	price, err := decimal.NewFromString(e.Price)
	if err != nil {
		return Car{}, fmt.Errorf("price %q: %w", e.Price, err)
	}
	if price.IsNegative() {
		return Car{}, fmt.Errorf("%w: negative price %s", ErrInvalidCar, e.Price)
	}
	return Car{
		Make:      e.Make,
		Model:     e.Model,
		Year:      e.Year,
		Price:     price,
		Condition: Condition(e.Condition),
	}, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ParseCatalog decodes and validates a catalog.
func ParseCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return Catalog{}, fmt.Errorf("invalid catalog: %w", err)
	}
	return c, nil
}

// LoadCatalog reads the catalog file at path.
func LoadCatalog(path string) (Catalog, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Catalog{}, err
	}
	defer f.Close()
	return ParseCatalog(f)
}
