package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Pricing is the injected pricing policy: shipping, tax and the promo table.
type Pricing struct {
	Currency              string
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
	PromoTable            map[string]decimal.Decimal
}

// DefaultPricing returns the built-in policy used when no file is configured.
func DefaultPricing() Pricing {
	return Pricing{
		Currency:              "USD",
		FreeShippingThreshold: decimal.RequireFromString("75.00"),
		FlatShippingFee:       decimal.RequireFromString("9.99"),
		TaxRate:               decimal.RequireFromString("0.08"),
		PromoTable: map[string]decimal.Decimal{
			"SAVE10":     decimal.NewFromInt(10),
			"SAVE20":     decimal.NewFromInt(20),
			"MECHANIC15": decimal.NewFromInt(15),
		},
	}
}

type pricingFile struct {
	Currency              string                 `yaml:"currency"`
	FreeShippingThreshold *yamlDecimal           `yaml:"freeShippingThreshold"`
	FlatShippingFee       *yamlDecimal           `yaml:"flatShippingFee"`
	TaxRate               *yamlDecimal           `yaml:"taxRate"`
	PromoTable            map[string]yamlDecimal `yaml:"promoTable"`
}

// yamlDecimal parses a scalar's literal text so 9.99 never passes through float64.
type yamlDecimal struct {
	decimal.Decimal
}

func (d *yamlDecimal) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	parsed, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	d.Decimal = parsed
	return nil
}

// LoadPricing reads the pricing policy from path, or returns the defaults when
// path is empty. Keys missing from the file keep their default values.
func LoadPricing(path string) (Pricing, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPricing(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pricing{}, fmt.Errorf("read pricing config: %w", err)
	}
	return ParsePricing(raw)
}

// ParsePricing decodes a YAML pricing document over the defaults and validates it.
func ParsePricing(raw []byte) (Pricing, error) {
	var f pricingFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Pricing{}, fmt.Errorf("decode pricing config: %w", err)
	}

	p := DefaultPricing()
	if strings.TrimSpace(f.Currency) != "" {
		p.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	}
	if f.FreeShippingThreshold != nil {
		p.FreeShippingThreshold = f.FreeShippingThreshold.Decimal
	}
	if f.FlatShippingFee != nil {
		p.FlatShippingFee = f.FlatShippingFee.Decimal
	}
	if f.TaxRate != nil {
		p.TaxRate = f.TaxRate.Decimal
	}
	if f.PromoTable != nil {
		p.PromoTable = make(map[string]decimal.Decimal, len(f.PromoTable))
		for code, pct := range f.PromoTable {
			p.PromoTable[code] = pct.Decimal
		}
	}
	if err := p.Validate(); err != nil {
		return Pricing{}, err
	}
	return p, nil
}

// Validate checks the policy for values the pricing engine cannot honour.
func (p Pricing) Validate() error {
	if p.FreeShippingThreshold.IsNegative() {
		return errors.New("freeShippingThreshold must not be negative")
	}
	if p.FlatShippingFee.IsNegative() {
		return errors.New("flatShippingFee must not be negative")
	}
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return errors.New("taxRate must be in [0, 1)")
	}
	hundred := decimal.NewFromInt(100)
	for code, pct := range p.PromoTable {
		if strings.TrimSpace(code) == "" {
			return errors.New("promoTable contains an empty code")
		}
		if pct.IsNegative() || pct.GreaterThan(hundred) {
			return fmt.Errorf("promo %q percentage must be in [0, 100]", code)
		}
	}
	return nil
}
