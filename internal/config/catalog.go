package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

// Catalog lists the account types and symbol groups rebate rates are keyed
// by, plus the rates the root IB starts with.
type Catalog struct {
	AccountTypes []string   `yaml:"account_types"`
	SymbolGroups []string   `yaml:"symbol_groups"`
	RootRates    []RootRate `yaml:"root_rates"`
}

// RootRate sets one cell of the root's matrix. An empty AccountType applies
// the amount to every account type.
type RootRate struct {
	AccountType string `yaml:"account_type"`
	SymbolGroup string `yaml:"symbol_group"`
	Amount      string `yaml:"amount"`
}

var DefaultSymbolGroups = []string{"forex", "stocks", "indices", "commodities", "metals", "cryptocurrency"}

func LoadCatalog(catalogFile string) (*Catalog, error) {
	var catalogPath string
	if filepath.IsAbs(catalogFile) {
		catalogPath = catalogFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		catalogPath = filepath.Join(wd, catalogFile)
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogFile, err)
	}
	return ParseCatalog(data)
}

func ParseCatalog(data []byte) (*Catalog, error) {
	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unable to parse catalog: %w", err)
	}

	if len(catalog.AccountTypes) == 0 {
		return nil, fmt.Errorf("catalog has no account types")
	}
	if len(catalog.SymbolGroups) == 0 {
		catalog.SymbolGroups = DefaultSymbolGroups
	}
	if err := checkNames("account type", catalog.AccountTypes); err != nil {
		return nil, err
	}
	if err := checkNames("symbol group", catalog.SymbolGroups); err != nil {
		return nil, err
	}

	for i, r := range catalog.RootRates {
		if r.SymbolGroup == "" {
			return nil, fmt.Errorf("root rate at index %d missing symbol_group", i)
		}
		amount, err := decimal.NewFromString(r.Amount)
		if err != nil {
			return nil, fmt.Errorf("root rate at index %d has invalid amount %q: %w", i, r.Amount, err)
		}
		if amount.IsNegative() {
			return nil, fmt.Errorf("root rate at index %d is negative", i)
		}
		if r.AccountType != "" && !contains(catalog.AccountTypes, r.AccountType) {
			return nil, fmt.Errorf("root rate at index %d names unknown account type %q", i, r.AccountType)
		}
		if !contains(catalog.SymbolGroups, r.SymbolGroup) {
			return nil, fmt.Errorf("root rate at index %d names unknown symbol group %q", i, r.SymbolGroup)
		}
	}

	return &catalog, nil
}

func checkNames(kind string, names []string) error {
	seen := make(map[string]bool, len(names))
	for i, n := range names {
		if n == "" {
			return fmt.Errorf("%s at index %d is empty", kind, i)
		}
		if seen[n] {
			return fmt.Errorf("duplicate %s %q", kind, n)
		}
		seen[n] = true
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CellKey names one (account type, symbol group) cell.
type CellKey struct {
	AccountType string
	SymbolGroup string
}

// RootMatrix expands RootRates over the catalog. Entries apply in file
// order, so a later account-specific rate overrides an earlier blanket one.
func (c *Catalog) RootMatrix() map[CellKey]decimal.Decimal {
	out := make(map[CellKey]decimal.Decimal)
	for _, r := range c.RootRates {
		amount := decimal.RequireFromString(r.Amount)
		types := c.AccountTypes
		if r.AccountType != "" {
			types = []string{r.AccountType}
		}
		for _, t := range types {
			out[CellKey{AccountType: t, SymbolGroup: r.SymbolGroup}] = amount
		}
	}
	return out
}
