package warehouse

import (
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/aristath/rampwatch/internal/domain"
)

// seedEntry is one warehouse in a seed file. Limits are inlined next to the
// facility balances; anything omitted keeps its default.
type seedEntry struct {
	Config          domain.WarehouseConfig `yaml:",inline"`
	DebtOutstanding *float64               `yaml:"debt_outstanding"`
	CashBalance     float64                `yaml:"cash_balance"`
}

type seedFile struct {
	Warehouses map[string]yaml.Node `yaml:"warehouses"`
}

// ParseSeed decodes a seed document:
//
//	warehouses:
//	  WH-1:
//	    advance_rate: 0.75
//	    debt_outstanding: 40000000
//	    stress_config:
//	      cdr_ccc: 0.2
//
// Every entry starts from DefaultWarehouseConfig, so a seed only lists what
// differs. Entries come back by name; all invalid entries are reported together.
func ParseSeed(r io.Reader) ([]Settings, error) {
	var doc seedFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return []Settings{}, nil
		}
		return nil, fmt.Errorf("failed to parse seed: %w", err)
	}

	names := make([]string, 0, len(doc.Warehouses))
	for name := range doc.Warehouses {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Settings, 0, len(names))
	var errs error
	for _, name := range names {
		node := doc.Warehouses[name]
		entry := seedEntry{Config: domain.DefaultWarehouseConfig()}
		if err := node.Decode(&entry); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		if err := entry.Config.Validate(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out = append(out, Settings{
			Warehouse: name,
			Config:    entry.Config,
			Facility: domain.Facility{
				DebtOutstanding: entry.DebtOutstanding,
				CashBalance:     entry.CashBalance,
			},
		})
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// SeedFile loads a YAML seed file and upserts every warehouse in it.
// Nothing is written if any entry is invalid.
func (r *Repository) SeedFile(path string) ([]Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	settings, err := ParseSeed(f)
	if err != nil {
		return nil, err
	}
	for _, s := range settings {
		if err := r.Upsert(s); err != nil {
			return nil, err
		}
	}

	r.log.Info().Str("file", path).Int("warehouses", len(settings)).Msg("Seeded warehouse settings")
	return settings, nil
}
