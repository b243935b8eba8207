package scope

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadTables decodes reference data from YAML. Sections present in the
// document replace the corresponding built-in section; absent sections keep
// the defaults. Unknown keys are rejected.
func LoadTables(r io.Reader) (Tables, error) {
	t := DefaultTables()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return Tables{}, fmt.Errorf("scope: decode tables: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(t.Profiles))
	for i, p := range t.Profiles {
		if p.Trade == "" {
			errs = append(errs, fmt.Errorf("profiles[%d].trade is required", i))
			continue
		}
		if seen[string(p.Trade)] {
			errs = append(errs, fmt.Errorf("profiles[%d].trade %q is a duplicate", i, p.Trade))
		}
		seen[string(p.Trade)] = true
		for j, it := range p.Items {
			if it.Description == "" || it.Pattern == "" {
				errs = append(errs, fmt.Errorf("profiles[%d].items[%d] needs a description and a pattern", i, j))
			}
		}
	}
	for i, a := range t.Advisories {
		if a.Pattern == "" || a.Message == "" {
			errs = append(errs, fmt.Errorf("advisories[%d] needs a pattern and a message", i))
		}
	}
	for i, m := range t.Materials {
		if m.Name == "" || m.Pattern == "" {
			errs = append(errs, fmt.Errorf("materials[%d] needs a name and a pattern", i))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return Tables{}, fmt.Errorf("scope: invalid tables: %w", err)
	}
	return t, nil
}

// LoadTablesFile reads reference data from the YAML file at path.
func LoadTablesFile(path string) (Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return Tables{}, fmt.Errorf("scope: open tables %q: %w", path, err)
	}
	defer f.Close()
	return LoadTables(f)
}
