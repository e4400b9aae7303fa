package corpusio

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"glyphstat/domain/core"
	"glyphstat/domain/morphology"
	"glyphstat/ports"
)

// InventoryFile is the YAML layout of a component inventory.
type InventoryFile struct {
	Components []morphology.Component `yaml:"components"`
}

// ReadInventory loads an inventory file as revision 1.
func ReadInventory(path string) (*morphology.Inventory, error) {
	var file InventoryFile
	if err := decodeYAML(path, &file); err != nil {
		return nil, err
	}
	if len(file.Components) == 0 {
		return nil, core.NewValidationError("inventory", "no components in "+path)
	}
	return morphology.NewInventory(file.Components)
}

// WriteInventory stores every component of inv.
func WriteInventory(path string, inv *morphology.Inventory) error {
	data, err := yaml.Marshal(InventoryFile{Components: inv.Components()})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Battery is a YAML hypothesis file: standalone hypotheses and families.
type Battery struct {
	Hypotheses []ports.HypothesisSpec `yaml:"hypotheses"`
	Families   []ports.FamilySpec     `yaml:"families"`
}

// ReadBattery loads a hypothesis file and rejects duplicate ids across
// hypotheses and family members.
func ReadBattery(path string) (*Battery, error) {
	var b Battery
	if err := decodeYAML(path, &b); err != nil {
		return nil, err
	}
	seen := make(map[core.HypothesisID]bool)
	check := func(spec ports.HypothesisSpec) error {
		if spec.ID == "" {
			return core.NewValidationError("hypothesis", "id cannot be empty")
		}
		if seen[spec.ID] {
			return core.NewValidationError("hypothesis", fmt.Sprintf("duplicate id %s", spec.ID))
		}
		seen[spec.ID] = true
		return nil
	}
	for _, h := range b.Hypotheses {
		if err := check(h); err != nil {
			return nil, err
		}
	}
	for _, f := range b.Families {
		if f.ID == "" {
			return nil, core.NewValidationError("family", "id cannot be empty")
		}
		for _, h := range f.Hypotheses {
			if err := check(h); err != nil {
				return nil, err
			}
		}
	}
	if len(seen) == 0 {
		return nil, core.NewValidationError("hypothesis", "no hypotheses in "+path)
	}
	return &b, nil
}

func decodeYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrInvalidInput, path, err)
	}
	return nil
}
