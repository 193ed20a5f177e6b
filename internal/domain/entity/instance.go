package entity

import (
	"fmt"
	"strings"
)

// ItemInstance is a mutable per-character copy of a catalog definition. The
// instance carries its own identity so durability and identification state
// can diverge between copies of the same catalog row.
type ItemInstance struct {
	InstanceID   string `json:"instanceId"`
	DefinitionID string `json:"definitionId"`
	Kind         Kind   `json:"kind"`
	Name         string `json:"name"`
	Flags        Flags  `json:"flags"`
	Identified   bool   `json:"identified"`
	Durability   int    `json:"durability"`
	Charges      int    `json:"charges,omitempty"`
}

// FullDurability is the durability a freshly minted instance starts with.
const FullDurability = 100

// NewItemInstance clones a catalog definition into a fresh instance. The
// catalog identity is preserved in DefinitionID while the instance gets its
// own InstanceID.
func NewItemInstance(def Definition, instanceID string) (ItemInstance, error) {
	if err := def.Validate(); err != nil {
		return ItemInstance{}, err
	}
	if strings.TrimSpace(instanceID) == "" {
		return ItemInstance{}, fmt.Errorf("instance id is required")
	}
	if instanceID == def.ID {
		return ItemInstance{}, fmt.Errorf("instance id must differ from catalog id %q", def.ID)
	}

	return ItemInstance{
		InstanceID:   instanceID,
		DefinitionID: def.ID,
		Kind:         def.Kind,
		Name:         def.Name,
		Flags:        def.Flags,
		Identified:   !def.Flags.Unidentified,
		Durability:   FullDurability,
	}, nil
}

// CloneInstances deep-copies an inventory slice so stored records never alias
// the caller's in-memory items.
func CloneInstances(items []ItemInstance) []ItemInstance {
	if items == nil {
		return nil
	}
	out := make([]ItemInstance, len(items))
	copy(out, items)
	return out
}
