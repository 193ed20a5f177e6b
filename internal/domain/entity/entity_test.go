package entity

import "testing"

func TestDefinitionValidate(t *testing.T) {
	valid := Definition{ID: "rusty_blade", Kind: KindWeapon, Name: "Rusty Blade"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("validate definition: %v", err)
	}

	cases := []struct {
		name string
		def  Definition
	}{
		{"empty id", Definition{Kind: KindWeapon, Name: "Blade"}},
		{"empty name", Definition{ID: "blade", Kind: KindWeapon}},
		{"unknown kind", Definition{ID: "blade", Kind: Kind("potion"), Name: "Blade"}},
	}
	for _, tc := range cases {
		if err := tc.def.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestAllKindsCoversEightKinds(t *testing.T) {
	kinds := AllKinds()
	if len(kinds) != 8 {
		t.Fatalf("expected 8 entity kinds, got %d", len(kinds))
	}
	seen := make(map[Kind]bool)
	for _, k := range kinds {
		if seen[k] {
			t.Fatalf("duplicate kind %q", k)
		}
		seen[k] = true
	}
}

func TestNewItemInstanceClonesDefinition(t *testing.T) {
	def := Definition{
		ID:    "cursed_visor",
		Kind:  KindAccessory,
		Name:  "Cursed Visor",
		Flags: Flags{Magical: true, Cursed: true, Unidentified: true},
	}

	inst, err := NewItemInstance(def, "inst-0001")
	if err != nil {
		t.Fatalf("new item instance: %v", err)
	}
	if inst.InstanceID != "inst-0001" {
		t.Fatalf("expected instance id to be preserved, got %q", inst.InstanceID)
	}
	if inst.DefinitionID != def.ID {
		t.Fatalf("expected definition id %q, got %q", def.ID, inst.DefinitionID)
	}
	if inst.Identified {
		t.Fatal("expected unidentified definition to produce unidentified instance")
	}
	if inst.Durability != FullDurability {
		t.Fatalf("expected full durability, got %d", inst.Durability)
	}
}

func TestNewItemInstanceRejectsCatalogID(t *testing.T) {
	def := Definition{ID: "rusty_blade", Kind: KindWeapon, Name: "Rusty Blade"}
	if _, err := NewItemInstance(def, "rusty_blade"); err == nil {
		t.Fatal("expected instance id equal to catalog id to be rejected")
	}
	if _, err := NewItemInstance(def, " "); err == nil {
		t.Fatal("expected blank instance id to be rejected")
	}
}

func TestCloneInstancesDoesNotAlias(t *testing.T) {
	items := []ItemInstance{{InstanceID: "a", DefinitionID: "blade", Durability: 50}}
	cloned := CloneInstances(items)
	cloned[0].Durability = 10

	if items[0].Durability != 50 {
		t.Fatalf("expected original durability untouched, got %d", items[0].Durability)
	}
	if CloneInstances(nil) != nil {
		t.Fatal("expected nil inventory to stay nil")
	}
}
