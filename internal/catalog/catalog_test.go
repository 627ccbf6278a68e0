package catalog

import (
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(c.Items()) == 0 {
		t.Fatal("embedded catalog is empty")
	}

	it, ok := c.ByName("固源岩组")
	if !ok {
		t.Fatal("固源岩组 not found by name")
	}
	if it.ID != "30013" || it.Tier != 3 {
		t.Errorf("固源岩组 = {%s, tier %d}, want {30013, tier 3}", it.ID, it.Tier)
	}

	if _, ok := c.ByID("4001"); !ok {
		t.Error("LMD not found by id")
	}
}

func TestMaterialByName(t *testing.T) {
	c := New([]Item{
		{ID: "30013", Name: "固源岩组", Tier: 3},
		{ID: "30014", Name: "提纯源岩", Tier: 4},
		{ID: "4003", Name: "合成玉", Tier: 5},
	})

	tests := []struct {
		name     string
		item     string
		tier     int
		wantID   string
		wantOK   bool
	}{
		{"tier-3 material", "固源岩组", 3, "30013", true},
		{"wrong tier filtered", "提纯源岩", 3, "", false},
		{"any tier", "提纯源岩", 0, "30014", true},
		{"outside material range", "合成玉", 0, "", false},
		{"unknown name", "不存在", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, ok := c.MaterialByName(tt.item, tt.tier)
			if ok != tt.wantOK {
				t.Fatalf("MaterialByName(%q, %d) ok = %v, want %v", tt.item, tt.tier, ok, tt.wantOK)
			}
			if ok && it.ID != tt.wantID {
				t.Errorf("id = %s, want %s", it.ID, tt.wantID)
			}
		})
	}
}

func TestIsMaterialID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"30013", true},
		{"31073", true},
		{"29999", false},
		{"32000", false},
		{"4001", false},
		{"mod_unlock_token", false},
	}
	for _, tt := range tests {
		if got := IsMaterialID(tt.id); got != tt.want {
			t.Errorf("IsMaterialID(%s) = %v, want %v", tt.id, got, tt.want)
		}
	}
}

func TestNameVariants(t *testing.T) {
	c := New([]Item{
		{ID: "3302", Name: "技巧概要·卷2", Tier: 3},
		{ID: "30103", Name: "RMA70-12", Tier: 3},
		{ID: "30011", Name: "源岩", Tier: 1},
	})

	interpunct, _ := c.ByName("技巧概要·卷2")
	wantAny(t, interpunct.Variants(), "技巧概要・卷2")
	wantAny(t, interpunct.Variants(), "技巧概要‧卷2")

	hyphen, _ := c.ByName("RMA70-12")
	wantAny(t, hyphen.Variants(), "RMA70−12")
	wantAny(t, hyphen.Variants(), "RMA70–12")

	plain, _ := c.ByName("源岩")
	if len(plain.Variants()) != 1 || plain.Variants()[0] != "源岩" {
		t.Errorf("plain name variants = %v, want just the name", plain.Variants())
	}
}

func wantAny(t *testing.T, variants []string, want string) {
	t.Helper()
	for _, v := range variants {
		if v == want {
			return
		}
	}
	t.Errorf("variants %v missing %q", variants, want)
}
