package database

import "testing"

func TestSplitVersion(t *testing.T) {
	tests := []struct {
		base        string
		wantVersion string
		wantDesc    string
		wantOK      bool
	}{
		{"20260831_000001_zone_modes", "20260831_000001", "zone_modes", true},
		{"20260831_000002_add_index_on_modes", "20260831_000002", "add_index_on_modes", true},
		{"noversion", "", "", false},
		{"one_two", "", "", false},
	}

	for _, tt := range tests {
		version, desc, ok := splitVersion(tt.base)
		if version != tt.wantVersion || desc != tt.wantDesc || ok != tt.wantOK {
			t.Errorf("splitVersion(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.base, version, desc, ok, tt.wantVersion, tt.wantDesc, tt.wantOK)
		}
	}
}
