package dedup

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"street type", "123 Main Street", "123 MAIN ST"},
		{"whitespace and compass", "  45   north   maple avenue ", "45 N MAPLE AVE"},
		{"unit prefix", "Unit 5 - 10 Saint George Boulevard", "10 ST GEORGE BLVD"},
		{"hash prefix", "#12 - 99 King Street West", "99 KING ST W"},
		{"apt prefix", "APT 3 - 7 Elm Court", "7 ELM CT"},
		{"stacked prefixes", "#3 - UNIT 4 - 1 Oak Road", "1 OAK RD"},
		{"circle variants", "5 Maple Circ", "5 MAPLE CIR"},
		{"no partial words", "8 Eastwood Drive", "8 EASTWOOD DR"},
		{"empty", "", ""},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"123 Main Street",
		"Unit 5 - 10 Saint George Boulevard",
		"#3 - UNIT 4 - APT 9 - 1 Oak Road",
		"unit 12 -   300 front st w",
		"100 Mount Pleasant Road North",
		"UNIT 7A - 2 Bay St",
		"PH 3 - 88 Harbour Street",
		"",
		"  ",
		"#1-2 Queen St East",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not stable for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizePtr_Nil(t *testing.T) {
	if got := NormalizePtr(nil); got != "" {
		t.Fatalf("NormalizePtr(nil) = %q, want empty", got)
	}
}

func TestExtractUnit(t *testing.T) {
	tests := []struct {
		input    string
		wantUnit string
		wantBase string
	}{
		{"Unit 101 - 50 Harbour St", "101", "50 HARBOUR ST"},
		{"Apt 2B 50 Harbour St", "2B", "50 HARBOUR ST"},
		{"#7 - 1 King St", "7", "1 KING ST"},
		{"1 King St", "", "1 KING ST"},
		{"  lower case address ", "", "LOWER CASE ADDRESS"},
		// dash forms outrank bare forms
		{"UNIT 3 APT 4 - 9 Bloor St", "4", "UNIT 3 9 BLOOR ST"},
		{"", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			unit, base := ExtractUnit(tt.input)
			if unit != tt.wantUnit || base != tt.wantBase {
				t.Errorf("ExtractUnit(%q) = (%q, %q), want (%q, %q)", tt.input, unit, base, tt.wantUnit, tt.wantBase)
			}
		})
	}
}
