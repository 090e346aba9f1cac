package roomcode

import (
	"errors"
	"testing"
)

func TestGenerate_WellFormed(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := Generate()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := Validate(code); err != nil {
			t.Fatalf("generated code %q failed validation: %v", code, err)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		code string
		ok   bool
	}{
		{"1000", true},
		{"9999", true},
		{"4821", true},
		{"0999", false}, // leading zero is outside the generated range
		{"999", false},
		{"12345", false},
		{"12a4", false},
		{"", false},
		{" 1234", false},
	}
	for _, tt := range tests {
		err := Validate(tt.code)
		if tt.ok && err != nil {
			t.Errorf("Validate(%q): unexpected error %v", tt.code, err)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidCode) {
			t.Errorf("Validate(%q): expected ErrInvalidCode, got %v", tt.code, err)
		}
	}
}
