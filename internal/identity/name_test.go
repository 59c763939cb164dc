package identity

import (
	"errors"
	"testing"
)

func TestCleanName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"Alice", "Alice", false},
		{"  Bob  ", "Bob", false},
		{"Jan   Novák", "Jan Novák", false},
		{"\tMary\nAnn ", "Mary Ann", false},
		{"", "", true},
		{"   ", "", true},
		{"\t\n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := CleanName(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidName) {
					t.Fatalf("CleanName(%q) error = %v, want ErrInvalidName", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("CleanName(%q) unexpected error: %v", tt.input, err)
			}
			if result != tt.expected {
				t.Errorf("CleanName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestCleanName_ComposesUnicode(t *testing.T) {
	decomposed := "Jiri\u0301"
	result, err := CleanName(decomposed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Jir\u00ed" {
		t.Errorf("expected NFC form, got %q", result)
	}
}
