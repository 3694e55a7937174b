package slug

import (
	"regexp"
	"testing"
)

var hexPattern = regexp.MustCompile(`^[0-9a-f]+$`)

func TestGenerate_DefaultLength(t *testing.T) {
	s := Generate(DefaultLength)

	if len(s) != 8 {
		t.Errorf("expected length 8, got %d (%q)", len(s), s)
	}
	if !hexPattern.MatchString(s) {
		t.Errorf("expected hex string, got %q", s)
	}
}

func TestGenerate_CustomLength(t *testing.T) {
	for _, length := range []int{1, 4, 12, 20} {
		s := Generate(length)
		if len(s) != length {
			t.Errorf("length %d: got %d (%q)", length, len(s), s)
		}
	}
}

func TestGenerate_ZeroLengthFallsBack(t *testing.T) {
	s := Generate(0)
	if len(s) != DefaultLength {
		t.Errorf("expected default length %d, got %d", DefaultLength, len(s))
	}
}

func TestGenerate_NoRepeats(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := Generate(DefaultLength)
		if seen[s] {
			t.Fatalf("generated duplicate slug %q after %d iterations", s, i)
		}
		seen[s] = true
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		slug string
		want error
	}{
		{"simple", "my-link", nil},
		{"mixed case preserved", "MyLink_2", nil},
		{"single char", "a", nil},
		{"max length", "abcdefghij0123456789", nil},
		{"empty", "", ErrEmpty},
		{"too long", "abcdefghij0123456789x", ErrTooLong},
		{"spaces", "my link", ErrInvalidChars},
		{"slash", "a/b", ErrInvalidChars},
		{"unicode", "café", ErrInvalidChars},
		{"reserved api", "api", ErrReserved},
		{"reserved health", "health", ErrReserved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.slug); err != tt.want {
				t.Errorf("Validate(%q) = %v, want %v", tt.slug, err, tt.want)
			}
		})
	}
}
