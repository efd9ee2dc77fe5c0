package platform

import (
	"errors"
	"testing"
)

func TestValidator(t *testing.T) {
	var v Validator
	v.Check(IsRequired("notebook"), "name", "required", "name is required")
	if err := v.Err(); err != nil {
		t.Fatalf("Err() = %v, want nil", err)
	}

	v.Check(IsRequired("  "), "name", "required", "name is required")
	v.Check(MinValue(-1.0, 0), "price", "min", "price must not be negative")

	err := v.Err()
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Err() = %T, want ValidationErrors", err)
	}
	if len(verrs) != 2 || verrs[0].Field != "name" || verrs[1].Code != "min" {
		t.Errorf("errors = %+v", verrs)
	}
	want := "validation failed: name: name is required; price: price must not be negative"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestValidationRules(t *testing.T) {
	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"required", IsRequired("notebook"), true},
		{"required blank", IsRequired("  \t"), false},
		{"max length runes", MaxLength("ñññ", 3), true},
		{"max length long", MaxLength("abcd", 3), false},
		{"min value float", MinValue(0.0, 0), true},
		{"min value int64", MinValue(int64(-1), 0), false},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}
