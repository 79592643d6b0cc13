package chronos

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateValue(t *testing.T) {
	tests := []struct {
		name  string
		value Value
		valid bool
	}{
		{name: "String", value: String("Earth"), valid: true},
		{name: "EmptyString", value: String(""), valid: true},
		{name: "Number", value: Number(-12.5), valid: true},
		{name: "Bool", value: Bool(false), valid: true},
		{name: "Ref", value: Ref(NewEntityID()), valid: true},
		{name: "Nil", value: nil},
		{name: "NaN", value: Number(math.NaN())},
		{name: "Infinity", value: Number(math.Inf(-1))},
		{name: "RefToNothing", value: Ref{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateValue(tt.value)
			if tt.valid && err != nil {
				t.Errorf("ValidateValue(%v) = %v, want nil", tt.value, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidValue) {
				t.Errorf("ValidateValue(%v) = %v, want %v", tt.value, err, ErrInvalidValue)
			}
		})
	}
}

func TestEncodeValue(t *testing.T) {
	ref := MustParseEntityID("6f1c1d0e-7a35-4c4b-9b7e-0d2e5b0c4a11")
	tests := []struct {
		value Value
		kind  Kind
		text  string
	}{
		{value: String("New Earth"), kind: KindString, text: "New Earth"},
		{value: Number(0.1), kind: KindNumber, text: "0.1"},
		{value: Number(1e21), kind: KindNumber, text: "1e+21"},
		{value: Bool(true), kind: KindBool, text: "true"},
		{value: Ref(ref), kind: KindRef, text: "6f1c1d0e-7a35-4c4b-9b7e-0d2e5b0c4a11"},
	}
	for _, tt := range tests {
		kind, text, err := EncodeValue(tt.value)
		if err != nil {
			t.Errorf("EncodeValue(%v) failed: %v", tt.value, err)
			continue
		}
		if kind != tt.kind || text != tt.text {
			t.Errorf("EncodeValue(%v) = (%v, %q), want (%v, %q)", tt.value, kind, text, tt.kind, tt.text)
		}
		decoded, err := DecodeValue(kind, text)
		if err != nil {
			t.Errorf("DecodeValue(%v, %q) failed: %v", kind, text, err)
			continue
		}
		if diff := cmp.Diff(tt.value, decoded); diff != "" {
			t.Errorf("DecodeValue(%v, %q) mismatch (-want +got):\n%s", kind, text, diff)
		}
	}

	if _, _, err := EncodeValue(Number(math.NaN())); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("EncodeValue(NaN) = %v, want %v", err, ErrInvalidValue)
	}
}

func TestDecodeValueRejectsGarbage(t *testing.T) {
	tests := []struct {
		kind Kind
		text string
	}{
		{kind: KindNumber, text: "many"},
		{kind: KindNumber, text: "NaN"},
		{kind: KindBool, text: "maybe"},
		{kind: KindRef, text: "nobody"},
		{kind: KindRef, text: "00000000-0000-0000-0000-000000000000"},
		{kind: Kind(42), text: "?"},
	}
	for _, tt := range tests {
		if v, err := DecodeValue(tt.kind, tt.text); !errors.Is(err, ErrInvalidValue) {
			t.Errorf("DecodeValue(%v, %q) = (%v, %v), want %v", tt.kind, tt.text, v, err, ErrInvalidValue)
		}
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{KindString, KindNumber, KindBool, KindRef} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = (%v, %v), want %v", k.String(), got, err, k)
		}
	}
	if _, err := ParseKind("colour"); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("ParseKind(colour) = %v, want %v", err, ErrInvalidValue)
	}
	if got, want := Kind(9).String(), "kind(9)"; got != want {
		t.Errorf("Kind(9).String() = %q, want %q", got, want)
	}
}
