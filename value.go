package chronos

import (
	"encoding/gob"
	"fmt"
	"math"
	"strconv"
)

// Value is the assigned value of a Fact. It is a closed variant: the only
// implementations are String, Number, Bool and Ref, so a type switch over
// those four cases is exhaustive.
//
// Type-assert (or switch on Kind) to access the concrete value.
type Value interface {
	// Kind reports which of the four variants the value is.
	Kind() Kind
	// String returns a human-readable representation of the value, mostly for
	// logs and the command line.
	String() string

	// chronos is a no-op method that seals the interface; types outside this
	// package cannot implement Value.
	chronos()
}

// Kind tags the variant of a Value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindNumber
	KindBool
	KindRef
)

var kindNames = map[Kind]string{
	KindString: "string",
	KindNumber: "number",
	KindBool:   "boolean",
	KindRef:    "reference",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown value kind %q", ErrInvalidValue, s)
}

// String is a textual Value.
type String string

// Number is a numeric Value. Only finite numbers are valid.
type Number float64

// Bool is a boolean Value.
type Bool bool

// Ref is a Value that references another entity of the same store.
type Ref EntityID

func (String) Kind() Kind { return KindString }
func (Number) Kind() Kind { return KindNumber }
func (Bool) Kind() Kind   { return KindBool }
func (Ref) Kind() Kind    { return KindRef }

func (s String) String() string { return string(s) }
func (n Number) String() string { return strconv.FormatFloat(float64(n), 'g', -1, 64) }
func (b Bool) String() string   { return strconv.FormatBool(bool(b)) }
func (r Ref) String() string    { return "ref(" + EntityID(r).String() + ")" }

func (String) chronos() {}
func (Number) chronos() {}
func (Bool) chronos()   {}
func (Ref) chronos()    {}

// Register the variants with gob, so that facts travel inside Changed
// messages (see changes.go).
func init() {
	gob.RegisterName("chronos.String", String(""))
	gob.RegisterName("chronos.Number", Number(0))
	gob.RegisterName("chronos.Bool", Bool(false))
	gob.RegisterName("chronos.Ref", Ref{})
}

// ValidateValue reports whether v is acceptable as the value of a fact. A nil
// value, a non-finite Number and a Ref to the zero EntityID are rejected with
// ErrInvalidValue.
//
// ValidateValue does not check that a Ref resolves; the fact log does that
// against its registry.
func ValidateValue(v Value) error {
	switch x := v.(type) {
	case nil:
		return fmt.Errorf("%w: nil value", ErrInvalidValue)
	case String, Bool:
		return nil
	case Number:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("%w: non-finite number %v", ErrInvalidValue, float64(x))
		}
		return nil
	case Ref:
		if EntityID(x).IsZero() {
			return fmt.Errorf("%w: reference to the zero entity", ErrInvalidValue)
		}
		return nil
	default:
		// Unreachable while Value remains sealed.
		return fmt.Errorf("%w: unsupported value %T", ErrInvalidValue, v)
	}
}

// EncodeValue flattens v into its kind and a textual payload, for engines that
// store values in columns or properties. DecodeValue reverses it.
func EncodeValue(v Value) (kind Kind, text string, err error) {
	if err := ValidateValue(v); err != nil {
		return 0, "", err
	}
	switch x := v.(type) {
	case String:
		return KindString, string(x), nil
	case Number:
		return KindNumber, strconv.FormatFloat(float64(x), 'g', -1, 64), nil
	case Bool:
		return KindBool, strconv.FormatBool(bool(x)), nil
	case Ref:
		return KindRef, EntityID(x).String(), nil
	}
	panic("unreachable")
}

// DecodeValue builds the Value encoded by EncodeValue. It rejects payloads
// that EncodeValue never produces, such as "NaN".
func DecodeValue(kind Kind, text string) (Value, error) {
	v, err := decodeValue(kind, text)
	if err != nil {
		return nil, err
	}
	if err := ValidateValue(v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeValue(kind Kind, text string) (Value, error) {
	switch kind {
	case KindString:
		return String(text), nil
	case KindNumber:
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: number: %v", ErrInvalidValue, err)
		}
		return Number(f), nil
	case KindBool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("%w: boolean: %v", ErrInvalidValue, err)
		}
		return Bool(b), nil
	case KindRef:
		id, err := ParseEntityID(text)
		if err != nil {
			return nil, fmt.Errorf("%w: reference: %v", ErrInvalidValue, err)
		}
		return Ref(id), nil
	default:
		return nil, fmt.Errorf("%w: unknown value kind %v", ErrInvalidValue, kind)
	}
}
