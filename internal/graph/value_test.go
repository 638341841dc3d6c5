package graph

import (
	"context"
	"errors"
	"math/big"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	t.Parallel()

	bigN, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	dec, _ := new(big.Rat).SetString("12.625")

	tests := []struct {
		name string
		dt   DataType
		v    any
	}{
		{"int32", Int32, int32(-42)},
		{"int64", Int64, int64(1 << 40)},
		{"string", String, "hello|world"},
		{"float64", Float64, 3.141592653589793},
		{"decimal", Decimal, dec},
		{"bigint", BigInt, bigN},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s, err := EncodeValue(tc.v)
			if err != nil {
				t.Fatalf("EncodeValue(%v) error = %v", tc.v, err)
			}
			got, err := DecodeValue(tc.dt, s)
			if err != nil {
				t.Fatalf("DecodeValue(%v, %q) error = %v", tc.dt, s, err)
			}
			switch want := tc.v.(type) {
			case *big.Rat:
				if got.(*big.Rat).Cmp(want) != 0 {
					t.Fatalf("decimal round trip = %v, want %v", got, want)
				}
			case *big.Int:
				if got.(*big.Int).Cmp(want) != 0 {
					t.Fatalf("bigint round trip = %v, want %v", got, want)
				}
			default:
				if got != tc.v {
					t.Fatalf("round trip = %#v, want %#v", got, tc.v)
				}
			}
		})
	}
}

func TestEncodeValue_Unsupported(t *testing.T) {
	t.Parallel()

	if _, err := EncodeValue(true); err == nil {
		t.Fatalf("EncodeValue(bool) expected error")
	}
}

func TestParseDataType(t *testing.T) {
	t.Parallel()

	for d := Int32; d <= BigInt; d++ {
		got, err := ParseDataType(d.String())
		if err != nil || got != d {
			t.Fatalf("ParseDataType(%q) = %v, %v", d.String(), got, err)
		}
	}
	if _, err := ParseDataType("bool"); err == nil {
		t.Fatalf("ParseDataType(bool) expected error")
	}
}

func TestOpen_UnknownKindAndConnectionFailure(t *testing.T) {
	if _, err := Open(context.Background(), Config{Kind: "nope"}); err == nil {
		t.Fatalf("Open(nope) expected error")
	}

	Register("failing-test", func(context.Context, Config) (Store, error) {
		return nil, errors.New("dial tcp: refused")
	})
	_, err := Open(context.Background(), Config{Kind: "failing-test"})
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Open(failing-test) = %v, want ErrConnection", err)
	}
}

func TestLabelOf(t *testing.T) {
	t.Parallel()

	if got := LabelOf("Person.id"); got != "Person" {
		t.Fatalf("LabelOf = %q", got)
	}
	if got := LabelOf("plain"); got != "plain" {
		t.Fatalf("LabelOf = %q", got)
	}
}
