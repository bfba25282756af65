package row

import (
	"fmt"
	"math/big"
	"strings"
)

const (
	MaxPrecision = 38
	DefaultScale = 18
	decimalBytes = 16
)

var (
	two128    = new(big.Int).Lsh(big.NewInt(1), 128)
	maxScaled = new(big.Int).Exp(big.NewInt(10), big.NewInt(MaxPrecision), nil)
)

// Decimal is an arbitrary precision number Unscaled * 10^-Scale.
type Decimal struct {
	Unscaled *big.Int
	Scale    int32
}

func NewDecimal(unscaled int64, scale int32) Decimal {
	return Decimal{Unscaled: big.NewInt(unscaled), Scale: scale}
}

// ParseDecimal parses a plain decimal literal ("-12.340") at the given scale.
func ParseDecimal(s string, scale int32) (Decimal, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(s))
	if !ok {
		return Decimal{}, fmt.Errorf("%w: bad decimal %q", ErrSchemaMismatch, s)
	}
	return decimalFromRat(r, scale)
}

func decimalFromRat(r *big.Rat, scale int32) (Decimal, error) {
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	num := new(big.Int).Mul(r.Num(), pow)
	q, rem := new(big.Int).QuoRem(num, r.Denom(), new(big.Int))
	if rem.Sign() != 0 {
		return Decimal{}, fmt.Errorf("%w: %s does not fit scale %d", ErrSchemaMismatch, r.RatString(), scale)
	}
	return Decimal{Unscaled: q, Scale: scale}, nil
}

// Rat returns the exact value of d.
func (d Decimal) Rat() *big.Rat {
	pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(d.Scale)), nil)
	return new(big.Rat).SetFrac(d.unscaled(), pow)
}

// Rescale converts d to scale, failing when digits would be lost.
func (d Decimal) Rescale(scale int32) (Decimal, error) {
	if d.Scale == scale {
		return d, nil
	}
	return decimalFromRat(d.Rat(), scale)
}

// Precision is the number of decimal digits of the unscaled value.
func (d Decimal) Precision() int {
	u := d.unscaled()
	if u.Sign() == 0 {
		return 1
	}
	return len(new(big.Int).Abs(u).String())
}

func (d Decimal) String() string {
	u := d.unscaled()
	if d.Scale <= 0 {
		return new(big.Int).Mul(u, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-d.Scale)), nil)).String()
	}
	s := new(big.Int).Abs(u).String()
	if pad := int(d.Scale) + 1 - len(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	cut := len(s) - int(d.Scale)
	out := s[:cut] + "." + s[cut:]
	if u.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// Equal compares numeric values, ignoring scale.
func (d Decimal) Equal(o Decimal) bool {
	return d.Rat().Cmp(o.Rat()) == 0
}

func (d Decimal) unscaled() *big.Int {
	if d.Unscaled == nil {
		return new(big.Int)
	}
	return d.Unscaled
}

// putDecimal writes d as a 16-byte little-endian two's complement integer.
func putDecimal(dst []byte, d Decimal, t DataType) error {
	if d.Scale != t.Scale {
		var err error
		if d, err = d.Rescale(t.Scale); err != nil {
			return err
		}
	}
	u := d.unscaled()
	if p := d.Precision(); p > int(t.Precision) || new(big.Int).Abs(u).Cmp(maxScaled) >= 0 {
		return fmt.Errorf("%w: %s exceeds precision %d", ErrSchemaMismatch, d, t.Precision)
	}
	v := u
	if u.Sign() < 0 {
		v = new(big.Int).Add(u, two128)
	}
	var be [decimalBytes]byte
	v.FillBytes(be[:])
	for i := 0; i < decimalBytes; i++ {
		dst[i] = be[decimalBytes-1-i]
	}
	return nil
}

func getDecimal(src []byte, scale int32) Decimal {
	var be [decimalBytes]byte
	for i := 0; i < decimalBytes; i++ {
		be[i] = src[decimalBytes-1-i]
	}
	v := new(big.Int).SetBytes(be[:])
	if be[0]&0x80 != 0 {
		v.Sub(v, two128)
	}
	return Decimal{Unscaled: v, Scale: scale}
}
