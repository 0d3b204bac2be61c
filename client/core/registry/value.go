package registry

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseScaledValue 按小数位把十进制字符串转换为合约整数
//
// 例如 "12.5" 在 decimals=2 时得到 1250。小数位超过 decimals 时报错，不做舍入。
func ParseScaledValue(s string, decimals uint8) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("value is empty")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if intPart == "" && (!hasDot || fracPart == "") {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	if len(fracPart) > int(decimals) {
		return nil, fmt.Errorf("value %q has more than %d decimal places", s, decimals)
	}
	if intPart == "" {
		intPart = "0"
	}

	digits := intPart + fracPart + strings.Repeat("0", int(decimals)-len(fracPart))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("invalid value %q", s)
		}
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid value %q", s)
	}
	if neg {
		v.Neg(v)
	}
	return v, nil
}

// FormatScaledValue 把合约整数按小数位渲染为十进制字符串
func FormatScaledValue(v *big.Int, decimals uint8) string {
	if v == nil {
		return "-"
	}
	if decimals == 0 {
		return v.String()
	}

	abs := new(big.Int).Abs(v).String()
	if len(abs) <= int(decimals) {
		abs = strings.Repeat("0", int(decimals)-len(abs)+1) + abs
	}
	cut := len(abs) - int(decimals)
	out := abs[:cut] + "." + abs[cut:]
	if v.Sign() < 0 {
		out = "-" + out
	}
	return out
}

// ScaledFloat 转换为 float64，仅用于图表展示
func ScaledFloat(v *big.Int, decimals uint8) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	if decimals > 0 {
		f.Quo(f, new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)))
	}
	out, _ := f.Float64()
	return out
}
