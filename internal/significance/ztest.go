package significance

import "math"

// Options sets the test level and the minimum base per column.
type Options struct {
	Alpha   float64 `mapstructure:"alpha" yaml:"alpha"`
	MinBase float64 `mapstructure:"min_base" yaml:"min_base"`
}

// DefaultOptions returns alpha 0.05 and a minimum base of 30.
func DefaultOptions() Options {
	return Options{Alpha: 0.05, MinBase: 30}
}

func (o Options) normalized() Options {
	if o.Alpha <= 0 || o.Alpha >= 1 {
		o.Alpha = 0.05
	}
	if o.MinBase <= 0 {
		o.MinBase = 30
	}
	return o
}

// ZTest runs a pooled two-proportion z-test without continuity correction
// and returns z and the two-sided p-value. Degenerate inputs give z=0, p=1.
func ZTest(x1, n1, x2, n2 float64) (z, p float64) {
	if n1 <= 0 || n2 <= 0 {
		return 0, 1
	}
	p1, p2 := x1/n1, x2/n2
	pooled := (x1 + x2) / (n1 + n2)
	v := pooled * (1 - pooled) * (1/n1 + 1/n2)
	if v <= 0 || math.IsNaN(v) {
		return 0, 1
	}
	z = (p1 - p2) / math.Sqrt(v)
	p = math.Erfc(math.Abs(z) / math.Sqrt2)
	return z, p
}

// Significant reports whether two proportions differ at the configured
// level. Pairs with a base under MinBase, a zero base or a zero count are
// never significant.
func (o Options) Significant(x1, n1, x2, n2 float64) bool {
	o = o.normalized()
	if n1 < o.MinBase || n2 < o.MinBase || n1 == 0 || n2 == 0 || x1 == 0 || x2 == 0 {
		return false
	}
	_, p := ZTest(x1, n1, x2, n2)
	return p < o.Alpha
}
