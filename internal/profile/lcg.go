package profile

import "github.com/callcoach/backend/internal/utils"

const (
	lcgMultiplier = 9301
	lcgIncrement  = 49297
	lcgModulus    = 233280
)

// LCG is the linear congruential generator used to synthesize profiles:
// state = (state*9301 + 49297) mod 233280, normalized to [0,1).
type LCG struct {
	state int64
}

// NewLCG seeds the generator with the sum of the identifier's UTF-16 code units.
func NewLCG(identifier string) *LCG {
	return &LCG{state: utils.CharCodeSum(identifier)}
}

func (g *LCG) Float64() float64 {
	g.state = (g.state*lcgMultiplier + lcgIncrement) % lcgModulus
	return float64(g.state) / lcgModulus
}

// Intn returns an int in [0,n).
func (g *LCG) Intn(n int) int {
	return int(g.Float64() * float64(n))
}
