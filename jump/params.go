// Package jump implements the jump (distortion) models of the HMM word
// aligner.  A jump model supplies the transition probabilities of the HMM
// built for one sentence pair, accumulates expected jump counts during
// Baum-Welch training, and reads and writes its parameters.
package jump

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang/glog"
)

// ErrBadParams is returned, wrapped with details, when hyper-parameters are
// inconsistent.
var ErrBadParams = errors.New("jump: bad parameters")

// Params are the hyper-parameters shared by every jump model.
type Params struct {

	// Base probability of a transition to a null state
	PZero float64

	// Null probability spread uniformly over the source positions, so
	// that the null probability is PZero + UniformP0/(I+1)
	UniformP0 float64

	// Weight of the uniform distribution interpolated into jump
	// probabilities
	Alpha float64

	// Constant added to every jump count before normalizing
	Lambda float64

	// If true the last source and target positions are an extra pair
	// of tokens that must align to each other
	Anchor bool

	// If true jumps out of the start state and into the anchored end use
	// their own distributions
	EndDist bool

	// Jumps of this distance or more share one bin; 0 disables binning
	MaxJump int
}

// DefaultParams returns the default hyper-parameters.
func DefaultParams() Params {
	return Params{
		PZero: 0.05,
		Alpha: 0.01,
	}
}

// Validate checks that the parameters are usable.
func (p Params) Validate() error {

	switch {
	case p.Alpha < 0 || p.Alpha >= 1:
		return fmt.Errorf("%w: alpha must be in [0,1), got %g", ErrBadParams, p.Alpha)
	case p.PZero < 0 || p.PZero >= 1:
		return fmt.Errorf("%w: p_zero must be in [0,1), got %g", ErrBadParams, p.PZero)
	case p.UniformP0 < 0:
		return fmt.Errorf("%w: uniform_p0 must be non-negative, got %g", ErrBadParams, p.UniformP0)
	case p.PZero+p.UniformP0/2 >= 1:
		return fmt.Errorf("%w: p_zero + uniform_p0/2 must be below 1, got %g", ErrBadParams, p.PZero+p.UniformP0/2)
	case p.Lambda < 0:
		return fmt.Errorf("%w: lambda must be non-negative, got %g", ErrBadParams, p.Lambda)
	case p.MaxJump < 0:
		return fmt.Errorf("%w: max_jump must be non-negative, got %d", ErrBadParams, p.MaxJump)
	}

	if p.PZero > 0.5 {
		glog.Warningf("jump: p_zero %g is greater than 0.5", p.PZero)
	}

	return nil
}

// alphaSmooth interpolates num/denom with the uniform distribution over n
// choices.
func (p *Params) alphaSmooth(num, denom float64, n int) float64 {
	if denom == 0 {
		return 1 / float64(n)
	}
	return (1-p.Alpha)*num/denom + p.Alpha/float64(n)
}

// nullProb returns the probability of moving to a null state in a sentence
// with I source positions.
func (p *Params) nullProb(I int) float64 {
	p0, warning := p.checkNullProb(I)
	if warning != "" {
		glog.Warningf("jump: %s", warning)
	}
	return p0
}

// checkNullProb computes the null probability for I source positions and
// describes anything suspicious about it.  A non-positive value is replaced by
// 0.  With I >= 1 Validate rules out values above 1.
func (p *Params) checkNullProb(I int) (float64, string) {

	p0 := p.PZero + p.UniformP0/float64(I+1)
	if p0 > 1 {
		panic(fmt.Sprintf("jump: null probability %g > 1 for I=%d", p0, I))
	}
	if p0 <= 0 {
		return 0, fmt.Sprintf("null probability %g for I=%d (p_zero %g, uniform_p0 %g), using 0",
			p0, I, p.PZero, p.UniformP0)
	}
	if p0 > 0.5 {
		return p0, fmt.Sprintf("null probability %g is very high for I=%d (p_zero %g, uniform_p0 %g)",
			p0, I, p.PZero, p.UniformP0)
	}

	return p0, ""
}

// fillDefaults writes the transitions that do not depend on the jump
// distribution: jumps to null states and out of the anchored end.  It returns
// the null probability.
func (p *Params) fillDefaults(t *Transitions) float64 {

	p0 := p.nullProb(t.I)
	for i := 0; i <= t.I; i++ {
		if p.Anchor && i == t.I {
			t.Set(i, 0, 1)
			continue
		}
		t.SetStay(i, p0)
	}

	return p0
}

// maxNormal returns the last source position that is an ordinary word.
func (p *Params) maxNormal(I int) int {
	if p.Anchor {
		return I - 1
	}
	return I
}

// maxRegularJump returns the last position reached through the regular jump
// distribution, the anchored end having its own when EndDist is set.
func (p *Params) maxRegularJump(I int) int {
	if p.Anchor && p.EndDist {
		return I - 1
	}
	return I
}

func (p Params) String() string {
	return fmt.Sprintf("%s %s %s %s %t %t %d",
		fmtFloat(p.PZero), fmtFloat(p.UniformP0), fmtFloat(p.Alpha), fmtFloat(p.Lambda),
		p.Anchor, p.EndDist, p.MaxJump)
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// Optional holds a value that may be absent.
type Optional[T any] struct {
	v  T
	ok bool
}

// Some returns a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{v: v, ok: true}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.v, o.ok
}

// Overrides replace hyper-parameters read from a model file.  Absent values
// keep what the file says.
type Overrides struct {
	PZero     Optional[float64]
	UniformP0 Optional[float64]
	Alpha     Optional[float64]
	Lambda    Optional[float64]
	Anchor    Optional[bool]
	MaxJump   Optional[int]

	// EndDist can never be overridden, since the tables of a model depend
	// on it.  Setting it makes loading fail.
	EndDist Optional[bool]
}

func (ov Overrides) apply(p *Params) error {

	if v, ok := ov.EndDist.Get(); ok {
		return fmt.Errorf("%w: end_dist=%t cannot override a stored model", ErrBadParams, v)
	}
	if v, ok := ov.PZero.Get(); ok {
		p.PZero = v
	}
	if v, ok := ov.UniformP0.Get(); ok {
		p.UniformP0 = v
	}
	if v, ok := ov.Alpha.Get(); ok {
		p.Alpha = v
	}
	if v, ok := ov.Lambda.Get(); ok {
		p.Lambda = v
	}
	if v, ok := ov.Anchor.Get(); ok {
		p.Anchor = v
	}
	if v, ok := ov.MaxJump.Get(); ok {
		p.MaxJump = v
	}

	return p.Validate()
}

// Config selects and parameterizes a new jump model.
type Config struct {
	Params

	// If not nil the model conditions jumps on the class of the source
	// word they start from
	WordClasses *WordClasses

	// If positive the model is a MAP blend of per-word jump distributions
	// with a prior, weighted by MAPTau
	MAPTau float64

	// Words with less total jump count than this are dropped from the MAP
	// vocabulary when estimating
	MAPMinCount float64
}

// DefaultConfig returns a configuration for a Simple model with default
// parameters.
func DefaultConfig() Config {
	return Config{Params: DefaultParams()}
}
