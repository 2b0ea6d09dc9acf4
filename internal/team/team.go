// Package team models the project team: per-member experience and weekly
// hours, membership changes, and the daily capacity they produce.
package team

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/predman/projsim/internal/constants"
)

// experienceCDF is the cumulative distribution over levels 0..10 with weight
// (level+1)^-1.5, shifted by one so level 0 has a finite weight.
var experienceCDF = func() []float64 {
	n := constants.MaxExperience - constants.MinExperience + 1
	cdf := make([]float64, n)
	total := 0.0
	for i := range cdf {
		total += math.Pow(float64(i+1), -constants.ExperienceExponent)
		cdf[i] = total
	}
	for i := range cdf {
		cdf[i] /= total
	}
	return cdf
}()

// SampleExperience draws one experience level from the power-law distribution.
func SampleExperience(rng *rand.Rand) int {
	u := rng.Float64()
	for i, c := range experienceCDF {
		if u < c {
			return constants.MinExperience + i
		}
	}
	return constants.MaxExperience
}

// sampleHours picks weekly hours for a member with the given experience.
// Members with no experience get a fair coin between full and part time.
func sampleHours(rng *rand.Rand, experience int) int {
	p := constants.FullTimeProbability
	if experience == 0 {
		p = 0.5
	}
	if rng.Float64() < p {
		return constants.FullTimeHours
	}
	return constants.PartTimeHours
}

// Team holds parallel per-member slices. Experience[m] and Hours[m] describe
// the same member; both slices always have the same length.
type Team struct {
	experience []int
	hours      []int
}

// New builds a team of size randomly sampled members.
func New(rng *rand.Rand, size int) *Team {
	t := &Team{
		experience: make([]int, 0, size),
		hours:      make([]int, 0, size),
	}
	for i := 0; i < size; i++ {
		t.Join(rng)
	}
	return t
}

// Fixed builds a team from explicit member values.
func Fixed(experience, hours []int) (*Team, error) {
	if len(experience) != len(hours) {
		return nil, fmt.Errorf("team: %d experience values but %d hour values", len(experience), len(hours))
	}
	for i, e := range experience {
		if e < constants.MinExperience || e > constants.MaxExperience {
			return nil, fmt.Errorf("team: member %d experience %d outside [%d,%d]", i, e, constants.MinExperience, constants.MaxExperience)
		}
		if hours[i] <= 0 {
			return nil, fmt.Errorf("team: member %d hours must be positive, got %d", i, hours[i])
		}
	}
	return &Team{
		experience: append([]int(nil), experience...),
		hours:      append([]int(nil), hours...),
	}, nil
}

// Size returns the number of members.
func (t *Team) Size() int {
	return len(t.experience)
}

// Join adds one randomly sampled member.
func (t *Team) Join(rng *rand.Rand) {
	exp := SampleExperience(rng)
	t.experience = append(t.experience, exp)
	t.hours = append(t.hours, sampleHours(rng, exp))
}

// Leave removes one uniformly chosen member. It is a no-op on an empty team.
func (t *Team) Leave(rng *rand.Rand) {
	n := len(t.experience)
	if n == 0 {
		return
	}
	i := rng.IntN(n)
	t.experience = append(t.experience[:i], t.experience[i+1:]...)
	t.hours = append(t.hours[:i], t.hours[i+1:]...)
}

// SumExperience is the total experience across members.
func (t *Team) SumExperience() int {
	sum := 0
	for _, e := range t.experience {
		sum += e
	}
	return sum
}

// AvailableHours is the total weekly hours across members.
func (t *Team) AvailableHours() int {
	sum := 0
	for _, h := range t.hours {
		sum += h
	}
	return sum
}

// Members returns copies of the experience and hours slices.
func (t *Team) Members() (experience, hours []int) {
	return append([]int(nil), t.experience...), append([]int(nil), t.hours...)
}

// Capacity is the raw daily capacity in story points before risk dampening.
func (t *Team) Capacity() float64 {
	c := 0.0
	for m := range t.experience {
		c += float64(t.hours[m]) / constants.HoursPerDayDivisor *
			(math.Log(float64(t.experience[m]+1)) + 1) * constants.CapacityScale
	}
	return c
}

// Dampen applies the external-risk and completion-coefficient modifiers to a
// raw capacity. Even a risk-free day runs at half capacity.
func Dampen(rng *rand.Rand, capacity, externalRisk, completionCoefficient float64) float64 {
	if rng.Float64() < externalRisk {
		return capacity * completionCoefficient * constants.RiskHitMultiplier
	}
	return capacity * completionCoefficient * constants.BaselineMultiplier
}
