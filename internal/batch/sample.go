package batch

import (
	"math"
	"math/rand/v2"

	"github.com/predman/projsim/internal/config"
	"github.com/predman/projsim/internal/constants"
	"github.com/predman/projsim/internal/simulation"
)

// paramsStreamBit separates the hyperparameter stream of an instance from
// its simulation stream, so a recorded (seed, stream, params) triple replays
// the simulation without re-sampling.
const paramsStreamBit = 1 << 63

// InstanceStream returns the PCG stream of instance index in split.
func InstanceStream(split constants.Split, index int) uint64 {
	return split.Index()<<32 | uint64(uint32(index))
}

// InstanceRands returns the hyperparameter and simulation generators of one
// instance. Simulation draws come from simulation.NewRand(seed, stream).
func InstanceRands(seed, stream uint64) (params, sim *rand.Rand) {
	return simulation.NewRand(seed, stream|paramsStreamBit), simulation.NewRand(seed, stream)
}

// SampleParams draws one instance's hyperparameters from g. Ranged values
// are drawn in a fixed order so a stream always yields the same parameters.
func SampleParams(rng *rand.Rand, g config.GeneratorConfig) simulation.Params {
	return simulation.Params{
		TeamSize:              sampleInt(rng, g.TeamSize),
		InitialTasks:          sampleInt(rng, g.InitialTasks),
		ExternalRiskChange:    sampleFloat(rng, g.ExternalRiskChange),
		TeamChangeProbability: sampleFloat(rng, g.TeamChangeProbability),
		TaskAddProbability:    sampleFloat(rng, g.TaskAddProbability),
		ExternalRisk:          sampleFloat(rng, g.ExternalRisk),
		TruncationProbability: g.TruncationProbability,
		SPMin:                 g.SPMin,
		SPMax:                 g.SPMax,
		DependencyProbability: g.DependencyProbability,
		MaxDependencies:       g.MaxDependencies,
		MaxTeamChange:         g.MaxTeamChange,
		MaxDays:               g.MaxDays,
	}
}

// sampleInt draws a real in [Min, Max] and rounds half to even.
func sampleInt(rng *rand.Rand, r config.IntRange) int {
	v := uniform(rng, float64(r.Min), float64(r.Max))
	return int(math.RoundToEven(v))
}

func sampleFloat(rng *rand.Rand, r config.FloatRange) float64 {
	v := uniform(rng, r.Min, r.Max)
	if r.Decimals > 0 {
		v = roundTo(v, r.Decimals)
	}
	return math.Min(math.Max(v, r.Min), r.Max)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.RoundToEven(v*scale) / scale
}
