// Package simulation evolves a synthetic project day by day and records the
// labeled time series the forecasting model is trained on.
//
// A simulation is an explicit State threaded through Step, the per-day
// transition. Each call observes the backlog and team, emits one Snapshot and
// then, unless every task is done, applies the day's stochastic processes in
// a fixed order: team change, task arrival, capacity budget, greedy
// completion, starvation feedback and risk drift. The day on which the
// observed backlog is empty is the Label.
//
// All randomness comes from the *rand.Rand passed in, so a run is fully
// reproducible from its seed. Nothing in this package is safe for concurrent
// use; parallelism belongs to the batch orchestrator, one State per worker.
//
// Usage:
//
//	rng := simulation.NewRand(seed, 0)
//	ep, err := simulation.Generate(rng, simulation.DefaultParams())
//	if err != nil {
//	    return err
//	}
//	fmt.Println(len(ep.Snapshots), ep.Label)
//
// The sub-transitions (ApplyTeamChange, ApplyArrival, CompleteTasks,
// ApplyStarvation, DriftRisk) are exported so single days can be tested in
// isolation.
package simulation
