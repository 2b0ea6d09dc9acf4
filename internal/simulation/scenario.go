package simulation

// Scenario is a named, seeded parameter set: everything needed to replay a
// single instance exactly.
type Scenario struct {
	Name   string `json:"name" yaml:"name"`
	Seed   uint64 `json:"seed" yaml:"seed"`
	Stream uint64 `json:"stream" yaml:"stream"`
	Params Params `json:"params" yaml:"params"`
}

// Run generates the scenario's episode from its own random stream.
func (sc Scenario) Run() (*Episode, error) {
	return Generate(NewRand(sc.Seed, sc.Stream), sc.Params)
}

// SingleTask is the smallest deterministic scenario: one 1-point task, one
// expert full-time member, no risk and no random events. Day-0 capacity is
// 8*(ln 11+1)*0.1*0.5 ≈ 1.36, so the task is done on day 0 and the empty
// backlog is observed on day 1.
func SingleTask() Scenario {
	return Scenario{
		Name: "single-task",
		Params: Params{
			InitialTasks: 1,
			SPMin:        1,
			SPMax:        1,
			Team:         &TeamSpec{Experience: []int{10}, Hours: []int{40}},
		},
	}
}
