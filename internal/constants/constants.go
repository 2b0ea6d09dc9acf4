// Package constants provides named constants used throughout the projsim codebase.
// This centralizes the empirical constants of the simulator so they are reproduced
// verbatim everywhere they are used.
package constants

// Capacity formula constants. The daily capacity of one team member is
// (hours / HoursPerDayDivisor) * (ln(experience + 1) + 1) * CapacityScale.
const (
	// HoursPerDayDivisor converts weekly available hours into a daily figure.
	HoursPerDayDivisor = 5.0

	// CapacityScale converts experience-weighted hours into story points.
	CapacityScale = 0.1

	// RiskHitMultiplier scales capacity on a day the external risk materializes.
	RiskHitMultiplier = 0.4

	// BaselineMultiplier scales capacity on an ordinary day (process overhead).
	BaselineMultiplier = 0.5
)

// Team composition constants.
const (
	// MinExperience and MaxExperience bound a member's experience level.
	MinExperience = 0
	MaxExperience = 10

	// ExperienceExponent is the power-law exponent for experience sampling.
	// Weights are (level+1)^-ExperienceExponent.
	ExperienceExponent = 1.5

	// FullTimeHours and PartTimeHours are the two weekly availabilities.
	FullTimeHours = 40
	PartTimeHours = 30

	// FullTimeProbability is the chance a new member works full time.
	FullTimeProbability = 0.9
)

// Simulation loop constants.
const (
	// StarvationMultiplier is applied to the completion coefficient after a
	// day on which no task could be completed.
	StarvationMultiplier = 1.5

	// RiskDriftProbability is the daily chance that external risk drifts.
	RiskDriftProbability = 0.2

	// RiskDecimals is the number of decimals external risk is rounded to.
	RiskDecimals = 2

	// DefaultMaxDays bounds a single simulation instance.
	DefaultMaxDays = 100000
)

// Truncation constants.
const (
	// MinTruncatedLength is the shortest sequence a truncation may produce.
	// Sequences of this length or shorter are never truncated.
	MinTruncatedLength = 5
)

// Dataset file naming.
const (
	// HistoryPrefix is the common prefix of every artifact of one instance.
	HistoryPrefix = "project_history_"

	// LabelSuffix marks the sidecar label file of an instance.
	LabelSuffix = "_deadline.txt"

	// TableExt and ArrowExt are the feature table extensions.
	TableExt = ".csv"
	ArrowExt = ".arrow"

	// EventsFile is the JSONL event log written under the dataset root.
	EventsFile = "events.jsonl"

	// CatalogFile is the default SQLite run catalog filename.
	CatalogFile = "catalog.db"
)

// Columns is the exact header of the feature table.
var Columns = []string{
	"snapshot_day",
	"remaining_tasks",
	"total_story_points",
	"dependency_coefficient",
	"critical_path_length",
	"team_size",
	"sum_experience",
	"available_hours",
	"external_risk_probability",
}
