package topics

const (
	// Wagers
	WagerPlaced = "wager_placed"

	// Races
	RaceFinalized = "race_finalized"
	RaceSettled   = "race_settled"

	// DLQs
	RaceFinalizedDLQ = "race_finalized_dlq"
)
