package domain

// Outcome tags which branch a degradable pipeline stage took.
type Outcome string

const (
	// OutcomeOK means the external dependency answered and its answer was used.
	OutcomeOK Outcome = "ok"
	// OutcomeFallback means a local substitute replaced the dependency's answer.
	OutcomeFallback Outcome = "fallback"
	// OutcomeFailed means the stage could not produce a value and the request failed.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkipped means the stage had nothing to do (e.g. location supplied by the caller).
	OutcomeSkipped Outcome = "skipped"
)

// Stage names used in traces, logs and metrics.
const (
	StageIdentify    = "identify"
	StagePreferences = "preferences"
	StageLocation    = "location"
	StageEmbed       = "embed"
	StageSearch      = "search"
	StageRank        = "rank"
	StagePhotos      = "photos"
)
