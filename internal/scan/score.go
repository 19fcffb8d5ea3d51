package scan

// Scoring constants. The quick variant is a straight penalty sum; the
// weighted variant caps each contribution so one dimension cannot zero the
// score alone. Weighted is the canonical score for deep reports.
const (
	headerPenalty = 5
	leakPenalty   = 15

	weightedHeaderCap = 40
	weightedLeakCap   = 60
)

// QuickScore computes the quick-scan score: start at 100, subtract a flat
// penalty per missing header and per unique finding, clamp to [0,100].
func QuickScore(missingHeaders, findings int) int {
	score := 100 - missingHeaders*headerPenalty - findings*leakPenalty
	return clamp(score)
}

// WeightedScore computes the deep-scan score. The header contribution is
// proportional to the fraction of canonical headers missing, capped at 40;
// the leak contribution is 15 per finding capped at 60.
func WeightedScore(presentHeaders, missingHeaders, findings int) int {
	total := presentHeaders + missingHeaders

	headerLoss := 0
	if total > 0 {
		headerLoss = weightedHeaderCap * missingHeaders / total
	}

	leakLoss := findings * leakPenalty
	if leakLoss > weightedLeakCap {
		leakLoss = weightedLeakCap
	}

	return clamp(100 - headerLoss - leakLoss)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
