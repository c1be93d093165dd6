package scoring

import "math"

// Hint penalty parameters.
const (
	hintPenaltyStep = 0.10
	hintPenaltyCap  = 0.30
)

// HintPenalty returns the fraction of the maximum score forfeited for
// hintsUsed hints.
func HintPenalty(hintsUsed int) float64 {
	if hintsUsed <= 0 {
		return 0
	}
	return math.Min(float64(hintsUsed)*hintPenaltyStep, hintPenaltyCap)
}

// ApplyHintPenalty reduces maxScore by the penalty for hintsUsed.
func ApplyHintPenalty(maxScore float64, hintsUsed int) float64 {
	return maxScore * (1 - HintPenalty(hintsUsed))
}

// AggregateExam combines challenge results into an exam result. Results for
// challenges that are not part of the exam are ignored; exam challenges
// without a result count as zero of zero.
func AggregateExam(exam PracticalExam, results []ChallengeResult) PracticalExamResult {
	byID := make(map[string]ChallengeResult, len(results))
	for _, r := range results {
		byID[r.ChallengeID] = r
	}

	out := PracticalExamResult{ExamID: exam.ID, PassingScore: exam.PassingScore}
	for _, id := range exam.ChallengeIDs {
		r, ok := byID[id]
		if !ok {
			continue
		}
		out.Results = append(out.Results, r)
		out.PointsEarned += r.PointsEarned + r.TimeBonusEarned
		out.TotalPoints += r.TotalPoints
		out.HintsUsed += r.HintsUsed
	}
	if out.TotalPoints > 0 {
		out.Percentage = float64(out.PointsEarned) / float64(out.TotalPoints) * 100
	}
	out.Passed = out.Percentage >= exam.PassingScore
	out.HintPenalty = HintPenalty(out.HintsUsed)
	out.AdjustedScore = math.Min(out.Percentage, ApplyHintPenalty(100, out.HintsUsed))
	return out
}
