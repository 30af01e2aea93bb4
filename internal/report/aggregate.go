// Package report folds the orchestrator's run log into the final RunResult:
// issue list, technical-debt score, confidence, and terminal state.
package report

import "github.com/Alcatecablee/fixwise-sub008/internal/engine"

// Severity weights subtracted from the debt score per unresolved issue.
var debtWeights = map[engine.Severity]int{
	engine.SeverityCritical: 25,
	engine.SeverityHigh:     15,
	engine.SeverityMedium:   8,
	engine.SeverityLow:      3,
}

// Aggregate is a pure function over the run log. requested is the normalized
// enabled-layer list; cancelled marks a run cut short by the caller.
func Aggregate(runID, filePath, finalText string, requested []int, attempts []engine.TransformAttempt, proposals []engine.LearnedRule, cancelled bool) engine.RunResult {
	res := engine.RunResult{
		RunID:     runID,
		FilePath:  filePath,
		FinalText: finalText,
		Attempts:  attempts,
		Proposals: proposals,
	}

	failed := 0
	clean := 0
	for _, att := range attempts {
		res.Issues = append(res.Issues, att.Issues...)
		if att.Applied {
			res.LayersApplied = append(res.LayersApplied, att.LayerID)
		}
		switch {
		case att.Failed:
			failed++
		case att.RevertedReason == "":
			clean++
		}
	}

	res.State = runState(requested, attempts, failed, cancelled)
	res.Success = res.State != engine.StateFailed
	res.DebtScore = debtScore(attempts)
	res.DebtBand = debtBand(res.DebtScore)
	res.Confidence = confidence(len(requested), clean, res.Issues)
	return res
}

func runState(requested []int, attempts []engine.TransformAttempt, failed int, cancelled bool) engine.RunState {
	if len(requested) > 0 && failed == len(requested) {
		return engine.StateFailed
	}
	if cancelled || len(attempts) < len(requested) {
		return engine.StatePartial
	}
	for _, att := range attempts {
		if att.Failed || att.RevertedReason != "" {
			return engine.StatePartial
		}
	}
	return engine.StateCompleted
}

// debtScore starts at 100 and subtracts severity-weighted amounts for every
// unresolved issue, floored at zero. An issue counts as resolved when its
// rule offered a fix and the owning layer's output was adopted.
func debtScore(attempts []engine.TransformAttempt) int {
	score := 100
	for _, att := range attempts {
		for _, is := range att.Issues {
			if is.FixAvailable && att.Applied {
				continue
			}
			score -= debtWeights[is.Severity]
		}
	}
	if score < 0 {
		return 0
	}
	return score
}

func debtBand(score int) string {
	switch {
	case score >= 90:
		return "excellent"
	case score >= 75:
		return "good"
	case score >= 60:
		return "moderate"
	case score >= 40:
		return "high"
	default:
		return "critical"
	}
}

// confidence weighs how many layers ran cleanly against how many findings
// carry an available fix.
func confidence(requested, clean int, issues []engine.Issue) float64 {
	layerTerm := 1.0
	if requested > 0 {
		layerTerm = float64(clean) / float64(requested)
	}

	fixTerm := 1.0
	if len(issues) > 0 {
		fixable := 0
		for _, is := range issues {
			if is.FixAvailable {
				fixable++
			}
		}
		fixTerm = float64(fixable) / float64(len(issues))
	}

	return clamp(0.6*layerTerm+0.4*fixTerm, 0, 1)
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
