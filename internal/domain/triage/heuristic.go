package triage

import (
	"fmt"
	"strings"
)

// Follow-up intervals per final level, in days.
const (
	followUpUrgent    = 5
	followUpAttention = 10
	followUpStable    = 21
)

// HeuristicAssess computes an urgency assessment from vitals, adherence, and
// task progress with no network dependency. It is pure and deterministic:
// identical inputs always produce an identical assessment. It serves both as
// the fallback when the LLM classifier is unavailable and as the offline
// re-computation path.
func HeuristicAssess(in Input) *UrgencyAssessment {
	var urgentSignals, issues, taskSnippets []string
	score := 35

	floor := func(min int) {
		if score < min {
			score = min
		}
	}

	if sbp, dbp, ok := in.Monitoring.BloodPressure(); ok {
		switch {
		case sbp >= 180 || dbp >= 110 || sbp < 90 || dbp < 60:
			urgentSignals = append(urgentSignals, "severe blood pressure abnormality")
			floor(82)
		case sbp >= 160 || dbp >= 100:
			issues = append(issues, "markedly elevated blood pressure")
			floor(68)
		case sbp >= 140 || dbp >= 90:
			issues = append(issues, "mildly elevated blood pressure")
			floor(55)
		}
	}

	if bg, ok := in.Monitoring.Glucose(); ok {
		switch {
		case bg >= 15 || bg < 3.9:
			urgentSignals = append(urgentSignals, "blood glucose in dangerous range")
			floor(85)
		case bg >= 10:
			issues = append(issues, "poorly controlled blood glucose")
			floor(65)
		case bg >= 7:
			issues = append(issues, "elevated blood glucose")
			floor(55)
		}
	}

	if hba1c, ok := in.Monitoring.HbA1cValue(); ok {
		switch {
		case hba1c >= 8.5:
			urgentSignals = append(urgentSignals, "markedly elevated HbA1c")
			floor(82)
		case hba1c >= 7.0:
			issues = append(issues, "HbA1c above target")
			floor(60)
		}
	}

	if hr, ok := in.Monitoring.HeartRate(); ok {
		switch {
		case hr >= 120 || hr <= 50:
			urgentSignals = append(urgentSignals, "abnormal heart rate")
			floor(80)
		case hr >= 100:
			issues = append(issues, "elevated heart rate")
			floor(58)
		}
	}

	adherenceRate, hasAdherence := in.Adherence.RateValue()
	if hasAdherence {
		switch {
		case adherenceRate < 50:
			urgentSignals = append(urgentSignals, "very poor medication adherence")
			floor(80)
		case adherenceRate < 80:
			issues = append(issues, "insufficient medication adherence")
			floor(58)
		}
	}

	for _, rec := range in.Progress {
		switch rec.CompletionStatus {
		case StatusNotCompleted:
			urgentSignals = append(urgentSignals, fmt.Sprintf("priority task not executed: %s", rec.Task))
			floor(88)
			if detail := firstNonEmpty(rec.Evidence, rec.Notes); detail != "" {
				taskSnippets = append(taskSnippets, fmt.Sprintf("task %q not achieved, record: %s", rec.Task, detail))
			}
		case StatusPartial:
			issues = append(issues, fmt.Sprintf("inconsistent task execution: %s", rec.Task))
			floor(62)
			if detail := firstNonEmpty(rec.Evidence, rec.Notes); detail != "" {
				taskSnippets = append(taskSnippets, fmt.Sprintf("task %q executed unevenly: %s", rec.Task, detail))
			}
		case StatusCompleted:
			if rec.Evidence != "" {
				taskSnippets = append(taskSnippets, fmt.Sprintf("task %q well executed: %s", rec.Task, rec.Evidence))
			}
		default:
			taskSnippets = append(taskSnippets, fmt.Sprintf("task %q has no execution record", rec.Task))
		}
	}

	level := LevelStable
	followUp := followUpStable
	switch {
	case len(urgentSignals) > 0:
		level = LevelUrgent
		followUp = followUpUrgent
		floor(86)
	case score >= 60 || len(issues) > 0:
		level = LevelAttention
		followUp = followUpAttention
		floor(48)
	default:
		if score > 40 {
			score = 40
		}
	}

	concerns := dedupe(append(append([]string{}, urgentSignals...), issues...))
	if len(concerns) == 0 {
		concerns = append(concerns, "key indicators currently within target range")
	}
	if len(concerns) == 1 {
		concerns = append(concerns, "keep scheduled follow-ups to observe trends")
	}

	assessment := &UrgencyAssessment{
		Level:           level,
		RiskScore:       score,
		Reasoning:       heuristicReasoning(in, level, urgentSignals, issues, taskSnippets, adherenceRate, hasAdherence),
		KeyConcerns:     concerns,
		SuggestedAction: SuggestedAction(level),
		FollowUpDays:    followUp,
		TaskAssessment:  in.Progress,
	}
	assessment.Normalize()
	return assessment
}

func heuristicReasoning(in Input, level UrgencyLevel, urgentSignals, issues, taskSnippets []string, adherenceRate float64, hasAdherence bool) string {
	subject := in.Patient.Name
	if subject == "" {
		subject = "patient"
	}

	var parts []string
	switch {
	case len(urgentSignals) > 0:
		parts = append(parts, "high-risk signals present: "+strings.Join(urgentSignals, ", "))
	case len(issues) > 0:
		parts = append(parts, "indicators needing continued attention: "+strings.Join(issues, ", "))
	default:
		parts = append(parts, "recent physiologic indicators are on target with no significant abnormality")
	}

	if hasAdherence {
		parts = append(parts, fmt.Sprintf("medication adherence is about %.1f%%", adherenceRate))
	}
	if len(taskSnippets) > 0 {
		parts = append(parts, "priority task digest: "+strings.Join(taskSnippets, "; "))
	}

	switch level {
	case LevelStable:
		parts = append(parts, "recommend keeping the current management plan and re-checking on schedule")
	case LevelAttention:
		parts = append(parts, "recommend a physician review of the plan within one to two weeks")
	default:
		parts = append(parts, "recommend contacting the attending physician promptly for a treatment decision")
	}

	return subject + ": " + strings.Join(parts, ". ") + "."
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
