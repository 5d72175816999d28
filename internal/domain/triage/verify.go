package triage

import (
	"fmt"
	"strings"
)

// verificationAccepted is the note recorded when no safety rule fires.
const verificationAccepted = "verification passed, assessment accepted as-is."

// ruleContext is the working state threaded through the escalation rules.
// issues accumulates every independently detected problem so later rules can
// count them.
type ruleContext struct {
	assessment *UrgencyAssessment
	monitoring MonitoringSnapshot
	adherence  AdherenceSummary
	progress   []TaskStatusRecord
	issues     []string
}

// escalation is the outcome of one rule: raise the level to at least
// minLevel and record the note. Concerns are merged into key_concerns.
type escalation struct {
	minLevel UrgencyLevel
	note     string
	concerns []string
}

// escalationRule pairs a named predicate with the minimum level it enforces.
// Rules run in order and only ever raise the level; nothing here can lower
// the verdict chosen upstream.
type escalationRule struct {
	name     string
	evaluate func(*ruleContext) *escalation
}

// verificationRules is the ordered safety-rule table. Adding a rule means
// appending an entry; each entry is independently testable.
var verificationRules = []escalationRule{
	{name: "critical-vitals", evaluate: checkCriticalVitals},
	{name: "adherence-deficiency", evaluate: checkAdherenceDeficiency},
	{name: "task-progress", evaluate: checkTaskProgress},
	{name: "compound-risk", evaluate: checkCompoundRisk},
	{name: "score-level-consistency", evaluate: checkScoreConsistency},
}

// Verify audits an assessment against the deterministic safety rules and
// escalates the level where the upstream classifier under-called risk. The
// returned assessment always satisfies the level/intervention invariant, and
// its level is never below the input level.
func Verify(assessment *UrgencyAssessment, monitoring MonitoringSnapshot, adherence AdherenceSummary, progress []TaskStatusRecord) *UrgencyAssessment {
	out := *assessment
	out.KeyConcerns = append([]string{}, assessment.KeyConcerns...)
	originalLevel := out.Level

	ctx := &ruleContext{
		assessment: &out,
		monitoring: monitoring,
		adherence:  adherence,
		progress:   progress,
	}

	var notes []string
	for _, rule := range verificationRules {
		esc := rule.evaluate(ctx)
		if esc == nil {
			continue
		}
		if len(esc.concerns) > 0 {
			out.KeyConcerns = dedupe(append(out.KeyConcerns, esc.concerns...))
		}
		if esc.minLevel.Rank() > out.Level.Rank() {
			out.Level = esc.minLevel
			notes = append(notes, esc.note)
		}
	}

	if out.Level != originalLevel {
		out.VerificationPassed = false
		out.VerificationNotes = strings.Join(notes, " ")
	} else {
		out.VerificationPassed = true
		out.VerificationNotes = verificationAccepted
	}

	out.Normalize()
	return &out
}

// checkCriticalVitals flags vital signs past the critical thresholds. The
// thresholds mirror the heuristic engine's urgent tier but are evaluated
// independently against the structured snapshot. Any hit lifts a stable
// verdict to attention.
func checkCriticalVitals(ctx *ruleContext) *escalation {
	var found []string

	if sbp, dbp, ok := ctx.monitoring.BloodPressure(); ok {
		if sbp >= 180 || dbp >= 110 {
			found = append(found, "severely elevated blood pressure")
		} else if sbp < 90 || dbp < 60 {
			found = append(found, "abnormally low blood pressure")
		}
	}
	if bg, ok := ctx.monitoring.Glucose(); ok {
		if bg >= 15 {
			found = append(found, "severely elevated blood glucose")
		} else if bg < 3.9 {
			found = append(found, "hypoglycemia risk")
		}
	}
	if hr, ok := ctx.monitoring.HeartRate(); ok {
		if hr >= 120 || hr <= 50 {
			found = append(found, "abnormal heart rate")
		}
	}

	if len(found) == 0 {
		return nil
	}
	ctx.issues = append(ctx.issues, found...)
	return &escalation{
		minLevel: LevelAttention,
		note:     "rule check: abnormal vital signs detected, raised to attention.",
	}
}

// checkAdherenceDeficiency flags severe adherence problems: medication
// compliance below 50% or monitoring compliance below 60%.
func checkAdherenceDeficiency(ctx *ruleContext) *escalation {
	var found []string

	if rate := ctx.adherence.MedicationRate; rate != nil {
		if *rate < 50 {
			found = append(found, "very poor medication adherence")
		} else if *rate < 80 {
			found = append(found, "suboptimal medication adherence")
		}
	}
	if rate := ctx.adherence.MonitoringRate; rate != nil && *rate < 60 {
		found = append(found, "poor monitoring adherence")
	}

	if len(found) == 0 {
		return nil
	}
	ctx.issues = append(ctx.issues, found...)
	return &escalation{
		minLevel: LevelAttention,
		note:     "rule check: adherence problems detected, raised to attention.",
	}
}

// checkTaskProgress escalates on priority-task outcomes: any not-completed
// task goes straight to urgent; partial or missing records alone lift a
// stable verdict to attention. Issue strings are merged into key_concerns so
// the clinician sees them on the report.
func checkTaskProgress(ctx *ruleContext) *escalation {
	var found []string
	hasNoncompliance := false

	for _, rec := range ctx.progress {
		detail := ""
		if evidence := firstNonEmpty(rec.Evidence, rec.Notes); evidence != "" {
			detail = fmt.Sprintf(" (%s)", evidence)
		}
		switch rec.CompletionStatus {
		case StatusNotCompleted:
			hasNoncompliance = true
			found = append(found, fmt.Sprintf("priority task not completed: %s%s", rec.Task, detail))
		case StatusPartial:
			found = append(found, fmt.Sprintf("priority task executed unevenly: %s%s", rec.Task, detail))
		case StatusNoRecord:
			found = append(found, fmt.Sprintf("priority task has no execution record: %s", rec.Task))
		}
	}

	if len(found) == 0 {
		return nil
	}
	ctx.issues = append(ctx.issues, found...)

	if hasNoncompliance {
		return &escalation{
			minLevel: LevelUrgent,
			note:     "rule check: noncompliance on a priority task detected, raised to urgent.",
			concerns: found,
		}
	}
	return &escalation{
		minLevel: LevelAttention,
		note:     "rule check: weak execution of priority tasks, raised to attention.",
		concerns: found,
	}
}

// checkCompoundRisk escalates to urgent when three or more independent
// issues were detected by the preceding rules.
func checkCompoundRisk(ctx *ruleContext) *escalation {
	if len(ctx.issues) < 3 {
		return nil
	}
	return &escalation{
		minLevel: LevelUrgent,
		note:     fmt.Sprintf("rule check: %d high-risk factors detected, raised to urgent.", len(ctx.issues)),
	}
}

// checkScoreConsistency reconciles the numeric risk score with the assigned
// level: a score of 70+ cannot stay stable, and 85+ cannot stay at attention.
func checkScoreConsistency(ctx *ruleContext) *escalation {
	a := ctx.assessment
	if a.RiskScore >= 70 && a.Level == LevelStable {
		return &escalation{
			minLevel: LevelAttention,
			note:     "rule check: risk score too high for a stable verdict, raised to attention.",
		}
	}
	if a.RiskScore >= 85 && a.Level == LevelAttention {
		return &escalation{
			minLevel: LevelUrgent,
			note:     "rule check: extremely high risk score, raised to urgent.",
		}
	}
	return nil
}
