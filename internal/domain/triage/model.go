// Package triage implements the urgency classification and verification
// engine: it reduces a patient's monitoring and adherence history to compact
// summaries, infers per-task compliance progress from follow-up dialogues,
// produces an urgency assessment through an LLM classifier with a
// deterministic rule-engine fallback, and audits the result against
// escalation-only safety rules before it reaches a clinician.
package triage

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/caresight/caresight/internal/domain/patient"
)

// UrgencyLevel orders how fast a clinician needs to respond.
type UrgencyLevel string

const (
	LevelStable    UrgencyLevel = "stable"
	LevelAttention UrgencyLevel = "attention"
	LevelUrgent    UrgencyLevel = "urgent"
)

// ParseLevel validates a level string from an external source.
func ParseLevel(s string) (UrgencyLevel, bool) {
	switch UrgencyLevel(strings.TrimSpace(strings.ToLower(s))) {
	case LevelStable:
		return LevelStable, true
	case LevelAttention:
		return LevelAttention, true
	case LevelUrgent:
		return LevelUrgent, true
	}
	return "", false
}

// Rank maps the level onto the escalation ordering stable < attention < urgent.
func (l UrgencyLevel) Rank() int {
	switch l {
	case LevelAttention:
		return 1
	case LevelUrgent:
		return 2
	default:
		return 0
	}
}

// Label returns the display label shown on the report banner.
func (l UrgencyLevel) Label() string {
	switch l {
	case LevelUrgent:
		return "Urgent"
	case LevelAttention:
		return "Attention"
	default:
		return "Stable"
	}
}

// Description returns the banner subtitle for the level.
func (l UrgencyLevel) Description() string {
	switch l {
	case LevelUrgent:
		return "Immediate physician review and decision required; contact the attending doctor as soon as possible."
	case LevelAttention:
		return "Periodic physician review required; keep a close watch on the flagged indicators."
	default:
		return "Condition stable; continue the current management plan."
	}
}

// CompletionStatus is the canonical per-task completion state.
type CompletionStatus string

const (
	StatusCompleted    CompletionStatus = "completed"
	StatusPartial      CompletionStatus = "partial"
	StatusNotCompleted CompletionStatus = "not-completed"
	StatusNoRecord     CompletionStatus = "no-record"
)

// TaskStatusRecord is the per-task outcome of the progress analysis. Records
// are created fresh per triage run and never mutated afterwards.
type TaskStatusRecord struct {
	Task             string           `json:"task"`
	CompletionStatus CompletionStatus `json:"completion_status"`
	Confidence       float64          `json:"confidence"`
	Evidence         string           `json:"evidence"`
	Notes            string           `json:"notes"`
}

// Missing is the sentinel for indicators absent from the newest physiologic
// record.
const Missing = "—"

// MonitoringSnapshot is the formatted view of the most recent physiologic
// record. Values carry their unit; absent indicators hold the Missing
// sentinel. Immutable after construction.
type MonitoringSnapshot struct {
	BP     string `json:"bp"`
	BG     string `json:"bg"`
	HbA1c  string `json:"hba1c"`
	LDL    string `json:"ldl"`
	BMI    string `json:"bmi"`
	HR     string `json:"hr"`
	Kidney string `json:"kidney"`
}

var firstNumberRE = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// parseFirstNumber extracts the leading numeric value from a formatted
// indicator string. ok is false for the Missing sentinel or unparseable text.
func parseFirstNumber(text string) (float64, bool) {
	if text == "" || text == Missing {
		return 0, false
	}
	m := firstNumberRE.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BloodPressure splits the "SBP/DBP mmHg" string into its components.
func (m MonitoringSnapshot) BloodPressure() (sbp, dbp float64, ok bool) {
	if m.BP == Missing || !strings.Contains(m.BP, "/") {
		return 0, 0, false
	}
	head := strings.Fields(m.BP)[0]
	parts := strings.SplitN(head, "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	s, err1 := strconv.ParseFloat(parts[0], 64)
	d, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return s, d, true
}

// Glucose returns the fasting blood glucose in mmol/L.
func (m MonitoringSnapshot) Glucose() (float64, bool) { return parseFirstNumber(m.BG) }

// HbA1cValue returns the HbA1c percentage.
func (m MonitoringSnapshot) HbA1cValue() (float64, bool) { return parseFirstNumber(m.HbA1c) }

// LDLValue returns the LDL cholesterol in mmol/L.
func (m MonitoringSnapshot) LDLValue() (float64, bool) { return parseFirstNumber(m.LDL) }

// BMIValue returns the body mass index.
func (m MonitoringSnapshot) BMIValue() (float64, bool) { return parseFirstNumber(m.BMI) }

// HeartRate returns the heart rate in bpm.
func (m MonitoringSnapshot) HeartRate() (float64, bool) { return parseFirstNumber(m.HR) }

// TargetStatus evaluates each indicator against the default clinical targets
// (BP <140/90, FBG <7.0 mmol/L, HbA1c <7.0%, LDL <2.6 mmol/L,
// BMI 18.5-24.9). Indicators without data keep the Missing sentinel.
func (m MonitoringSnapshot) TargetStatus() map[string]string {
	status := func(ok bool) string {
		if ok {
			return "on-target"
		}
		return "off-target"
	}

	out := map[string]string{
		"bp": Missing, "bg": Missing, "hba1c": Missing, "ldl": Missing,
		"bmi": Missing, "hr": Missing, "kidney": Missing,
	}
	if sbp, dbp, ok := m.BloodPressure(); ok {
		out["bp"] = status(sbp < 140 && dbp < 90)
	}
	if v, ok := m.Glucose(); ok {
		out["bg"] = status(v < 7.0)
	}
	if v, ok := m.HbA1cValue(); ok {
		out["hba1c"] = status(v < 7.0)
	}
	if v, ok := m.LDLValue(); ok {
		out["ldl"] = status(v < 2.6)
	}
	if v, ok := m.BMIValue(); ok {
		out["bmi"] = status(18.5 <= v && v <= 24.9)
	}
	if v, ok := m.HeartRate(); ok {
		out["hr"] = status(60 <= v && v <= 100)
	}
	if m.Kidney != Missing {
		out["kidney"] = "on-target"
	}
	return out
}

// AdherenceSummary counts adherence-history entries by overall status.
// MedicationRate and MonitoringRate are per-category compliance percentages
// consumed by the verification layer; nil when the history has no entries
// for that category.
type AdherenceSummary struct {
	Total          int      `json:"total"`
	Compliant      int      `json:"compliant"`
	Noncompliant   int      `json:"noncompliant"`
	Rate           string   `json:"rate"`
	MedicationRate *float64 `json:"medication_rate,omitempty"`
	MonitoringRate *float64 `json:"monitoring_rate,omitempty"`
}

// RateValue parses the formatted rate percentage. ok is false when the
// history was empty.
func (a AdherenceSummary) RateValue() (float64, bool) {
	if a.Total == 0 {
		return 0, false
	}
	return parseFirstNumber(a.Rate)
}

// UrgencyAssessment is the final, auditable triage verdict.
type UrgencyAssessment struct {
	Level                    UrgencyLevel       `json:"level"`
	RiskScore                int                `json:"risk_score"`
	Reasoning                string             `json:"reasoning"`
	KeyConcerns              []string           `json:"key_concerns"`
	DoctorInterventionNeeded bool               `json:"doctor_intervention_needed"`
	SuggestedAction          string             `json:"suggested_action"`
	FollowUpDays             int                `json:"follow_up_days"`
	VerificationPassed       bool               `json:"verification_passed"`
	VerificationNotes        string             `json:"verification_notes"`
	TaskAssessment           []TaskStatusRecord `json:"task_assessment"`
}

// clampScore bounds a risk score into [0,100].
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Normalize enforces the construction-time invariants: a valid risk score
// and the level/intervention coupling (stable ⟺ no doctor intervention).
func (a *UrgencyAssessment) Normalize() {
	a.RiskScore = clampScore(a.RiskScore)
	a.DoctorInterventionNeeded = a.Level != LevelStable
	if a.TaskAssessment == nil {
		a.TaskAssessment = []TaskStatusRecord{}
	}
	if a.KeyConcerns == nil {
		a.KeyConcerns = []string{}
	}
}

// Input carries the immutable snapshots one classification run works from.
type Input struct {
	Patient    patient.Patient
	Monitoring MonitoringSnapshot
	Adherence  AdherenceSummary
	Lifestyle  patient.Lifestyle
	Tasks      []patient.ComplianceTask
	Progress   []TaskStatusRecord
}

// AssessmentRecord is a persisted assessment with its audit identity.
type AssessmentRecord struct {
	ID        uuid.UUID         `json:"id"`
	PatientID uuid.UUID         `json:"patient_id"`
	UrgencyAssessment
	Source    string    `json:"source"` // "llm" or "heuristic"
	CreatedAt time.Time `json:"created_at"`
}

// suggestedActions are the fixed per-level action templates.
var suggestedActions = map[UrgencyLevel]string{
	LevelUrgent:    "Contact the attending physician within 3 days to review and adjust the treatment plan",
	LevelAttention: "Schedule a physician review within 7-10 days to refine the management plan",
	LevelStable:    "Keep the current plan, continue scheduled monitoring, and re-check in 3 weeks",
}

// SuggestedAction returns the fixed action template for a level.
func SuggestedAction(level UrgencyLevel) string { return suggestedActions[level] }

// ReportPeriod formats the span of a physiologic time series for display.
func ReportPeriod(series []patient.PhysioRecord) string {
	if len(series) == 0 {
		return Missing
	}
	first, last := series[0].Date, series[0].Date
	for _, rec := range series[1:] {
		if rec.Date.Before(first) {
			first = rec.Date
		}
		if rec.Date.After(last) {
			last = rec.Date
		}
	}
	return fmt.Sprintf("%s to %s", first.Format("2006-01-02"), last.Format("2006-01-02"))
}
