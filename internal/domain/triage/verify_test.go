package triage

import (
	"strings"
	"testing"
)

func allMissingSnapshot() MonitoringSnapshot {
	return MonitoringSnapshot{
		BP: Missing, BG: Missing, HbA1c: Missing, LDL: Missing,
		BMI: Missing, HR: Missing, Kidney: Missing,
	}
}

func TestVerify_NeverLowersLevel(t *testing.T) {
	// Every rule is escalation-only, so no combination of benign inputs may
	// reduce an urgent verdict.
	assessment := &UrgencyAssessment{Level: LevelUrgent, RiskScore: 90}
	got := Verify(assessment, allMissingSnapshot(), AdherenceSummary{}, nil)

	if got.Level != LevelUrgent {
		t.Errorf("Level = %q, urgent verdict must not be lowered", got.Level)
	}
	if !got.VerificationPassed {
		t.Error("unchanged verdict must report verification passed")
	}
	if got.VerificationNotes != verificationAccepted {
		t.Errorf("VerificationNotes = %q, want %q", got.VerificationNotes, verificationAccepted)
	}
}

func TestVerify_CriticalVitalsEscalateStable(t *testing.T) {
	snap := allMissingSnapshot()
	snap.BP = "200/120 mmHg"

	assessment := &UrgencyAssessment{Level: LevelStable, RiskScore: 30}
	got := Verify(assessment, snap, AdherenceSummary{}, nil)

	if got.Level.Rank() < LevelAttention.Rank() {
		t.Errorf("Level = %q, critical blood pressure must lift a stable verdict", got.Level)
	}
	if got.VerificationPassed {
		t.Error("escalated verdict must report verification failed")
	}
	if !got.DoctorInterventionNeeded {
		t.Error("escalated verdict must require doctor intervention")
	}
}

func TestVerify_NotCompletedTaskIsUrgent(t *testing.T) {
	progress := []TaskStatusRecord{
		{Task: "每天测血压", CompletionStatus: StatusNotCompleted, Evidence: "我一直没量血压"},
	}
	assessment := &UrgencyAssessment{Level: LevelStable, RiskScore: 30}
	got := Verify(assessment, allMissingSnapshot(), AdherenceSummary{}, progress)

	if got.Level != LevelUrgent {
		t.Errorf("Level = %q, want urgent for a not-completed priority task", got.Level)
	}

	found := false
	for _, c := range got.KeyConcerns {
		if strings.Contains(c, "每天测血压") {
			found = true
		}
	}
	if !found {
		t.Errorf("task concern not merged into key concerns: %v", got.KeyConcerns)
	}
}

func TestVerify_PartialTaskLiftsToAttention(t *testing.T) {
	progress := []TaskStatusRecord{
		{Task: "按时服药", CompletionStatus: StatusPartial},
	}
	assessment := &UrgencyAssessment{Level: LevelStable, RiskScore: 30}
	got := Verify(assessment, allMissingSnapshot(), AdherenceSummary{}, progress)

	if got.Level != LevelAttention {
		t.Errorf("Level = %q, want attention for partial task execution", got.Level)
	}
}

func TestVerify_AdherenceDeficiency(t *testing.T) {
	tests := []struct {
		name      string
		med       *float64
		mon       *float64
		wantLevel UrgencyLevel
	}{
		{"very poor medication", f64(40), nil, LevelAttention},
		{"suboptimal medication", f64(70), nil, LevelAttention},
		{"poor monitoring", nil, f64(50), LevelAttention},
		{"both fine", f64(90), f64(90), LevelStable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adherence := AdherenceSummary{Total: 10, Rate: "90.0%", MedicationRate: tt.med, MonitoringRate: tt.mon}
			got := Verify(&UrgencyAssessment{Level: LevelStable, RiskScore: 30}, allMissingSnapshot(), adherence, nil)
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", got.Level, tt.wantLevel)
			}
		})
	}
}

func TestVerify_CompoundRiskEscalatesToUrgent(t *testing.T) {
	// Abnormal vitals, weak adherence, and a shaky task each contribute one
	// issue; three together must force urgent even though each alone would
	// only warrant attention.
	snap := allMissingSnapshot()
	snap.HR = "125 bpm"
	adherence := AdherenceSummary{Total: 10, Rate: "70.0%", MedicationRate: f64(70)}
	progress := []TaskStatusRecord{{Task: "清淡饮食", CompletionStatus: StatusPartial}}

	got := Verify(&UrgencyAssessment{Level: LevelStable, RiskScore: 30}, snap, adherence, progress)
	if got.Level != LevelUrgent {
		t.Errorf("Level = %q, want urgent for three independent risk factors", got.Level)
	}
}

func TestVerify_ScoreLevelConsistency(t *testing.T) {
	tests := []struct {
		name      string
		score     int
		level     UrgencyLevel
		wantLevel UrgencyLevel
	}{
		{"high score stable", 72, LevelStable, LevelAttention},
		{"extreme score attention", 88, LevelAttention, LevelUrgent},
		{"consistent stable", 35, LevelStable, LevelStable},
		{"consistent attention", 72, LevelAttention, LevelAttention},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verify(&UrgencyAssessment{Level: tt.level, RiskScore: tt.score}, allMissingSnapshot(), AdherenceSummary{}, nil)
			if got.Level != tt.wantLevel {
				t.Errorf("Level = %q, want %q", got.Level, tt.wantLevel)
			}
		})
	}
}

func TestVerify_MockedStableWithModerateRisk(t *testing.T) {
	// A classifier that calls 150/95 with 70% adherence stable at score 72 is
	// under-calling; the rule table has to land at attention or above.
	snap := allMissingSnapshot()
	snap.BP = "150/95 mmHg"
	adherence := AdherenceSummary{Total: 10, Compliant: 7, Rate: "70.0%"}

	assessment := &UrgencyAssessment{Level: LevelStable, RiskScore: 72, Reasoning: "looks fine"}
	got := Verify(assessment, snap, adherence, nil)

	if got.Level.Rank() < LevelAttention.Rank() {
		t.Errorf("Level = %q, want at least attention", got.Level)
	}
	if got.VerificationPassed {
		t.Error("escalation must mark verification as not passed")
	}
	if got.VerificationNotes == "" || got.VerificationNotes == verificationAccepted {
		t.Errorf("VerificationNotes = %q, want escalation notes", got.VerificationNotes)
	}
}

func TestVerify_DoesNotMutateInput(t *testing.T) {
	assessment := &UrgencyAssessment{Level: LevelStable, RiskScore: 30, KeyConcerns: []string{"baseline"}}
	snap := allMissingSnapshot()
	snap.BP = "200/120 mmHg"

	_ = Verify(assessment, snap, AdherenceSummary{}, nil)

	if assessment.Level != LevelStable {
		t.Errorf("input level mutated to %q", assessment.Level)
	}
	if len(assessment.KeyConcerns) != 1 {
		t.Errorf("input key concerns mutated: %v", assessment.KeyConcerns)
	}
}
