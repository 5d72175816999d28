package triage

import (
	"testing"
	"time"

	"github.com/caresight/caresight/internal/domain/patient"
)

func TestBuildMonitoringSnapshot_Empty(t *testing.T) {
	snap := BuildMonitoringSnapshot(nil)
	for name, v := range map[string]string{
		"bp": snap.BP, "bg": snap.BG, "hba1c": snap.HbA1c, "ldl": snap.LDL,
		"bmi": snap.BMI, "hr": snap.HR, "kidney": snap.Kidney,
	} {
		if v != Missing {
			t.Errorf("%s = %q, want %q", name, v, Missing)
		}
	}
}

func TestBuildMonitoringSnapshot_UsesNewestRecord(t *testing.T) {
	series := []patient.PhysioRecord{
		{Date: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), SBP: f64(120), DBP: f64(80)},
		{Date: time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC), SBP: f64(152), DBP: f64(96), FBG: f64(6.1), HR: f64(88)},
	}
	snap := BuildMonitoringSnapshot(series)

	if snap.BP != "152/96 mmHg" {
		t.Errorf("BP = %q, want %q", snap.BP, "152/96 mmHg")
	}
	if snap.BG != "6.1 mmol/L" {
		t.Errorf("BG = %q, want %q", snap.BG, "6.1 mmol/L")
	}
	if snap.HR != "88 bpm" {
		t.Errorf("HR = %q, want %q", snap.HR, "88 bpm")
	}
	if snap.HbA1c != Missing {
		t.Errorf("HbA1c = %q, want missing sentinel", snap.HbA1c)
	}
}

func TestBuildMonitoringSnapshot_SparseRecord(t *testing.T) {
	series := []patient.PhysioRecord{
		{SBP: f64(140)}, // DBP absent, so no BP string
	}
	snap := BuildMonitoringSnapshot(series)
	if snap.BP != Missing {
		t.Errorf("BP with missing DBP = %q, want %q", snap.BP, Missing)
	}
}

func TestBuildMonitoringSnapshot_Kidney(t *testing.T) {
	snap := BuildMonitoringSnapshot([]patient.PhysioRecord{{EGFR: f64(74)}})
	if snap.Kidney != "eGFR 74 ml/min/1.73m²" {
		t.Errorf("Kidney = %q", snap.Kidney)
	}
}

func TestBuildAdherenceSummary_Empty(t *testing.T) {
	sum := BuildAdherenceSummary(nil)
	if sum.Total != 0 || sum.Rate != "0.0%" {
		t.Errorf("empty summary = %+v", sum)
	}
	if sum.MedicationRate != nil || sum.MonitoringRate != nil {
		t.Error("expected nil per-category rates for empty history")
	}
}

func TestBuildAdherenceSummary_Counts(t *testing.T) {
	history := []patient.AdherenceEntry{
		{Category: "medication", OverallStatus: patient.AdherenceFull},
		{Category: "medication", OverallStatus: patient.AdherenceNone},
		{Category: "monitoring", OverallStatus: patient.AdherenceFull},
		{Category: "diet", OverallStatus: patient.AdherencePartial},
	}
	sum := BuildAdherenceSummary(history)

	if sum.Total != 4 || sum.Compliant != 2 || sum.Noncompliant != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Rate != "50.0%" {
		t.Errorf("Rate = %q, want 50.0%%", sum.Rate)
	}
	if sum.MedicationRate == nil || *sum.MedicationRate != 50 {
		t.Errorf("MedicationRate = %v, want 50", sum.MedicationRate)
	}
	if sum.MonitoringRate == nil || *sum.MonitoringRate != 100 {
		t.Errorf("MonitoringRate = %v, want 100", sum.MonitoringRate)
	}
}

func TestBuildAdherenceSummary_ChineseCategories(t *testing.T) {
	history := []patient.AdherenceEntry{
		{Category: "用药依从", OverallStatus: patient.AdherenceNone},
		{Category: "血压监测", OverallStatus: patient.AdherenceFull},
	}
	sum := BuildAdherenceSummary(history)

	if sum.MedicationRate == nil || *sum.MedicationRate != 0 {
		t.Errorf("MedicationRate = %v, want 0", sum.MedicationRate)
	}
	if sum.MonitoringRate == nil || *sum.MonitoringRate != 100 {
		t.Errorf("MonitoringRate = %v, want 100", sum.MonitoringRate)
	}
}
