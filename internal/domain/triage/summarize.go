package triage

import (
	"fmt"
	"strings"

	"github.com/caresight/caresight/internal/domain/patient"
)

// BuildMonitoringSnapshot formats the newest record of a time-ordered
// physiologic series. Absent indicators resolve to the Missing sentinel, so
// a sparse series never fails the pipeline. An empty series yields an
// all-Missing snapshot.
func BuildMonitoringSnapshot(series []patient.PhysioRecord) MonitoringSnapshot {
	snap := MonitoringSnapshot{
		BP: Missing, BG: Missing, HbA1c: Missing, LDL: Missing,
		BMI: Missing, HR: Missing, Kidney: Missing,
	}
	if len(series) == 0 {
		return snap
	}
	last := series[len(series)-1]

	if last.SBP != nil && last.DBP != nil {
		snap.BP = fmt.Sprintf("%d/%d mmHg", int(*last.SBP), int(*last.DBP))
	}
	if last.FBG != nil {
		snap.BG = fmt.Sprintf("%.1f mmol/L", *last.FBG)
	}
	if last.HbA1c != nil {
		snap.HbA1c = fmt.Sprintf("%.1f%%", *last.HbA1c)
	}
	if last.LDL != nil {
		snap.LDL = fmt.Sprintf("%.1f mmol/L", *last.LDL)
	}
	if last.BMI != nil {
		snap.BMI = fmt.Sprintf("%.1f kg/m²", *last.BMI)
	}
	if last.HR != nil {
		snap.HR = fmt.Sprintf("%d bpm", int(*last.HR))
	}
	if last.EGFR != nil {
		snap.Kidney = fmt.Sprintf("eGFR %d ml/min/1.73m²", int(*last.EGFR))
	}
	return snap
}

// BuildAdherenceSummary counts adherence-history entries by overall status
// and derives the per-category medication/monitoring compliance rates the
// verification layer checks.
func BuildAdherenceSummary(history []patient.AdherenceEntry) AdherenceSummary {
	sum := AdherenceSummary{Total: len(history), Rate: "0.0%"}
	if len(history) == 0 {
		return sum
	}

	var medTotal, medCompliant, monTotal, monCompliant int
	for _, e := range history {
		switch e.OverallStatus {
		case patient.AdherenceFull:
			sum.Compliant++
		case patient.AdherenceNone:
			sum.Noncompliant++
		}

		category := strings.ToLower(e.Category)
		switch {
		case strings.Contains(category, "medication") || strings.Contains(category, "用药"):
			medTotal++
			if e.OverallStatus == patient.AdherenceFull {
				medCompliant++
			}
		case strings.Contains(category, "monitoring") || strings.Contains(category, "监测"):
			monTotal++
			if e.OverallStatus == patient.AdherenceFull {
				monCompliant++
			}
		}
	}

	sum.Rate = fmt.Sprintf("%.1f%%", float64(sum.Compliant)/float64(sum.Total)*100)
	if medTotal > 0 {
		rate := float64(medCompliant) / float64(medTotal) * 100
		sum.MedicationRate = &rate
	}
	if monTotal > 0 {
		rate := float64(monCompliant) / float64(monTotal) * 100
		sum.MonitoringRate = &rate
	}
	return sum
}
