package triage

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caresight/caresight/internal/domain/patient"
)

// prompts.go holds the named prompt templates the classifier and the task
// analyzer send to the LLM. Structured sections are embedded as fenced JSON
// so the deterministic fallback and external viewers can re-read them.

const urgencyClassificationPrompt = `You are a chronic-disease case triage assistant. Based on the patient's
basic information, latest monitoring snapshot, adherence summary, lifestyle
notes, and priority compliance tasks with their observed progress, classify
the clinical urgency of this case.

Patient:
%s

Monitoring snapshot:
%s

Adherence summary:
%s

Lifestyle:
%s

Priority compliance tasks:
%s

Task progress records:
%s

Respond with a single JSON object and nothing else:
{
  "level": "urgent" | "attention" | "stable",
  "risk_score": <integer 0-100>,
  "reasoning": "<why you chose this level>",
  "key_concerns": ["<short risk factor>", ...],
  "doctor_intervention_needed": <boolean>,
  "suggested_action": "<recommended next step>",
  "follow_up_days": <integer>,
  "task_assessment": [{"task": "...", "completion_status": "...", "confidence": <0-1>, "evidence": "...", "notes": "..."}]
}

Level semantics: "urgent" means a physician must intervene immediately,
"attention" means a physician should review periodically, "stable" means the
current plan can continue with automated guidance only.`

const taskProgressPrompt = `You are reviewing a chronic-disease patient's follow-up dialogue to judge
how well they executed their priority compliance tasks.

Priority tasks:
%s

Patient-authored dialogue messages (most recent period):
%s

Structured adherence history:
%s

For every task, judge its completion from the dialogue evidence. Respond with
a JSON array and nothing else:
[{"task": "<task name>", "completion_status": "completed" | "partial" | "not-completed" | "no-record", "confidence": <0-1>, "evidence": "<quoted message>", "notes": "<short comment>"}]

Use "no-record" when the dialogue never touches the task. Do not invent
evidence.`

// jsonSection renders a structured value as an indented fenced JSON block.
func jsonSection(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt section: %w", err)
	}
	return "```json\n" + string(b) + "\n```", nil
}

func formatClassificationPrompt(in Input) (string, error) {
	sections := make([]string, 0, 6)
	for _, v := range []any{
		map[string]any{"patient_id": in.Patient.ID, "name": in.Patient.Name, "age": in.Patient.Age, "gender": in.Patient.Gender, "diagnosis": in.Patient.Diagnosis},
		in.Monitoring,
		in.Adherence,
		in.Lifestyle,
		in.Tasks,
		in.Progress,
	} {
		s, err := jsonSection(v)
		if err != nil {
			return "", err
		}
		sections = append(sections, s)
	}
	return fmt.Sprintf(urgencyClassificationPrompt,
		sections[0], sections[1], sections[2], sections[3], sections[4], sections[5]), nil
}

func formatTaskProgressPrompt(b *patient.Bundle) (string, error) {
	tasks, err := jsonSection(b.Tasks)
	if err != nil {
		return "", err
	}
	history, err := jsonSection(b.Adherence)
	if err != nil {
		return "", err
	}

	messages := b.PatientMessages()
	var sb strings.Builder
	if len(messages) == 0 {
		sb.WriteString("(no patient messages in the period)")
	}
	for _, msg := range messages {
		sb.WriteString("- ")
		sb.WriteString(msg)
		sb.WriteString("\n")
	}

	return fmt.Sprintf(taskProgressPrompt, tasks, sb.String(), history), nil
}
