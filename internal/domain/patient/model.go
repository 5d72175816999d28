package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient maps to the patient table.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Age       *int      `db:"age" json:"age,omitempty"`
	Gender    *string   `db:"gender" json:"gender,omitempty"`
	Diagnosis *string   `db:"diagnosis" json:"diagnosis,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PhysioRecord is one day of a patient's physiologic time series. Any
// indicator may be absent; readers must treat nil as "not measured" rather
// than failing.
type PhysioRecord struct {
	Date  time.Time `db:"recorded_on" json:"date"`
	SBP   *float64  `db:"sbp" json:"sbp,omitempty"`
	DBP   *float64  `db:"dbp" json:"dbp,omitempty"`
	FBG   *float64  `db:"fbg" json:"fbg,omitempty"`
	HbA1c *float64  `db:"hba1c" json:"hba1c,omitempty"`
	LDL   *float64  `db:"ldl" json:"ldl,omitempty"`
	BMI   *float64  `db:"bmi" json:"bmi,omitempty"`
	HR    *float64  `db:"hr" json:"hr,omitempty"`
	EGFR  *float64  `db:"egfr" json:"egfr,omitempty"`
}

// Adherence history overall_status categories.
const (
	AdherenceFull    = "fully compliant"
	AdherencePartial = "partially compliant"
	AdherenceNone    = "non-compliant"
)

// AdherenceEntry is one tracked behavior outcome from the adherence history.
// Category distinguishes what was tracked (medication, monitoring, diet...).
type AdherenceEntry struct {
	Date          time.Time `db:"recorded_on" json:"date"`
	Category      string    `db:"category" json:"category"`
	OverallStatus string    `db:"overall_status" json:"overall_status"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
}

// ComplianceTask is a clinician-defined priority behavior whose execution is
// tracked across dialogue records.
type ComplianceTask struct {
	Task         string `db:"task" json:"task"`
	Frequency    string `db:"frequency" json:"frequency"`
	Instructions string `db:"instructions" json:"instructions"`
}

// Speaker roles on dialogue turns. Only patient-authored turns feed the
// task-progress analysis.
const (
	SpeakerPatient   = "patient"
	SpeakerAssistant = "assistant"
	SpeakerClinician = "clinician"
)

// DialogueTurn is a single utterance in a follow-up conversation.
type DialogueTurn struct {
	Speaker string    `db:"speaker" json:"speaker"`
	Message string    `db:"message" json:"message"`
	SentAt  time.Time `db:"sent_at" json:"sent_at"`
}

// DialogueSession groups the turns of one conversation.
type DialogueSession struct {
	SessionID uuid.UUID      `json:"session_id"`
	Turns     []DialogueTurn `json:"turns"`
}

// Lifestyle is the patient's lifestyle snapshot. Missing aspects carry the
// "—" placeholder so downstream formatting never branches on empty strings.
type Lifestyle struct {
	Diet       string `json:"diet"`
	Exercise   string `json:"exercise"`
	Sleep      string `json:"sleep"`
	Psychology string `json:"psychology"`
}

// Bundle is everything one triage run needs, loaded in a single pass and
// owned exclusively by that run.
type Bundle struct {
	Patient   Patient           `json:"patient"`
	Physio    []PhysioRecord    `json:"physio"`
	Adherence []AdherenceEntry  `json:"adherence"`
	Tasks     []ComplianceTask  `json:"tasks"`
	Dialogues []DialogueSession `json:"dialogues"`
	Lifestyle Lifestyle         `json:"lifestyle"`
}

// PatientMessages flattens the dialogue sessions into the ordered list of
// patient-authored messages.
func (b *Bundle) PatientMessages() []string {
	var out []string
	for _, s := range b.Dialogues {
		for _, t := range s.Turns {
			if t.Speaker == SpeakerPatient && t.Message != "" {
				out = append(out, t.Message)
			}
		}
	}
	return out
}
