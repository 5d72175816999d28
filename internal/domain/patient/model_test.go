package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestBundle_PatientMessages(t *testing.T) {
	b := &Bundle{
		Dialogues: []DialogueSession{
			{Turns: []DialogueTurn{
				{Speaker: SpeakerAssistant, Message: "最近血压量了吗？"},
				{Speaker: SpeakerPatient, Message: "量了，都正常"},
				{Speaker: SpeakerPatient, Message: ""},
			}},
			{Turns: []DialogueTurn{
				{Speaker: SpeakerClinician, Message: "继续按现在的方案"},
				{Speaker: SpeakerPatient, Message: "好的医生"},
			}},
		},
	}

	got := b.PatientMessages()
	want := []string{"量了，都正常", "好的医生"}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBundle_PatientMessages_Empty(t *testing.T) {
	b := &Bundle{}
	if got := b.PatientMessages(); len(got) != 0 {
		t.Errorf("expected no messages, got %v", got)
	}
}

// stubRepo satisfies Repository with canned data per patient.
type stubRepo struct {
	patient   *Patient
	physio    []PhysioRecord
	physioErr error
}

func (s *stubRepo) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	if s.patient == nil || s.patient.ID != id {
		return nil, ErrNotFound
	}
	return s.patient, nil
}

func (s *stubRepo) List(context.Context, int, int) ([]*Patient, int, error) {
	return []*Patient{s.patient}, 1, nil
}

func (s *stubRepo) PhysioSeries(context.Context, uuid.UUID) ([]PhysioRecord, error) {
	return s.physio, s.physioErr
}

func (s *stubRepo) AdherenceHistory(context.Context, uuid.UUID) ([]AdherenceEntry, error) {
	return []AdherenceEntry{{Category: "medication", OverallStatus: AdherenceFull}}, nil
}

func (s *stubRepo) ComplianceTasks(context.Context, uuid.UUID) ([]ComplianceTask, error) {
	return []ComplianceTask{{Task: "按时服药"}}, nil
}

func (s *stubRepo) Dialogues(context.Context, uuid.UUID) ([]DialogueSession, error) {
	return nil, nil
}

func (s *stubRepo) Lifestyle(context.Context, uuid.UUID) (Lifestyle, error) {
	return Lifestyle{Diet: "清淡饮食"}, nil
}

func TestLoadBundle(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{
		patient: &Patient{ID: id, Name: "刘强"},
		physio:  []PhysioRecord{{}},
	}

	b, err := LoadBundle(context.Background(), repo, id)
	if err != nil {
		t.Fatalf("LoadBundle: %v", err)
	}
	if b.Patient.Name != "刘强" {
		t.Errorf("Patient.Name = %q", b.Patient.Name)
	}
	if len(b.Physio) != 1 || len(b.Adherence) != 1 || len(b.Tasks) != 1 {
		t.Errorf("bundle incomplete: %+v", b)
	}
	if b.Lifestyle.Diet != "清淡饮食" {
		t.Errorf("Lifestyle.Diet = %q", b.Lifestyle.Diet)
	}
}

func TestLoadBundle_UnknownPatient(t *testing.T) {
	repo := &stubRepo{}
	if _, err := LoadBundle(context.Background(), repo, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestLoadBundle_HistoryError(t *testing.T) {
	id := uuid.New()
	repo := &stubRepo{
		patient:   &Patient{ID: id},
		physioErr: errors.New("query timeout"),
	}
	if _, err := LoadBundle(context.Background(), repo, id); err == nil {
		t.Error("expected the history error to propagate")
	}
}
