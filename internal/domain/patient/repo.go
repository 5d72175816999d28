package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no patient exists for the given ID.
var ErrNotFound = errors.New("patient not found")

// Repository loads patient records and the per-patient history a triage run
// consumes.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)

	PhysioSeries(ctx context.Context, patientID uuid.UUID) ([]PhysioRecord, error)
	AdherenceHistory(ctx context.Context, patientID uuid.UUID) ([]AdherenceEntry, error)
	ComplianceTasks(ctx context.Context, patientID uuid.UUID) ([]ComplianceTask, error)
	Dialogues(ctx context.Context, patientID uuid.UUID) ([]DialogueSession, error)
	Lifestyle(ctx context.Context, patientID uuid.UUID) (Lifestyle, error)
}

// LoadBundle assembles the full triage input for one patient.
func LoadBundle(ctx context.Context, repo Repository, patientID uuid.UUID) (*Bundle, error) {
	p, err := repo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	physio, err := repo.PhysioSeries(ctx, patientID)
	if err != nil {
		return nil, err
	}
	adherence, err := repo.AdherenceHistory(ctx, patientID)
	if err != nil {
		return nil, err
	}
	tasks, err := repo.ComplianceTasks(ctx, patientID)
	if err != nil {
		return nil, err
	}
	dialogues, err := repo.Dialogues(ctx, patientID)
	if err != nil {
		return nil, err
	}
	lifestyle, err := repo.Lifestyle(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Patient:   *p,
		Physio:    physio,
		Adherence: adherence,
		Tasks:     tasks,
		Dialogues: dialogues,
		Lifestyle: lifestyle,
	}, nil
}
