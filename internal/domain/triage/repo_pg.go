package triage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type assessmentRepoPG struct{ pool *pgxpool.Pool }

// NewAssessmentRepoPG returns a Postgres-backed assessment repository.
// key_concerns and task_assessment are stored as JSONB.
func NewAssessmentRepoPG(pool *pgxpool.Pool) AssessmentRepository {
	return &assessmentRepoPG{pool: pool}
}

const assessmentCols = `id, patient_id, level, risk_score, reasoning, key_concerns,
	doctor_intervention_needed, suggested_action, follow_up_days,
	verification_passed, verification_notes, task_assessment, source, created_at`

func (r *assessmentRepoPG) Create(ctx context.Context, rec *AssessmentRecord) error {
	rec.ID = uuid.New()

	concerns, err := json.Marshal(rec.KeyConcerns)
	if err != nil {
		return fmt.Errorf("encode key_concerns: %w", err)
	}
	tasks, err := json.Marshal(rec.TaskAssessment)
	if err != nil {
		return fmt.Errorf("encode task_assessment: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO urgency_assessment (id, patient_id, level, risk_score, reasoning, key_concerns,
			doctor_intervention_needed, suggested_action, follow_up_days,
			verification_passed, verification_notes, task_assessment, source)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		rec.ID, rec.PatientID, string(rec.Level), rec.RiskScore, rec.Reasoning, concerns,
		rec.DoctorInterventionNeeded, rec.SuggestedAction, rec.FollowUpDays,
		rec.VerificationPassed, rec.VerificationNotes, tasks, rec.Source,
	).Scan(&rec.CreatedAt)
	return err
}

func scanAssessment(row pgx.Row) (*AssessmentRecord, error) {
	var rec AssessmentRecord
	var level string
	var concerns, tasks []byte
	err := row.Scan(&rec.ID, &rec.PatientID, &level, &rec.RiskScore, &rec.Reasoning, &concerns,
		&rec.DoctorInterventionNeeded, &rec.SuggestedAction, &rec.FollowUpDays,
		&rec.VerificationPassed, &rec.VerificationNotes, &tasks, &rec.Source, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Level = UrgencyLevel(level)
	if err := json.Unmarshal(concerns, &rec.KeyConcerns); err != nil {
		return nil, fmt.Errorf("decode key_concerns: %w", err)
	}
	if err := json.Unmarshal(tasks, &rec.TaskAssessment); err != nil {
		return nil, fmt.Errorf("decode task_assessment: %w", err)
	}
	return &rec, nil
}

func (r *assessmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*AssessmentRecord, error) {
	return scanAssessment(r.pool.QueryRow(ctx,
		`SELECT `+assessmentCols+` FROM urgency_assessment WHERE id = $1`, id))
}

func (r *assessmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*AssessmentRecord, int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+assessmentCols+`
		FROM urgency_assessment
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*AssessmentRecord
	for rows.Next() {
		rec, err := scanAssessment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM urgency_assessment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
