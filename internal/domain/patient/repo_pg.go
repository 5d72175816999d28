package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG returns a Postgres-backed patient repository.
func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const patientCols = `id, name, age, gender, diagnosis, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Diagnosis, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &p, err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patient ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.Diagnosis, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patient`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repoPG) PhysioSeries(ctx context.Context, patientID uuid.UUID) ([]PhysioRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT recorded_on, sbp, dbp, fbg, hba1c, ldl, bmi, hr, egfr
		FROM physio_timeseries
		WHERE patient_id = $1
		ORDER BY recorded_on`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PhysioRecord
	for rows.Next() {
		var rec PhysioRecord
		if err := rows.Scan(&rec.Date, &rec.SBP, &rec.DBP, &rec.FBG, &rec.HbA1c, &rec.LDL, &rec.BMI, &rec.HR, &rec.EGFR); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repoPG) AdherenceHistory(ctx context.Context, patientID uuid.UUID) ([]AdherenceEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT recorded_on, category, overall_status, reason
		FROM adherence_history
		WHERE patient_id = $1
		ORDER BY recorded_on`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdherenceEntry
	for rows.Next() {
		var e AdherenceEntry
		if err := rows.Scan(&e.Date, &e.Category, &e.OverallStatus, &e.Reason); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repoPG) ComplianceTasks(ctx context.Context, patientID uuid.UUID) ([]ComplianceTask, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT task, frequency, instructions
		FROM compliance_task
		WHERE patient_id = $1
		ORDER BY position`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComplianceTask
	for rows.Next() {
		var t ComplianceTask
		if err := rows.Scan(&t.Task, &t.Frequency, &t.Instructions); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *repoPG) Dialogues(ctx context.Context, patientID uuid.UUID) ([]DialogueSession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT session_id, speaker, message, sent_at
		FROM dialogue_turn
		WHERE patient_id = $1
		ORDER BY session_id, sent_at`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []DialogueSession
	for rows.Next() {
		var sessionID uuid.UUID
		var turn DialogueTurn
		if err := rows.Scan(&sessionID, &turn.Speaker, &turn.Message, &turn.SentAt); err != nil {
			return nil, err
		}
		if n := len(sessions); n == 0 || sessions[n-1].SessionID != sessionID {
			sessions = append(sessions, DialogueSession{SessionID: sessionID})
		}
		s := &sessions[len(sessions)-1]
		s.Turns = append(s.Turns, turn)
	}
	return sessions, rows.Err()
}

func (r *repoPG) Lifestyle(ctx context.Context, patientID uuid.UUID) (Lifestyle, error) {
	ls := Lifestyle{Diet: "—", Exercise: "—", Sleep: "—", Psychology: "—"}
	rows, err := r.pool.Query(ctx, `
		SELECT aspect, description
		FROM lifestyle_note
		WHERE patient_id = $1`, patientID)
	if err != nil {
		return ls, err
	}
	defer rows.Close()

	for rows.Next() {
		var aspect, desc string
		if err := rows.Scan(&aspect, &desc); err != nil {
			return ls, err
		}
		switch aspect {
		case "diet":
			ls.Diet = desc
		case "exercise":
			ls.Exercise = desc
		case "sleep":
			ls.Sleep = desc
		case "psychology":
			ls.Psychology = desc
		}
	}
	return ls, rows.Err()
}
