package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"clinic/visit-service/internal/models"
	"clinic/visit-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const triageColumns = `triage_id, patient_id, visit_id, nurse_id, systolic_bp, diastolic_bp, heart_rate,
	temperature, respiratory_rate, oxygen_saturation, weight_kg, height_cm, chief_complaint, pain_scale,
	allergies, current_medications, blood_type, nurse_observations, priority, status,
	created_at, updated_at, completed_at`

// CreateTriage is the nurse's check-in: it inserts the triage record and
// moves the visit from scheduled to in_triage in the same transaction, so a
// failed guard leaves neither behind.
func (s *Store) CreateTriage(ctx context.Context, input store.CreateTriageInput) (models.TriageRecord, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findTriageByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.TriageRecord{}, false, err
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	visit, err := getVisitForUpdate(ctx, tx, input.VisitID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}

	paid, err := paymentConfirmedTx(ctx, tx, input.VisitID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	if err = store.CanStartTriage(visit.Status, paid, visit.ScheduledAt, occurredAt); err != nil {
		return models.TriageRecord{}, false, err
	}

	var exists bool
	row := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM triages WHERE visit_id = $1)`, input.VisitID)
	if err = row.Scan(&exists); err != nil {
		return models.TriageRecord{}, false, err
	}
	if exists {
		err = store.ErrTriageExists
		return models.TriageRecord{}, false, store.ErrTriageExists
	}

	triageID := uuid.NewString()
	row = tx.QueryRow(ctx, `
		INSERT INTO triages (
			triage_id, request_id, patient_id, visit_id, nurse_id,
			systolic_bp, diastolic_bp, heart_rate, temperature, respiratory_rate, oxygen_saturation,
			weight_kg, height_cm, chief_complaint, pain_scale, allergies, current_medications,
			blood_type, nurse_observations, priority, status, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$22)
		RETURNING `+triageColumns+`
	`, triageID, input.RequestID, visit.PatientID, input.VisitID, input.NurseID,
		input.Vitals.SystolicBP, input.Vitals.DiastolicBP, input.Vitals.HeartRate,
		input.Vitals.Temperature, input.Vitals.RespiratoryRate, input.Vitals.OxygenSaturation,
		input.Vitals.WeightKg, input.Vitals.HeightCm, nullIfEmpty(input.ChiefComplaint), input.PainScale,
		nullIfEmpty(input.Allergies), nullIfEmpty(input.CurrentMeds), nullIfEmpty(input.BloodType),
		nullIfEmpty(input.NurseObservation), input.Priority, models.TriageStatusPending, occurredAt)
	triage, err := scanTriage(row)
	if err != nil {
		return models.TriageRecord{}, false, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE visits
		SET status = 'in_triage',
			triage_at = $1,
			updated_at = $1
		WHERE visit_id = $2 AND status = 'scheduled'
		RETURNING `+visitColumns+`
	`, occurredAt, input.VisitID)
	visit, err = scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
			return models.TriageRecord{}, false, store.ErrInvalidState
		}
		return models.TriageRecord{}, false, err
	}

	if err = insertVisitEvent(ctx, tx, visit.VisitID, "visit.triage_started", input.NurseID, visitEventPayload(visit, "")); err != nil {
		return models.TriageRecord{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.TriageRecord{}, false, err
	}
	return triage, true, nil
}

func (s *Store) UpdateTriage(ctx context.Context, input store.UpdateTriageInput) (models.TriageRecord, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findTriageActionRequest(ctx, tx, store.ActionUpdateTriage, input.RequestID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.TriageRecord{}, false, err
		}
		if empty {
			return models.TriageRecord{}, false, store.ErrTriageNotPending
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	triage, err := getTriageForUpdate(ctx, tx, input.TriageID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	if triage.Status != models.TriageStatusPending {
		err = store.ErrTriageNotPending
		return models.TriageRecord{}, false, store.ErrTriageNotPending
	}

	row := tx.QueryRow(ctx, `
		UPDATE triages
		SET nurse_id = $1,
			systolic_bp = $2,
			diastolic_bp = $3,
			heart_rate = $4,
			temperature = $5,
			respiratory_rate = $6,
			oxygen_saturation = $7,
			weight_kg = $8,
			height_cm = $9,
			chief_complaint = $10,
			pain_scale = $11,
			allergies = $12,
			current_medications = $13,
			blood_type = $14,
			nurse_observations = $15,
			priority = $16,
			updated_at = $17
		WHERE triage_id = $18 AND status = 'pending'
		RETURNING `+triageColumns+`
	`, input.NurseID, input.Vitals.SystolicBP, input.Vitals.DiastolicBP, input.Vitals.HeartRate,
		input.Vitals.Temperature, input.Vitals.RespiratoryRate, input.Vitals.OxygenSaturation,
		input.Vitals.WeightKg, input.Vitals.HeightCm, nullIfEmpty(input.ChiefComplaint), input.PainScale,
		nullIfEmpty(input.Allergies), nullIfEmpty(input.CurrentMeds), nullIfEmpty(input.BloodType),
		nullIfEmpty(input.NurseObservation), input.Priority, occurredAt, input.TriageID)
	triage, err = scanTriage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTriageNotPending
			return models.TriageRecord{}, false, store.ErrTriageNotPending
		}
		return models.TriageRecord{}, false, err
	}

	if err = insertActionRequest(ctx, tx, store.ActionUpdateTriage, input.RequestID, "", triage.TriageID); err != nil {
		return models.TriageRecord{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.TriageRecord{}, false, err
	}
	return triage, true, nil
}

// CompleteTriage marks the record completed and advances the visit to
// ready_for_doctor. The handoff is always this explicit nurse action, never a
// side effect of saving vitals.
func (s *Store) CompleteTriage(ctx context.Context, input store.CompleteTriageInput) (models.TriageRecord, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findTriageActionRequest(ctx, tx, store.ActionCompleteTriage, input.RequestID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.TriageRecord{}, false, err
		}
		if empty {
			return models.TriageRecord{}, false, store.ErrTriageNotPending
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	triage, err := getTriageForUpdate(ctx, tx, input.TriageID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	visit, err := getVisitForUpdate(ctx, tx, triage.VisitID)
	if err != nil {
		return models.TriageRecord{}, false, err
	}
	if err = store.CanCompleteTriage(triage.Status, visit.Status); err != nil {
		return models.TriageRecord{}, false, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE triages
		SET status = 'completed',
			completed_at = $1,
			updated_at = $1
		WHERE triage_id = $2 AND status = 'pending'
		RETURNING `+triageColumns+`
	`, occurredAt, input.TriageID)
	triage, err = scanTriage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrTriageNotPending
			return models.TriageRecord{}, false, store.ErrTriageNotPending
		}
		return models.TriageRecord{}, false, err
	}

	row = tx.QueryRow(ctx, `
		UPDATE visits
		SET status = 'ready_for_doctor',
			updated_at = $1
		WHERE visit_id = $2 AND status = 'in_triage'
		RETURNING `+visitColumns+`
	`, occurredAt, triage.VisitID)
	visit, err = scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
			return models.TriageRecord{}, false, store.ErrInvalidState
		}
		return models.TriageRecord{}, false, err
	}

	if err = insertActionRequest(ctx, tx, store.ActionCompleteTriage, input.RequestID, visit.VisitID, triage.TriageID); err != nil {
		return models.TriageRecord{}, false, err
	}
	if err = insertVisitEvent(ctx, tx, visit.VisitID, "visit.triage_completed", input.NurseID, visitEventPayload(visit, "")); err != nil {
		return models.TriageRecord{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.TriageRecord{}, false, err
	}
	return triage, true, nil
}

func (s *Store) GetTriage(ctx context.Context, triageID string) (models.TriageRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+triageColumns+`
		FROM triages
		WHERE triage_id = $1
	`, triageID)
	triage, err := scanTriage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TriageRecord{}, store.ErrTriageNotFound
		}
		return models.TriageRecord{}, err
	}
	return triage, nil
}

func (s *Store) GetVisitTriage(ctx context.Context, visitID string) (models.TriageRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+triageColumns+`
		FROM triages
		WHERE visit_id = $1
	`, visitID)
	triage, err := scanTriage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TriageRecord{}, store.ErrTriageNotFound
		}
		return models.TriageRecord{}, err
	}
	return triage, nil
}

func getTriageForUpdate(ctx context.Context, tx pgx.Tx, triageID string) (models.TriageRecord, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+triageColumns+`
		FROM triages
		WHERE triage_id = $1
		FOR UPDATE
	`, triageID)
	triage, err := scanTriage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TriageRecord{}, store.ErrTriageNotFound
		}
		return models.TriageRecord{}, err
	}
	return triage, nil
}

func findTriageByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.TriageRecord, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+triageColumns+`
		FROM triages
		WHERE request_id = $1
	`, requestID)
	triage, err := scanTriage(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TriageRecord{}, false, nil
		}
		return models.TriageRecord{}, false, err
	}
	return triage, true, nil
}

func findTriageActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.TriageRecord, bool, bool, error) {
	var triageID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT triage_id
		FROM visit_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&triageID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.TriageRecord{}, false, false, nil
		}
		return models.TriageRecord{}, false, false, err
	}

	if !triageID.Valid {
		return models.TriageRecord{}, true, true, nil
	}

	triageRow := tx.QueryRow(ctx, `
		SELECT `+triageColumns+`
		FROM triages
		WHERE triage_id = $1
	`, triageID.String)
	triage, err := scanTriage(triageRow)
	if err != nil {
		return models.TriageRecord{}, false, false, err
	}
	return triage, true, false, nil
}

func paymentConfirmedTx(ctx context.Context, tx pgx.Tx, visitID string) (bool, error) {
	var confirmed bool
	row := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM payments
			WHERE visit_id = $1 AND status = 'paid'
		)
	`, visitID)
	if err := row.Scan(&confirmed); err != nil {
		return false, err
	}
	return confirmed, nil
}

func scanTriage(row pgx.Row) (models.TriageRecord, error) {
	var triage models.TriageRecord
	var complaintNull, allergiesNull, medsNull, bloodNull, obsNull sql.NullString
	var completedNull sql.NullTime
	if err := row.Scan(
		&triage.TriageID, &triage.PatientID, &triage.VisitID, &triage.NurseID,
		&triage.Vitals.SystolicBP, &triage.Vitals.DiastolicBP, &triage.Vitals.HeartRate,
		&triage.Vitals.Temperature, &triage.Vitals.RespiratoryRate, &triage.Vitals.OxygenSaturation,
		&triage.Vitals.WeightKg, &triage.Vitals.HeightCm, &complaintNull, &triage.PainScale,
		&allergiesNull, &medsNull, &bloodNull, &obsNull, &triage.Priority, &triage.Status,
		&triage.CreatedAt, &triage.UpdatedAt, &completedNull,
	); err != nil {
		return models.TriageRecord{}, err
	}
	if complaintNull.Valid {
		triage.ChiefComplaint = complaintNull.String
	}
	if allergiesNull.Valid {
		triage.Allergies = allergiesNull.String
	}
	if medsNull.Valid {
		triage.CurrentMedications = medsNull.String
	}
	if bloodNull.Valid {
		triage.BloodType = bloodNull.String
	}
	if obsNull.Valid {
		triage.NurseObservations = obsNull.String
	}
	triage.CompletedAt = nullTimePtr(completedNull)
	return triage, nil
}
