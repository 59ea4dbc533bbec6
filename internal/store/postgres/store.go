package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"clinic/visit-service/internal/models"
	"clinic/visit-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const visitColumns = `visit_id, patient_id, doctor_id, specialty_id, scheduled_at, duration_minutes,
	status, reason, notes, request_id, triage_at, consultation_at, completed_at, cancelled_at,
	consultation_id, created_at, updated_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// BookVisit inserts the visit inside one transaction. The partial unique
// index on (doctor_id, scheduled_at) over slot-occupying statuses closes the
// check-then-insert race: when ON CONFLICT suppresses the insert and the
// request_id is new, the slot was taken concurrently.
func (s *Store) BookVisit(ctx context.Context, input store.BookVisitInput) (models.Visit, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visit{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findVisitByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Visit{}, false, err
		}
		return existing, false, nil
	}

	if err = ensurePatientExists(ctx, tx, input.PatientID); err != nil {
		return models.Visit{}, false, err
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	visitID := uuid.NewString()

	row := tx.QueryRow(ctx, `
		INSERT INTO visits (
			visit_id, request_id, patient_id, doctor_id, specialty_id, scheduled_at,
			duration_minutes, status, reason, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
		ON CONFLICT DO NOTHING
		RETURNING `+visitColumns+`
	`, visitID, input.RequestID, input.PatientID, input.DoctorID, nullIfEmpty(input.SpecialtyID),
		input.ScheduledAt.UTC(), input.Duration, models.StatusScheduled, nullIfEmpty(input.Reason), createdAt)

	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, found, err = findVisitByRequestID(ctx, tx, input.RequestID)
			if err != nil {
				return models.Visit{}, false, err
			}
			if found {
				if err = tx.Commit(ctx); err != nil {
					return models.Visit{}, false, err
				}
				return existing, false, nil
			}
			err = store.ErrSlotTaken
			return models.Visit{}, false, store.ErrSlotTaken
		}
		return models.Visit{}, false, err
	}

	if err = insertVisitEvent(ctx, tx, visit.VisitID, "visit.booked", input.PatientID, visitEventPayload(visit, "")); err != nil {
		return models.Visit{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func (s *Store) GetVisit(ctx context.Context, visitID string) (models.Visit, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE visit_id = $1
	`, visitID)
	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, store.ErrVisitNotFound
		}
		return models.Visit{}, err
	}
	return visit, nil
}

func (s *Store) ListDayVisits(ctx context.Context, doctorID string, date time.Time) ([]models.Visit, error) {
	from, to := dayRange(date)
	rows, err := s.pool.Query(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE doctor_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
		ORDER BY scheduled_at ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var visits []models.Visit
	for rows.Next() {
		visit, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		visits = append(visits, visit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return visits, nil
}

func (s *Store) ListBookedTimes(ctx context.Context, doctorID string, date time.Time) ([]time.Time, error) {
	from, to := dayRange(date)
	rows, err := s.pool.Query(ctx, `
		SELECT scheduled_at
		FROM visits
		WHERE doctor_id = $1 AND scheduled_at >= $2 AND scheduled_at < $3
			AND status IN ('scheduled','in_triage','ready_for_doctor','in_consultation')
		ORDER BY scheduled_at ASC
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, err
		}
		times = append(times, at.UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return times, nil
}

func (s *Store) RescheduleVisit(ctx context.Context, input store.RescheduleInput) (models.Visit, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visit{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, store.ActionReschedule, input.RequestID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Visit{}, false, err
		}
		if empty {
			return models.Visit{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	visit, err := getVisitForUpdate(ctx, tx, input.VisitID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if err = store.CanReschedule(visit.Status); err != nil {
		return models.Visit{}, false, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE visits
		SET scheduled_at = $1,
			updated_at = $2
		WHERE visit_id = $3 AND status = 'scheduled'
		RETURNING `+visitColumns+`
	`, input.ScheduledAt.UTC(), occurredAt, input.VisitID)
	visit, err = scanVisit(row)
	if err != nil {
		if isUniqueViolation(err) {
			err = store.ErrSlotTaken
			return models.Visit{}, false, store.ErrSlotTaken
		}
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
			return models.Visit{}, false, store.ErrInvalidState
		}
		return models.Visit{}, false, err
	}

	if err = insertActionRequest(ctx, tx, store.ActionReschedule, input.RequestID, visit.VisitID, ""); err != nil {
		return models.Visit{}, false, err
	}
	if err = insertVisitEvent(ctx, tx, visit.VisitID, "visit.rescheduled", input.ActorID, visitEventPayload(visit, "")); err != nil {
		return models.Visit{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func (s *Store) StartConsultation(ctx context.Context, input store.VisitActionInput) (models.Visit, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visit{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, store.ActionStartConsultation, input.RequestID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Visit{}, false, err
		}
		if empty {
			return models.Visit{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	visit, err := getVisitForUpdate(ctx, tx, input.VisitID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if err = store.CanStartConsultation(visit.Status, visit.DoctorID, input.ActorID); err != nil {
		return models.Visit{}, false, err
	}

	// Already in consultation with the same doctor: nothing to change.
	if visit.Status == models.StatusInConsultation {
		if err = insertActionRequest(ctx, tx, store.ActionStartConsultation, input.RequestID, visit.VisitID, ""); err != nil {
			return models.Visit{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.Visit{}, false, err
		}
		return visit, false, nil
	}

	row := tx.QueryRow(ctx, `
		UPDATE visits
		SET status = 'in_consultation',
			consultation_at = $1,
			updated_at = $1
		WHERE visit_id = $2 AND status = 'ready_for_doctor'
		RETURNING `+visitColumns+`
	`, occurredAt, input.VisitID)
	visit, err = scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
			return models.Visit{}, false, store.ErrInvalidState
		}
		return models.Visit{}, false, err
	}

	if err = insertActionRequest(ctx, tx, store.ActionStartConsultation, input.RequestID, visit.VisitID, ""); err != nil {
		return models.Visit{}, false, err
	}
	if err = insertVisitEvent(ctx, tx, visit.VisitID, "visit.consultation_started", input.ActorID, visitEventPayload(visit, "")); err != nil {
		return models.Visit{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func (s *Store) CompleteVisit(ctx context.Context, input store.VisitActionInput) (models.Visit, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visit{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, store.ActionComplete, input.RequestID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Visit{}, false, err
		}
		if empty {
			return models.Visit{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	visit, err := getVisitForUpdate(ctx, tx, input.VisitID)
	if err != nil {
		return models.Visit{}, false, err
	}
	hasConsultation := visit.ConsultationID != nil || input.ConsultationID != ""
	if err = store.CanComplete(visit.Status, hasConsultation); err != nil {
		return models.Visit{}, false, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE visits
		SET status = 'completed',
			completed_at = $1,
			updated_at = $1,
			consultation_id = COALESCE(consultation_id, $2)
		WHERE visit_id = $3 AND status IN ('in_consultation','ready_for_doctor')
		RETURNING `+visitColumns+`
	`, occurredAt, nullIfEmpty(input.ConsultationID), input.VisitID)
	visit, err = scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
			return models.Visit{}, false, store.ErrInvalidState
		}
		return models.Visit{}, false, err
	}

	if err = insertActionRequest(ctx, tx, store.ActionComplete, input.RequestID, visit.VisitID, ""); err != nil {
		return models.Visit{}, false, err
	}
	if err = insertVisitEvent(ctx, tx, visit.VisitID, "visit.completed", input.ActorID, visitEventPayload(visit, input.Reason)); err != nil {
		return models.Visit{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func (s *Store) CancelVisit(ctx context.Context, input store.VisitActionInput) (models.Visit, bool, error) {
	return s.updateVisitStatus(ctx, input, store.ActionCancel, models.StatusCancelled, "visit.cancelled", "cancelled_at",
		func(visit models.Visit, now time.Time) error {
			return store.CanCancel(visit.Status, visit.ScheduledAt, now)
		})
}

func (s *Store) MarkNoShow(ctx context.Context, input store.VisitActionInput) (models.Visit, bool, error) {
	return s.updateVisitStatus(ctx, input, store.ActionNoShow, models.StatusNoShow, "visit.no_show", "",
		func(visit models.Visit, now time.Time) error {
			return store.CanMarkNoShow(visit.Status)
		})
}

func (s *Store) updateVisitStatus(ctx context.Context, input store.VisitActionInput, action, toStatus, eventType, timestampColumn string, guard func(models.Visit, time.Time) error) (models.Visit, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Visit{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Visit{}, false, err
		}
		if empty {
			return models.Visit{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	visit, err := getVisitForUpdate(ctx, tx, input.VisitID)
	if err != nil {
		return models.Visit{}, false, err
	}
	if err = guard(visit, occurredAt); err != nil {
		return models.Visit{}, false, err
	}

	query := `
		UPDATE visits
		SET status = $1,
			updated_at = $2
	`
	if timestampColumn != "" {
		query += ", " + timestampColumn + " = $2"
	}
	query += `
		WHERE visit_id = $3 AND status = $4
		RETURNING ` + visitColumns

	row := tx.QueryRow(ctx, query, toStatus, occurredAt, input.VisitID, visit.Status)
	visit, err = scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = store.ErrInvalidState
			return models.Visit{}, false, store.ErrInvalidState
		}
		return models.Visit{}, false, err
	}

	if err = insertActionRequest(ctx, tx, action, input.RequestID, visit.VisitID, ""); err != nil {
		return models.Visit{}, false, err
	}
	if err = insertVisitEvent(ctx, tx, visit.VisitID, eventType, input.ActorID, visitEventPayload(visit, input.Reason)); err != nil {
		return models.Visit{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func (s *Store) ListVisitEvents(ctx context.Context, visitID string) ([]store.VisitEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT visit_id, visit_seq, type, actor_id, payload, created_at, prev_hash, hash
		FROM visit_events
		WHERE visit_id = $1
		ORDER BY visit_seq ASC
	`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.VisitEvent
	for rows.Next() {
		var event store.VisitEvent
		var actorNull sql.NullString
		if err := rows.Scan(&event.VisitID, &event.VisitSeq, &event.Type, &actorNull, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		if actorNull.Valid {
			event.ActorID = actorNull.String
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) GetPatient(ctx context.Context, patientID string) (models.Patient, error) {
	var patient models.Patient
	row := s.pool.QueryRow(ctx, `
		SELECT patient_id, full_name, birth_date
		FROM patients
		WHERE patient_id = $1
	`, patientID)
	if err := row.Scan(&patient.PatientID, &patient.FullName, &patient.BirthDate); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Patient{}, store.ErrPatientNotFound
		}
		return models.Patient{}, err
	}
	return patient, nil
}

// PaymentConfirmed is the read-only boundary to the billing tables. The
// service never writes payments.
func (s *Store) PaymentConfirmed(ctx context.Context, visitID string) (bool, error) {
	var confirmed bool
	row := s.pool.QueryRow(ctx, `
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

func ensurePatientExists(ctx context.Context, tx pgx.Tx, patientID string) error {
	var id string
	row := tx.QueryRow(ctx, `
		SELECT patient_id
		FROM patients
		WHERE patient_id = $1
	`, patientID)
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrPatientNotFound
		}
		return err
	}
	return nil
}

func getVisitForUpdate(ctx context.Context, tx pgx.Tx, visitID string) (models.Visit, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE visit_id = $1
		FOR UPDATE
	`, visitID)
	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, store.ErrVisitNotFound
		}
		return models.Visit{}, err
	}
	return visit, nil
}

func findVisitByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Visit, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE request_id = $1
	`, requestID)
	visit, err := scanVisit(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, false, nil
		}
		return models.Visit{}, false, err
	}
	return visit, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Visit, bool, bool, error) {
	var visitID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT visit_id
		FROM visit_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&visitID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Visit{}, false, false, nil
		}
		return models.Visit{}, false, false, err
	}

	if !visitID.Valid {
		return models.Visit{}, true, true, nil
	}

	visitRow := tx.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE visit_id = $1
	`, visitID.String)
	visit, err := scanVisit(visitRow)
	if err != nil {
		return models.Visit{}, false, false, err
	}
	return visit, true, false, nil
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, visitID, triageID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO visit_action_requests (request_id, action, visit_id, triage_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, nullIfEmpty(visitID), nullIfEmpty(triageID))
	return err
}

// insertVisitEvent appends to the visit's hash chain. The advisory lock
// serializes writers for one visit so sequence numbers never collide.
func insertVisitEvent(ctx context.Context, tx pgx.Tx, visitID, eventType, actorID string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, visitID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT visit_seq, hash
		FROM visit_events
		WHERE visit_id = $1
		ORDER BY visit_seq DESC
		LIMIT 1
		FOR UPDATE
	`, visitID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	// Postgres stores microseconds; hash over anything finer would not
	// verify after read-back.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)
	hash := store.ComputeVisitEventHash(prev, visitID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO visit_events (visit_id, visit_seq, type, actor_id, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, visitID, nextSeq, eventType, nullIfEmpty(actorID), payload, createdAt, prev, hash)
	return err
}

func visitEventPayload(visit models.Visit, reason string) []byte {
	payload := map[string]interface{}{
		"visit_id":     visit.VisitID,
		"patient_id":   visit.PatientID,
		"doctor_id":    visit.DoctorID,
		"status":       visit.Status,
		"scheduled_at": visit.ScheduledAt,
	}
	if visit.SpecialtyID != "" {
		payload["specialty_id"] = visit.SpecialtyID
	}
	if reason != "" {
		payload["reason"] = reason
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func scanVisit(row pgx.Row) (models.Visit, error) {
	var visit models.Visit
	var specialtyNull, reasonNull, notesNull, requestNull, consultationNull sql.NullString
	var triageNull, consultAtNull, completedNull, cancelledNull sql.NullTime
	if err := row.Scan(
		&visit.VisitID, &visit.PatientID, &visit.DoctorID, &specialtyNull, &visit.ScheduledAt,
		&visit.Duration, &visit.Status, &reasonNull, &notesNull, &requestNull,
		&triageNull, &consultAtNull, &completedNull, &cancelledNull, &consultationNull,
		&visit.CreatedAt, &visit.UpdatedAt,
	); err != nil {
		return models.Visit{}, err
	}
	if specialtyNull.Valid {
		visit.SpecialtyID = specialtyNull.String
	}
	if reasonNull.Valid {
		visit.Reason = reasonNull.String
	}
	if notesNull.Valid {
		visit.Notes = notesNull.String
	}
	if requestNull.Valid {
		visit.RequestID = requestNull.String
	}
	visit.ScheduledAt = visit.ScheduledAt.UTC()
	visit.TriageAt = nullTimePtr(triageNull)
	visit.ConsultationAt = nullTimePtr(consultAtNull)
	visit.CompletedAt = nullTimePtr(completedNull)
	visit.CancelledAt = nullTimePtr(cancelledNull)
	visit.ConsultationID = nullStringPtr(consultationNull)
	return visit, nil
}

func dayRange(date time.Time) (time.Time, time.Time) {
	year, month, day := date.UTC().Date()
	from := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 0, 1)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time.UTC()
	return &t
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
