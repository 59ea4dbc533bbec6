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

const scheduleColumns = `schedule_id, doctor_id, specialty_id, day_of_week, start_time, end_time,
	break_start, break_end, slot_minutes, max_patients_per_day, valid_from, valid_until, active,
	created_at, updated_at`

func (s *Store) CreateSchedule(ctx context.Context, input store.CreateScheduleInput) (models.WorkScheduleTemplate, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.WorkScheduleTemplate{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findScheduleByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.WorkScheduleTemplate{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.WorkScheduleTemplate{}, false, err
		}
		return existing, false, nil
	}

	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tpl := input.Template
	scheduleID := uuid.NewString()

	row := tx.QueryRow(ctx, `
		INSERT INTO work_schedules (
			schedule_id, request_id, doctor_id, specialty_id, day_of_week, start_time, end_time,
			break_start, break_end, slot_minutes, max_patients_per_day, valid_from, valid_until,
			active, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,TRUE,$14,$14)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING `+scheduleColumns+`
	`, scheduleID, input.RequestID, tpl.DoctorID, nullIfEmpty(tpl.SpecialtyID), tpl.DayOfWeek,
		tpl.StartTime, tpl.EndTime, nullIfEmpty(tpl.BreakStart), nullIfEmpty(tpl.BreakEnd),
		tpl.SlotMinutes, tpl.MaxPatientsPerDay, tpl.ValidFrom, tpl.ValidUntil, createdAt)
	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			existing, found, err = findScheduleByRequestID(ctx, tx, input.RequestID)
			if err != nil {
				return models.WorkScheduleTemplate{}, false, err
			}
			if found {
				if err = tx.Commit(ctx); err != nil {
					return models.WorkScheduleTemplate{}, false, err
				}
				return existing, false, nil
			}
			err = pgx.ErrNoRows
			return models.WorkScheduleTemplate{}, false, err
		}
		return models.WorkScheduleTemplate{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.WorkScheduleTemplate{}, false, err
	}
	return schedule, true, nil
}

func (s *Store) ListDoctorSchedules(ctx context.Context, doctorID string) ([]models.WorkScheduleTemplate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+scheduleColumns+`
		FROM work_schedules
		WHERE doctor_id = $1
		ORDER BY day_of_week ASC, start_time ASC
	`, doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []models.WorkScheduleTemplate
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (s *Store) DeactivateSchedule(ctx context.Context, scheduleID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE work_schedules
		SET active = FALSE,
			updated_at = $1
		WHERE schedule_id = $2
	`, time.Now().UTC(), scheduleID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrScheduleNotFound
	}
	return nil
}

func findScheduleByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.WorkScheduleTemplate, bool, error) {
	row := tx.QueryRow(ctx, `
		SELECT `+scheduleColumns+`
		FROM work_schedules
		WHERE request_id = $1
	`, requestID)
	schedule, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.WorkScheduleTemplate{}, false, nil
		}
		return models.WorkScheduleTemplate{}, false, err
	}
	return schedule, true, nil
}

func scanSchedule(row pgx.Row) (models.WorkScheduleTemplate, error) {
	var schedule models.WorkScheduleTemplate
	var specialtyNull, breakStartNull, breakEndNull sql.NullString
	var validFromNull, validUntilNull sql.NullTime
	if err := row.Scan(
		&schedule.ScheduleID, &schedule.DoctorID, &specialtyNull, &schedule.DayOfWeek,
		&schedule.StartTime, &schedule.EndTime, &breakStartNull, &breakEndNull,
		&schedule.SlotMinutes, &schedule.MaxPatientsPerDay, &validFromNull, &validUntilNull,
		&schedule.Active, &schedule.CreatedAt, &schedule.UpdatedAt,
	); err != nil {
		return models.WorkScheduleTemplate{}, err
	}
	if specialtyNull.Valid {
		schedule.SpecialtyID = specialtyNull.String
	}
	if breakStartNull.Valid {
		schedule.BreakStart = breakStartNull.String
	}
	if breakEndNull.Valid {
		schedule.BreakEnd = breakEndNull.String
	}
	schedule.ValidFrom = nullTimePtr(validFromNull)
	schedule.ValidUntil = nullTimePtr(validUntilNull)
	return schedule, nil
}
