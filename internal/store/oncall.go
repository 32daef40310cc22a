package store

import (
	"context"
	"fmt"

	"github.com/remedyops/remedy/internal/models"
)

const scheduleColumns = `id, engineer, service, team, start_time, end_time, priority, channel, recipient, active`

// CreateSchedule inserts an on-call schedule.
func (s *Store) CreateSchedule(ctx context.Context, sched *models.OnCallSchedule) error {
	if !sched.EndTime.After(sched.StartTime) {
		return fmt.Errorf("schedule end time must be after start time")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO oncall_schedules (`+scheduleColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sched.ID, sched.Engineer, sched.Service, sched.Team,
		timeToNano(sched.StartTime), timeToNano(sched.EndTime),
		string(sched.Priority), string(sched.Channel), sched.Recipient, sched.Active)
	if err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// ListActiveSchedules returns all schedules flagged active.
func (s *Store) ListActiveSchedules(ctx context.Context) ([]*models.OnCallSchedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleColumns+` FROM oncall_schedules WHERE active = 1 ORDER BY start_time ASC`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []*models.OnCallSchedule
	for rows.Next() {
		var (
			sched     models.OnCallSchedule
			startTime int64
			endTime   int64
			priority  string
			channel   string
		)
		if err := rows.Scan(&sched.ID, &sched.Engineer, &sched.Service, &sched.Team,
			&startTime, &endTime, &priority, &channel, &sched.Recipient, &sched.Active); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		sched.StartTime = nanoToTime(startTime)
		sched.EndTime = nanoToTime(endTime)
		sched.Priority = models.EscalationPriority(priority)
		sched.Channel = models.NotificationChannel(channel)
		schedules = append(schedules, &sched)
	}
	return schedules, rows.Err()
}
