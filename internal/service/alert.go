package service

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// AlertThresholds are the overdue cutoffs in minutes: no alert up to Grace,
// low above it, medium above Medium, high above High (or when the
// checkpoint was never visited).
type AlertThresholds struct {
	GraceMinutes  int
	MediumMinutes int
	HighMinutes   int
}

// ThresholdsForInterval derives thresholds from a service's round interval:
// grace at one interval, medium at two, high at three.
func ThresholdsForInterval(intervalMinutes int) AlertThresholds {
	return AlertThresholds{
		GraceMinutes:  intervalMinutes,
		MediumMinutes: 2 * intervalMinutes,
		HighMinutes:   3 * intervalMinutes,
	}
}

// AlertEngine computes overdue alerts for checkpoints. Alerts are derived on
// every call and never stored.
type AlertEngine struct {
	db                 *gorm.DB
	fixed              AlertThresholds
	useServiceInterval bool
}

// NewAlertEngine creates an alert engine. When useServiceInterval is set,
// each checkpoint is classified against thresholds derived from its
// service's round interval instead of the fixed policy.
func NewAlertEngine(db *gorm.DB, fixed AlertThresholds, useServiceInterval bool) *AlertEngine {
	return &AlertEngine{
		db:                 db,
		fixed:              fixed,
		useServiceInterval: useServiceInterval,
	}
}

// ComputeAlerts resolves the caller's scope and returns the ranked alert
// list for it.
func (e *AlertEngine) ComputeAlerts(ctx context.Context, identity *model.User, scopeServiceID *uint) ([]model.Alert, error) {
	scope, err := AlertScope(identity, scopeServiceID)
	if err != nil {
		return nil, err
	}
	return e.ComputeForScope(ctx, scope)
}

// CountAlerts returns alert totals by severity for the caller's scope.
func (e *AlertEngine) CountAlerts(ctx context.Context, identity *model.User, scopeServiceID *uint) (model.AlertCount, error) {
	alerts, err := e.ComputeAlerts(ctx, identity, scopeServiceID)
	if err != nil {
		return model.AlertCount{}, err
	}

	count := model.AlertCount{Total: len(alerts)}
	for _, a := range alerts {
		switch a.Severity {
		case model.SeverityHigh:
			count.High++
		case model.SeverityMedium:
			count.Medium++
		case model.SeverityLow:
			count.Low++
		}
	}
	return count, nil
}

// ComputeForScope computes alerts for an already-resolved scope (nil means
// all services). Used by handlers after access resolution and by the
// background checker.
func (e *AlertEngine) ComputeForScope(ctx context.Context, scopeServiceID *uint) ([]model.Alert, error) {
	checkpointQuery := e.db.WithContext(ctx).Where("active = ?", true)
	if scopeServiceID != nil {
		checkpointQuery = checkpointQuery.Where("service_id = ?", *scopeServiceID)
	}

	var checkpoints []model.Checkpoint
	if err := checkpointQuery.Find(&checkpoints).Error; err != nil {
		return nil, err
	}

	lastVisits, err := e.lastVisitTimes(ctx, scopeServiceID)
	if err != nil {
		return nil, err
	}

	intervals := map[uint]int{}
	if e.useServiceInterval {
		if intervals, err = e.roundIntervals(ctx, scopeServiceID); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	alerts := []model.Alert{}
	for i := range checkpoints {
		cp := &checkpoints[i]

		thresholds := e.fixed
		if e.useServiceInterval {
			if interval, ok := intervals[cp.ServiceID]; ok && interval > 0 {
				thresholds = ThresholdsForInterval(interval)
			}
		}

		var lastVisit *time.Time
		if t, ok := lastVisits[cp.ID]; ok {
			lastVisit = &t
		}

		if alert := ClassifyOverdue(cp.ID, cp.Name, lastVisit, now, thresholds); alert != nil {
			alerts = append(alerts, *alert)
		}
	}

	SortAlerts(alerts)
	return alerts, nil
}

// lastVisitTimes returns the latest occurred_at per checkpoint in scope.
func (e *AlertEngine) lastVisitTimes(ctx context.Context, scopeServiceID *uint) (map[uint]time.Time, error) {
	type row struct {
		CheckpointID uint      `gorm:"column:checkpoint_id"`
		LastVisit    time.Time `gorm:"column:last_visit"`
	}

	query := e.db.WithContext(ctx).Model(&model.Visit{}).
		Select("checkpoint_id, MAX(occurred_at) as last_visit").
		Group("checkpoint_id")
	if scopeServiceID != nil {
		query = query.Where("service_id = ?", *scopeServiceID)
	}

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	last := make(map[uint]time.Time, len(rows))
	for _, r := range rows {
		last[r.CheckpointID] = r.LastVisit
	}
	return last, nil
}

// roundIntervals returns round_interval_minutes per service in scope.
func (e *AlertEngine) roundIntervals(ctx context.Context, scopeServiceID *uint) (map[uint]int, error) {
	query := e.db.WithContext(ctx).Model(&model.Service{})
	if scopeServiceID != nil {
		query = query.Where("id = ?", *scopeServiceID)
	}

	var services []model.Service
	if err := query.Find(&services).Error; err != nil {
		return nil, err
	}

	intervals := make(map[uint]int, len(services))
	for _, s := range services {
		intervals[s.ID] = s.RoundIntervalMinutes
	}
	return intervals, nil
}

// ClassifyOverdue decides whether a checkpoint is alerting at time now.
// A checkpoint never visited is always a high alert with nil minutes. A
// visited checkpoint is quiet within the grace window and escalates with
// the time since its last visit. Returns nil when not alerting.
func ClassifyOverdue(checkpointID uint, name string, lastVisit *time.Time, now time.Time, t AlertThresholds) *model.Alert {
	if lastVisit == nil {
		return &model.Alert{
			CheckpointID:   checkpointID,
			CheckpointName: name,
			Kind:           model.AlertKindUnvisited,
			Severity:       model.SeverityHigh,
		}
	}

	minutes := int(now.Sub(*lastVisit).Minutes())
	if minutes <= t.GraceMinutes {
		return nil
	}

	severity := model.SeverityLow
	switch {
	case minutes > t.HighMinutes:
		severity = model.SeverityHigh
	case minutes > t.MediumMinutes:
		severity = model.SeverityMedium
	}

	last := *lastVisit
	return &model.Alert{
		CheckpointID:      checkpointID,
		CheckpointName:    name,
		LastVisitAt:       &last,
		MinutesSinceVisit: &minutes,
		Kind:              model.AlertKindUnvisited,
		Severity:          severity,
	}
}

// SortAlerts orders alerts by severity (high first), then by minutes since
// the last visit, descending; never-visited checkpoints rank above any
// timed alert of the same severity.
func SortAlerts(alerts []model.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ri, rj := model.SeverityRank(alerts[i].Severity), model.SeverityRank(alerts[j].Severity)
		if ri != rj {
			return ri > rj
		}
		return minutesOrMax(alerts[i]) > minutesOrMax(alerts[j])
	})
}

func minutesOrMax(a model.Alert) int {
	if a.MinutesSinceVisit == nil {
		return int(^uint(0) >> 1) // never visited ranks above any timed alert
	}
	return *a.MinutesSinceVisit
}
