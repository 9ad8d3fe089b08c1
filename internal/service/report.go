package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"openpatrol/api/internal/model"
)

// VisitReportFilter narrows a visit report. Nil fields are unbounded.
type VisitReportFilter struct {
	ServiceID    *uint
	CheckpointID *uint
	GuardID      *uint
	From         *time.Time
	To           *time.Time
}

// VisitReportRow is one reported visit with resolved names.
type VisitReportRow struct {
	VisitID        uint      `json:"visit_id" gorm:"column:visit_id"`
	ServiceName    string    `json:"service_name" gorm:"column:service_name"`
	CheckpointName string    `json:"checkpoint_name" gorm:"column:checkpoint_name"`
	GuardName      string    `json:"guard_name" gorm:"column:guard_name"`
	Kind           string    `json:"kind" gorm:"column:kind"`
	Note           *string   `json:"note,omitempty" gorm:"column:note"`
	OccurredAt     time.Time `json:"occurred_at" gorm:"column:occurred_at"`
}

// VisitReportSummary aggregates a report.
type VisitReportSummary struct {
	Total        int64 `json:"total"`
	Normal       int64 `json:"normal"`
	Observations int64 `json:"observations"`
	Incidents    int64 `json:"incidents"`
}

// ReportService builds visit reports and XLSX exports.
type ReportService struct {
	db *gorm.DB
}

// NewReportService creates a new report service
func NewReportService(db *gorm.DB) *ReportService {
	return &ReportService{db: db}
}

// ScopeFilter pins the filter's service to the caller's scope. Supervisors
// always report on their own service; admins keep the requested filter.
func ScopeFilter(identity *model.User, filter VisitReportFilter) (VisitReportFilter, error) {
	if err := CanViewReports(identity); err != nil {
		return filter, err
	}
	if identity.Role == model.RoleSupervisor {
		if identity.ServiceID == nil {
			return filter, newError(KindNoServiceAssigned, "supervisor has no service assigned")
		}
		filter.ServiceID = identity.ServiceID
	}
	return filter, nil
}

// Query returns report rows newest first.
func (s *ReportService) Query(ctx context.Context, filter VisitReportFilter) ([]VisitReportRow, error) {
	var rows []VisitReportRow
	err := s.filtered(ctx, filter).
		Select("visits.id as visit_id, services.name as service_name, checkpoints.name as checkpoint_name, " +
			"users.name as guard_name, visits.kind, visits.note, visits.occurred_at").
		Joins("JOIN services ON services.id = visits.service_id").
		Joins("JOIN checkpoints ON checkpoints.id = visits.checkpoint_id").
		Joins("JOIN users ON users.id = visits.guard_id").
		Order("visits.occurred_at DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []VisitReportRow{}
	}
	return rows, nil
}

// Summary returns visit counts by kind for the filter.
func (s *ReportService) Summary(ctx context.Context, filter VisitReportFilter) (*VisitReportSummary, error) {
	type kindCount struct {
		Kind  string `gorm:"column:kind"`
		Count int64  `gorm:"column:count"`
	}

	var counts []kindCount
	err := s.filtered(ctx, filter).
		Select("visits.kind, COUNT(*) as count").
		Group("visits.kind").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}

	summary := VisitReportSummary{}
	for _, c := range counts {
		summary.Total += c.Count
		switch c.Kind {
		case model.VisitNormal:
			summary.Normal = c.Count
		case model.VisitObservation:
			summary.Observations = c.Count
		case model.VisitIncident:
			summary.Incidents = c.Count
		}
	}
	return &summary, nil
}

// ExportXLSX renders the report as an Excel workbook.
func (s *ReportService) ExportXLSX(ctx context.Context, filter VisitReportFilter) (*bytes.Buffer, error) {
	rows, err := s.Query(ctx, filter)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Visits"
	f.SetSheetName("Sheet1", sheetName)

	headers := []string{"Visit ID", "Service", "Checkpoint", "Guard", "Kind", "Note", "Occurred At (UTC)"}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for i, row := range rows {
		r := i + 2
		note := ""
		if row.Note != nil {
			note = *row.Note
		}
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", r), row.VisitID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", r), row.ServiceName)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", r), row.CheckpointName)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", r), row.GuardName)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", r), row.Kind)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", r), note)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", r), row.OccurredAt.UTC().Format("2006-01-02 15:04:05"))
	}

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 22)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}

func (s *ReportService) filtered(ctx context.Context, filter VisitReportFilter) *gorm.DB {
	query := s.db.WithContext(ctx).Model(&model.Visit{})
	if filter.ServiceID != nil {
		query = query.Where("visits.service_id = ?", *filter.ServiceID)
	}
	if filter.CheckpointID != nil {
		query = query.Where("visits.checkpoint_id = ?", *filter.CheckpointID)
	}
	if filter.GuardID != nil {
		query = query.Where("visits.guard_id = ?", *filter.GuardID)
	}
	if filter.From != nil {
		query = query.Where("visits.occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("visits.occurred_at <= ?", *filter.To)
	}
	return query
}
