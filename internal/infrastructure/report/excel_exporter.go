package report

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/MiguelValor/shopify-automator/internal/application/port"
	"github.com/MiguelValor/shopify-automator/internal/domain/entity"
)

// SheetName is the worksheet holding the audit trail
const SheetName = "Approvals"

var auditHeaders = []string{
	"ID", "Shop", "Created", "Action", "Entity Type", "Entity ID",
	"Confidence", "Priority", "Status", "Reviewed At", "Reviewed By",
	"Review Notes", "Expires", "Execution", "Executed At", "Execution Error",
	"Reasoning", "Proposed Data",
}

// ExcelExporter renders approval records as an xlsx workbook
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new audit exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// Export writes one row per approval to w
func (e *ExcelExporter) Export(ctx context.Context, w io.Writer, approvals []*entity.ApprovalRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := e.writeHeader(f); err != nil {
		return err
	}

	for i, a := range approvals {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, rowValues(a)); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", a.ID, err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		e.logger.Warn("Failed to freeze header row", zap.Error(err))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	e.logger.Info("Audit workbook exported", zap.Int("rows", len(approvals)))
	return nil
}

func (e *ExcelExporter) writeHeader(f *excelize.File) error {
	header := make([]interface{}, len(auditHeaders))
	for i, h := range auditHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	last, err := excelize.CoordinatesToCellName(len(auditHeaders), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, style); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	return nil
}

func rowValues(a *entity.ApprovalRequest) *[]interface{} {
	confidence := ""
	if a.Confidence != nil {
		confidence = fmt.Sprintf("%.2f", *a.Confidence)
	}

	row := []interface{}{
		a.ID,
		a.ShopID,
		formatTime(&a.CreatedAt),
		a.ActionType,
		a.EntityType,
		a.EntityID,
		confidence,
		a.Priority,
		a.Status,
		formatTime(a.ReviewedAt),
		a.ReviewedBy,
		a.ReviewNotes,
		formatTime(&a.ExpiresAt),
		a.ExecutionStatus,
		formatTime(a.ExecutedAt),
		a.ExecutionError,
		a.Reasoning,
		string(a.ProposedData),
	}
	return &row
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

var _ port.AuditExporter = (*ExcelExporter)(nil)
