package reportes

import (
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/kontax/green-ledger/internal/apperr"
	"github.com/kontax/green-ledger/internal/models"
)

// ExcelExporter renders a completed report as a spreadsheet
type ExcelExporter struct {
	service *Service
	logger  *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(service *Service, logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{
		service: service,
		logger:  logger,
	}
}

// Export builds a workbook for a completed report. Reports still generating
// or in error cannot be exported.
func (e *ExcelExporter) Export(reporteID string) (*excelize.File, error) {
	reporte, err := e.service.Get(reporteID)
	if err != nil {
		return nil, err
	}
	if reporte.Estado != models.ReporteEstadoCompleto {
		return nil, fmt.Errorf("reporte %s is %s, only completed reports export: %w",
			reporteID, reporte.Estado, apperr.ErrValidation)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(reporte.DataJSON), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse report payload: %w", err)
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	e.setCell(f, sheet, "A1", "Reporte")
	e.setCell(f, sheet, "B1", reporte.Tipo)
	e.setCell(f, sheet, "A2", "Periodo")
	e.setCell(f, sheet, "B2", reporte.Periodo)
	e.setCell(f, sheet, "A3", "Entidad")
	e.setCell(f, sheet, "B3", reporte.EntityID)

	row := 5
	e.writeSection(f, sheet, "", payload, &row)

	e.logger.Info("Reporte exported to Excel",
		zap.String("reporte_id", reporteID),
		zap.String("tipo", reporte.Tipo))
	return f, nil
}

// writeSection flattens the payload one key per row; nested objects indent
// under their parent key.
func (e *ExcelExporter) writeSection(f *excelize.File, sheet, prefix string, data map[string]interface{}, row *int) {
	for key, value := range data {
		label := key
		if prefix != "" {
			label = prefix + "." + key
		}
		if nested, ok := value.(map[string]interface{}); ok {
			e.writeSection(f, sheet, label, nested, row)
			continue
		}
		e.setCell(f, sheet, fmt.Sprintf("A%d", *row), label)
		e.setCell(f, sheet, fmt.Sprintf("B%d", *row), value)
		*row++
	}
}

func (e *ExcelExporter) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		e.logger.Warn("Failed to set cell",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
