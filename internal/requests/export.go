package requests

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExportHeaders is the fixed column order of request exports.
var ExportHeaders = []string{
	"Codigo", "Asunto", "Descripcion", "Ubicacion", "Fecha", "Estado", "Prioridad",
	"Proceso", "Tipo", "Solicitante", "Correo", "Empresa", "TieneFoto",
}

const exportSheet = "Solicitudes"

// exporter encodes a request listing in one download format.
type exporter struct {
	contentType string
	encode      func(rows []Summary) (*bytes.Buffer, error)
}

var exporters = map[string]exporter{
	"csv": {contentType: "text/csv; charset=utf-8", encode: func(rows []Summary) (*bytes.Buffer, error) {
		buf := &bytes.Buffer{}
		return buf, WriteCSV(buf, rows)
	}},
	"xlsx": {contentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", encode: EncodeXLSX},
}

func exportRecord(s Summary) []string {
	hasPicture := "No"
	if s.PictureCount > 0 {
		hasPicture = "Si"
	}
	return []string{
		s.RequestCode,
		s.Subject,
		s.Description,
		s.Location,
		s.DateRequested.UTC().Format("2006-01-02T15:04:05.000Z"),
		s.Status.Name,
		s.Priority.Name,
		s.Process.Name,
		s.Type.Name,
		s.Requester.Name + " " + s.Requester.LastName,
		s.Requester.Email,
		s.Company.Name,
		hasPicture,
	}
}

// WriteCSV serialises requests as CSV with a header row.
func WriteCSV(w io.Writer, rows []Summary) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write(ExportHeaders); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(exportRecord(row)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// EncodeXLSX serialises requests as a single-sheet workbook built in memory.
func EncodeXLSX(rows []Summary) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center"},
		Font:      &excelize.Font{Bold: true, Size: 11},
	})
	if err != nil {
		return nil, err
	}
	lastCol, err := excelize.ColumnNumberToName(len(ExportHeaders))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(exportSheet, "A", lastCol, 22); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastCol+"1", header); err != nil {
		return nil, err
	}
	if err := writeRow(f, 1, ExportHeaders); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, exportRecord(row)); err != nil {
			return nil, err
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf, nil
}

func writeRow(f *excelize.File, row int, values []string) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(exportSheet, cell, value); err != nil {
			return err
		}
	}
	return nil
}

// ExportFilename names the attachment for format.
func ExportFilename(format string) string {
	return "requests." + format
}
