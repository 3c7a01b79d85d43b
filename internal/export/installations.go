// Package export renders a partner's installations as a spreadsheet.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/psds-microservice/installation-service/internal/lifecycle"
	"github.com/psds-microservice/installation-service/internal/model"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Installazioni"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	timeLayout  = "2006-01-02 15:04"
)

// Header is the column order of the export.
var Header = []string{
	"Service Appointment",
	"Customer",
	"Phone",
	"Installation Address",
	"Type",
	"Status",
	"Team",
	"Start (UTC)",
	"End (UTC)",
	"Duration (min)",
	"Travel (min)",
	"Rejection Reason",
}

var columnWidths = []float64{22, 28, 16, 40, 18, 14, 20, 18, 18, 14, 12, 40}

// Installations writes items to a single sheet; teamNames labels the Team column.
func Installations(items []model.Installation, teamNames map[uint64]string) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range Header {
		if err := setCell(f, i+1, 1, h); err != nil {
			f.Close()
			return nil, err
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		if err := f.SetColWidth(SheetName, col, col, columnWidths[i]); err != nil {
			f.Close()
			return nil, fmt.Errorf("column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(Header), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	for r := range items {
		for c, v := range row(&items[r], teamNames) {
			if v == nil || v == "" {
				continue
			}
			if err := setCell(f, c+1, r+2, v); err != nil {
				f.Close()
				return nil, err
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func row(i *model.Installation, teamNames map[uint64]string) []interface{} {
	customer := i.CustomerName
	if i.CustomerSurname != nil && *i.CustomerSurname != "" {
		customer += " " + *i.CustomerSurname
	}
	status := string(i.Status)
	if info, ok := lifecycle.Info(i.Status); ok {
		status = info.Label
	}
	var team string
	if i.TeamID != nil {
		team = teamNames[*i.TeamID]
	}
	return []interface{}{
		i.ServiceAppointmentID,
		customer,
		str(i.CustomerPhone),
		i.InstallationAddress,
		str(i.InstallationType),
		status,
		team,
		when(i.ScheduledStart),
		when(i.ScheduledEnd),
		num(i.DurationMinutes),
		num(i.TravelTimeMinutes),
		str(i.RejectionReason),
	}
}

func setCell(f *excelize.File, col, row int, v interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(SheetName, cell, v); err != nil {
		return fmt.Errorf("set cell %s: %w", cell, err)
	}
	return nil
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func num(p *int) interface{} {
	if p == nil {
		return nil
	}
	return *p
}

func when(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
