// Package menuexport writes a form's menu and business hours to an .xlsx
// price list for salon staff.
package menuexport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"yoyaku/internal/formconfig"
)

// Sheet names.
const (
	MenuSheet  = "メニュー"
	HoursSheet = "営業時間"
)

// Row kinds in the menu sheet.
const (
	KindMenu    = "メニュー"
	KindOption  = "オプション"
	KindSubmenu = "サブメニュー"
)

var (
	menuColumns  = []string{"カテゴリ", "メニュー", "種別", "項目", "料金", "所要時間(分)", "初期選択"}
	hoursColumns = []string{"曜日", "開店", "閉店", "定休日"}
	dayNames     = [...]string{"日曜日", "月曜日", "火曜日", "水曜日", "木曜日", "金曜日", "土曜日"}
)

var errNoSheet = errors.New("no active sheet")

// sheetWriter appends rows to the current sheet of a workbook.
type sheetWriter struct {
	file         *excelize.File
	currentSheet string
	currentRow   int
}

func newSheetWriter() *sheetWriter {
	return &sheetWriter{file: excelize.NewFile()}
}

// AddSheet adds a new sheet with the given name.
func (w *sheetWriter) AddSheet(name string) error {
	// Excel limits sheet names to 31 characters.
	if r := []rune(name); len(r) > 31 {
		name = string(r[:31])
	}

	if w.currentSheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	w.currentSheet = name
	w.currentRow = 1
	return nil
}

// WriteHeader writes bold column headers and freezes the header row.
func (w *sheetWriter) WriteHeader(columns []string) error {
	if w.currentSheet == "" {
		return errNoSheet
	}
	cells := make([]any, len(columns))
	for i, c := range columns {
		cells[i] = c
	}
	if err := w.writeCells(cells); err != nil {
		return err
	}

	style, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, w.currentRow)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), w.currentRow)
		_ = w.file.SetCellStyle(w.currentSheet, startCell, endCell, style)
	}
	_ = w.file.SetPanes(w.currentSheet, &excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	})

	w.currentRow++
	return nil
}

// WriteRow writes a data row to the current sheet.
func (w *sheetWriter) WriteRow(row ...any) error {
	if w.currentSheet == "" {
		return errNoSheet
	}
	if err := w.writeCells(row); err != nil {
		return err
	}
	w.currentRow++
	return nil
}

func (w *sheetWriter) writeCells(cells []any) error {
	for i, val := range cells {
		cell, err := excelize.CoordinatesToCellName(i+1, w.currentRow)
		if err != nil {
			return err
		}
		if err := w.file.SetCellValue(w.currentSheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

// Export writes the price list of cfg to out.
func Export(cfg *formconfig.FormConfig, out io.Writer) error {
	w := newSheetWriter()
	defer w.file.Close()

	if err := writeMenu(w, cfg.MenuStructure); err != nil {
		return fmt.Errorf("write menu sheet: %w", err)
	}
	if err := writeHours(w, cfg.CalendarSettings.BusinessHours); err != nil {
		return fmt.Errorf("write hours sheet: %w", err)
	}

	w.file.SetActiveSheet(0)
	if err := w.file.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeMenu(w *sheetWriter, ms formconfig.MenuStructure) error {
	if err := w.AddSheet(MenuSheet); err != nil {
		return err
	}
	if err := w.WriteHeader(menuColumns); err != nil {
		return err
	}

	for _, cat := range ms.Categories {
		for _, m := range cat.Menus {
			if m.Kind == formconfig.KindSubmenu {
				for _, sub := range m.SubMenuItems {
					if err := w.WriteRow(cat.Name, m.Name, KindSubmenu, sub.Name, sub.Price, sub.Duration, ""); err != nil {
						return err
					}
				}
				continue
			}
			if err := w.WriteRow(cat.Name, m.Name, KindMenu, m.Name, m.Price, m.Duration, ""); err != nil {
				return err
			}
			for _, o := range m.Options {
				def := ""
				if o.IsDefault {
					def = "○"
				}
				if err := w.WriteRow(cat.Name, m.Name, KindOption, o.Name, o.Price, o.Duration, def); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func writeHours(w *sheetWriter, bh formconfig.BusinessHours) error {
	if err := w.AddSheet(HoursSheet); err != nil {
		return err
	}
	if err := w.WriteHeader(hoursColumns); err != nil {
		return err
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		day := bh.Day(d)
		closed := ""
		if day.Closed {
			closed = "○"
		}
		if err := w.WriteRow(dayNames[d], day.Open, day.Close, closed); err != nil {
			return err
		}
	}
	return nil
}
