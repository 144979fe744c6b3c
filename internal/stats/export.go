package stats

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	answersSheet = "Answers"
	skillsSheet  = "Skills"
)

// Export writes records and their per-skill summary as an .xlsx workbook.
func Export(w io.Writer, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), answersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(skillsSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	answerCols := []any{"Recorded", "Session", "Assessment", "Domain", "Skill", "Question", "Answer", "Correct", "Time (s)"}
	if err := writeRow(f, answersSheet, 1, answerCols); err != nil {
		return err
	}
	for i, r := range records {
		row := []any{
			r.RecordedAt.Format("2006-01-02 15:04:05"),
			r.SessionID,
			r.Assessment,
			r.PrimaryClassCd,
			r.SkillCd,
			r.QuestionID,
			r.Statistic.Answer,
			r.Statistic.IsCorrect,
			float64(r.Statistic.Time) / 1000,
		}
		if err := writeRow(f, answersSheet, i+2, row); err != nil {
			return err
		}
	}

	skillCols := []any{"Skill", "Attempted", "Correct", "Accuracy", "Avg time (s)"}
	if err := writeRow(f, skillsSheet, 1, skillCols); err != nil {
		return err
	}
	for i, b := range Summarize(records).BySkill {
		row := []any{b.Key, b.Attempted, b.Correct, b.Accuracy(), b.AverageTime().Seconds()}
		if err := writeRow(f, skillsSheet, i+2, row); err != nil {
			return err
		}
	}

	for _, sheet := range []string{answersSheet, skillsSheet} {
		if err := f.SetCellStyle(sheet, "A1", "I1", header); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}
