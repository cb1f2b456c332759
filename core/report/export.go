package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/quizhub/core"
	"github.com/trezcool/quizhub/core/user"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var (
	ExportHeader = []string{"quiz_id", "chapter_id", "date_of_quiz", "score", "remarks"}
	UsersHeader  = []string{"user_id", "full_name", "email", "qualification", "dob", "address", "pin_code", "quiz_attempts"}

	ErrUnknownFormat = errors.New("unknown export format")
)

const sheetName = "Scores"

func (r ExportRow) values() []string {
	return []string{
		fmt.Sprint(r.QuizID),
		fmt.Sprint(r.ChapterID),
		r.DateOfQuiz.Format(core.DateLayout),
		fmt.Sprint(r.Score),
		r.Remarks.String,
	}
}

// WriteCSV writes the header then one line per attempt. Values are written as is, unquoted.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	if _, err := fmt.Fprintln(w, strings.Join(ExportHeader, ",")); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := fmt.Fprintln(w, strings.Join(r.values(), ",")); err != nil {
			return err
		}
	}
	return nil
}

// WriteXLSX writes the same table as WriteCSV to a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []ExportRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return errors.Wrap(err, "renaming sheet")
	}
	for col, h := range ExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellStr(sheetName, cell, h); err != nil {
			return errors.Wrapf(err, "setting cell %s", cell)
		}
	}
	for i, r := range rows {
		line := []interface{}{r.QuizID, r.ChapterID, r.DateOfQuiz.Format(core.DateLayout), r.Score, r.Remarks.String}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &line); err != nil {
			return errors.Wrapf(err, "setting row %d", i+2)
		}
	}

	// bold header + auto-filter
	end, _ := excelize.CoordinatesToCellName(len(ExportHeader), 1)
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheetName, "A1", end, bold)
	}
	_ = f.AutoFilter(sheetName, "A1:"+end, nil)
	_ = f.SetColWidth(sheetName, "A", "E", 14)

	return f.Write(w)
}

func exportContentType(name string) string {
	if filepath.Ext(name) == "."+FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// ExportFilename is `quiz_data_user_<id>_<YYYYmmdd_HHMMSS>.<format>`.
func ExportFilename(userID int, now time.Time, format string) string {
	return fmt.Sprintf("quiz_data_user_%d_%s.%s", userID, now.Format("20060102_150405"), format)
}

// ExportScores writes a user's attempts to the export directory and returns the file name.
func (svc *Service) ExportScores(ctx context.Context, userID int, format string) (string, error) {
	var write func(io.Writer, []ExportRow) error
	switch format {
	case "", FormatCSV:
		format, write = FormatCSV, WriteCSV
	case FormatXLSX:
		write = WriteXLSX
	default:
		return "", ErrUnknownFormat
	}

	if _, err := svc.users.GetByID(ctx, userID); err != nil {
		return "", err
	}
	rows, err := svc.repo.ExportRows(ctx, userID)
	if err != nil {
		return "", errors.Wrap(err, "querying export rows")
	}

	if err := os.MkdirAll(svc.exportDir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating export dir")
	}
	f, name, err := core.CreateUnique(svc.exportDir, ExportFilename(userID, NowFunc(), format))
	if err != nil {
		return "", errors.Wrap(err, "creating export file")
	}
	if err := write(f, rows); err != nil {
		f.Close()
		return "", errors.Wrap(err, "writing export")
	}
	return name, f.Close()
}

// OpenExport opens a file of the export directory; path components are dropped.
func (svc *Service) OpenExport(name string) (*os.File, error) {
	f, err := os.Open(filepath.Join(svc.exportDir, filepath.Base(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("export")
		}
		return nil, err
	}
	return f, nil
}

// UsersCSV writes every student with their number of attempts.
func (svc *Service) UsersCSV(ctx context.Context, w io.Writer) error {
	activity, err := svc.repo.StudentActivity(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "querying student activity")
	}
	if _, err := fmt.Fprintln(w, strings.Join(UsersHeader, ",")); err != nil {
		return err
	}
	for _, a := range activity {
		var dob string
		if a.DOB.Valid {
			dob = a.DOB.Time.Format(core.DateLayout)
		}
		line := []string{
			fmt.Sprint(a.UserID), a.FullName, a.Email, a.Qualification, dob, a.Address, a.PinCode, fmt.Sprint(a.Attempts),
		}
		if _, err := fmt.Fprintln(w, strings.Join(line, ",")); err != nil {
			return err
		}
	}
	return nil
}

// students returns every active student account.
func (svc *Service) students(ctx context.Context) ([]user.User, error) {
	active := true
	return svc.users.QueryStudents(ctx, user.QueryFilter{IsActive: &active}, nil)
}
