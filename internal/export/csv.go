package export

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/LeventeLantos/wasender/internal/model"
)

const (
	DefaultPrefix = "wa_blast"

	header     = "Phone,Name,Item,Receipt,Status,Created At"
	timeLayout = "2/1/2006, 15.04.05"
)

// WriteCSV writes the report. Fields are joined with commas as-is; values
// containing commas are not quoted.
func WriteCSV(w io.Writer, entries []model.Entry, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(header + "\n"); err != nil {
		return err
	}
	for _, e := range entries {
		row := strings.Join([]string{
			e.Phone,
			e.RecipientName,
			e.ItemName,
			e.ReceiptNumber,
			string(e.Status),
			e.CreatedAt.In(loc).Format(timeLayout),
		}, ",")
		if _, err := bw.WriteString(row + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func Filename(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + "_report_" + now.Format("2006-01-02") + ".csv"
}
