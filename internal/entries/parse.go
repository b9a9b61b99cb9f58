package entries

import "strings"

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// ParseRows turns pasted text into rows. Each line is split on tab when it
// contains one (a spreadsheet copy) and on comma otherwise; columns map to
// phone, name, item, receipt and cod in that order.
func ParseRows(raw string) []NewEntry {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var rows []NewEntry
	for _, line := range strings.Split(lineBreaks.Replace(raw), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}

		delim := ","
		if strings.Contains(line, "\t") {
			delim = "\t"
		}

		cols := strings.Split(line, delim)
		if len(cols) < 2 {
			continue
		}
		for i := range cols {
			cols[i] = strings.TrimSpace(cols[i])
		}

		row := NewEntry{
			Phone:         cols[0],
			RecipientName: cols[1],
			ItemName:      column(cols, 2),
			ReceiptNumber: column(cols, 3),
			COD:           column(cols, 4),
		}
		rows = append(rows, row)
	}
	return rows
}

func column(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}
