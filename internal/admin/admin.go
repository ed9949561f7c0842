package admin

import (
	"bufio"
	"io"
	"strings"
	"time"

	"eventreg/internal/model"
)

// Filter keeps registrations whose name or roll number contains term
// (case-insensitive) or whose phone contains it verbatim. An empty term
// keeps everything.
func Filter(regs []model.Registration, term string) []model.Registration {
	if term == "" {
		return regs
	}
	lower := strings.ToLower(term)
	out := make([]model.Registration, 0, len(regs))
	for _, r := range regs {
		if strings.Contains(strings.ToLower(r.Name), lower) ||
			strings.Contains(strings.ToLower(r.RollNumber), lower) ||
			strings.Contains(r.Phone, term) {
			out = append(out, r)
		}
	}
	return out
}

var csvHeader = []string{"ID", "Name", "Year", "Roll Number", "Phone", "Timestamp", "Receipt URL"}

// TimestampLayout matches the en-US locale date-time rendering.
const TimestampLayout = "1/2/2006, 3:04:05 PM"

// WriteCSV writes regs with every field double-quoted. encoding/csv only
// quotes when needed, so quoting is done here.
func WriteCSV(w io.Writer, regs []model.Registration, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	bw := bufio.NewWriter(w)
	writeRow(bw, csvHeader, false)
	for _, r := range regs {
		ts := ""
		if r.Timestamp != nil {
			ts = r.Timestamp.In(loc).Format(TimestampLayout)
		}
		writeRow(bw, []string{r.RegistrationID, r.Name, r.Year, r.RollNumber, r.Phone, ts, r.ReceiptURL}, true)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, fields []string, quote bool) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		if !quote {
			w.WriteString(f)
			continue
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

func Filename(now time.Time) string {
	return "registrations-" + now.UTC().Format("2006-01-02") + ".csv"
}
