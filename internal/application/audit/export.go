package audit

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gym/backend/internal/domain/audit"
)

// ExportFormatCSV selects the CSV rendering of an export
const ExportFormatCSV = "CSV"

// CSVHeader is the first line of every audit CSV export
const CSVHeader = "Timestamp,Action,User ID,Member ID,Payment ID,Details,IP Address,User Agent"

const csvTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ExportResult carries either the CSV document or the raw entries
type ExportResult struct {
	Format  string        `json:"format"`
	CSV     string        `json:"csv,omitempty"`
	Entries []audit.Entry `json:"entries,omitempty"`
	Count   int           `json:"count"`
}

// RenderCSV renders entries in the audit export layout. Details and user
// agent are always quoted with inner quotes doubled; the remaining columns are
// written as-is and absent values are empty.
func RenderCSV(entries []audit.Entry) string {
	var b strings.Builder
	b.WriteString(CSVHeader)
	for _, e := range entries {
		b.WriteByte('\n')
		b.WriteString(strings.Join([]string{
			e.Timestamp.UTC().Format(csvTimeLayout),
			string(e.Action),
			idOrEmpty(e.UserID),
			idOrEmpty(e.MemberID),
			idOrEmpty(e.PaymentID),
			quote(e.Details),
			e.IPAddress,
			quote(e.UserAgent),
		}, ","))
	}
	return b.String()
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func idOrEmpty(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// archiveKey names the object an export of [start, end] is archived under
func archiveKey(prefix string, start, end time.Time) string {
	const layout = "20060102T150405Z"
	return strings.TrimSuffix(prefix, "/") + "/" + start.UTC().Format(layout) + "_" + end.UTC().Format(layout) + ".csv"
}
