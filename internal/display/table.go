package display

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"dataguard/internal/backup"
	"dataguard/internal/integrity"
)

// RestorePointTable prints restore points as an aligned table, newest first
func (p *Printer) RestorePointTable(points []backup.RestorePoint) {
	if len(points) == 0 {
		p.Muted("No restore points found")
		return
	}

	headers := []string{"BACKUP ID", "TIMESTAMP", "KIND", "SIZE (MB)", "VERIFIED", "DESCRIPTION"}
	rows := make([][]string, 0, len(points))
	for _, point := range points {
		verified := "no"
		if point.IsVerified {
			verified = "yes"
		}
		rows = append(rows, []string{
			point.BackupID,
			point.Timestamp.Format(time.RFC3339),
			string(point.Kind),
			fmt.Sprintf("%.2f", point.SizeMB),
			verified,
			point.Description,
		})
	}

	p.table(headers, rows)
}

// HealthSummary prints a backup health status
func (p *Printer) HealthSummary(status backup.HealthStatus) {
	switch status.State {
	case backup.HealthHealthy:
		p.Success("Backup health: %s", status.Message)
	case backup.HealthWarning:
		p.Warning("Backup health: %s", status.Message)
	default:
		p.Failure("Backup health: %s", status.Message)
	}

	if status.TotalBackups > 0 {
		p.Line("  last backup:  %s (%.1f hours ago)", status.LastBackupID, status.HoursSinceLastBackup)
		p.Line("  total stored: %d", status.TotalBackups)
	}
}

// IntegrityReport prints a full integrity check report
func (p *Printer) IntegrityReport(report *integrity.Report) {
	switch report.OverallResult {
	case integrity.ResultPass:
		p.Success("Integrity check: PASS")
	case integrity.ResultWarning:
		p.Warning("Integrity check: WARNING")
	default:
		p.Failure("Integrity check: FAIL")
	}

	p.Line("  user count change:   %+d", report.UserCountChange)
	p.Line("  course count change: %+d", report.CourseCountChange)
	if report.DataCorruptionDetected {
		p.Failure("  data corruption detected")
	}

	for _, issue := range report.MissingRecords {
		p.Failure("  %s", issue)
	}
	for _, warning := range report.Warnings {
		p.Warning("  %s", warning)
	}
	for _, change := range report.SchemaChanges {
		p.Warning("  %s", change)
	}

	if len(report.Recommendations) > 0 {
		p.Heading("Recommendations")
		for _, rec := range report.Recommendations {
			p.Line("  %s", rec)
		}
	}
}

// CleanupSummary prints the result of a retention cleanup pass
func (p *Printer) CleanupSummary(result backup.CleanupResult) {
	p.Line("Examined %d backups", result.Examined)
	if len(result.Deleted) > 0 {
		sorted := append([]string(nil), result.Deleted...)
		sort.Strings(sorted)
		p.Success("Deleted %d expired backups: %s", len(sorted), strings.Join(sorted, ", "))
	} else {
		p.Muted("No expired backups to delete")
	}
	if len(result.Failed) > 0 {
		p.Warning("Failed to delete %d backups, they remain cataloged: %s",
			len(result.Failed), strings.Join(result.Failed, ", "))
	}
}

// table renders rows with padded columns, truncating to the terminal width
func (p *Printer) table(headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	for i, h := range headers {
		sb.WriteString(pad(h, widths[i]))
		if i < len(headers)-1 {
			sb.WriteString("  ")
		}
	}
	p.Heading(p.truncate(sb.String()))

	for _, row := range rows {
		sb.Reset()
		for i, cell := range row {
			sb.WriteString(pad(cell, widths[i]))
			if i < len(row)-1 {
				sb.WriteString("  ")
			}
		}
		p.Line("%s", p.truncate(sb.String()))
	}
}

func (p *Printer) truncate(line string) string {
	if len(line) <= p.width {
		return line
	}
	return line[:p.width-1] + "…"
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
