package integrity

import (
	"context"
	"fmt"
	"time"

	"dataguard/internal/checksum"
	"dataguard/internal/logging"
	"dataguard/internal/snapshot"
)

// Checker compares a pre-deployment snapshot against the current live
// snapshot and classifies the risk of data loss. It always produces a
// report, never an error: a missing baseline is a WARNING, not a failure.
type Checker struct {
	thresholds Thresholds
	audit      *AuditLog
	alerts     *AlertDispatcher
	logger     *logging.Logger

	now func() time.Time
}

// NewChecker creates an integrity checker. audit and alerts may be nil, in
// which case reports are neither persisted nor forwarded.
func NewChecker(thresholds Thresholds, audit *AuditLog, alerts *AlertDispatcher, logger *logging.Logger) *Checker {
	if thresholds.MaxUserIncrease == 0 {
		thresholds.MaxUserIncrease = DefaultMaxUserIncrease
	}
	if thresholds.MaxCourseDecrease == 0 {
		thresholds.MaxCourseDecrease = DefaultMaxCourseDecrease
	}

	return &Checker{
		thresholds: thresholds,
		audit:      audit,
		alerts:     alerts,
		logger:     logger,
		now:        time.Now,
	}
}

// Compare produces an integrity report from two snapshots. pre may be nil.
func (c *Checker) Compare(pre, current *snapshot.DataSnapshot) *Report {
	report := &Report{
		MissingRecords:  []string{},
		Warnings:        []string{},
		SchemaChanges:   []string{},
		Recommendations: []string{},
		CheckedAt:       c.now().UTC(),
	}

	if pre == nil {
		report.OverallResult = ResultWarning
		report.AlertLevel = AlertWarning
		report.Warnings = append(report.Warnings, "no baseline snapshot available, cannot verify data integrity")
		report.Recommendations = warningRecommendations()
		return report
	}

	report.UserCountChange = current.TableCounts["users"] - pre.TableCounts["users"]
	if report.UserCountChange < 0 {
		report.MissingRecords = append(report.MissingRecords,
			fmt.Sprintf("user count decreased by %d (from %d to %d)",
				-report.UserCountChange, pre.TableCounts["users"], current.TableCounts["users"]))
	} else if report.UserCountChange > c.thresholds.MaxUserIncrease {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("user count increased by %d, above the expected ceiling of %d",
				report.UserCountChange, c.thresholds.MaxUserIncrease))
	}

	report.CourseCountChange = current.TableCounts["courses"] - pre.TableCounts["courses"]
	if report.CourseCountChange < -c.thresholds.MaxCourseDecrease {
		report.MissingRecords = append(report.MissingRecords,
			fmt.Sprintf("course count decreased by %d, beyond the tolerated churn of %d",
				-report.CourseCountChange, c.thresholds.MaxCourseDecrease))
	}

	if pre.SchemaHash != current.SchemaHash {
		report.SchemaChanges = append(report.SchemaChanges,
			"schema hash changed since the baseline snapshot")
	}

	// A checksum change without a count change means rows were mutated in
	// place, which no deployment should do silently.
	for table, preSum := range pre.TableChecksums {
		currentSum, ok := current.TableChecksums[table]
		if !ok {
			continue
		}
		if preSum == checksum.ErrorChecksum || currentSum == checksum.ErrorChecksum {
			continue
		}
		if preSum == currentSum {
			continue
		}
		if pre.TableCounts[table] == current.TableCounts[table] {
			report.DataCorruptionDetected = true
			report.MissingRecords = append(report.MissingRecords,
				fmt.Sprintf("table %s content changed with no count change, possible silent corruption", table))
		}
	}

	switch {
	case len(report.MissingRecords) > 0 || report.DataCorruptionDetected:
		report.OverallResult = ResultFail
		report.AlertLevel = AlertCritical
		report.Recommendations = failRecommendations()
	case len(report.Warnings) > 0 || len(report.SchemaChanges) > 0:
		report.OverallResult = ResultWarning
		report.AlertLevel = AlertWarning
		report.Recommendations = warningRecommendations()
	default:
		report.OverallResult = ResultPass
		report.AlertLevel = AlertInfo
		report.Recommendations = passRecommendations()
	}

	return report
}

// Run compares the snapshots, appends the report to the audit log, and
// forwards it to the alert dispatcher. Audit or alert failures are logged
// but never change the report.
func (c *Checker) Run(ctx context.Context, pre, current *snapshot.DataSnapshot) *Report {
	start := c.now()
	report := c.Compare(pre, current)

	c.logger.LogIntegrityCheck(string(report.OverallResult), report.UserCountChange,
		report.DataCorruptionDetected, c.now().Sub(start))

	if c.audit != nil {
		record := AuditRecord{Report: report}
		if pre != nil {
			record.CountsBefore = pre.TableCounts
		}
		if current != nil {
			record.CountsAfter = current.TableCounts
		}
		if err := c.audit.Append(record); err != nil {
			c.logger.WithField("error", err.Error()).Error("Failed to append integrity audit record")
		}
	}

	if c.alerts != nil {
		if err := c.alerts.Notify(ctx, report); err != nil {
			c.logger.WithField("error", err.Error()).Error("Failed to forward integrity alert")
		}
	}

	return report
}

// The recommendation templates are fixed per tier so reports stay
// deterministic and comparable across runs.

func failRecommendations() []string {
	return []string{
		"1. Stop application traffic immediately",
		"2. Initiate the emergency recovery procedure",
		"3. Restore from the most recent verified backup",
		"4. Investigate the deployment for the cause of data loss",
	}
}

func warningRecommendations() []string {
	return []string{
		"Review the flagged changes before declaring the deployment healthy",
		"Capture a fresh baseline snapshot once the changes are confirmed expected",
	}
}

func passRecommendations() []string {
	return []string{
		"No action required",
	}
}
