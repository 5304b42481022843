package integrity

import (
	"time"
)

// Result classifies the outcome of an integrity check
type Result string

const (
	ResultPass    Result = "PASS"
	ResultWarning Result = "WARNING"
	ResultFail    Result = "FAIL"
)

// AlertLevel is the severity tier attached to a report for notification
// routing
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Policy thresholds for snapshot comparison. The values are operational
// judgment calls, so they are overridable through Thresholds rather than
// baked into the algorithm.
const (
	// DefaultMaxUserIncrease is the user-count growth above which a check
	// flags a large unexplained increase.
	DefaultMaxUserIncrease int64 = 100
	// DefaultMaxCourseDecrease is the tolerated course-count shrinkage;
	// losing more than this fails the check.
	DefaultMaxCourseDecrease int64 = 10
)

// Thresholds holds the tunable comparison policy
type Thresholds struct {
	MaxUserIncrease   int64 `yaml:"max_user_increase" mapstructure:"max_user_increase"`
	MaxCourseDecrease int64 `yaml:"max_course_decrease" mapstructure:"max_course_decrease"`
}

// DefaultThresholds returns the standard comparison policy
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxUserIncrease:   DefaultMaxUserIncrease,
		MaxCourseDecrease: DefaultMaxCourseDecrease,
	}
}

// Report is the immutable outcome of comparing two snapshots
type Report struct {
	OverallResult          Result     `json:"overall_result"`
	UserCountChange        int64      `json:"user_count_change"`
	CourseCountChange      int64      `json:"course_count_change"`
	MissingRecords         []string   `json:"missing_records"`
	Warnings               []string   `json:"warnings"`
	SchemaChanges          []string   `json:"schema_changes"`
	DataCorruptionDetected bool       `json:"data_corruption_detected"`
	Recommendations        []string   `json:"recommendations"`
	AlertLevel             AlertLevel `json:"alert_level"`
	CheckedAt              time.Time  `json:"checked_at"`
}

// Passed reports whether the check found no problems at all
func (r *Report) Passed() bool {
	return r.OverallResult == ResultPass
}
