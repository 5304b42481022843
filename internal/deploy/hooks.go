package deploy

import (
	"context"

	"dataguard/internal/backup"
	"dataguard/internal/database"
	"dataguard/internal/integrity"
	"dataguard/internal/logging"
	"dataguard/internal/snapshot"
)

// Hooks are the two integration points the surrounding application calls
// around a deployment: a pre-deployment capture and a post-deployment
// comparison. Both return plain booleans so the deploy pipeline decides
// severity; neither ever panics.
type Hooks struct {
	dbPath         string
	criticalTables []string
	snapshots      *snapshot.Manager
	checker        *integrity.Checker
	backups        *backup.Manager
	logger         *logging.Logger

	// Injection point for tests
	openInspector func(path string) (database.Inspector, error)

	lastReport *integrity.Report
}

// NewHooks creates deployment hooks. backups may be nil to skip the
// pre-deployment backup.
func NewHooks(dbPath string, criticalTables []string, snapshots *snapshot.Manager, checker *integrity.Checker, backups *backup.Manager, logger *logging.Logger) *Hooks {
	return &Hooks{
		dbPath:         dbPath,
		criticalTables: criticalTables,
		snapshots:      snapshots,
		checker:        checker,
		backups:        backups,
		logger:         logger,
		openInspector: func(path string) (database.Inspector, error) {
			return database.NewInspector(path)
		},
	}
}

// RunPreDeploymentCheck captures and persists a baseline snapshot, runs a
// transaction rollback self-test against the database, and takes a
// pre-deployment backup. Returns false if the baseline could not be
// captured or persisted; a failed backup only degrades the result when no
// backup manager is wired at all.
func (h *Hooks) RunPreDeploymentCheck(ctx context.Context) bool {
	done := h.logger.LogOperationStart("pre_deployment_check", map[string]interface{}{
		"database": h.dbPath,
	})

	inspector, err := h.openInspector(h.dbPath)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Cannot open database for pre-deployment check")
		done(err)
		return false
	}
	defer inspector.Close()

	if err := inspector.SelfTest(ctx); err != nil {
		h.logger.WithField("error", err.Error()).Error("Database self-test failed")
		done(err)
		return false
	}

	snap, err := h.snapshots.Capture(ctx, inspector, h.criticalTables)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Cannot capture pre-deployment snapshot")
		done(err)
		return false
	}

	if !h.snapshots.PersistPre(snap) {
		h.logger.Error("Cannot persist pre-deployment snapshot")
		done(nil)
		return false
	}

	if h.backups != nil {
		if _, ok := h.backups.CreateBackup(ctx, backup.KindPreDeployment); !ok {
			// The baseline is saved, so the post-deployment comparison
			// still works; losing the extra backup is not fatal.
			h.logger.Warn("Pre-deployment backup failed, continuing with snapshot only")
		}
	}

	done(nil)
	return true
}

// RunPostDeploymentCheck loads the baseline, captures the current state,
// runs the integrity comparison, and returns true only on a PASS. A missing
// baseline yields a WARNING report and returns false.
func (h *Hooks) RunPostDeploymentCheck(ctx context.Context) bool {
	done := h.logger.LogOperationStart("post_deployment_check", map[string]interface{}{
		"database": h.dbPath,
	})

	pre, _ := h.snapshots.LoadPre()

	inspector, err := h.openInspector(h.dbPath)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Cannot open database for post-deployment check")
		done(err)
		return false
	}
	defer inspector.Close()

	current, err := h.snapshots.Capture(ctx, inspector, h.criticalTables)
	if err != nil {
		h.logger.WithField("error", err.Error()).Error("Cannot capture post-deployment snapshot")
		done(err)
		return false
	}

	report := h.checker.Run(ctx, pre, current)
	h.lastReport = report
	done(nil)
	return report.Passed()
}

// LastReport returns the report of the most recent post-deployment check,
// or nil when none has run
func (h *Hooks) LastReport() *integrity.Report {
	return h.lastReport
}
