package audit

// Severity describes the audit severity level.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarn     Severity = "WARN"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Model lifecycle events.
const (
	// TypeCandidateSubmitted records a trainer submitting a candidate.
	TypeCandidateSubmitted = "model.candidate_submitted"
	// TypeModelRegistered records a candidate entering the registry.
	TypeModelRegistered = "model.registered"
	// TypeModelPromoted records a promotion to live influence.
	TypeModelPromoted = "model.promoted"
	// TypeModelRejected records a terminal rejection.
	TypeModelRejected = "model.rejected"
	// TypePromotionBlocked records a promotion stopped by gates or rate limit.
	TypePromotionBlocked = "model.promotion_blocked"
)

// Rollback events.
const (
	// TypeRollbackTriggered records a monitor-initiated rollback request.
	TypeRollbackTriggered = "rollback.triggered"
	// TypeRollbackStarted records the start of a rollback, before mutation.
	TypeRollbackStarted = "rollback.started"
	// TypeRollbackSucceeded records a completed rollback.
	TypeRollbackSucceeded = "rollback.succeeded"
	// TypeRollbackFailed records a rollback that left prior state intact.
	TypeRollbackFailed = "rollback.failed"
)

// Calibration events.
const (
	// TypeCalibrationActivated records a map going live for a window.
	TypeCalibrationActivated = "calibration.activated"
	// TypeCalibrationDeactivated records a window reverting to raw confidence.
	TypeCalibrationDeactivated = "calibration.deactivated"
	// TypeCalibrationBlocked records a guard verdict stopping activation.
	TypeCalibrationBlocked = "calibration.guard_blocked"
	// TypeCalibrationApplied records one raw-to-calibrated transformation.
	// Emitted only when the caller opts in; always best effort.
	TypeCalibrationApplied = "calibration.applied"
)
