package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Model registry errors
	CodeModelNotFound                Code = "MODEL_NOT_FOUND"
	CodeModelInvalidStatusTransition Code = "MODEL_INVALID_STATUS_TRANSITION"
	CodeModelAlreadyRejected         Code = "MODEL_ALREADY_REJECTED"
	CodeModelPromotedRejectForbidden Code = "MODEL_PROMOTED_REJECT_FORBIDDEN"
	CodeModelHorizonEmpty            Code = "MODEL_HORIZON_EMPTY"
	CodeModelDatasetVersionEmpty     Code = "MODEL_DATASET_VERSION_EMPTY"
	CodePointerVersionConflict       Code = "POINTER_VERSION_CONFLICT"
	CodePromotionRateLimited         Code = "PROMOTION_RATE_LIMITED"
	CodePromotionGatesFailed         Code = "PROMOTION_GATES_FAILED"

	// Calibration errors
	CodeCalibrationRunNotFound  Code = "CALIBRATION_RUN_NOT_FOUND"
	CodeCalibrationMapNotFound  Code = "CALIBRATION_MAP_NOT_FOUND"
	CodeCalibrationGuardBlocked Code = "CALIBRATION_GUARD_BLOCKED"
	CodeCalibrationWindowEmpty  Code = "CALIBRATION_WINDOW_EMPTY"
	CodeCalibrationNoSamples    Code = "CALIBRATION_NO_SAMPLES"

	// Rollback errors
	CodeRollbackInvalidType Code = "ROLLBACK_INVALID_TYPE"

	// Storage errors
	CodeNotFound           Code = "NOT_FOUND"
	CodeStorageUnavailable Code = "STORAGE_UNAVAILABLE"
)
