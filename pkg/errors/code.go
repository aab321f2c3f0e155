package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: User & Auth module errors
// 12000-12999: Challenge module errors
// 13000-13999: Submission & Grading module errors
// 14000-14999: Progression & Leaderboard module errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError       ErrorCode = 10100
	RecordNotFound      ErrorCode = 10101
	RecordAlreadyExists ErrorCode = 10102
	TransactionFailed   ErrorCode = 10103

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	RequiredFieldEmpty ErrorCode = 10302

	// ========== User & Auth Module Errors (11000-11999) ==========

	// Authentication (11000-11099)
	InvalidCredentials    ErrorCode = 11000
	UserNotFound          ErrorCode = 11001
	TokenExpired          ErrorCode = 11002
	TokenInvalid          ErrorCode = 11003
	TokenGenerationFailed ErrorCode = 11004

	// Registration (11100-11199)
	UsernameAlreadyExists ErrorCode = 11100
	InvalidUsername       ErrorCode = 11101
	InvalidPassword       ErrorCode = 11102

	// ========== Challenge Module Errors (12000-12999) ==========

	ChallengeNotFound     ErrorCode = 12000
	ChallengeTypeMismatch ErrorCode = 12001
	ChallengePackInvalid  ErrorCode = 12002
	ChallengeSeedFailed   ErrorCode = 12003

	// ========== Submission & Grading Module Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	CodeTooLarge           ErrorCode = 13002
	LanguageNotSupported   ErrorCode = 13003
	SubmitTooFrequently    ErrorCode = 13004

	// Grading & sandbox (13100-13199)
	GradingSystemError    ErrorCode = 13100
	SandboxBuildError     ErrorCode = 13101
	SandboxRuntimeError   ErrorCode = 13102
	SandboxTimeout        ErrorCode = 13103
	SandboxMemoryExceeded ErrorCode = 13104
	SandboxOutputExceeded ErrorCode = 13105
	SandboxUnavailable    ErrorCode = 13106
	WorkerPoolFull        ErrorCode = 13107

	// ========== Progression & Leaderboard Module Errors (14000-14999) ==========

	LedgerConflict         ErrorCode = 14000
	LedgerUpdateFailed     ErrorCode = 14001
	BadgeRuleInvalid       ErrorCode = 14002
	LeaderboardUnavailable ErrorCode = 14100
	UserNotRanked          ErrorCode = 14101
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:       "Database operation failed",
	RecordNotFound:      "Record not found in database",
	RecordAlreadyExists: "Record already exists",
	TransactionFailed:   "Database transaction failed",

	// Cache
	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	RequiredFieldEmpty: "Required field is empty",

	// User & Auth
	InvalidCredentials:    "Invalid username or password",
	UserNotFound:          "User not found",
	TokenExpired:          "Token has expired",
	TokenInvalid:          "Invalid token",
	TokenGenerationFailed: "Failed to generate token",
	UsernameAlreadyExists: "Username already taken",
	InvalidUsername:       "Invalid username format",
	InvalidPassword:       "Invalid password format",

	// Challenge
	ChallengeNotFound:     "Challenge not found",
	ChallengeTypeMismatch: "Submission type does not match challenge type",
	ChallengePackInvalid:  "Invalid challenge pack format",
	ChallengeSeedFailed:   "Failed to seed challenges",

	// Submission
	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to record submission",
	CodeTooLarge:           "Code is too large",
	LanguageNotSupported:   "Programming language not supported",
	SubmitTooFrequently:    "Submitting too frequently, please wait",

	// Grading & sandbox
	GradingSystemError:    "Grading system error",
	SandboxBuildError:     "Build error",
	SandboxRuntimeError:   "Runtime error",
	SandboxTimeout:        "Time limit exceeded",
	SandboxMemoryExceeded: "Memory limit exceeded",
	SandboxOutputExceeded: "Output limit exceeded",
	SandboxUnavailable:    "Sandbox temporarily unavailable",
	WorkerPoolFull:        "Grading queue is full, please try again later",

	// Progression & Leaderboard
	LedgerConflict:         "Progress update conflicted, please retry",
	LedgerUpdateFailed:     "Failed to update progress",
	BadgeRuleInvalid:       "Invalid badge rule",
	LeaderboardUnavailable: "Leaderboard is not available",
	UserNotRanked:          "User is not ranked yet",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c >= 11000 && c < 11100: // Authentication errors
		return 401
	case c == Unauthorized:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == UserNotFound, c == ChallengeNotFound, c == SubmissionNotFound, c == UserNotRanked:
		return 404
	case c == TooManyRequests, c == SubmitTooFrequently:
		return 429
	case c == ServiceUnavailable, c == WorkerPoolFull, c == SandboxUnavailable, c == LedgerConflict:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == ChallengeTypeMismatch, c == CodeTooLarge, c == LanguageNotSupported:
		return 400
	default:
		return 500
	}
}
