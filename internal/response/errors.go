package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrSessionActive      ErrCode = "SESSION_ALREADY_ACTIVE"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Progression ───────────────────────────────────────────────────
	ErrExamLocked        ErrCode = "EXAM_LOCKED"
	ErrAlreadyCompleted  ErrCode = "EXAM_ALREADY_COMPLETED"
	ErrInvalidSubmission ErrCode = "INVALID_SUBMISSION"
	ErrGuardViolation    ErrCode = "OVERRIDE_GUARD_VIOLATION"
	ErrExamMisconfigured ErrCode = "EXAM_MISCONFIGURED"
	ErrExamNotPublished  ErrCode = "EXAM_NOT_PUBLISHED"
	ErrNotExamAuthor     ErrCode = "NOT_EXAM_AUTHOR"
	ErrExamNotDraft      ErrCode = "EXAM_NOT_DRAFT"
	ErrDuplicateOrder    ErrCode = "DUPLICATE_GROUP_ORDER"

	// ─── Review ────────────────────────────────────────────────────────
	ErrNoReviewExam     ErrCode = "NO_REVIEW_EXAM"
	ErrNoActiveAttempt  ErrCode = "NO_ACTIVE_ATTEMPT"
	ErrShuffleMismatch  ErrCode = "SHUFFLE_ORDER_MISMATCH"
	ErrNotReviewOwner   ErrCode = "NOT_REVIEW_OWNER"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired    ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge    ErrCode = "FILE_TOO_LARGE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email/NISN atau kata sandi salah."
	case ErrSessionActive:
		return "Anda sudah login di perangkat lain."
	case ErrSessionInvalidated:
		return "Sesi Anda telah berakhir. Silakan login kembali."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."
	case ErrTokenExpired:
		return "Token autentikasi telah kedaluwarsa."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrTeacherAccessOnly:
		return "Sumber daya ini terbatas untuk pengajar."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidID:
		return "Format ID tidak valid."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."
	case ErrDependencyExists:
		return "Data tidak dapat dihapus karena masih digunakan oleh data lain."

	// ─── Progression ───────────────────────────────────────────────────
	case ErrExamLocked:
		return "Ujian ini masih terkunci untuk Anda."
	case ErrAlreadyCompleted:
		return "Ujian ini sudah Anda selesaikan dan tidak dapat dikirim ulang."
	case ErrInvalidSubmission:
		return "Jawaban yang dikirim tidak valid."
	case ErrGuardViolation:
		return "Status ujian ini tidak dapat diubah oleh pengajar."
	case ErrExamMisconfigured:
		return "Ujian ini tidak memiliki pertanyaan. Hubungi pengajar Anda."
	case ErrExamNotPublished:
		return "Ujian ini belum dipublikasikan."
	case ErrNotExamAuthor:
		return "Anda bukan pembuat ujian ini."
	case ErrExamNotDraft:
		return "Ujian ini tidak dalam status DRAFT."
	case ErrDuplicateOrder:
		return "Urutan ujian dalam grup ini sudah digunakan."

	// ─── Review ────────────────────────────────────────────────────────
	case ErrNoReviewExam:
		return "Tidak ada ujian pengulangan untuk ujian ini."
	case ErrNoActiveAttempt:
		return "Tidak ada percobaan pengulangan yang sedang aktif."
	case ErrShuffleMismatch:
		return "Urutan soal tidak cocok dengan percobaan yang aktif."
	case ErrNotReviewOwner:
		return "Ujian pengulangan ini bukan milik Anda."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "Unggah file diperlukan."
	case ErrUnsupportedFile:
		return "Jenis file tidak didukung."
	case ErrFileTooLarge:
		return "Ukuran file melebihi batas."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
