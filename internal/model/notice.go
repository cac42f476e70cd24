package model

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeSuccess NoticeLevel = "success"
	NoticeInfo    NoticeLevel = "info"
	NoticeError   NoticeLevel = "error"
)

// Notice is a short user-facing message such as "Added Mug to cart".
// Presentation layers render these as toasts.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// SessionExpiredMessage is shown when a background sync hits an expired credential.
const SessionExpiredMessage = "Session expired. Please log in again."
