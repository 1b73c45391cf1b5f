package protocol

// MessageType represents the type of a window/showMessage notification
type MessageType int

const (
	// MessageTypeError represents an error message
	MessageTypeError MessageType = 1
	// MessageTypeWarning represents a warning message
	MessageTypeWarning MessageType = 2
	// MessageTypeInfo represents an informational message
	MessageTypeInfo MessageType = 3
	// MessageTypeLog represents a log message
	MessageTypeLog MessageType = 4
)

// ShowMessageParams represents the parameters for a window/showMessage notification
type ShowMessageParams struct {
	Type    MessageType `json:"type"`
	Message string      `json:"message"`
}
