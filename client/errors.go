package client

import "github.com/coregx/peerchat"

// Client-side error codes. Server-side failures keep their peerchat codes.
const (
	// ErrCodeTransport indicates the server could not be reached or answered
	// with something unreadable.
	ErrCodeTransport = "TRANSPORT_ERROR"

	// ErrCodeAckTimeout indicates a live-channel send got no acknowledgement in time.
	// The message may or may not have been persisted.
	ErrCodeAckTimeout = "ACK_TIMEOUT"

	// ErrCodeChannelLost indicates the live channel dropped while a send was in flight.
	ErrCodeChannelLost = "CHANNEL_LOST"

	// ErrCodeClosed indicates the conversation was closed.
	ErrCodeClosed = "CONVERSATION_CLOSED"
)

var (
	// ErrAckTimeout is returned by Send when the acknowledgement did not arrive in time.
	ErrAckTimeout = &peerchat.Error{Code: ErrCodeAckTimeout, Message: "no acknowledgement from server"}

	// ErrChannelLost is returned by Send when the live channel dropped before the acknowledgement.
	ErrChannelLost = &peerchat.Error{Code: ErrCodeChannelLost, Message: "live channel lost before acknowledgement"}

	// ErrClosed is returned by operations on a closed Conversation.
	ErrClosed = &peerchat.Error{Code: ErrCodeClosed, Message: "conversation closed"}
)

// IsRetryable reports whether a failed send may succeed if the user resubmits
// it: transport problems, lost acknowledgements and storage outages. Validation
// and authentication failures are not retryable.
func IsRetryable(err error) bool {
	switch peerchat.CodeOf(err) {
	case ErrCodeTransport, ErrCodeAckTimeout, ErrCodeChannelLost, peerchat.ErrCodeStorage:
		return true
	}
	return false
}
