package apperr

var (
	// Domain errors returned by services and repositories
	ErrConversationNotFound = NotFound("conversation not found")
	ErrUserNotFound         = NotFound("user not found")
	ErrNotParticipant       = Forbidden("user is not a participant of this conversation")
	ErrEmptyMessage         = InvalidArg("message text cannot be empty")
	ErrSelfConversation     = InvalidArg("cannot open a conversation with yourself")
	ErrInvalidID            = InvalidArg("invalid id")
	ErrInvalidPlatform      = InvalidArg("platform must be android or ios")
	ErrInvalidPushToken     = InvalidArg("push token is required")
	ErrDuplicateKey         = Conflict("record already exists")
	ErrClientIDReused       = Conflict("client_id already used in another conversation")
)

func ErrStore(cause error) error {
	return Wrap(CodeInternal, "storage failure", cause)
}
