package apperrors

// Domain errors raised by the send pipeline and chat handlers.
var (
	ErrTopicNotFound    = NotFound("topic not found")
	ErrChatNotFound     = NotFound("chat not found")
	ErrUserNotFound     = NotFound("user not found")
	ErrNotChatMember    = Forbidden("not an active member of this chat")
	ErrSenderSuspended  = Forbidden("sender is suspended")
	ErrBlocked          = Forbidden("blocked from starting a chat with this user")
	ErrAmbiguousTarget  = InvalidArg("exactly one of topic_id or chat_id must be set")
	ErrEmptyContent     = InvalidArg("message content cannot be empty")
	ErrSelfChat         = InvalidArg("cannot start a chat with yourself")
	ErrUnauthenticated  = Unauthorized("connection is not authenticated")
	ErrInvalidToken     = Unauthorized("invalid token")
	ErrAlreadyBlocked   = AlreadyExists("user is already blocked")
	ErrBroadcastFailure = Unavailable("broadcast layer unreachable")
)
