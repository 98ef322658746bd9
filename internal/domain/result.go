package domain

// SendResult is the outcome of a send-message call, classified once at the
// transport boundary. It is one of SendSuccess, QuotaExceeded or SendFailure.
type SendResult interface {
	sendResult()
}

// SendSuccess carries the server's reply.
type SendSuccess struct {
	ConversationID string
	Reply          Message
	Usage          UsageQuota
}

// QuotaExceeded means the user has no allowance left.
type QuotaExceeded struct{}

// SendFailure is any other failure. Message holds the server's error text,
// empty when none was supplied.
type SendFailure struct {
	Message string
	Err     error
}

func (SendSuccess) sendResult()   {}
func (QuotaExceeded) sendResult() {}
func (SendFailure) sendResult()   {}
