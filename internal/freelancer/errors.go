package freelancer

import (
	"errors"
	"fmt"
)

// Sentinel errors for the marketplace responses the loops branch on.
// Mapping is by the server's message text — the API reports all bid
// rejections with the same HTTP status, so the message is the only
// discriminator it offers.
var (
	ErrRateLimited    = errors.New("freelancer: too many requests")
	ErrAlreadyBid     = errors.New("freelancer: already bid on project")
	ErrQuotaExhausted = errors.New("freelancer: bid quota exhausted")
	ErrNDARequired    = errors.New("freelancer: NDA must be signed first")
	ErrTooFast        = errors.New("freelancer: bidding too fast")
	ErrNotFound       = errors.New("freelancer: no projects found")
)

// APIError is any marketplace failure not covered by a sentinel.
type APIError struct {
	Message   string
	ErrorCode string
}

func (e *APIError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("freelancer: %s (%s)", e.Message, e.ErrorCode)
	}
	return "freelancer: " + e.Message
}

// Server message prefixes, verbatim from the API.
const (
	msgRateLimited = "You have made too many of these requests"
	msgAlreadyBid  = "You have already bid on that project."
	msgQuotaUsed   = "You have used all of your bids."
	msgNDARequired = "You must sign the NDA before you can bid on this project."
	msgTooFast     = "You appear to be bidding too fast."
)

// classify maps a server error message onto the sentinel taxonomy.
func classify(message, errorCode string) error {
	switch {
	case hasPrefix(message, msgRateLimited):
		return ErrRateLimited
	case message == msgAlreadyBid:
		return ErrAlreadyBid
	case message == msgQuotaUsed:
		return ErrQuotaExhausted
	case message == msgNDARequired:
		return ErrNDARequired
	case hasPrefix(message, msgTooFast):
		return ErrTooFast
	case errorCode == "NOT_FOUND":
		return ErrNotFound
	}
	return &APIError{Message: message, ErrorCode: errorCode}
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
