package mapping

import "fmt"

// Status codes of the response envelope.
const (
	StatusOK    = 200
	StatusError = 500
)

// Envelope is the response contract of every operation. Message and Data
// hold template expressions; an empty expression renders null.
type Envelope struct {
	StatusCode int
	Message    string
	Data       string
}

// Success returns the envelope of a call that produced data.
func Success(data string) Envelope {
	return Envelope{StatusCode: StatusOK, Data: data}
}

// Failure returns the envelope of a failed call.
func Failure(message string) Envelope {
	return Envelope{StatusCode: StatusError, Message: message}
}

// String renders the envelope as a JSON object template.
func (e Envelope) String() string {
	return fmt.Sprintf(`{"statusCode": %d, "message": %s, "data": %s}`, e.StatusCode, orNull(e.Message), orNull(e.Data))
}

func orNull(expr string) string {
	if expr == "" {
		return "null"
	}
	return expr
}
