// Package ussd defines the application-level contract with the USSD gateway:
// the inbound callback fields, the CON/END reply, and the navigation path
// decoded from the cumulative input text.
package ussd

import "strings"

// Request carries the decoded form fields of a single gateway callback.
// Text is cumulative: the gateway re-sends every keystroke entered so far,
// joined by "*", on each request of the session.
type Request struct {
	SessionID   string
	ServiceCode string
	PhoneNumber string
	Text        string
}

// Path returns the navigation path decoded from the cumulative text.
func (r Request) Path() []string {
	return Decode(r.Text)
}

// Reply is the answer returned to the gateway. End=false keeps the session
// open and prompts for more input; End=true closes it with a final message.
type Reply struct {
	End  bool
	Text string
	// State labels the menu state that produced the reply, for logs,
	// metrics and the audit trail. It never reaches the subscriber.
	State string
	// Failed marks a terminal reply caused by a failure (backend error,
	// missing login, unrecognized input) rather than a completed flow.
	Failed bool
}

// Continue builds a session-keeping reply for the given menu state.
func Continue(state, text string) Reply {
	return Reply{End: false, Text: text, State: state}
}

// Terminate builds a session-ending reply for the given menu state.
func Terminate(state, text string) Reply {
	return Reply{End: true, Text: text, State: state}
}

// Failure builds a session-ending reply for a failed action.
func Failure(state, text string) Reply {
	return Reply{End: true, Text: text, State: state, Failed: true}
}

// ResponseType returns the wire marker of the reply.
func (r Reply) ResponseType() string {
	if r.End {
		return "END"
	}
	return "CON"
}

// Render produces the plain-text body expected by the gateway.
func (r Reply) Render() string {
	return r.ResponseType() + " " + r.Text
}

// Decode splits the raw cumulative text into the ordered sequence of
// user-entered tokens. It is total: any input is valid, and an empty
// input yields an empty path (the root menu), not a one-element path.
func Decode(raw string) []string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "*")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}
