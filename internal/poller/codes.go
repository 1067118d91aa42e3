package poller

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
)

// Status is the normalized job status carried by a poll response.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusComplete
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusComplete:
		return "complete"
	case StatusError:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StatusCodes maps wire status integers to [Status] values.
//
// Complete and Error are required. When both Pending and Running are empty,
// every other integer is treated as pending. Otherwise a code outside all
// four sets is a protocol error.
type StatusCodes struct {
	Complete int
	Error    int
	Pending  []int
	Running  []int
}

// Classify maps a wire code to a [Status].
func (c StatusCodes) Classify(code int) (Status, error) {
	switch {
	case code == c.Complete:
		return StatusComplete, nil
	case code == c.Error:
		return StatusError, nil
	case slices.Contains(c.Running, code):
		return StatusRunning, nil
	case slices.Contains(c.Pending, code):
		return StatusPending, nil
	case len(c.Pending) == 0 && len(c.Running) == 0:
		return StatusPending, nil
	default:
		return 0, fmt.Errorf("unrecognized status code %d", code)
	}
}

// Validate reports whether the mapping is usable.
func (c StatusCodes) Validate() error {
	if c.Complete == c.Error {
		return fmt.Errorf("complete and error codes must differ (both %d)", c.Complete)
	}
	for _, code := range append(slices.Clone(c.Pending), c.Running...) {
		if code == c.Complete || code == c.Error {
			return fmt.Errorf("status code %d is listed as non-terminal and terminal", code)
		}
	}
	return nil
}

// PollResponse is a decoded poll reply.
type PollResponse struct {
	Status   Status
	Code     int
	Progress int
	Data     json.RawMessage
	Message  string

	// Cursor is the raw "ts" some direct-poll servers echo back. It is
	// informational: a direct job keeps its start cursor on every retry.
	Cursor json.RawMessage
}

type wirePoll struct {
	Status   *int            `json:"status"`
	Progress *float64        `json:"progress"`
	Data     json.RawMessage `json:"data"`
	Message  string          `json:"message"`
	TS       json.RawMessage `json:"ts"`
}

// DecodePollResponse parses body and classifies its status with codes.
// Progress is clamped to 0..100. A COMPLETE reply without data carries a
// JSON null payload.
func DecodePollResponse(body []byte, codes StatusCodes) (PollResponse, error) {
	var w wirePoll
	if err := json.Unmarshal(body, &w); err != nil {
		return PollResponse{}, fmt.Errorf("invalid poll response: %w", err)
	}
	if w.Status == nil {
		return PollResponse{}, fmt.Errorf("poll response has no status")
	}

	status, err := codes.Classify(*w.Status)
	if err != nil {
		return PollResponse{}, err
	}

	resp := PollResponse{
		Status:  status,
		Code:    *w.Status,
		Data:    w.Data,
		Message: w.Message,
		Cursor:  w.TS,
	}
	if w.Progress != nil {
		resp.Progress = min(max(int(*w.Progress), 0), 100)
	}
	if status == StatusComplete && len(resp.Data) == 0 {
		resp.Data = json.RawMessage("null")
	}
	return resp, nil
}

type wireSubmit struct {
	JobURL string `json:"joburl"`
}

// DecodeSubmitResponse parses a submit reply and resolves its job URL
// against the endpoint the criteria were posted to.
func DecodeSubmitResponse(body []byte, endpoint string) (string, error) {
	var w wireSubmit
	if err := json.Unmarshal(body, &w); err != nil {
		return "", fmt.Errorf("invalid submit response: %w", err)
	}
	if w.JobURL == "" {
		return "", fmt.Errorf("submit response has no joburl")
	}

	base, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid endpoint url: %w", err)
	}
	ref, err := url.Parse(w.JobURL)
	if err != nil {
		return "", fmt.Errorf("invalid joburl %q: %w", w.JobURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// withCursor returns rawURL with its ts query parameter set to cursor.
func withCursor(rawURL string, cursor int64) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("ts", fmt.Sprint(cursor))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
