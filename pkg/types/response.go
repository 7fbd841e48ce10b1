package types

// Envelope is the single response shape for every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Data    any    `json:"data,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error carries the machine-checkable code of a failed request.
type Error struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}
