package tools

// Result is the outcome every tool executor returns. It is a closed
// success/failure shape: executors never return errors or panic past the
// registry boundary, they fold failures into a Result so the turn and the
// stream keep going.
type Result struct {
	OK      bool
	Message string
	// Payload holds tool-specific success fields (urls, ids, result lists).
	Payload map[string]any
	// Detail holds failure diagnostics, human-readable.
	Detail string
}

// Ok builds a success result.
func Ok(message string, payload map[string]any) Result {
	return Result{OK: true, Message: message, Payload: payload}
}

// Fail builds a failure result.
func Fail(message, detail string) Result {
	return Result{OK: false, Message: message, Detail: detail}
}

// Transcript renders the result in the wire/persistence shape:
// {success:true, message, ...payload} or {success:false, message, error_details}.
func (r Result) Transcript() map[string]any {
	out := map[string]any{
		"success": r.OK,
		"message": r.Message,
	}
	if r.OK {
		for k, v := range r.Payload {
			out[k] = v
		}
		return out
	}
	out["error_details"] = r.Detail
	return out
}
