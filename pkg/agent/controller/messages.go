package controller

import "fmt"

// maxObservationBytes bounds how much of a tool result is fed back into the
// conversation; providers charge for every token of context, and a tool
// that dumps an entire file or query result back verbatim would blow past
// the model's context window over a handful of iterations.
const maxObservationBytes = 8 * 1024

// FormatErrorObservation reports a model-call failure back into the
// conversation so the next iteration can see what went wrong.
func FormatErrorObservation(err error) string {
	return fmt.Sprintf("Observation: the last request failed: %s", err)
}

// FormatToolObservation reports a tool's result, truncating it to
// maxObservationBytes when the tool returned more than the loop can afford
// to carry forward.
func FormatToolObservation(name, content string, isError bool) string {
	content = truncate(content, maxObservationBytes)
	if isError {
		return fmt.Sprintf("Observation: tool %q failed: %s", name, content)
	}
	return fmt.Sprintf("Observation: tool %q returned: %s", name, content)
}

// FormatApprovalPending tells the model its action is paused awaiting a
// human approver; the run itself suspends here, so this text only ever
// surfaces as the final answer of a suspended run.
func FormatApprovalPending(action string) string {
	return fmt.Sprintf("Observation: action %q requires approval; the run is paused until it is resolved.", action)
}

// FormatApprovalRejected tells the model an approver declined its action.
func FormatApprovalRejected(action string) string {
	return fmt.Sprintf("Observation: action %q was rejected by an approver.", action)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + fmt.Sprintf("... (truncated, %d bytes total)", len(s))
}
