// Package confirm gates destructive and expensive operations behind a yes/no
// confirmation.
//
// A Confirmer is either interactive (a Prompter reading answers from a
// terminal) or a constant policy (Always) for batch use. Interactive
// answers follow a small state machine:
//
//	AWAITING_CONFIRMATION --"y"--> CONFIRMED
//	AWAITING_CONFIRMATION --"n"--> DECLINED
//	AWAITING_CONFIRMATION --anything else--> AWAITING_CONFIRMATION (re-prompt)
//
// Declining is never an error: callers observe it as a Cancelled outcome or
// a false answer.
package confirm
