package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoAnswer is returned when the answer stream ends before a valid answer.
var ErrNoAnswer = errors.New("no confirmation answer: input closed")

// Confirmer answers yes/no questions.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Always is a constant policy: Always(true) approves everything,
// Always(false) declines everything.
type Always bool

// Confirm implements Confirmer.
func (a Always) Confirm(context.Context, string) (bool, error) {
	return bool(a), nil
}

// Func adapts a function to Confirmer.
type Func func(ctx context.Context, prompt string) (bool, error)

// Confirm implements Confirmer.
func (f Func) Confirm(ctx context.Context, prompt string) (bool, error) {
	return f(ctx, prompt)
}

// State is the state of one pending confirmation.
type State int

const (
	StateAwaiting State = iota
	StateConfirmed
	StateDeclined
)

func (s State) String() string {
	switch s {
	case StateAwaiting:
		return "AWAITING_CONFIRMATION"
	case StateConfirmed:
		return "CONFIRMED"
	case StateDeclined:
		return "DECLINED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Canonical answers.
const (
	Yes = "y"
	No  = "n"
)

// Decision tracks one confirmation through its states.
type Decision struct {
	state    State
	attempts int
}

// NewDecision returns a decision awaiting an answer.
func NewDecision() *Decision {
	return &Decision{state: StateAwaiting}
}

// State returns the current state.
func (d *Decision) State() State {
	return d.state
}

// Attempts returns how many answers have been given.
func (d *Decision) Attempts() int {
	return d.attempts
}

// Answer applies one response. Only "y" and "n" move the decision out of
// StateAwaiting; any other response leaves it there. Answering a decided
// decision is an error.
func (d *Decision) Answer(response string) (State, error) {
	if d.state != StateAwaiting {
		return d.state, fmt.Errorf("decision already %s", d.state)
	}
	d.attempts++
	switch response {
	case Yes:
		d.state = StateConfirmed
	case No:
		d.state = StateDeclined
	}
	return d.state, nil
}

// Prompter asks questions on out and reads answers line by line from in.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPrompter returns a Prompter over the given streams.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// Confirm asks prompt until the answer is exactly "y" or "n". The input
// ending first declines with ErrNoAnswer.
func (p *Prompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	d := NewDecision()
	for d.State() == StateAwaiting {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		fmt.Fprintf(p.out, "%s (y/n) ", prompt)
		line, err := p.in.ReadString('\n')
		if line != "" || err == nil {
			state, aerr := d.Answer(strings.TrimRight(line, "\r\n"))
			if aerr != nil {
				return false, aerr
			}
			if state == StateAwaiting {
				fmt.Fprintf(p.out, "Please answer %s or %s.\n", Yes, No)
			}
		}
		if err != nil && d.State() == StateAwaiting {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(p.out)
				return false, ErrNoAnswer
			}
			return false, fmt.Errorf("read confirmation: %w", err)
		}
	}
	return d.State() == StateConfirmed, nil
}

// Interactive returns a Prompter when in is a terminal, and the declining
// policy otherwise.
func Interactive(in *os.File, out io.Writer) Confirmer {
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return NewPrompter(in, out)
	}
	return Always(false)
}
