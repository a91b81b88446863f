/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package workflow moves a request through a fixed set of handlers. The
// orchestrator owns the state record; handlers are pure with respect to it,
// returning sparse updates that the orchestrator merges and routes on.
package workflow

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"
)

// Outcome classifies how a walk ended.
type Outcome string

const (
	OutcomeNoProblemFound       Outcome = "no_problem_found"
	OutcomeProblemNotActionable Outcome = "problem_not_actionable"
	OutcomeRemediationAttempted Outcome = "remediation_attempted"
	OutcomeClarificationNeeded  Outcome = "clarification_needed"
	OutcomeFailed               Outcome = "failed"
)

// Result is what the orchestrator hands back when the walk terminates.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Summary string  `json:"summary,omitempty"`
	State   *State  `json:"state"`
	Err     error   `json:"-"`
}

// StepFunc executes one handler's work against the current state and
// returns the update to merge. A StepFunc must not mutate the state.
type StepFunc func(ctx context.Context, st *State) (Update, error)

// maxSteps bounds the walk so a routing loop cannot run forever.
const maxSteps = 2 * HandlerCount

// Orchestrator dispatches handlers until one terminates the walk.
type Orchestrator struct {
	steps map[Handler]StepFunc
}

// New constructs an Orchestrator. Every dispatchable handler must have a
// step registered; the router is the mandatory entry point.
func New(steps map[Handler]StepFunc) (*Orchestrator, error) {
	if steps[HandlerRouter] == nil {
		return nil, fmt.Errorf("router step is required")
	}
	for h, fn := range steps {
		if h == HandlerNone {
			return nil, fmt.Errorf("cannot register a step for %s", HandlerNone)
		}
		if fn == nil {
			return nil, fmt.Errorf("step for %s is nil", h)
		}
	}
	return &Orchestrator{steps: steps}, nil
}

// Run walks the handler graph for one query and returns the terminal
// Result. A handler error halts the walk; the Result carries the last good
// state and the failure.
func (o *Orchestrator) Run(ctx context.Context, query string) Result {
	st := NewState(query)
	log := clog.FromContext(ctx).With("request", st.ID.String())

	current := HandlerRouter
	for step := 0; step < maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return failure(st, fmt.Errorf("walk canceled at %s: %w", current, err))
		}

		fn, ok := o.steps[current]
		if !ok {
			return failure(st, fmt.Errorf("no step registered for %s", current))
		}

		log.With("handler", current.String()).With("step", step).Info("Dispatching")
		update, err := fn(ctx, st)
		if err != nil {
			return failure(st, fmt.Errorf("%s: %w", current, err))
		}

		st.merge(update)
		next := st.Next
		st.Next = HandlerNone

		if next == HandlerNone {
			return terminal(current, st)
		}
		current = next
	}

	return failure(st, fmt.Errorf("walk exceeded %d steps, routing loop suspected", maxSteps))
}

// terminal classifies a normal termination: the handler's own outcome when
// it set one, a per-handler default otherwise.
func terminal(last Handler, st *State) Result {
	out := st.Outcome
	if out == "" {
		switch last {
		case HandlerClarification:
			out = OutcomeClarificationNeeded
		case HandlerRemediation:
			out = OutcomeRemediationAttempted
		case HandlerRecommendation, HandlerIssueFiling:
			out = OutcomeProblemNotActionable
		default:
			out = OutcomeNoProblemFound
		}
	}
	return Result{
		Outcome: out,
		Summary: st.LastAssistantText(),
		State:   st,
	}
}

func failure(st *State, err error) Result {
	return Result{
		Outcome: OutcomeFailed,
		Summary: err.Error(),
		State:   st,
		Err:     err,
	}
}
