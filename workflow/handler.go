/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package workflow

import "fmt"

// Handler identifies one step the orchestrator can dispatch to. The zero
// value HandlerNone means "stop here".
type Handler int

const (
	HandlerNone Handler = iota
	HandlerRouter
	HandlerLogAnalysis
	HandlerIssueAuthoring
	HandlerIssueFiling
	HandlerRecommendation
	HandlerRemediation
	HandlerClarification
)

// handlerNames is the closed set of wire names, aligned with the constants
// above.
var handlerNames = [...]string{
	HandlerNone:           "none",
	HandlerRouter:         "router",
	HandlerLogAnalysis:    "log_analysis",
	HandlerIssueAuthoring: "issue_authoring",
	HandlerIssueFiling:    "issue_filing",
	HandlerRecommendation: "recommendation",
	HandlerRemediation:    "remediation",
	HandlerClarification:  "clarification",
}

// HandlerCount is the number of dispatchable handlers, excluding
// HandlerNone.
const HandlerCount = len(handlerNames) - 1

func (h Handler) String() string {
	if h < 0 || int(h) >= len(handlerNames) {
		return fmt.Sprintf("handler(%d)", int(h))
	}
	return handlerNames[h]
}

// ParseHandler resolves a wire name to a Handler.
func ParseHandler(s string) (Handler, error) {
	for h, name := range handlerNames {
		if s == name {
			return Handler(h), nil
		}
	}
	return HandlerNone, fmt.Errorf("unknown handler %q", s)
}

// MarshalText implements encoding.TextMarshaler so handlers render as
// their wire names in JSON output.
func (h Handler) MarshalText() ([]byte, error) {
	if h < 0 || int(h) >= len(handlerNames) {
		return nil, fmt.Errorf("handler value %d out of range", int(h))
	}
	return []byte(handlerNames[h]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Handler) UnmarshalText(text []byte) error {
	parsed, err := ParseHandler(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
