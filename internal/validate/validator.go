// Package validate implements the document and location validators that
// decide whether a fetched document is worth feeding to the extraction
// pipeline at all: does it belong to the target county, and does it
// plausibly discuss the regulated technology.
package validate

import (
	"context"
	"fmt"
	"strings"
)

// StructuredCaller is the subset of llmcall.StructuredCaller a Validator
// needs: one (system, user) round trip parsed as JSON.
type StructuredCaller interface {
	Call(ctx context.Context, sysMsg, content string) (map[string]any, error)
}

// ParseFunc decides pass/fail from a validator's parsed JSON reply.
type ParseFunc func(props map[string]any) bool

// Validator runs one structured LLM check against a chunk of text and
// reduces the reply to a boolean verdict.
type Validator struct {
	Caller        StructuredCaller
	SystemMessage string
	Parse         ParseFunc
}

// NewValidator builds a Validator, appending a JSON-output instruction to
// systemMessage if it is not already present (case-insensitively).
func NewValidator(caller StructuredCaller, systemMessage string, parse ParseFunc) *Validator {
	return &Validator{
		Caller:        caller,
		SystemMessage: addJSONInstructions(systemMessage),
		Parse:         parse,
	}
}

const jsonInstructions = "Return your answer in JSON format"

func addJSONInstructions(msg string) string {
	if strings.Contains(strings.ToLower(msg), strings.ToLower(jsonInstructions)) {
		return msg
	}
	return msg + " " + jsonInstructions + "."
}

// Check formats SystemMessage against fmtArgs, submits content, and returns
// the reduced verdict. Empty content always fails without calling the LLM.
func (v *Validator) Check(ctx context.Context, content string, fmtArgs map[string]string) (bool, error) {
	if strings.TrimSpace(content) == "" {
		return false, nil
	}
	sysMsg := formatWithArgs(v.SystemMessage, fmtArgs)
	props, err := v.Caller.Call(ctx, sysMsg, content)
	if err != nil {
		return false, fmt.Errorf("validate: check: %w", err)
	}
	return v.Parse(props), nil
}

func formatWithArgs(template string, args map[string]string) string {
	out := template
	for k, v := range args {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

func boolProp(props map[string]any, key string) bool {
	v, ok := props[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
