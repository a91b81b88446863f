/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package result_test

import (
	"fmt"
	"log"

	"github.com/opsleuth/opsleuth/agents/result"
)

// ExampleExtractJSON demonstrates extracting JSON from a fenced model reply.
func ExampleExtractJSON() {
	response := `Based on the request, I'll route this to log analysis:

` + "```json" + `
{
	"next_handler": "log_analysis",
	"reasoning": "the user is asking about production errors"
}
` + "```" + `

Let me know if you need anything else.`

	json := result.ExtractJSON(response)
	fmt.Println(json)

	// Output:
	// {
	// 	"next_handler": "log_analysis",
	// 	"reasoning": "the user is asking about production errors"
	// }
}

// ExampleExtractJSON_plainJSON demonstrates extraction when no markdown is present.
func ExampleExtractJSON_plainJSON() {
	response := `{"next_handler": "clarification", "reasoning": "no service named"}`

	json := result.ExtractJSON(response)
	fmt.Println(json)

	// Output:
	// {"next_handler": "clarification", "reasoning": "no service named"}
}

// ExampleExtractJSON_emptyBlock demonstrates handling of empty JSON blocks.
func ExampleExtractJSON_emptyBlock() {
	response := `I could not produce a routing decision.

` + "```json" + `
` + "```" + `
`

	json := result.ExtractJSON(response)
	fmt.Printf("Result: %q\n", json)

	// Output:
	// Result: ""
}

// ExampleExtract demonstrates type-safe extraction and unmarshaling.
func ExampleExtract() {
	response := `I drafted the following issues from the log evidence:

` + "```json" + `
{
	"issues": [
		{
			"title": "NullPointerException in checkout handler",
			"severity": "HIGH"
		},
		{
			"title": "Slow responses from payment gateway",
			"severity": "MEDIUM"
		}
	]
}
` + "```" + `

Both are supported by repeated log entries.`

	type Draft struct {
		Title    string `json:"title"`
		Severity string `json:"severity"`
	}
	type DraftSet struct {
		Issues []Draft `json:"issues"`
	}

	set, err := result.Extract[DraftSet](response)
	if err != nil {
		log.Fatal(err)
	}

	for _, d := range set.Issues {
		fmt.Printf("[%s] %s\n", d.Severity, d.Title)
	}

	// Output:
	// [HIGH] NullPointerException in checkout handler
	// [MEDIUM] Slow responses from payment gateway
}

// ExampleExtract_errorHandling demonstrates error handling during extraction.
func ExampleExtract_errorHandling() {
	response := "```json" + `
{
	"next_handler": "remediation"
` + "```" + `
`

	type Decision struct {
		NextHandler string `json:"next_handler"`
	}

	_, err := result.Extract[Decision](response)
	if err != nil {
		fmt.Println("extraction failed: malformed payload")
	}

	// Output:
	// extraction failed: malformed payload
}
