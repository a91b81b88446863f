/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package router

import (
	"regexp"
	"strings"

	"github.com/opsleuth/opsleuth/logquery"
	"github.com/opsleuth/opsleuth/workflow"
)

// servicePattern pairs a kind with the phrasing users reach for when they
// name a service of that kind. Patterns are tried in order; the first match
// wins.
type servicePattern struct {
	kind logquery.Kind
	re   *regexp.Regexp
}

const nameGroup = `['"]?([A-Za-z0-9._-]+)['"]?`

var servicePatterns = []servicePattern{
	{logquery.KindCloudRun, regexp.MustCompile(`(?i)cloud\s+run\s+(?:service\s+)?` + nameGroup)},
	{logquery.KindCloudBuild, regexp.MustCompile(`(?i)cloud\s+build\s+(?:logs\s+for\s+|build\s+)?` + nameGroup)},
	{logquery.KindCloudFunctions, regexp.MustCompile(`(?i)cloud\s+functions?\s+` + nameGroup)},
	{logquery.KindGCE, regexp.MustCompile(`(?i)(?:gce|compute(?:\s+engine)?)\s+(?:instance\s+|vm\s+)?` + nameGroup)},
	{logquery.KindGKE, regexp.MustCompile(`(?i)gke\s+(?:cluster\s+|workload\s+|pod\s+)?` + nameGroup)},
	{logquery.KindAppEngine, regexp.MustCompile(`(?i)app\s+engine\s+(?:service\s+|app\s+)?` + nameGroup)},
}

// stopwords are phrasing words that can trail the kind phrase and must not
// be mistaken for a service name.
var stopwords = map[string]bool{
	"service": true, "instance": true, "cluster": true,
	"the": true, "a": true, "an": true, "my": true, "is": true,
}

// extractService scans text for a service mention. Returns the zero value
// when nothing matches.
func extractService(text string) workflow.Service {
	for _, p := range servicePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.Trim(m[1], ".")
		if name == "" || stopwords[strings.ToLower(name)] {
			continue
		}
		return workflow.Service{Name: name, Kind: p.kind}
	}
	return workflow.Service{}
}

var repoURLPattern = regexp.MustCompile(`https://github\.com/[A-Za-z0-9._-]+/[A-Za-z0-9._-]+`)

// extractRepoURL returns the newest repository mention across the query and
// prior conversation, or "". The query is the oldest utterance, so it is
// scanned first and every later conversation turn overwrites it.
func extractRepoURL(st *workflow.State) string {
	newest := ""
	if url := lastRepoURL(st.Query); url != "" {
		newest = url
	}
	for _, m := range st.Conversation {
		if url := lastRepoURL(m.Text); url != "" {
			newest = url
		}
	}
	return newest
}

func lastRepoURL(text string) string {
	matches := repoURLPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	return strings.TrimSuffix(matches[len(matches)-1], ".git")
}
