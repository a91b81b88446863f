/*
Copyright 2026 Opsleuth Authors
SPDX-License-Identifier: Apache-2.0
*/

package logquery

import "fmt"

// Kind identifies the class of cloud service whose logs are being queried.
// Label conventions on the log backend differ per kind, so each kind carries
// its own ordered list of filter variations.
type Kind string

const (
	KindCloudRun       Kind = "cloud_run"
	KindCloudBuild     Kind = "cloud_build"
	KindCloudFunctions Kind = "cloud_functions"
	KindGCE            Kind = "gce"
	KindGKE            Kind = "gke"
	KindAppEngine      Kind = "app_engine"
)

// Kinds lists every supported service kind.
func Kinds() []Kind {
	return []Kind{KindCloudRun, KindCloudBuild, KindCloudFunctions, KindGCE, KindGKE, KindAppEngine}
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	switch k {
	case KindCloudRun, KindCloudBuild, KindCloudFunctions, KindGCE, KindGKE, KindAppEngine:
		return k, nil
	}
	return "", fmt.Errorf("unknown service kind %q", s)
}

// resourceTypes maps each kind to its monitored-resource type on the
// log backend.
var resourceTypes = map[Kind]string{
	KindCloudRun:       "cloud_run_revision",
	KindCloudBuild:     "build",
	KindCloudFunctions: "cloud_function",
	KindGCE:            "gce_instance",
	KindGKE:            "k8s_container",
	KindAppEngine:      "gae_app",
}

// ResourceType returns the monitored-resource type for a kind.
func (k Kind) ResourceType() string {
	return resourceTypes[k]
}

// Variation is one candidate filter shape for retrieving a service's logs.
type Variation struct {
	// Name identifies the variation in attempt reports.
	Name string
	// Filter is the complete label/resource clause, ready for the store.
	Filter string
}

// labelVariations holds the ordered per-kind label clauses, keyed by the
// label names observed for each resource type. Different deployments
// populate different labels, so retrieval walks these in order.
var labelVariations = map[Kind][]struct{ name, clause string }{
	KindCloudRun: {
		{"service_name", `resource.labels.service_name = %q`},
		{"configuration_name", `resource.labels.configuration_name = %q`},
	},
	KindCloudBuild: {
		{"build_id", `resource.labels.build_id = %q`},
		{"build_trigger_id", `resource.labels.build_trigger_id = %q`},
	},
	KindCloudFunctions: {
		{"function_name", `resource.labels.function_name = %q`},
	},
	KindGCE: {
		{"instance_id", `resource.labels.instance_id = %q`},
		{"instance_name", `labels.instance_name = %q`},
	},
	KindGKE: {
		{"cluster_name", `resource.labels.cluster_name = %q`},
		{"namespace_name", `resource.labels.namespace_name = %q`},
		{"pod_name", `resource.labels.pod_name = %q`},
	},
	KindAppEngine: {
		{"module_id", `resource.labels.module_id = %q`},
		{"version_id", `resource.labels.version_id = %q`},
	},
}

// Variations returns the ordered filter variations for a service of the
// given kind. Cloud Build additionally tries its dedicated log name, and
// every kind falls back to a broad text search for the service name across
// all fields of its resource type.
func Variations(kind Kind, service, project string) []Variation {
	rt := fmt.Sprintf("resource.type = %q", kind.ResourceType())

	var out []Variation
	for _, lv := range labelVariations[kind] {
		out = append(out, Variation{
			Name:   lv.name,
			Filter: rt + " AND " + fmt.Sprintf(lv.clause, service),
		})
	}

	if kind == KindCloudBuild && project != "" {
		out = append(out, Variation{
			Name:   "cloudbuild_log",
			Filter: fmt.Sprintf("logName = %q", fmt.Sprintf("projects/%s/logs/cloudbuild", project)),
		})
	}

	out = append(out, Variation{
		Name:   "text_search",
		Filter: rt + " AND " + fmt.Sprintf("%q", service),
	})

	return out
}
