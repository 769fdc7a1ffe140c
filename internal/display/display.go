// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output, reports, and logs. Keep raw codes for
// JSON fields, map keys, and equality comparisons.
package display

// --- Error Categories ---

var categories = map[string]string{
	"E1": "Dependency",
	"E2": "Syntax / Usage",
	"E3": "Missing File",
	"E4": "Ordering",
	"E5": "Version Compatibility",
	"E6": "Other",
}

// CategoryWithCode returns "Dependency (E1)" format.
// Unknown codes are returned as-is.
func CategoryWithCode(code string) string {
	if name, ok := categories[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}

// --- Document Outcomes ---

var statuses = map[string]string{
	"evaluated": "Evaluated",
	"skipped":   "Skipped",
	"failed":    "Processing Failure",
}

// Status returns the human-readable name for a document outcome code.
func Status(code string) string {
	if name, ok := statuses[code]; ok {
		return name
	}
	return code
}

// --- Metrics ---

var metrics = map[string]string{
	"precision":            "Precision",
	"recall":               "Recall",
	"f1":                   "F1 Score",
	"description_accuracy": "Description Accuracy",
	"fix_accuracy":         "Fix Accuracy",
}

// MetricName returns the human-readable name for a metric key.
func MetricName(key string) string {
	if name, ok := metrics[key]; ok {
		return name
	}
	return key
}
