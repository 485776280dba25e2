package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Descriptor Errors (E101-E199)
	// ============================================

	"E101": {
		Category: CategoryConfig,
		Message:  "Deployment descriptor not found",
		Detail:   "cnlwiki reads cnlwiki.yaml, cnlwiki.yml or cnlwiki.json from the working directory unless --config names a file.",
	},
	"E102": {
		Category: CategoryConfig,
		Message:  "Invalid deployment descriptor",
		Detail:   "The descriptor could not be parsed.",
	},
	"E103": {
		Category: CategoryConfig,
		Message:  "Invalid instance",
		Detail:   "Every instance needs a unique name and a mount path starting with '/'.",
	},
	"E104": {
		Category: CategoryConfig,
		Message:  "Invalid backend",
		Detail:   "Every backend needs a unique, non-empty name.",
	},
	"E105": {
		Category: CategoryConfig,
		Message:  "Unknown backend reference",
		Detail:   "An instance names a backend that is neither declared in the descriptor nor marked as external.",
	},
	"E106": {
		Category: CategoryConfig,
		Message:  "Invalid duration",
		Detail:   "Durations use Go syntax, for example 30s, 2m or 1h.",
	},

	// ============================================
	// Startup Errors (E201-E299)
	// ============================================

	"E201": {
		Category: CategoryStartup,
		Message:  "Backend unavailable",
		Detail:   "An instance waited for a named backend that was never published.",
	},
	"E202": {
		Category: CategoryStartup,
		Message:  "Backend construction failed",
		Detail:   "A backend could not open its data source or parsing engine.",
	},
	"E203": {
		Category: CategoryStartup,
		Message:  "Listen failed",
		Detail:   "The HTTP server could not bind its address.",
	},
	"E204": {
		Category: CategoryStartup,
		Message:  "Import failed",
		Detail:   "Sentence documents could not be converted into a SQLite database.",
	},

	// ============================================
	// Request Errors (E301-E399)
	// ============================================

	"E301": {
		Category: CategoryRequest,
		Message:  "Sentence not found",
		Detail:   "The requested page does not exist in the data source.",
	},
	"E302": {
		Category: CategoryRequest,
		Message:  "Parsing engine failed",
		Detail:   "The parsing engine returned an error or could not be reached.",
	},
	"E303": {
		Category: CategoryRequest,
		Message:  "Page composition failed",
		Detail:   "The sentence store could not be queried or the page could not be rendered.",
	},
}

// GetAllCodes returns all registered error codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
