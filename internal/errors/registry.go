package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Engine Errors (E100-E119)
	// ============================================

	"E100": {
		Category: CategoryEngine,
		Message:  "Engine error",
		Detail:   "The reactive runtime reported an error without a more specific code.",
	},
	"E101": {
		Category:   CategoryEngine,
		Message:    "Use after dispose",
		Detail:     "A cell, memo or effect was used after its scope was disposed.",
		Suggestion: "Keep handles only as long as the scope that created them.",
	},
	"E102": {
		Category:   CategoryEngine,
		Message:    "Cyclic dependency",
		Detail:     "A computation read a memo that was still being evaluated, or effects kept writing their own dependencies until the flush gave up.",
		Suggestion: "Break the cycle by replacing one of the formulas with a literal.",
	},
	"E103": {
		Category:   CategoryEngine,
		Message:    "Write during memo computation",
		Detail:     "Memos must be pure. Writes belong in effects or event handlers.",
		Suggestion: "Move the write into an effect.",
	},
	"E104": {
		Category: CategoryEngine,
		Message:  "Duplicate list key",
		Detail:   "Two items passed to a keyed list produced the same key. Keys must be unique within one reconcile.",
	},

	// ============================================
	// Sheet Errors (E120-E139)
	// ============================================

	"E120": {
		Category:   CategorySheet,
		Message:    "Invalid entry name",
		Detail:     "Entry names start with a letter or underscore, contain only letters, digits and underscores, and cannot be a function name.",
		Suggestion: "Rename the entry, e.g. Total instead of SUM.",
	},
	"E121": {
		Category: CategorySheet,
		Message:  "Entry not found",
		Detail:   "No entry with this name exists in the sheet.",
	},
	"E122": {
		Category: CategorySheet,
		Message:  "Malformed formula",
		Detail:   "The text after \"=\" could not be parsed as a formula.",
	},
	"E123": {
		Category:   CategorySheet,
		Message:    "Malformed assignment",
		Detail:     "Assignments are written as name=raw.",
		Suggestion: "Quote the argument so the shell keeps it intact: 'Total==A+B'",
	},

	// ============================================
	// Config Errors (E140-E149)
	// ============================================

	"E140": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Detail:     "The configuration file does not exist.",
		Suggestion: "Run 'reactive init' to create reactive.json, or pass --config.",
	},
	"E141": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "reactive.json could not be parsed or failed validation.",
	},
	"E142": {
		Category: CategoryConfig,
		Message:  "Config write failed",
		Detail:   "The configuration file could not be written.",
	},

	// ============================================
	// Store Errors (E150-E159)
	// ============================================

	"E150": {
		Category: CategoryStore,
		Message:  "Snapshot load failed",
		Detail:   "The saved sheet could not be read from the store.",
	},
	"E151": {
		Category: CategoryStore,
		Message:  "Snapshot save failed",
		Detail:   "The sheet could not be written to the store.",
	},
	"E152": {
		Category:   CategoryStore,
		Message:    "Store unavailable",
		Detail:     "The configured snapshot store could not be opened.",
		Suggestion: "Check the store section of reactive.json and your AWS credentials.",
	},

	// ============================================
	// CLI Errors (E160-E179)
	// ============================================

	"E160": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
		Detail:   "The command was called with arguments it does not accept.",
	},
	"E161": {
		Category: CategoryCLI,
		Message:  "Server failed",
		Detail:   "The HTTP server stopped with an error.",
	},
	"E162": {
		Category:   CategoryCLI,
		Message:    "Address in use",
		Detail:     "Another process is already listening on the configured address.",
		Suggestion: "Pick another port with --addr.",
	},
}

// GetAllCodes returns all registered error codes in order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
