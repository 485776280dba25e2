// Package errors provides coded, actionable errors for the cnlwiki command.
//
// Each code maps to a registered template with a category, a short message
// and an explanation. Callers add a detail, a suggestion, an optional source
// location inside a descriptor file, and the underlying error:
//
//	err := errors.New("E102").
//	    WithLocationFromError("cnlwiki.yaml", yamlErr).
//	    WithSuggestion("Check the indentation of the instances list").
//	    Wrap(yamlErr)
//
//	errors.PrintError(os.Stderr, err)
//	// ERROR E102: Invalid deployment descriptor
//	//
//	//   cnlwiki.yaml:4
//	//
//	//        3 │ instances:
//	//   →    4 │   - path /geo
//	//        5 │     backend: geo
//	//
//	//   Hint: Check the indentation of the instances list
//
// # Error Codes
//
//   - E1xx: deployment descriptor and flags
//   - E2xx: startup (backends, data sources, listeners)
//   - E3xx: request handling
package errors
