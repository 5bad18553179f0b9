// Package errors provides structured, actionable error messages for the
// reactive CLI.
//
// Every failure the CLI can report has a registered code:
//   - engine (E100-E119): errors raised by the reactive runtime
//   - sheet (E120-E139): invalid names, missing entries, malformed formulas
//   - config (E140-E149): reading and validating reactive.json
//   - store (E150-E159): loading and saving snapshots
//   - cli (E160-E179): command usage and server startup
//
// Engine codes match the codes carried by reactive.Error, so a failed flush
// maps straight to its registry entry.
//
// # Usage
//
//	err := errors.New("E122").
//	    WithLocation("B", "=A +", 5).
//	    WithSuggestion("Finish the expression after the operator")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E122: Malformed formula
//	//
//	//   B:5
//	//
//	//     B │ =A +
//	//       │     ^
//	//
//	//   Hint: Finish the expression after the operator
package errors
