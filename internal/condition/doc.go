// Package condition decides whether an enrichment action should run for a
// row by evaluating a small, sandboxed boolean expression.
//
// The grammar is deliberately tiny: literals (numbers, quoted strings, true,
// false, null), identifiers bound to the row's column values, comparison
// operators (== != < <= > >=), boolean operators (&& || !), and parentheses.
// There is no function call syntax, no assignment, no property access - the
// expression can read its bound variables and nothing else.
//
// The gate is fail-open: a blank condition, a syntax error, an unbound
// identifier, or a non-boolean result all permit the row to run. Only an
// expression that evaluates to exactly boolean false skips the row. Failing
// open avoids silently starving enrichment on a malformed condition; the
// failure is logged but never aborts the job.
package condition
