// Package sentinel provides a string-backed error type so that the
// supervisor's sentinel errors can be declared as constants.
//
// Constants cannot be reassigned by importers, and because Error is a
// comparable value type, errors.Is matches it through %w wrapping chains.
package sentinel
