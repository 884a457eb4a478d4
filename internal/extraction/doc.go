// Package extraction locates the serial token in a document's page text.
//
// An Engine applies an ordered cascade of strategies to each page, front to
// back. On every page the labeled-field strategy runs before the generic
// pattern scan; the first page that yields a canonical serial ends the search.
// Engines hold no mutable state and may be shared between goroutines.
package extraction
