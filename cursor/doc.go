// Package cursor implements the textual cursor encoding shared by all
// iterator variants.
//
// A frozen cursor has up to three components, joined by "/":
//
//	SET / POSITION / STATE
//
// SET identifies which iterator this is, POSITION where its iteration
// currently stands, and STATE any extra per-variant resumption detail.
// Components may nest complete sub-cursors inside balanced parentheses;
// the scanner splits on "/" only at nesting depth zero.
//
// Cursors are opaque to clients: they are handed out as resumption tokens
// and parsed back verbatim. The encoding is stable across process restarts.
package cursor
