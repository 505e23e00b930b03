// Package pr provides pretty-diff helpers for test failure messages:
// entity.Message/entity.Dataset values are deeply nested tagged unions,
// and %+v output on a mismatch is unreadable. kr/pretty formats the full
// struct tree instead, the same role the teacher's pr.PP/pr.Pf played
// for its own debug output.
package pr

import (
	"fmt"

	"github.com/kr/pretty"
)

// PP pretty-prints v to stdout. Handy when iterating on a failing test
// locally; not meant for production log output.
func PP(v any) {
	fmt.Printf("%# v\n", pretty.Formatter(v))
}

// Pf renders v as a pretty-printed string, for embedding in
// t.Errorf("got %s, want %s", pr.Pf(got), pr.Pf(want))-style failures.
func Pf(v any) string {
	return fmt.Sprintf("%# v", pretty.Formatter(v))
}
