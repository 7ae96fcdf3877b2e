package topology

import (
	"fmt"
	"strings"
)

// RollbackError reports a failed transaction together with whatever went
// wrong while unwinding it. The primary error is always the original
// failure; rollback failures are carried as secondary diagnostics and never
// mask the root cause.
type RollbackError struct {
	Primary   error
	Secondary []error
}

func (e *RollbackError) Error() string {
	if len(e.Secondary) == 0 {
		return e.Primary.Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s (rollback incomplete:", e.Primary.Error())
	for _, sec := range e.Secondary {
		fmt.Fprintf(&b, " %s;", sec.Error())
	}
	b.WriteString(")")
	return b.String()
}

// Unwrap exposes the primary error so kind checks see through the wrapper.
func (e *RollbackError) Unwrap() error {
	return e.Primary
}
