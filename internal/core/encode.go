package core

import (
	"fmt"
	"strings"
)

// Encoder turns a print job into the bytes written to the printer socket.
// Real receipt rendering (ESC/POS command streams) plugs in here; the
// default encoder emits plain text good enough for line printers and tests.
type Encoder interface {
	Encode(job *PrintJob) ([]byte, error)
}

// TextEncoder renders a job as a plain-text ticket.
type TextEncoder struct{}

func (TextEncoder) Encode(job *PrintJob) ([]byte, error) {
	if len(job.Items) == 0 {
		return nil, ErrInvalidJob
	}

	var b strings.Builder
	fmt.Fprintf(&b, "ORDER %s\n", job.OrderNumber)
	if job.OrderNumber == "" {
		b.Reset()
		fmt.Fprintf(&b, "ORDER %s\n", job.OrderID)
	}
	b.WriteString(strings.Repeat("-", 32) + "\n")

	for _, item := range job.Items {
		fmt.Fprintf(&b, "%dx %s", item.Quantity, item.Name)
		if item.Variant != "" {
			fmt.Fprintf(&b, " (%s)", item.Variant)
		}
		b.WriteByte('\n')
		for _, m := range item.Modifiers {
			fmt.Fprintf(&b, "  + %s\n", m)
		}
		if item.Instructions != "" {
			fmt.Fprintf(&b, "  ! %s\n", item.Instructions)
		}
	}

	b.WriteString(strings.Repeat("-", 32) + "\n\n\n")
	return []byte(b.String()), nil
}
