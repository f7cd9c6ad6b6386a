// Package templates holds the templ components of the matching UI.
//
// The *.templ files are the sources; run `templ generate` after editing
// them to refresh the *_templ.go files.
package templates

import (
	"fmt"
	"slices"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/psm/internal/core"
)

// Caption describes how many rows a preview shows.
func Caption(p core.Preview) string {
	switch {
	case p.Empty:
		return "No data"
	case p.Truncated:
		return fmt.Sprintf("Showing %d of %d rows", p.Shown(), p.TotalRows)
	case p.TotalRows == 1:
		return "1 row"
	default:
		return fmt.Sprintf("%d rows", p.TotalRows)
	}
}

// slotURL is the upload target of a slot.
func slotURL(slot core.Slot) templ.SafeURL {
	return templ.SafeURL("/slots/" + string(slot))
}

// clearURL is the form fallback for clearing a slot.
func clearURL(slot core.Slot) templ.SafeURL {
	return templ.SafeURL("/slots/" + string(slot) + "/clear")
}

func isSelected(columns []string, col string) bool {
	return slices.Contains(columns, col)
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
