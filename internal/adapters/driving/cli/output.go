package cli

import (
	"fmt"

	"github.com/fatih/color"
)

// Status colours for command output. fatih/color disables them when
// output is not a terminal.
var (
	okText   = color.New(color.FgGreen).SprintFunc()
	warnText = color.New(color.FgYellow).SprintFunc()
	failText = color.New(color.FgRed).SprintFunc()
	dimText  = color.New(color.Faint).SprintFunc()
)

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
