package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/reviewboard/rbrelease/internal/domain/services"
)

// configureColor turns colour off unless out is a terminal
func configureColor(out io.Writer, disabled bool) {
	color.NoColor = disabled || !shouldColorize(out)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func statusLabel(status services.StepStatus) string {
	switch status {
	case services.StepSuccess:
		return color.GreenString(string(status))
	case services.StepWarning:
		return color.YellowString(string(status))
	case services.StepFatal:
		return color.RedString(string(status))
	default:
		return color.HiBlackString(string(status))
	}
}

// formatSize renders a byte count the way directory listings do
func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
