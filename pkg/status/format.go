package status

import (
	"fmt"
)

// FileFormatter defines how file outcomes and progress are rendered
// for the console.
type FileFormatter interface {
	// FormatFileOutcome formats the terminal line for one file
	FormatFileOutcome(path string, isTransformed, isCopied, isFailed bool) string

	// FormatProgress formats a progress message
	FormatProgress(current, total int) string

	// FormatError formats an error message
	FormatError(err error) string
}

// DefaultFileFormatter provides a default implementation of FileFormatter
type DefaultFileFormatter struct{}

// NewDefaultFileFormatter creates a new DefaultFileFormatter
func NewDefaultFileFormatter() *DefaultFileFormatter {
	return &DefaultFileFormatter{}
}

// FormatFileOutcome formats a file outcome with emojis
func (f *DefaultFileFormatter) FormatFileOutcome(path string, isTransformed, isCopied, isFailed bool) string {
	switch {
	case isFailed:
		return fmt.Sprintf("❌ Failed %s", path)
	case isTransformed:
		return fmt.Sprintf("✨ Transformed %s", path)
	case isCopied:
		return fmt.Sprintf("📋 Copied %s", path)
	default:
		return fmt.Sprintf("👍 Skipped %s", path)
	}
}

// FormatProgress formats a progress message with percentage
func (f *DefaultFileFormatter) FormatProgress(current, total int) string {
	var percentage float64
	if total == 0 {
		percentage = 0
		if current > 0 {
			percentage = 100
		}
	} else {
		percentage = float64(current) / float64(total) * 100
	}

	if current >= total {
		return fmt.Sprintf("✅ Progress: %d/%d (%.0f%%)", current, total, percentage)
	}
	return fmt.Sprintf("⏳ Progress: %d/%d (%.0f%%)", current, total, percentage)
}

// FormatError formats an error message with emoji
func (f *DefaultFileFormatter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("❌ Error: %v", err)
}
