package archive

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/BTreeMap/TGArchive/internal/models"
)

// PreviewLength is the number of runes of message text shown live.
const PreviewLength = 60

// FormatLine renders one transcript line. text is kept verbatim, embedded
// newlines included.
func FormatLine(timestamp, sender, text string) string {
	return fmt.Sprintf("[%s] [%s]: %s\n", timestamp, sender, text)
}

// Preview flattens text to a single line, keeps its first PreviewLength runes
// and marks it with a trailing ellipsis.
func Preview(text string) string {
	runes := []rune(strings.ReplaceAll(text, "\n", " "))
	if len(runes) > PreviewLength {
		runes = runes[:PreviewLength]
	}
	return string(runes) + "..."
}

// TranscriptFileName names the transcript of target: Backup_<name>_<id>.txt,
// where name keeps letters, digits, spaces and underscores, with spaces turned
// into underscores.
func TranscriptFileName(target models.Target) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, target.Name)
	return fmt.Sprintf("Backup_%s_%d.txt", clean, target.ID)
}
