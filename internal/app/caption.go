package app

import (
	"path/filepath"
	"strings"
)

const filenamePlaceholder = "{{filename}}"

// BuildCaption fills the first {{filename}} in template with the file's
// base name minus its extension and appends the hashtags.
func BuildCaption(file, template string, hashtags []string) string {
	base := filepath.Base(file)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	caption := strings.Replace(template, filenamePlaceholder, base, 1)
	return strings.TrimSpace(caption + " " + strings.Join(hashtags, " "))
}
