package core

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const filenameTimestampLayout = "20060102_150405"

// timestampFilename renders t (UTC) as a fixed-width name, YYYYMMDD_HHMMSS_ffffff.ext,
// so lexical order of names equals chronological order.
func timestampFilename(t time.Time, ext string) string {
	t = t.UTC()
	return fmt.Sprintf("%s_%06d.%s", t.Format(filenameTimestampLayout), t.Nanosecond()/int(time.Microsecond), ext)
}

// extension returns the lower-cased extension of filename without the dot.
func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}
