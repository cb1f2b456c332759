package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// SecureFilename reduces a client supplied filename to a safe base name:
// path components are dropped and anything outside [A-Za-z0-9_.-] becomes an underscore.
func SecureFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// TimestampedFilename prefixes a secured filename with `YYYYmmdd_HHMMSS_`.
func TimestampedFilename(name string, now time.Time) string {
	return now.Format("20060102_150405_") + SecureFilename(name)
}

// MaxNameSuffix bounds the `_<n>` suffixes tried for a taken file name.
const MaxNameSuffix = 100

// SuffixedName returns `<stem>_<n><ext>`, or name itself when n is 0.
func SuffixedName(name string, n int) string {
	if n == 0 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
}

// CreateUnique creates name in dir, or its first free SuffixedName when name is taken.
// Existing files are never overwritten. It returns the open file and the name it was created with.
func CreateUnique(dir, name string) (*os.File, string, error) {
	for i := 0; ; i++ {
		candidate := SuffixedName(name, i)
		f, err := os.OpenFile(filepath.Join(dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, candidate, nil
		}
		if !os.IsExist(err) || i >= MaxNameSuffix {
			return nil, "", err
		}
	}
}

// StartOfDay returns midnight of t's day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Getwd finds the project root: the closest parent directory holding a go.mod.
// go-test changes the working directory to the test package being run during tests,
// so the root cannot simply be os.Getwd().
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	currDir := wd
	for {
		if _, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
