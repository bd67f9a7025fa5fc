// Package classify maps file extensions to coarse file categories.
//
// The mapping is plain data: a Table built from the default extension sets,
// optionally extended from configuration. Classification never touches the
// filesystem.
package classify

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Category is the coarse type of a file.
type Category string

// Known categories. Other is the fallback for unknown or missing extensions.
const (
	Video    Category = "video"
	Audio    Category = "audio"
	Document Category = "document"
	Image    Category = "image"
	Code     Category = "code"
	Archive  Category = "archive"
	Other    Category = "other"
)

// ErrDuplicateExtension is returned when an extension is mapped to two categories.
var ErrDuplicateExtension = errors.New("extension mapped to more than one category")

// ErrUnknownCategory is returned when a category name cannot be parsed.
var ErrUnknownCategory = errors.New("unknown category")

// All lists every category in display order.
//
//nolint:gochecknoglobals // Fixed enumeration
var All = []Category{Video, Audio, Document, Image, Code, Archive, Other}

// IsMedia reports whether files of the category have a playback duration.
func (c Category) IsMedia() bool {
	return c == Video || c == Audio
}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// ParseCategory parses a category name, accepting the plural forms used by
// older reports ("documents", "images", ...).
func ParseCategory(name string) (Category, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, "s")

	for _, c := range All {
		if string(c) == name {
			return c, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// defaultExtensions holds the built-in extension sets.
//
//nolint:gochecknoglobals // Static lookup data
var defaultExtensions = map[Category][]string{
	Video: {
		".mp4", ".avi", ".mkv", ".mov", ".wmv", ".flv", ".webm",
		".m4v", ".3gp", ".mpg", ".mpeg", ".m2v", ".mxf",
	},
	Audio: {
		".mp3", ".wav", ".flac", ".aac", ".ogg", ".wma", ".m4a",
		".aiff", ".au", ".ra", ".3ga", ".amr", ".awb", ".opus", ".ape", ".wv",
	},
	Document: {
		".pdf", ".doc", ".docx", ".txt", ".rtf", ".odt", ".pages",
		".xls", ".xlsx", ".ppt", ".pptx", ".odp", ".ods", ".md", ".csv",
	},
	Image: {
		".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tiff", ".tif",
		".svg", ".webp", ".ico", ".psd", ".raw", ".cr2", ".nef", ".heic",
	},
	Archive: {
		".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz", ".z", ".tgz", ".zst",
	},
	Code: {
		".py", ".js", ".html", ".css", ".java", ".cpp", ".c", ".h",
		".php", ".rb", ".go", ".rs", ".swift", ".kt", ".ts", ".jsx",
		".tsx", ".vue", ".sql", ".xml", ".json", ".yaml", ".yml", ".sh",
	},
}

// Table is an extension to category lookup table. It is safe for concurrent
// reads once built.
type Table struct {
	byExt map[string]Category
}

// Default returns a table holding only the built-in extension sets.
func Default() *Table {
	table, err := NewTable(nil)
	if err != nil {
		// The built-in sets are disjoint; a failure here is a programming error.
		panic(err)
	}

	return table
}

// NewTable builds a table from the built-in sets plus extra ext→category
// mappings. Extra entries may move a built-in extension to another category,
// but two extra entries may not disagree after normalization.
func NewTable(extra map[string]string) (*Table, error) {
	byExt := make(map[string]Category, 128)

	for category, exts := range defaultExtensions {
		for _, ext := range exts {
			ext = Normalize(ext)
			if existing, ok := byExt[ext]; ok && existing != category {
				return nil, fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateExtension, ext, existing, category)
			}

			byExt[ext] = category
		}
	}

	overrides := make(map[string]Category, len(extra))

	for rawExt, rawCategory := range extra {
		category, err := ParseCategory(rawCategory)
		if err != nil {
			return nil, fmt.Errorf("extension %q: %w", rawExt, err)
		}

		ext := Normalize(rawExt)
		if ext == "" {
			continue
		}

		if existing, ok := overrides[ext]; ok && existing != category {
			return nil, fmt.Errorf("%w: %s (%s, %s)", ErrDuplicateExtension, ext, existing, category)
		}

		overrides[ext] = category
	}

	for ext, category := range overrides {
		byExt[ext] = category
	}

	return &Table{byExt: byExt}, nil
}

// Classify returns the category for an extension. Unknown or empty
// extensions map to Other.
func (t *Table) Classify(ext string) Category {
	if category, ok := t.byExt[Normalize(ext)]; ok {
		return category
	}

	return Other
}

// Extensions returns the sorted extensions mapped to a category.
func (t *Table) Extensions(category Category) []string {
	var exts []string

	for ext, c := range t.byExt {
		if c == category {
			exts = append(exts, ext)
		}
	}

	slices.Sort(exts)

	return exts
}

// Classify looks up an extension in the default table.
func Classify(ext string) Category {
	return defaultTable.Classify(ext)
}

//nolint:gochecknoglobals // Immutable default table
var defaultTable = Default()

// Normalize lowercases an extension and ensures a leading dot.
// An empty input stays empty.
func Normalize(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext == "." {
		return ""
	}

	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	return ext
}

// Ext returns the normalized extension of a path.
func Ext(path string) string {
	return Normalize(filepath.Ext(path))
}
