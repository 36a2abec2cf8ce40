// Package langmap maps file extensions to canonical language names and
// source paths to target-language output paths. All functions are pure;
// the tables are fixed at startup.
package langmap

import (
	"sort"
	"strings"
)

// extensionLanguages maps a file extension to its canonical language
// name. Multi-part suffixes are allowed; detection picks the longest
// matching suffix.
var extensionLanguages = map[string]string{
	".sh":     "shell",
	".bash":   "shell",
	".ps1":    "powershell",
	".ts":     "typescript",
	".js":     "javascript",
	".go":     "go",
	".rs":     "rust",
	".rb":     "ruby",
	".php":    "php",
	".java":   "java",
	".scala":  "scala",
	".kt":     "kotlin",
	".swift":  "swift",
	".cs":     "csharp",
	".cpp":    "cpp",
	".cc":     "cpp",
	".c":      "c",
	".pl":     "perl",
	".r":      "r",
	".lua":    "lua",
	".dart":   "dart",
	".groovy": "groovy",
	".py":     "python",
}

// targetExtensions maps a canonical language name to the extension used
// for converted output. Unrecognized targets fall back to ".txt".
var targetExtensions = map[string]string{
	"python":     ".py",
	"shell":      ".sh",
	"powershell": ".ps1",
	"typescript": ".ts",
	"javascript": ".js",
	"go":         ".go",
	"rust":       ".rs",
	"ruby":       ".rb",
	"php":        ".php",
	"java":       ".java",
	"scala":      ".scala",
	"kotlin":     ".kt",
	"swift":      ".swift",
	"csharp":     ".cs",
	"cpp":        ".cpp",
	"c":          ".c",
	"perl":       ".pl",
	"r":          ".r",
	"lua":        ".lua",
	"dart":       ".dart",
	"groovy":     ".groovy",
}

const fallbackExtension = ".txt"

// DetectLanguage returns the canonical language for a filename by
// longest-suffix match against the extension table, or "" when the
// extension is not supported.
func DetectLanguage(filename string) string {
	_, lang := matchExtension(filename)
	return lang
}

// TargetPath maps a source file path to its converted output path by
// stripping the matched source extension and appending the target
// language's extension. Deterministic for fixed inputs.
func TargetPath(originalPath, targetLanguage string) string {
	ext, _ := matchExtension(originalPath)
	base := originalPath
	if ext != "" {
		base = strings.TrimSuffix(originalPath, ext)
	}

	target, ok := targetExtensions[targetLanguage]
	if !ok {
		target = fallbackExtension
	}
	return base + target
}

// ExtensionsFor returns the extensions belonging to the given language
// subset, or every supported extension when languages is empty. The
// result is sorted for stable iteration.
func ExtensionsFor(languages []string) []string {
	wanted := make(map[string]bool, len(languages))
	for _, l := range languages {
		wanted[l] = true
	}

	var exts []string
	for ext, lang := range extensionLanguages {
		if len(languages) == 0 || wanted[lang] {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Supported reports whether the language name appears in the extension
// table as a detectable source language.
func Supported(language string) bool {
	for _, lang := range extensionLanguages {
		if lang == language {
			return true
		}
	}
	return false
}

// matchExtension finds the longest extension suffix of filename present
// in the table, returning the extension and its language.
func matchExtension(filename string) (string, string) {
	bestExt := ""
	bestLang := ""
	for ext, lang := range extensionLanguages {
		if strings.HasSuffix(filename, ext) && len(ext) > len(bestExt) {
			bestExt = ext
			bestLang = lang
		}
	}
	return bestExt, bestLang
}
