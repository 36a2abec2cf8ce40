// Package scaffold wraps converted code in target-language boilerplate:
// a header naming the source file plus, when the body has no entry
// point of its own, a guarded main block. Rendering is purely textual;
// the generated code is never parsed.
package scaffold

import (
	"strings"
	"text/template"
)

const pythonHeaderTemplate = `#!/usr/bin/env python3
"""
Converted from {{.SourceLanguage}} source: {{.OriginalPath}}
Generated by CodeMorph
"""

import os
import sys
import subprocess
import logging
from pathlib import Path

logging.basicConfig(level=logging.INFO, format='%(asctime)s - %(levelname)s - %(message)s')
logger = logging.getLogger(__name__)

`

var pythonHeader = template.Must(template.New("python_header").Parse(pythonHeaderTemplate))

type headerData struct {
	OriginalPath   string
	SourceLanguage string
}

// Render produces the final file content for a converted body. Python
// targets get the fixed header and, if the body defines no main pattern,
// a guarded main wrapper that exits non-zero on failure. Other target
// languages pass through unchanged.
func Render(body, originalPath, sourceLanguage, targetLanguage string) string {
	if targetLanguage != "python" {
		return body
	}

	var sb strings.Builder
	// Template only substitutes plain strings; execution cannot fail.
	_ = pythonHeader.Execute(&sb, headerData{
		OriginalPath:   originalPath,
		SourceLanguage: sourceLanguage,
	})

	if hasPythonEntryPoint(body) {
		sb.WriteString(body)
		return sb.String()
	}

	sb.WriteString("\ndef main():\n")
	sb.WriteString("    \"\"\"Entry point converted from " + sourceLanguage + " source\"\"\"\n")
	sb.WriteString("    try:\n")
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("        " + line + "\n")
	}
	sb.WriteString("    except Exception as e:\n")
	sb.WriteString("        logger.error(f\"Script execution failed: {e}\")\n")
	sb.WriteString("        sys.exit(1)\n")
	sb.WriteString("\n\nif __name__ == \"__main__\":\n")
	sb.WriteString("    main()\n")
	return sb.String()
}

func hasPythonEntryPoint(body string) bool {
	return strings.Contains(body, "def main():") ||
		strings.Contains(body, "if __name__ == \"__main__\":") ||
		strings.Contains(body, "if __name__ == '__main__':")
}
