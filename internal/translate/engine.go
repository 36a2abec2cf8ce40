// Package translate is the translation engine. It mediates every call
// to the LLM completion service: per-file code conversion, pull
// request summaries, and liveness probes.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"

	"github.com/codemorph/internal/retry"
	"github.com/codemorph/pkg/models"
)

// TranslationError wraps a completion-request failure. The engine never
// retries past its transient-failure budget; the orchestrator decides
// per-file fate.
type TranslationError struct {
	Path string
	Err  error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("translate %s: %v", e.Path, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

// Engine drives one tenant's LLM model. Engines are built per job from
// resolved credentials and never shared across tenants.
type Engine struct {
	model       llms.Model
	modelName   string
	temperature float64
	maxTokens   int
}

// NewEngine wraps an instantiated model. See NewModel for the provider
// factory.
func NewEngine(model llms.Model, modelName string, temperature float64, maxTokens int) *Engine {
	if maxTokens <= 0 {
		maxTokens = 3000
	}
	return &Engine{
		model:       model,
		modelName:   modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// HealthCheck issues a minimal completion. Any failure (auth, quota,
// network) reports false rather than propagating; this feeds liveness
// reporting only.
func (e *Engine) HealthCheck(ctx context.Context) bool {
	_, err := llms.GenerateFromSinglePrompt(ctx, e.model, "ping", llms.WithMaxTokens(1))
	if err != nil {
		log.Warn().Err(err).Str("model", e.modelName).Msg("llm health check failed")
		return false
	}
	return true
}

// languageHints describes how each source language should be adapted,
// folded into the conversion instruction.
var languageHints = map[string]string{
	"shell":      "shell scripts using subprocess, os, and pathlib equivalents",
	"powershell": "PowerShell scripts using subprocess and appropriate libraries",
	"typescript": "TypeScript code, maintaining type safety where possible",
	"javascript": "JavaScript code, adapting async patterns appropriately",
	"go":         "Go code, adapting goroutines to the target language's concurrency model",
	"rust":       "Rust code, maintaining memory safety concepts where relevant",
	"ruby":       "Ruby code, adapting Ruby idioms to the target language's patterns",
	"php":        "PHP code, adapting web-specific patterns appropriately",
	"java":       "Java code, simplifying object-oriented patterns where beneficial",
	"scala":      "Scala code, adapting functional programming concepts",
	"kotlin":     "Kotlin code, maintaining null safety concepts where possible",
	"swift":      "Swift code, adapting platform patterns to cross-platform equivalents",
	"csharp":     "C# code, adapting .NET patterns to the target equivalents",
	"cpp":        "C++ code, using appropriate libraries for performance-critical sections",
	"c":          "C code, using appropriate libraries for system calls",
	"perl":       "Perl code, adapting regex and text processing patterns",
	"r":          "R code, using the target language's data-analysis libraries",
	"lua":        "Lua code, adapting embedded scripting patterns",
	"dart":       "Dart code, adapting Flutter/web patterns appropriately",
	"groovy":     "Groovy code, adapting build automation and scripting patterns",
}

// Convert translates one file and returns (converted code, notes).
// Request failures surface as TranslationError after the transient
// retry budget is spent.
func (e *Engine) Convert(ctx context.Context, content, filePath, sourceLanguage, targetLanguage string) (string, string, error) {
	hint, ok := languageHints[sourceLanguage]
	if !ok {
		hint = fmt.Sprintf("%s code", sourceLanguage)
	}

	prompt := fmt.Sprintf(`You are an expert in converting %[1]s code to %[2]s.

Convert the following %[1]s code to idiomatic, production-quality %[2]s that preserves the original behavior exactly. Focus on converting %[3]s. Add proper error handling and logging, and include brief comments explaining non-obvious conversion decisions.

File: %[4]s

%[1]s code:
`+"```%[1]s\n%[5]s\n```"+`

Provide the converted %[2]s code in a single fenced code block, followed by a short explanation of key conversion decisions and any functionality changes or limitations.`,
		sourceLanguage, targetLanguage, hint, filePath, content)

	var response string
	err := retry.Do(ctx, retry.LLMConfig(), "convert "+filePath, func() error {
		var genErr error
		response, genErr = llms.GenerateFromSinglePrompt(ctx, e.model, prompt,
			llms.WithTemperature(e.temperature),
			llms.WithMaxTokens(e.maxTokens),
		)
		return genErr
	})
	if err != nil {
		return "", "", &TranslationError{Path: filePath, Err: err}
	}

	code, notes := ExtractCodeBlock(response)
	log.Info().
		Str("path", filePath).
		Str("source_language", sourceLanguage).
		Str("target_language", targetLanguage).
		Msg("file converted")
	return code, notes, nil
}

// Summarize produces pull-request body text from the completed
// conversions. Callers must fall back to a templated body on error;
// summary failure never aborts a job.
func (e *Engine) Summarize(ctx context.Context, conversions []models.FileConversion, repoName string) (string, error) {
	if len(conversions) == 0 {
		return "", fmt.Errorf("no conversions to summarize")
	}

	var listing strings.Builder
	languages := make(map[string]bool)
	for _, conv := range conversions {
		fmt.Fprintf(&listing, "- `%s` (%s) -> `%s` (%s)\n",
			conv.OriginalPath, conv.SourceLanguage, conv.ConvertedPath, conv.TargetLanguage)
		languages[conv.SourceLanguage] = true
	}

	langNames := make([]string, 0, len(languages))
	for lang := range languages {
		langNames = append(langNames, lang)
	}

	prompt := fmt.Sprintf(`Generate a pull request description for converting source files to %s in the repository '%s'.

Languages converted: %s
Conversions made:
%s
The description should include an overview of what was converted, any breaking changes or considerations, and testing recommendations. Keep it professional and informative.`,
		conversions[0].TargetLanguage, repoName, strings.Join(langNames, ", "), listing.String())

	var response string
	err := retry.Do(ctx, retry.LLMConfig(), "summarize "+repoName, func() error {
		var genErr error
		response, genErr = llms.GenerateFromSinglePrompt(ctx, e.model, prompt,
			llms.WithTemperature(0.3),
			llms.WithMaxTokens(1000),
		)
		return genErr
	})
	if err != nil {
		return "", fmt.Errorf("generate pr description: %w", err)
	}

	return strings.TrimSpace(response), nil
}
