// Package convert runs one conversion job end to end: discover source
// files, translate each one, commit the batch to a work branch, and
// open a pull request.
package convert

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codemorph/internal/gateway/github"
	"github.com/codemorph/internal/langmap"
	"github.com/codemorph/internal/scaffold"
	"github.com/codemorph/pkg/models"
)

// Gateway is the slice of the GitHub client the orchestrator needs.
type Gateway interface {
	GetRepository(ctx context.Context, owner, name string) (*github.Repository, error)
	DiscoverFiles(ctx context.Context, repo *github.Repository, opts github.DiscoverOptions) ([]github.DiscoveredFile, error)
	ReadFile(ctx context.Context, repo *github.Repository, file github.DiscoveredFile) (string, error)
	CreateBranch(ctx context.Context, repo *github.Repository, sourceBranch, targetBranch string) error
	CommitFiles(ctx context.Context, repo *github.Repository, branch string, files []github.CommitFile, message string) (string, error)
	CreatePullRequest(ctx context.Context, repo *github.Repository, title, body, head, base string) (string, error)
}

// Translator is the slice of the translation engine the orchestrator
// needs.
type Translator interface {
	Convert(ctx context.Context, content, filePath, sourceLanguage, targetLanguage string) (string, string, error)
	Summarize(ctx context.Context, conversions []models.FileConversion, repoName string) (string, error)
}

// Limits caps discovery per job.
type Limits struct {
	MaxFileSize int64
	MaxFiles    int
}

// Result is the terminal outcome of a job run.
type Result struct {
	FilesProcessed int
	FilesConverted int
	PRURL          string // empty when no pull request was opened
	Message        string
}

// Orchestrator executes conversion jobs against a single tenant's
// credentials.
type Orchestrator struct {
	gateway    Gateway
	translator Translator
	limits     Limits
	now        func() time.Time
}

func New(gateway Gateway, translator Translator, limits Limits) *Orchestrator {
	return &Orchestrator{
		gateway:    gateway,
		translator: translator,
		limits:     limits,
		now:        time.Now,
	}
}

// Run executes one job. It returns a Result for every outcome the job
// ledger records as completed; an error means the job failed before
// reaching a terminal state on its own.
//
// Per-file translation failures never fail the job. A job with zero
// discovered files, or where every file failed, completes without a
// commit or pull request.
func (o *Orchestrator) Run(ctx context.Context, job *models.ConversionJob) (*Result, error) {
	targetLanguage := job.TargetLanguage
	if targetLanguage == "" {
		targetLanguage = "python"
	}
	if !langmap.Supported(targetLanguage) {
		return nil, fmt.Errorf("unsupported target language: %s", targetLanguage)
	}

	repo, err := o.gateway.GetRepository(ctx, job.RepoOwner, job.RepoName)
	if err != nil {
		return nil, fmt.Errorf("get repository: %w", err)
	}

	sourceBranch := job.SourceBranch
	if sourceBranch == "" {
		sourceBranch = repo.DefaultBranch
	}

	files, err := o.gateway.DiscoverFiles(ctx, repo, github.DiscoverOptions{
		Branch:          sourceBranch,
		SourceLanguages: job.SourceLanguages,
		IncludePatterns: job.IncludePatterns,
		ExcludePatterns: job.ExcludePatterns,
		MaxFileSize:     o.limits.MaxFileSize,
		MaxFiles:        o.limits.MaxFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	if len(files) == 0 {
		log.Info().
			Str("job_id", job.ID).
			Str("repo", repo.FullName).
			Msg("no convertible files found")
		return &Result{Message: "no convertible files found"}, nil
	}

	targetBranch := job.TargetBranch
	if targetBranch == "" {
		targetBranch = fmt.Sprintf("convert-to-%s-%s", targetLanguage, o.now().UTC().Format("20060102-150405"))
	}

	conversions := o.convertFiles(ctx, job, repo, files, targetLanguage)
	result := &Result{
		FilesProcessed: len(files),
		FilesConverted: len(conversions),
	}

	if len(conversions) == 0 {
		log.Warn().
			Str("job_id", job.ID).
			Str("repo", repo.FullName).
			Int("files_processed", result.FilesProcessed).
			Msg("every file failed to convert")
		result.Message = "no files converted successfully"
		return result, nil
	}

	if err := o.gateway.CreateBranch(ctx, repo, sourceBranch, targetBranch); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", targetBranch, err)
	}

	commitFiles := make([]github.CommitFile, 0, len(conversions))
	for _, conv := range conversions {
		commitFiles = append(commitFiles, github.CommitFile{
			Path:    conv.ConvertedPath,
			Content: conv.ConvertedContent,
		})
	}

	if _, err := o.gateway.CommitFiles(ctx, repo, targetBranch, commitFiles, commitMessage(conversions, targetLanguage)); err != nil {
		return nil, fmt.Errorf("commit converted files: %w", err)
	}

	body, err := o.translator.Summarize(ctx, conversions, repo.FullName)
	if err != nil {
		log.Warn().Err(err).Str("job_id", job.ID).Msg("pr summary generation failed, using template")
		body = templateBody(conversions, targetLanguage)
	}

	title := fmt.Sprintf("Convert %d file(s) to %s", len(conversions), targetLanguage)
	prURL, err := o.gateway.CreatePullRequest(ctx, repo, title, body, targetBranch, sourceBranch)
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	log.Info().
		Str("job_id", job.ID).
		Str("repo", repo.FullName).
		Str("pr_url", prURL).
		Int("files_converted", result.FilesConverted).
		Msg("conversion job finished")

	result.PRURL = prURL
	return result, nil
}

// convertFiles translates each discovered file, isolating failures.
// Files whose converted path collides with an earlier conversion are
// skipped rather than silently overwritten.
func (o *Orchestrator) convertFiles(ctx context.Context, job *models.ConversionJob, repo *github.Repository, files []github.DiscoveredFile, targetLanguage string) []models.FileConversion {
	var conversions []models.FileConversion
	seen := make(map[string]string)

	for _, file := range files {
		content, err := o.gateway.ReadFile(ctx, repo, file)
		if err != nil {
			log.Warn().Err(err).
				Str("job_id", job.ID).
				Str("path", file.Path).
				Msg("skipping unreadable file")
			continue
		}

		convertedPath := langmap.TargetPath(file.Path, targetLanguage)
		if prev, dup := seen[convertedPath]; dup {
			log.Warn().
				Str("job_id", job.ID).
				Str("path", file.Path).
				Str("converted_path", convertedPath).
				Str("conflicts_with", prev).
				Msg("skipping file with duplicate converted path")
			continue
		}

		code, notes, err := o.translator.Convert(ctx, content, file.Path, file.Language, targetLanguage)
		if err != nil {
			log.Warn().Err(err).
				Str("job_id", job.ID).
				Str("path", file.Path).
				Msg("file conversion failed")
			continue
		}

		seen[convertedPath] = file.Path
		conversions = append(conversions, models.FileConversion{
			OriginalPath:     file.Path,
			ConvertedPath:    convertedPath,
			OriginalContent:  content,
			ConvertedContent: scaffold.Render(code, file.Path, file.Language, targetLanguage),
			SourceLanguage:   file.Language,
			TargetLanguage:   targetLanguage,
			ConversionNotes:  notes,
		})
	}

	return conversions
}

// commitMessage groups the converted files by source language.
func commitMessage(conversions []models.FileConversion, targetLanguage string) string {
	byLanguage := make(map[string][]models.FileConversion)
	for _, conv := range conversions {
		byLanguage[conv.SourceLanguage] = append(byLanguage[conv.SourceLanguage], conv)
	}

	languages := make([]string, 0, len(byLanguage))
	for lang := range byLanguage {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	var b strings.Builder
	fmt.Fprintf(&b, "Convert %d file(s) to %s\n", len(conversions), targetLanguage)
	for _, lang := range languages {
		fmt.Fprintf(&b, "\nFrom %s:\n", lang)
		for _, conv := range byLanguage[lang] {
			fmt.Fprintf(&b, "- %s -> %s\n", conv.OriginalPath, conv.ConvertedPath)
		}
	}
	return b.String()
}

// templateBody is the pull request description used when summary
// generation fails.
func templateBody(conversions []models.FileConversion, targetLanguage string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Automated Code Conversion\n\nConverted %d file(s) to %s.\n\n### Files\n\n", len(conversions), targetLanguage)
	for _, conv := range conversions {
		fmt.Fprintf(&b, "- `%s` (%s) -> `%s`\n", conv.OriginalPath, conv.SourceLanguage, conv.ConvertedPath)
	}
	b.WriteString("\nPlease review each converted file before merging. Automated conversion may require manual adjustment for environment-specific behavior.\n")
	return b.String()
}
