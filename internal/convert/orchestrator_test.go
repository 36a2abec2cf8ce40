package convert

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codemorph/internal/gateway/github"
	"github.com/codemorph/pkg/models"
)

type fakeGateway struct {
	repo     *github.Repository
	files    []github.DiscoveredFile
	contents map[string]string
	readErr  map[string]error

	discoverOpts  github.DiscoverOptions
	branchCreated string
	branchSource  string
	committed     []github.CommitFile
	commitMessage string
	commitBranch  string
	prTitle       string
	prBody        string
	prHead        string
	prBase        string
	prErr         error
}

func (g *fakeGateway) GetRepository(_ context.Context, owner, name string) (*github.Repository, error) {
	if g.repo == nil {
		return nil, &github.NotFoundError{Resource: owner + "/" + name}
	}
	return g.repo, nil
}

func (g *fakeGateway) DiscoverFiles(_ context.Context, _ *github.Repository, opts github.DiscoverOptions) ([]github.DiscoveredFile, error) {
	g.discoverOpts = opts
	return g.files, nil
}

func (g *fakeGateway) ReadFile(_ context.Context, _ *github.Repository, file github.DiscoveredFile) (string, error) {
	if err := g.readErr[file.Path]; err != nil {
		return "", err
	}
	content, ok := g.contents[file.Path]
	if !ok {
		return "", &github.NotFoundError{Resource: file.Path}
	}
	return content, nil
}

func (g *fakeGateway) CreateBranch(_ context.Context, _ *github.Repository, source, target string) error {
	g.branchSource = source
	g.branchCreated = target
	return nil
}

func (g *fakeGateway) CommitFiles(_ context.Context, _ *github.Repository, branch string, files []github.CommitFile, message string) (string, error) {
	g.commitBranch = branch
	g.committed = files
	g.commitMessage = message
	return "commit-sha", nil
}

func (g *fakeGateway) CreatePullRequest(_ context.Context, _ *github.Repository, title, body, head, base string) (string, error) {
	if g.prErr != nil {
		return "", g.prErr
	}
	g.prTitle = title
	g.prBody = body
	g.prHead = head
	g.prBase = base
	return "https://github.com/acme/tools/pull/7", nil
}

type fakeTranslator struct {
	failPaths    map[string]bool
	summary      string
	summaryErr   error
	convertCalls int
}

func (t *fakeTranslator) Convert(_ context.Context, content, filePath, sourceLanguage, targetLanguage string) (string, string, error) {
	t.convertCalls++
	if t.failPaths[filePath] {
		return "", "", fmt.Errorf("model rejected %s", filePath)
	}
	return fmt.Sprintf("# converted from %s\nprint('%s')", filePath, sourceLanguage), "converted cleanly", nil
}

func (t *fakeTranslator) Summarize(_ context.Context, conversions []models.FileConversion, repoName string) (string, error) {
	if t.summaryErr != nil {
		return "", t.summaryErr
	}
	if t.summary != "" {
		return t.summary, nil
	}
	return fmt.Sprintf("Converted %d files in %s", len(conversions), repoName), nil
}

func testRepo() *github.Repository {
	return &github.Repository{
		Owner:         "acme",
		Name:          "tools",
		FullName:      "acme/tools",
		DefaultBranch: "main",
	}
}

func newOrchestrator(g *fakeGateway, tr *fakeTranslator) *Orchestrator {
	o := New(g, tr, Limits{MaxFileSize: 1 << 20, MaxFiles: 100})
	o.now = func() time.Time {
		return time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	}
	return o
}

func TestRunConvertsShellScripts(t *testing.T) {
	gw := &fakeGateway{
		repo: testRepo(),
		files: []github.DiscoveredFile{
			{Path: "deploy.sh", Language: "shell", Size: 120},
			{Path: "scripts/build.sh", Language: "shell", Size: 340},
		},
		contents: map[string]string{
			"deploy.sh":        "#!/bin/bash\nkubectl apply -f deploy.yaml",
			"scripts/build.sh": "#!/bin/bash\nmake build",
		},
	}
	tr := &fakeTranslator{}

	result, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:        "job-1",
		RepoOwner: "acme",
		RepoName:  "tools",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 2, result.FilesConverted)
	assert.Equal(t, "https://github.com/acme/tools/pull/7", result.PRURL)

	assert.Equal(t, "main", gw.branchSource)
	assert.Equal(t, "convert-to-python-20250315-103000", gw.branchCreated)
	assert.Equal(t, gw.branchCreated, gw.commitBranch)
	assert.Equal(t, gw.branchCreated, gw.prHead)
	assert.Equal(t, "main", gw.prBase)
	assert.Equal(t, "Convert 2 file(s) to python", gw.prTitle)

	require.Len(t, gw.committed, 2)
	assert.Equal(t, "deploy.py", gw.committed[0].Path)
	assert.Equal(t, "scripts/build.py", gw.committed[1].Path)
	assert.Contains(t, gw.committed[0].Content, "#!/usr/bin/env python3")
	assert.Contains(t, gw.committed[0].Content, "Converted from shell source: deploy.sh")

	assert.Contains(t, gw.commitMessage, "Convert 2 file(s) to python")
	assert.Contains(t, gw.commitMessage, "From shell:")
	assert.Contains(t, gw.commitMessage, "deploy.sh -> deploy.py")
}

func TestRunConvertsSingleTypeScriptFile(t *testing.T) {
	gw := &fakeGateway{
		repo:     testRepo(),
		files:    []github.DiscoveredFile{{Path: "src/app.ts", Language: "typescript", Size: 90}},
		contents: map[string]string{"src/app.ts": "console.log('hi')"},
	}
	tr := &fakeTranslator{}

	result, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:        "job-ts",
		RepoOwner: "acme",
		RepoName:  "tools",
	})

	require.NoError(t, err)
	assert.Equal(t, 1, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesConverted)
	require.Len(t, gw.committed, 1)
	assert.Equal(t, "src/app.py", gw.committed[0].Path)
	assert.Contains(t, gw.committed[0].Content, "Converted from typescript source: src/app.ts")
	assert.Equal(t, "Convert 1 file(s) to python", gw.prTitle)
	assert.Contains(t, gw.commitMessage, "From typescript:")
}

func TestRunForwardsFiltersToDiscovery(t *testing.T) {
	gw := &fakeGateway{repo: testRepo()}
	tr := &fakeTranslator{}

	_, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:              "job-2",
		RepoOwner:       "acme",
		RepoName:        "tools",
		SourceBranch:    "develop",
		SourceLanguages: []string{"typescript"},
		IncludePatterns: []string{"src/*"},
		ExcludePatterns: []string{"*_test.ts"},
		TargetLanguage:  "python",
	})

	require.NoError(t, err)
	want := github.DiscoverOptions{
		Branch:          "develop",
		SourceLanguages: []string{"typescript"},
		IncludePatterns: []string{"src/*"},
		ExcludePatterns: []string{"*_test.ts"},
		MaxFileSize:     1 << 20,
		MaxFiles:        100,
	}
	if diff := cmp.Diff(want, gw.discoverOpts); diff != "" {
		t.Errorf("discover options mismatch (-want +got):\n%s", diff)
	}
}

func TestRunNoFilesCompletesWithoutPR(t *testing.T) {
	gw := &fakeGateway{repo: testRepo()}
	tr := &fakeTranslator{}

	result, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:        "job-3",
		RepoOwner: "acme",
		RepoName:  "tools",
	})

	require.NoError(t, err)
	assert.Zero(t, result.FilesProcessed)
	assert.Zero(t, result.FilesConverted)
	assert.Empty(t, result.PRURL)
	assert.Equal(t, "no convertible files found", result.Message)
	assert.Empty(t, gw.branchCreated)
	assert.Zero(t, tr.convertCalls)
}

func TestRunAllFilesFailCompletesWithoutPR(t *testing.T) {
	gw := &fakeGateway{
		repo: testRepo(),
		files: []github.DiscoveredFile{
			{Path: "a.sh", Language: "shell"},
			{Path: "b.sh", Language: "shell"},
		},
		contents: map[string]string{"a.sh": "ls", "b.sh": "pwd"},
	}
	tr := &fakeTranslator{failPaths: map[string]bool{"a.sh": true, "b.sh": true}}

	result, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:        "job-4",
		RepoOwner: "acme",
		RepoName:  "tools",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Zero(t, result.FilesConverted)
	assert.Empty(t, result.PRURL)
	assert.Empty(t, gw.branchCreated)
	assert.Empty(t, gw.committed)
}

func TestRunIsolatesPerFileFailures(t *testing.T) {
	gw := &fakeGateway{
		repo: testRepo(),
		files: []github.DiscoveredFile{
			{Path: "good.sh", Language: "shell"},
			{Path: "bad.sh", Language: "shell"},
			{Path: "unreadable.sh", Language: "shell"},
		},
		contents: map[string]string{"good.sh": "ls", "bad.sh": "pwd"},
		readErr:  map[string]error{"unreadable.sh": &github.DecodeError{Path: "unreadable.sh", Err: errors.New("not utf-8")}},
	}
	tr := &fakeTranslator{failPaths: map[string]bool{"bad.sh": true}}

	result, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:        "job-5",
		RepoOwner: "acme",
		RepoName:  "tools",
	})

	require.NoError(t, err)
	assert.Equal(t, 3, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesConverted)
	require.Len(t, gw.committed, 1)
	assert.Equal(t, "good.py", gw.committed[0].Path)
	assert.LessOrEqual(t, result.FilesConverted, result.FilesProcessed)
}

func TestRunSkipsDuplicateConvertedPaths(t *testing.T) {
	gw := &fakeGateway{
		repo: testRepo(),
		files: []github.DiscoveredFile{
			{Path: "task.sh", Language: "shell"},
			{Path: "task.rb", Language: "ruby"},
		},
		contents: map[string]string{"task.sh": "ls", "task.rb": "puts 1"},
	}
	tr := &fakeTranslator{}

	result, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:        "job-6",
		RepoOwner: "acme",
		RepoName:  "tools",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.FilesProcessed)
	assert.Equal(t, 1, result.FilesConverted)
	require.Len(t, gw.committed, 1)
	assert.Equal(t, "task.py", gw.committed[0].Path)
}

func TestRunUsesRequestedTargetBranch(t *testing.T) {
	gw := &fakeGateway{
		repo:     testRepo(),
		files:    []github.DiscoveredFile{{Path: "run.sh", Language: "shell"}},
		contents: map[string]string{"run.sh": "ls"},
	}
	tr := &fakeTranslator{}

	_, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:           "job-7",
		RepoOwner:    "acme",
		RepoName:     "tools",
		TargetBranch: "feature/py-port",
	})

	require.NoError(t, err)
	assert.Equal(t, "feature/py-port", gw.branchCreated)
}

func TestRunFallsBackToTemplateBody(t *testing.T) {
	gw := &fakeGateway{
		repo:     testRepo(),
		files:    []github.DiscoveredFile{{Path: "run.sh", Language: "shell"}},
		contents: map[string]string{"run.sh": "ls"},
	}
	tr := &fakeTranslator{summaryErr: errors.New("model unavailable")}

	result, err := newOrchestrator(gw, tr).Run(context.Background(), &models.ConversionJob{
		ID:        "job-8",
		RepoOwner: "acme",
		RepoName:  "tools",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.PRURL)
	assert.Contains(t, gw.prBody, "Automated Code Conversion")
	assert.Contains(t, gw.prBody, "`run.sh` (shell) -> `run.py`")
}

func TestRunUnsupportedTargetLanguage(t *testing.T) {
	gw := &fakeGateway{repo: testRepo()}

	_, err := newOrchestrator(gw, &fakeTranslator{}).Run(context.Background(), &models.ConversionJob{
		ID:             "job-9",
		RepoOwner:      "acme",
		RepoName:       "tools",
		TargetLanguage: "cobol",
	})

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported target language"))
}

func TestRunRepositoryMissing(t *testing.T) {
	gw := &fakeGateway{}

	_, err := newOrchestrator(gw, &fakeTranslator{}).Run(context.Background(), &models.ConversionJob{
		ID:        "job-10",
		RepoOwner: "acme",
		RepoName:  "gone",
	})

	require.Error(t, err)
	var notFound *github.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}
