// Package service holds the business logic between handlers and storage.
//
// Services validate input, apply domain rules and return apperror values; they do
// not know about HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/sakif/vibecoding/internal/apperror"
	"github.com/sakif/vibecoding/internal/executor"
	"github.com/sakif/vibecoding/internal/model"
	"github.com/sakif/vibecoding/internal/repository"
)

const (
	MaxTitleLength = 100
	MaxCodeLength  = 100000 // bytes
)

// WelcomeCode is the source every new tab starts with.
const WelcomeCode = `// Welcome to Vibe Coding!
// Write your C# code here and click Run to execute it.

using System;

class Program
{
    static void Main()
    {
        Console.WriteLine("Hello from Vibe Coding!");
        
        // Your code here
    }
}`

// CreateTabInput carries the optional fields of a new tab. An empty Title gets the
// next "Tab N" name; a nil Code gets WelcomeCode.
type CreateTabInput struct {
	Title string
	Code  *string
}

// TabService manages editor tabs and runs their code.
type TabService struct {
	repo   repository.TabRepository
	exec   executor.Executor
	logger *slog.Logger

	// seq numbers default titles. It is seeded once from the stored tab count so
	// numbering continues across restarts.
	seq      atomic.Int64
	seedOnce sync.Once
}

// NewTabService creates a TabService.
func NewTabService(repo repository.TabRepository, exec executor.Executor, logger *slog.Logger) *TabService {
	return &TabService{
		repo:   repo,
		exec:   exec,
		logger: logger,
	}
}

// EnsureDefault makes sure at least one tab exists and returns the first one.
func (s *TabService) EnsureDefault(ctx context.Context) (*model.Tab, error) {
	tabs, err := s.repo.List(ctx, repository.ListOptions{Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("listing tabs: %w", err)
	}
	if len(tabs) > 0 {
		return &tabs[0], nil
	}
	return s.Create(ctx, CreateTabInput{})
}

// Create opens a new tab.
func (s *TabService) Create(ctx context.Context, in CreateTabInput) (*model.Tab, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	code := WelcomeCode
	if in.Code != nil {
		code = *in.Code
	}
	if err := validateCode(code); err != nil {
		return nil, err
	}
	if title == "" {
		title = s.nextTitle(ctx)
	}

	tab := &model.Tab{Title: title, Code: code}
	if err := s.repo.Create(ctx, tab); err != nil {
		s.logger.Error("failed to create tab", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating tab: %w", err)
	}

	s.logger.Info("tab created", slog.String("id", tab.ID), slog.String("title", tab.Title))
	return tab, nil
}

// Get returns one tab.
func (s *TabService) Get(ctx context.Context, id string) (*model.Tab, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "tab ID is required")
	}
	return s.repo.GetByID(ctx, id)
}

// List returns the open tabs in the order they were created.
func (s *TabService) List(ctx context.Context, limit, offset int) ([]model.Tab, error) {
	tabs, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list tabs", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing tabs: %w", err)
	}
	return tabs, nil
}

// Update replaces a tab's code and, when title is not blank, its title.
func (s *TabService) Update(ctx context.Context, id, title, code string) (*model.Tab, error) {
	tab, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if title = strings.TrimSpace(title); title != "" {
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		tab.Title = title
	}
	if err := validateCode(code); err != nil {
		return nil, err
	}
	tab.Code = code

	if err := s.repo.Update(ctx, tab); err != nil {
		return nil, fmt.Errorf("updating tab: %w", err)
	}

	s.logger.Info("tab updated", slog.String("id", tab.ID))
	return tab, nil
}

// Close removes a tab. The last remaining tab cannot be closed.
func (s *TabService) Close(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "tab ID is required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("tab closed", slog.String("id", id))
	return nil
}

// Run executes the tab's code and stores the rendered result as the tab's output.
// Pipeline failures are not errors: they come back in the result and the output.
func (s *TabService) Run(ctx context.Context, id string) (*model.Tab, executor.ExecutionResult, error) {
	tab, err := s.Get(ctx, id)
	if err != nil {
		return nil, executor.ExecutionResult{}, err
	}

	result := s.exec.Execute(ctx, executor.ExecutionRequest{Code: tab.Code})

	// The stages ignore cancellation, so the output is stored even if the caller
	// went away while they ran.
	ctx = context.WithoutCancel(ctx)

	// Reload so edits saved while the run was in flight are not overwritten.
	current, err := s.repo.GetByID(ctx, tab.ID)
	if err != nil {
		return nil, result, err
	}
	current.Output = executor.Present(result)
	if err := s.repo.Update(ctx, current); err != nil {
		return nil, result, fmt.Errorf("saving tab output: %w", err)
	}

	s.logger.Info("tab run",
		slog.String("id", current.ID),
		slog.String("status", string(result.Status)),
	)
	return current, result, nil
}

// ClearOutput empties the tab's stored output.
func (s *TabService) ClearOutput(ctx context.Context, id string) (*model.Tab, error) {
	tab, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tab.Output = ""
	if err := s.repo.Update(ctx, tab); err != nil {
		return nil, fmt.Errorf("clearing tab output: %w", err)
	}
	return tab, nil
}

// nextTitle returns "Tab N" for the next N.
func (s *TabService) nextTitle(ctx context.Context) string {
	s.seedOnce.Do(func() {
		n, err := s.repo.Count(ctx)
		if err != nil {
			s.logger.Warn("failed to seed tab numbering", slog.String("error", err.Error()))
			return
		}
		s.seq.Store(int64(n))
	})
	return fmt.Sprintf("Tab %d", s.seq.Add(1))
}

func validateTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("tab title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

func validateCode(code string) error {
	if len(code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", MaxCodeLength))
	}
	return nil
}
