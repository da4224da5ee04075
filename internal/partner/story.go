package partner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"pigeon/internal/catalog"
	"pigeon/internal/export"
	"pigeon/internal/template"
)

const (
	MinContentLength = 500
	ReadAlsoCount    = 3

	// StoryTemplate renders stories of every app label.
	StoryTemplate = "news/story.xml"
)

var storyWatchList = []string{"workflow_state", "updating_date"}

type StorySupervisor struct {
	export.BaseSupervisor
	catalog   Catalog
	templates export.Renderer
	logger    *slog.Logger
}

var _ export.Supervisor = (*StorySupervisor)(nil)

func (s *StorySupervisor) MatchesType(item catalog.Item) bool {
	_, ok := item.(*catalog.Story)
	return ok
}

func (s *StorySupervisor) ShouldRecheck(_ catalog.Item, changed export.FieldSet) bool {
	return changed.Intersects(storyWatchList...)
}

// IsReady keeps the cheap state check ahead of the content scan.
func (s *StorySupervisor) IsReady(item catalog.Item) bool {
	story, ok := item.(*catalog.Story)
	if !ok {
		return false
	}

	if story.WorkflowState != catalog.StateOnline {
		return false
	}

	return utf8.RuneCountInString(story.Content) >= MinContentLength
}

func (s *StorySupervisor) Outputs(item catalog.Item) []export.Output {
	return []export.Output{
		&export.TemplateOutput{
			Item:         item,
			Templates:    s.templates,
			Template:     StoryTemplate,
			FileName:     StoryFileName(item),
			ExtraContext: s.readAlso,
			Validators:   []export.Validator{export.WellFormedXML},
		},
	}
}

// readAlso lists the latest stories whatever their relation to the one being
// rendered.
func (s *StorySupervisor) readAlso(ctx context.Context) (map[string]any, error) {
	stories, err := s.catalog.LatestStories(ctx, ReadAlsoCount)
	if err != nil {
		return nil, fmt.Errorf("read_also: %w", err)
	}
	return map[string]any{"read_also": stories}, nil
}

func (s *StorySupervisor) RelatedItems(ctx context.Context, item catalog.Item) ([]catalog.Item, error) {
	story, ok := item.(*catalog.Story)
	if !ok || story.PhotoID == nil {
		return nil, nil
	}

	photo, err := s.catalog.Photo(ctx, *story.PhotoID)
	if errors.Is(err, catalog.ErrNotFound) {
		s.logger.Warn("Story references a missing photo", "story", story.ID, "photo", *story.PhotoID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return []catalog.Item{photo}, nil
}

func StoryFileName(item catalog.Item) string {
	return fmt.Sprintf("NEWS_%s_%d.xml", template.Lower(item.AppLabel()), item.PK())
}
