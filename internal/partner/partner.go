// Package partner holds the export configuration for BelovedPartner: which
// stories and photos go to the partner feed, and as which files.
package partner

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"pigeon/internal/catalog"
	"pigeon/internal/export"
)

const ConfigurationName = "beloved_partner"

//go:embed templates
var embedded embed.FS

// Templates returns the built-in templates, rooted so that names look like
// "news/story.xml".
func Templates() fs.FS {
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

// Catalog is the part of the catalog store the supervisors read.
type Catalog interface {
	LatestStories(ctx context.Context, limit int) ([]*catalog.Story, error)
	Photo(ctx context.Context, pk int64) (*catalog.Photo, error)
}

type Deps struct {
	Catalog   Catalog
	Templates export.Renderer
	Media     fs.FS
	Logger    *slog.Logger
}

// New builds the BelovedPartner dispatcher. Stories are matched before photos.
func New(deps Deps) (*export.Dispatcher, error) {
	if deps.Catalog == nil {
		return nil, errors.New("partner: catalog is required")
	}
	if deps.Templates == nil {
		return nil, errors.New("partner: templates are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	d := export.NewDispatcher(ConfigurationName, deps.Logger)

	if err := d.Register(catalog.KindStory, func() export.Supervisor {
		return &StorySupervisor{catalog: deps.Catalog, templates: deps.Templates, logger: deps.Logger}
	}); err != nil {
		return nil, fmt.Errorf("partner: %w", err)
	}

	if err := d.Register(catalog.KindPhoto, func() export.Supervisor {
		return &PhotoSupervisor{media: deps.Media}
	}); err != nil {
		return nil, fmt.Errorf("partner: %w", err)
	}

	return d, nil
}
