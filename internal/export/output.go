package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"strings"

	"pigeon/internal/catalog"
)

// Output is a recipe for one exported file.
type Output interface {
	FinalFileName() string
	RelativeFinalDirectory() string
	Render(ctx context.Context) (*Artifact, error)
}

// Artifact is a rendered (or copied) file ready to be pushed.
type Artifact struct {
	Directory   string
	FileName    string
	Content     []byte
	ContentType string
	Valid       bool
}

func (a *Artifact) Path() string {
	return path.Join(a.Directory, a.FileName)
}

func Path(o Output) string {
	return path.Join(o.RelativeFinalDirectory(), o.FinalFileName())
}

// DefaultFileName is "<kind>_<pk>.<ext>".
func DefaultFileName(item catalog.Item, ext string) string {
	return fmt.Sprintf("%s_%d.%s", item.Kind(), item.PK(), strings.TrimPrefix(ext, "."))
}

// TemplateName is the template a templated output uses when none is set:
// "<app_label>/<kind>.xml".
func TemplateName(item catalog.Item) string {
	return fmt.Sprintf("%s/%s.xml", strings.ToLower(item.AppLabel()), item.Kind())
}

type Renderer interface {
	Render(name string, data any) ([]byte, error)
}

type ContextFunc func(ctx context.Context) (map[string]any, error)

type TemplateOutput struct {
	Item         catalog.Item
	Templates    Renderer
	Template     string
	FileName     string
	Directory    string
	ContentType  string
	ExtraContext ContextFunc
	Validators   []Validator
}

var _ Output = (*TemplateOutput)(nil)

func (o *TemplateOutput) FinalFileName() string {
	if o.FileName != "" {
		return o.FileName
	}
	return DefaultFileName(o.Item, "xml")
}

func (o *TemplateOutput) RelativeFinalDirectory() string {
	return o.Directory
}

func (o *TemplateOutput) templateName() string {
	if o.Template != "" {
		return o.Template
	}
	return TemplateName(o.Item)
}

// Render executes the template and runs the validators in order. When a
// validator fails the artifact is still returned, marked invalid, together
// with a *ValidationError.
func (o *TemplateOutput) Render(ctx context.Context) (*Artifact, error) {
	if o.Templates == nil {
		return nil, errors.New("export: template output has no renderer")
	}

	data := map[string]any{
		"item":      o.Item,
		"kind":      o.Item.Kind().String(),
		"pk":        o.Item.PK(),
		"app_label": o.Item.AppLabel(),
	}

	if o.ExtraContext != nil {
		extra, err := o.ExtraContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("extra context for %s: %w", Path(o), err)
		}
		maps.Copy(data, extra)
	}

	content, err := o.Templates.Render(o.templateName(), data)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", Path(o), err)
	}

	contentType := o.ContentType
	if contentType == "" {
		contentType = "application/xml"
	}

	artifact := &Artifact{
		Directory:   o.RelativeFinalDirectory(),
		FileName:    o.FinalFileName(),
		Content:     content,
		ContentType: contentType,
		Valid:       true,
	}

	for _, v := range o.Validators {
		if err := v.Validate(content); err != nil {
			artifact.Valid = false
			return artifact, &ValidationError{Validator: v.Name(), Path: artifact.Path(), Err: err}
		}
	}

	return artifact, nil
}

// BinaryOutput copies the stored file behind one of the item's file fields.
type BinaryOutput struct {
	Item        catalog.Item
	Field       string
	Media       fs.FS
	FileName    string
	Directory   string
	ContentType string
}

var _ Output = (*BinaryOutput)(nil)

func (o *BinaryOutput) FinalFileName() string {
	if o.FileName != "" {
		return o.FileName
	}
	return DefaultFileName(o.Item, "bin")
}

func (o *BinaryOutput) RelativeFinalDirectory() string {
	return o.Directory
}

func (o *BinaryOutput) Render(ctx context.Context) (*Artifact, error) {
	fielder, ok := o.Item.(catalog.FileFielder)
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", ErrNotFileFielder, o.Item.Kind(), o.Item.PK())
	}

	name, err := fielder.FileField(o.Field)
	if err != nil {
		return nil, err
	}

	if o.Media == nil {
		return nil, errors.New("export: binary output has no media filesystem")
	}

	content, err := fs.ReadFile(o.Media, strings.TrimPrefix(path.Clean(name), "/"))
	if err != nil {
		return nil, fmt.Errorf("read %s of %s %d: %w", o.Field, o.Item.Kind(), o.Item.PK(), err)
	}

	contentType := o.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Artifact{
		Directory:   o.RelativeFinalDirectory(),
		FileName:    o.FinalFileName(),
		Content:     content,
		ContentType: contentType,
		Valid:       true,
	}, nil
}
