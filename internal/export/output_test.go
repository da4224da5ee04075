package export_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/catalog"
	"pigeon/internal/export"
)

type renderFunc func(name string, data any) ([]byte, error)

func (f renderFunc) Render(name string, data any) ([]byte, error) { return f(name, data) }

func TestTemplateOutputDefaults(t *testing.T) {
	story := &catalog.Story{ID: 42}
	out := &export.TemplateOutput{Item: story}

	assert.Equal(t, "story_42.xml", out.FinalFileName())
	assert.Equal(t, "", out.RelativeFinalDirectory())
	assert.Equal(t, "story_42.xml", export.Path(out))
	assert.Equal(t, "news/story.xml", export.TemplateName(story))
}

func TestTemplateOutputRender(t *testing.T) {
	var (
		gotName string
		gotData map[string]any
	)
	renderer := renderFunc(func(name string, data any) ([]byte, error) {
		gotName = name
		gotData = data.(map[string]any)
		return []byte("<news/>"), nil
	})

	story := &catalog.Story{ID: 7, Label: "Culture"}
	out := &export.TemplateOutput{
		Item:      story,
		Templates: renderer,
		FileName:  "NEWS_7.xml",
		Directory: "stories",
		ExtraContext: func(context.Context) (map[string]any, error) {
			return map[string]any{"read_also": []int{1, 2}}, nil
		},
		Validators: []export.Validator{export.WellFormedXML},
	}

	artifact, err := out.Render(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "culture/story.xml", gotName)
	assert.Equal(t, story, gotData["item"])
	assert.Equal(t, int64(7), gotData["pk"])
	assert.Equal(t, "Culture", gotData["app_label"])
	assert.Equal(t, []int{1, 2}, gotData["read_also"])

	assert.True(t, artifact.Valid)
	assert.Equal(t, "stories/NEWS_7.xml", artifact.Path())
	assert.Equal(t, "application/xml", artifact.ContentType)
	assert.Equal(t, []byte("<news/>"), artifact.Content)
}

func TestTemplateOutputValidationFailure(t *testing.T) {
	renderer := renderFunc(func(string, any) ([]byte, error) {
		return []byte("<news><title></news>"), nil
	})
	out := &export.TemplateOutput{
		Item:       &catalog.Story{ID: 1},
		Templates:  renderer,
		Validators: []export.Validator{export.WellFormedXML},
	}

	artifact, err := out.Render(context.Background())
	require.Error(t, err)
	require.NotNil(t, artifact)

	assert.False(t, artifact.Valid)
	assert.ErrorIs(t, err, export.ErrValidation)
	assert.True(t, export.IsValidationError(err))

	var ve *export.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "wellformed_xml", ve.Validator)
	assert.Equal(t, "story_1.xml", ve.Path)
}

func TestTemplateOutputValidatorsRunInOrder(t *testing.T) {
	var ran []string
	validator := func(name string, fail bool) export.Validator {
		return export.NewValidator(name, func([]byte) error {
			ran = append(ran, name)
			if fail {
				return errors.New(name + " failed")
			}
			return nil
		})
	}

	out := &export.TemplateOutput{
		Item:       &catalog.Story{ID: 1},
		Templates:  renderFunc(func(string, any) ([]byte, error) { return []byte("<a/>"), nil }),
		Validators: []export.Validator{validator("first", false), validator("second", true), validator("third", false)},
	}

	_, err := out.Render(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"first", "second"}, ran)
}

func TestTemplateOutputErrors(t *testing.T) {
	boom := errors.New("boom")

	testCases := []struct {
		name string
		out  *export.TemplateOutput
	}{
		{
			name: "no renderer",
			out:  &export.TemplateOutput{Item: &catalog.Story{ID: 1}},
		},
		{
			name: "render failure",
			out: &export.TemplateOutput{
				Item:      &catalog.Story{ID: 1},
				Templates: renderFunc(func(string, any) ([]byte, error) { return nil, boom }),
			},
		},
		{
			name: "extra context failure",
			out: &export.TemplateOutput{
				Item:         &catalog.Story{ID: 1},
				Templates:    renderFunc(func(string, any) ([]byte, error) { return []byte("<a/>"), nil }),
				ExtraContext: func(context.Context) (map[string]any, error) { return nil, boom },
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			artifact, err := tc.out.Render(context.Background())
			assert.Nil(t, artifact)
			require.Error(t, err)
			assert.False(t, export.IsValidationError(err))
		})
	}
}

func TestBinaryOutputRender(t *testing.T) {
	media := fstest.MapFS{
		"photos/2024/cat.jpg": {Data: []byte("jpeg-bytes")},
	}

	testCases := []struct {
		name    string
		item    catalog.Item
		field   string
		content []byte
		wantErr error
	}{
		{
			name:    "copies the stored file",
			item:    &catalog.Photo{ID: 5, OriginalFile: "/photos/2024/cat.jpg"},
			field:   "original_file",
			content: []byte("jpeg-bytes"),
		},
		{
			name:    "missing file",
			item:    &catalog.Photo{ID: 5, OriginalFile: "photos/dog.jpg"},
			field:   "original_file",
			wantErr: fs.ErrNotExist,
		},
		{
			name:    "unknown field",
			item:    &catalog.Photo{ID: 5, OriginalFile: "photos/2024/cat.jpg"},
			field:   "thumbnail",
			wantErr: catalog.ErrUnknownField,
		},
		{
			name:    "item without files",
			item:    &catalog.Story{ID: 5},
			field:   "original_file",
			wantErr: export.ErrNotFileFielder,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &export.BinaryOutput{
				Item:        tc.item,
				Field:       tc.field,
				Media:       media,
				FileName:    fmt.Sprintf("%d.jpg", tc.item.PK()),
				Directory:   "medias",
				ContentType: "image/jpeg",
			}

			artifact, err := out.Render(context.Background())
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, artifact)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.content, artifact.Content)
			assert.Equal(t, "medias/5.jpg", artifact.Path())
			assert.Equal(t, "image/jpeg", artifact.ContentType)
			assert.True(t, artifact.Valid)
		})
	}
}
