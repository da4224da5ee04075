package partner

import (
	"fmt"
	"io/fs"

	"pigeon/internal/catalog"
	"pigeon/internal/export"
)

const MediaDirectory = "medias"

// PhotoSupervisor exports every photo on every save.
type PhotoSupervisor struct {
	export.BaseSupervisor
	media fs.FS
}

var _ export.Supervisor = (*PhotoSupervisor)(nil)

func (p *PhotoSupervisor) MatchesType(item catalog.Item) bool {
	_, ok := item.(*catalog.Photo)
	return ok
}

func (p *PhotoSupervisor) ShouldRecheck(catalog.Item, export.FieldSet) bool {
	return true
}

func (p *PhotoSupervisor) IsReady(catalog.Item) bool {
	return true
}

func (p *PhotoSupervisor) Outputs(item catalog.Item) []export.Output {
	return []export.Output{
		&export.BinaryOutput{
			Item:        item,
			Field:       "original_file",
			Media:       p.media,
			FileName:    PhotoFileName(item),
			Directory:   MediaDirectory,
			ContentType: "image/jpeg",
		},
	}
}

func PhotoFileName(item catalog.Item) string {
	return fmt.Sprintf("%d.jpg", item.PK())
}
