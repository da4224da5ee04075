package catalog

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("catalog: item not found")
	ErrUnknownKind  = errors.New("catalog: unknown item kind")
	ErrUnknownField = errors.New("catalog: unknown file field")
)

type Kind int

const (
	KindUnknown Kind = iota
	KindStory
	KindPhoto
)

func (k Kind) String() string {
	switch k {
	case KindStory:
		return "story"
	case KindPhoto:
		return "photo"
	default:
		return "unknown"
	}
}

func ParseKind(s string) (Kind, error) {
	switch s {
	case "story":
		return KindStory, nil
	case "photo":
		return KindPhoto, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Item is anything the catalog can hand to an export configuration.
type Item interface {
	Kind() Kind
	PK() int64
	AppLabel() string
}

// FileFielder is implemented by items carrying stored files.
type FileFielder interface {
	FileField(name string) (string, error)
}

type WorkflowState string

const (
	StateDraft   WorkflowState = "draft"
	StateOffline WorkflowState = "offline"
	StateOnline  WorkflowState = "online"
)

const DefaultAppLabel = "news"

type Story struct {
	ID            int64
	Label         string
	Title         string
	WorkflowState WorkflowState
	Content       string
	UpdatingDate  time.Time
	CreatedAt     time.Time
	PhotoID       *int64
}

func (s *Story) Kind() Kind { return KindStory }

func (s *Story) PK() int64 { return s.ID }

func (s *Story) AppLabel() string {
	if s.Label == "" {
		return DefaultAppLabel
	}
	return s.Label
}

type Photo struct {
	ID           int64
	Label        string
	Title        string
	OriginalFile string
	CreatedAt    time.Time
}

func (p *Photo) Kind() Kind { return KindPhoto }

func (p *Photo) PK() int64 { return p.ID }

func (p *Photo) AppLabel() string {
	if p.Label == "" {
		return DefaultAppLabel
	}
	return p.Label
}

func (p *Photo) FileField(name string) (string, error) {
	switch name {
	case "original_file":
		if p.OriginalFile == "" {
			return "", fmt.Errorf("photo %d: original_file is empty", p.ID)
		}
		return p.OriginalFile, nil
	default:
		return "", fmt.Errorf("%w: photo has no field %q", ErrUnknownField, name)
	}
}
