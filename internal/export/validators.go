package export

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

type Validator interface {
	Name() string
	Validate(content []byte) error
}

type validatorFunc struct {
	name string
	fn   func([]byte) error
}

func (v validatorFunc) Name() string { return v.name }

func (v validatorFunc) Validate(content []byte) error { return v.fn(content) }

func NewValidator(name string, fn func(content []byte) error) Validator {
	return validatorFunc{name: name, fn: fn}
}

var WellFormedXML = NewValidator("wellformed_xml", checkWellFormedXML)

// checkWellFormedXML accepts a document with exactly one root element and
// nothing but whitespace, comments and processing instructions around it.
func checkWellFormedXML(content []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = true

	depth := 0
	roots := 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					return fmt.Errorf("multiple root elements (second is <%s>)", t.Name.Local)
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(bytes.TrimSpace(t)) > 0 {
				return errors.New("character data outside root element")
			}
		}
	}

	if roots == 0 {
		return errors.New("no root element")
	}
	return nil
}
