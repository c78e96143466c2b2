package wms

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"
)

// ParseOutcome is a parser's judgement of a capabilities body.
type ParseOutcome int

const (
	ValidCapabilities ParseOutcome = iota
	NotWMS
	Malformed
)

func (o ParseOutcome) String() string {
	switch o {
	case ValidCapabilities:
		return "valid"
	case NotWMS:
		return "not_wms"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("ParseOutcome(%d)", int(o))
	}
}

// Parser decides whether a fetched body is a capabilities document for one
// protocol version. Parsers are pure and safe for concurrent use.
type Parser interface {
	Version() string
	Parse(body []byte) ParseOutcome
}

// ParserFor returns the strategy for a protocol version.
func ParserFor(version string) (Parser, error) {
	switch version {
	case Version130, "1.3":
		return Parser130{}, nil
	case Version111:
		return Parser111{}, nil
	default:
		return nil, fmt.Errorf("unsupported WMS version %q", version)
	}
}

// newDecoder returns a lenient decoder: unknown HTML entities, unquoted
// attributes and non-UTF-8 encodings are accepted.
func newDecoder(body []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(body))
	d.Strict = false
	d.Entity = xml.HTMLEntity
	d.CharsetReader = charset.NewReaderLabel

	return d
}

var (
	errNoRoot        = errors.New("no root element")
	errMultipleRoots = errors.New("content after the root element")
)

// walk reads the whole document, calling visit for every start element with
// its depth. It fails on the first syntax error, when there is no element or
// when a second top-level element follows the root.
func walk(body []byte, visit func(depth int, el xml.StartElement)) error {
	d := newDecoder(body)

	depth, elements := 0, 0
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 && elements > 0 {
				return errMultipleRoots
			}
			if visit != nil {
				visit(depth, t)
			}
			elements++
			depth++
		case xml.EndElement:
			depth--
		}
	}

	if elements == 0 {
		return errNoRoot
	}

	return nil
}

// Parser111 decodes the document into Capabilities111 and requires the
// mandatory blocks plus at least one named layer.
type Parser111 struct{}

func (Parser111) Version() string { return Version111 }

func (Parser111) Parse(body []byte) ParseOutcome {
	if err := walk(body, nil); err != nil {
		return Malformed
	}

	var caps Capabilities111
	if err := newDecoder(body).Decode(&caps); err != nil {
		// Well formed but not a 1.1.1 document, ServiceExceptionReport included.
		return NotWMS
	}

	if len(caps.ServiceExceptions) > 0 {
		return NotWMS
	}
	if caps.Service == nil || caps.Service.Title == "" || caps.Capability == nil {
		return NotWMS
	}
	if caps.NamedLayers() == 0 {
		return NotWMS
	}

	return ValidCapabilities
}

// Parser130 only checks the document skeleton: a WMS_Capabilities root in
// the WMS namespace without a ServiceException child. Layers are not
// inspected.
type Parser130 struct{}

func (Parser130) Version() string { return Version130 }

func (Parser130) Parse(body []byte) ParseOutcome {
	var rootSeen bool
	outcome := ValidCapabilities

	err := walk(body, func(depth int, el xml.StartElement) {
		switch {
		case depth == 0 && !rootSeen:
			rootSeen = true
			if el.Name.Space != NamespaceWMS || el.Name.Local != "WMS_Capabilities" {
				outcome = NotWMS
			}
		case depth == 1 && el.Name.Local == "ServiceException":
			outcome = NotWMS
		}
	})
	if err != nil {
		return Malformed
	}

	return outcome
}
