package replication

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"stabledracor/internal/dracor"
	"stabledracor/internal/services"
)

// checkWellFormed rejects documents the DraCor API would refuse.
func checkWellFormed(name string, data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return services.Wrap(services.ErrValidation, "replication", "parse tei", name+" is not well-formed XML", err)
		}
		if _, ok := tok.(xml.StartElement); ok {
			sawRoot = true
		}
	}
	if !sawRoot {
		return services.Wrap(services.ErrValidation, "replication", "parse tei", name+" has no root element", nil)
	}
	return nil
}

type corpusDocument struct {
	Title string `xml:"teiHeader>fileDesc>titleStmt>title"`
	Idnos []struct {
		Type  string `xml:"type,attr"`
		Value string `xml:",chardata"`
	} `xml:"teiHeader>fileDesc>publicationStmt>idno"`
	Paragraphs []string `xml:"teiHeader>encodingDesc>projectDesc>p"`
}

// parseCorpusXML extracts title, name and description from a corpus.xml
// header. Absent elements produce no field.
func parseCorpusXML(data []byte) (dracor.CorpusMetadata, error) {
	var doc corpusDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse corpus.xml: %w", err)
	}
	meta := dracor.CorpusMetadata{}
	if title := strings.TrimSpace(doc.Title); title != "" {
		meta["title"] = title
	}
	for _, idno := range doc.Idnos {
		if idno.Type == "URI" && strings.TrimSpace(idno.Value) != "" {
			meta["name"] = strings.TrimSpace(idno.Value)
			break
		}
	}
	if len(doc.Paragraphs) > 0 {
		meta["description"] = strings.TrimSpace(strings.Join(doc.Paragraphs, ""))
	}
	return meta, nil
}

// slugFromFile turns a TEI file name into a play identifier.
func slugFromFile(name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	return norm.NFC.String(strings.TrimSuffix(base, ".xml"))
}
