package replication

import (
	"errors"
	"testing"

	"stabledracor/internal/services"
)

const corpusXML = `<?xml version="1.0" encoding="UTF-8"?>
<teiCorpus xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt><title>German Drama Corpus</title></titleStmt>
      <publicationStmt><idno type="URI">ger</idno></publicationStmt>
    </fileDesc>
    <encodingDesc><projectDesc><p>Edited by many.</p></projectDesc></encodingDesc>
  </teiHeader>
</teiCorpus>`

func TestParseCorpusXML(t *testing.T) {
	meta, err := parseCorpusXML([]byte(corpusXML))
	if err != nil {
		t.Fatalf("parseCorpusXML: %v", err)
	}
	if meta.Name() != "ger" || meta["title"] != "German Drama Corpus" || meta["description"] != "Edited by many." {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestParseCorpusXMLSkipsAbsentFields(t *testing.T) {
	meta, err := parseCorpusXML([]byte(`<teiCorpus xmlns="http://www.tei-c.org/ns/1.0"><teiHeader><fileDesc><publicationStmt><idno type="DOI">x</idno></publicationStmt></fileDesc></teiHeader></teiCorpus>`))
	if err != nil {
		t.Fatalf("parseCorpusXML: %v", err)
	}
	if len(meta) != 0 {
		t.Fatalf("expected empty metadata, got %v", meta)
	}
}

func TestCheckWellFormed(t *testing.T) {
	if err := checkWellFormed("ok.xml", []byte(`<TEI xmlns="http://www.tei-c.org/ns/1.0"><text/></TEI>`)); err != nil {
		t.Fatalf("valid document rejected: %v", err)
	}
	for _, doc := range []string{"", "<TEI>", "<a></b>", "plain text"} {
		if err := checkWellFormed("bad.xml", []byte(doc)); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%q: expected validation error, got %v", doc, err)
		}
	}
}

func TestSlugFromFileNormalizes(t *testing.T) {
	decomposed := "mu\u0308ller.xml"
	if got := slugFromFile("tei/" + decomposed); got != "m\u00fcller" {
		t.Fatalf("slug = %q", got)
	}
}
