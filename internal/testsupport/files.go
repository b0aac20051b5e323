package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// TEI returns a minimal well-formed TEI document with the given title.
func TEI(title string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<TEI xmlns="http://www.tei-c.org/ns/1.0"><teiHeader><fileDesc><titleStmt><title>%s</title></titleStmt></fileDesc></teiHeader><text><body/></text></TEI>
`, title)
}

// CorpusXML returns a corpus.xml document as found in DraCor repositories.
func CorpusXML(name, title, description string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<teiCorpus xmlns="http://www.tei-c.org/ns/1.0">
  <teiHeader>
    <fileDesc>
      <titleStmt><title>%s</title></titleStmt>
      <publicationStmt><idno type="URI">%s</idno></publicationStmt>
    </fileDesc>
    <encodingDesc><projectDesc><p>%s</p></projectDesc></encodingDesc>
  </teiHeader>
</teiCorpus>
`, title, name, description)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
