package manifest

import (
	"fmt"
	"strings"

	"stabledracor/internal/services"
)

// Names and ids end up in comma separated label indexes and dotted label
// keys. A dot segment equal to a child key of the same level would make two
// entries write the same label, so those segments are reserved.
var (
	reservedCorpusSegments = []string{"sources"}
	reservedSourceSegments = []string{"exclude", "include"}
)

func checkName(kind, name string, reserved []string) error {
	if err := checkToken(kind, name); err != nil {
		return err
	}
	segments := strings.Split(name, ".")
	for _, seg := range segments[1:] {
		for _, r := range reserved {
			if seg == r {
				return invalidName(kind, name, fmt.Sprintf("segment %q is reserved", r))
			}
		}
	}
	return nil
}

func checkToken(kind, value string) error {
	switch {
	case value == "":
		return invalidName(kind, value, "must not be empty")
	case strings.TrimSpace(value) != value:
		return invalidName(kind, value, "must not start or end with whitespace")
	case strings.Contains(value, ","):
		return invalidName(kind, value, "must not contain a comma")
	}
	return nil
}

func invalidName(kind, value, reason string) error {
	return services.Wrap(services.ErrValidation, "manifest", "check "+kind, fmt.Sprintf("%s %q %s", kind, value, reason), nil)
}
