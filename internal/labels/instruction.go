package labels

import (
	"sort"
	"strconv"
	"strings"
)

// Instruction renders labels as a single Dockerfile LABEL instruction with
// keys in sorted order. It returns an empty string for an empty set.
func Instruction(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("LABEL")
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(labels[k]))
	}
	return b.String()
}

// Filter returns the labels whose key starts with the namespace of c.
func (c Codec) Filter(labels map[string]string) map[string]string {
	prefix := c.namespace() + "."
	out := make(map[string]string)
	for k, v := range labels {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}
