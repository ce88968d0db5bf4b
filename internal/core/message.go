package core

import (
	"net/http"
	"regexp"
	"slices"
	"strings"
)

// placeholderPattern matches {{ name }}; the name excludes braces and is trimmed.
var placeholderPattern = regexp.MustCompile(`{{\s*([^{}]+?)\s*}}`)

var errMissingVariable = NewError(KindTemplate, "MISSING_TEMPLATE_VARIABLE", http.StatusBadRequest, "")

// Lookuper resolves placeholder names. ContactRow implements it.
type Lookuper interface {
	Lookup(name string) (string, bool)
}

// RenderMessage substitutes every {{name}} in tmpl with the row's value for
// that column, matched case-insensitively. If any placeholder has no column
// nothing is rendered and the error lists every missing name once, sorted.
// An empty template renders to "".
func RenderMessage(tmpl string, row Lookuper, rowRef string) (string, error) {
	if tmpl == "" {
		return "", nil
	}

	var missing []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		name := strings.TrimSpace(m[1])
		if _, ok := row.Lookup(name); !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", errMissingVariable.
			withMessage("Missing column(s) in contacts file for placeholders: " + strings.Join(missing, ", ") + ".").
			WithDetails(rowRef)
	}

	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		value, _ := row.Lookup(name)
		return value
	}), nil
}

// Placeholders returns the distinct placeholder names in tmpl in order of appearance.
func Placeholders(tmpl string) []string {
	var names []string
	for _, m := range placeholderPattern.FindAllStringSubmatch(tmpl, -1) {
		name := strings.TrimSpace(m[1])
		if !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names
}
