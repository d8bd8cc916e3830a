package installer

import (
	"fmt"

	"github.com/flanksource/gomplate/v3"
)

// evaluateRenameExpr evaluates expr (e.g. `name + "-" + version`) as a CEL
// expression against the given app name/version/tag, the way the teacher's
// pkg/template/template.go TemplateURL templates a URL with
// version/tag/os/arch variables via flanksource/gomplate — narrowed here to
// the three variables a rename target needs (spec.md §4.6 step 4: "the
// rename field comes from catalog... the final name is sanitized"). A
// literal app name with no CEL metacharacters also parses as a valid CEL
// expression (a bare identifier) and is rejected by evaluation since "name"
// alone would shadow the variable rather than mean "this exact file named
// `name`" — callers should only call this when expr actually looks like an
// expression (see looksLikeExpression).
func evaluateRenameExpr(expr, name, version, tag string) (string, error) {
	vars := map[string]interface{}{
		"name":    name,
		"version": version,
		"tag":     tag,
	}
	out, err := gomplate.RunTemplate(vars, gomplate.Template{Expression: expr})
	if err != nil {
		return "", fmt.Errorf("evaluate rename expression %q: %w", expr, err)
	}
	return out, nil
}

// looksLikeExpression distinguishes a rename_to value meant to be
// evaluated (contains a CEL operator or references version/tag) from a
// plain literal filename stem that should pass through untouched.
func looksLikeExpression(s string) bool {
	for _, op := range []string{"+", "version", "tag", "(", "?"} {
		if containsToken(s, op) {
			return true
		}
	}
	return false
}

func containsToken(s, token string) bool {
	for i := 0; i+len(token) <= len(s); i++ {
		if s[i:i+len(token)] == token {
			return true
		}
	}
	return false
}
