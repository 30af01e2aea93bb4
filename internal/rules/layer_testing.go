package rules

import (
	"regexp"
	"strings"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

var (
	skippedTestRe   = regexp.MustCompile(`\b(it|test|describe)\.skip\s*\(|\bx(it|describe)\s*\(`)
	exportedCompRe  = regexp.MustCompile(`export\s+(default\s+)?(function|class|const)\s+[A-Z]`)
	testConstructRe = regexp.MustCompile(`\b(describe|it|test|expect)\s*\(`)
)

// layerTestScaffolding is layer 6: missing or disabled test coverage
// signals. The engine sees one file at a time, so these rules report; they
// never fabricate files.
func layerTestScaffolding() Layer {
	return Layer{
		ID:                      6,
		Name:                    "test-scaffolding",
		RequiresStructuralParse: false,
		Rules: []Rule{
			{
				ID:          "test/missing-scaffold",
				Description: "exported component has no test scaffolding",
				Severity:    engine.SeverityMedium,
				NodeKinds:   []string{"program"},
				MatchNode: func(v parser.NodeView) bool {
					if isTestFile(v.FilePath()) {
						return false
					}
					if v.UnitKind() != engine.KindComponentModule {
						return false
					}
					text := v.Text()
					return exportedCompRe.MatchString(text) && !testConstructRe.MatchString(text)
				},
			},
			{
				ID:          "test/skipped-test",
				Description: "skipped test left in the suite",
				Severity:    engine.SeverityLow,
				NodeKinds:   []string{"call_expression"},
				MatchNode: func(v parser.NodeView) bool {
					fn, ok := v.NamedChild(0)
					if !ok {
						return false
					}
					t := fn.Text()
					return strings.HasSuffix(t, ".skip") || t == "xit" || t == "xdescribe"
				},
				Pattern: skippedTestRe,
			},
		},
	}
}

func isTestFile(filePath string) bool {
	return strings.Contains(filePath, ".test.") || strings.Contains(filePath, ".spec.") ||
		strings.Contains(filepathToSlash(filePath), "/__tests__/")
}

func filepathToSlash(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}
