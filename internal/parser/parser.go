// Package parser is the structural front end of the repair engine. It parses
// component-based UI sources (JS/JSX/TS/TSX) with tree-sitter, classifies the
// unit, and exposes the tree as a flat arena of index-addressed nodes.
package parser

import (
	"context"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"github.com/Alcatecablee/fixwise-sub008/internal/engine"
)

// routeFileNames are meta-framework convention entry points. A file carrying
// one of these names is a RouteModule regardless of its contents.
var routeFileNames = map[string]bool{
	"page":     true,
	"layout":   true,
	"route":    true,
	"loading":  true,
	"error":    true,
	"template": true,
}

// Parse builds an arena for one source text. Parse never returns an error:
// malformed input yields an invalid arena so that textual-path rules can
// still run over the raw text.
func Parse(text string, filePath string) *Arena {
	a := &Arena{src: []byte(text), path: filePath}

	p := sitter.NewParser()
	p.SetLanguage(languageFor(filePath))
	tree, err := p.ParseCtx(context.Background(), nil, a.src)
	if err != nil || tree == nil {
		a.kind = engine.KindUnparseable
		return a
	}
	defer tree.Close()

	root := tree.RootNode()
	a.flatten(root, -1)
	a.valid = !hasErrorNodes(a)
	if !a.valid {
		a.kind = engine.KindUnparseable
		return a
	}

	a.kind = classify(a, filePath)
	return a
}

// Reparse checks whether a candidate rewrite of an already-classified unit
// still parses, reusing the original file path for grammar selection.
func Reparse(text string, filePath string) bool {
	return Parse(text, filePath).Valid()
}

func languageFor(filePath string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".ts", ".tsx", ".jsx", ".mts", ".cts":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

func hasErrorNodes(a *Arena) bool {
	for i := range a.nodes {
		if a.nodes[i].Kind == "ERROR" || a.nodes[i].Kind == "MISSING" {
			return true
		}
	}
	return false
}

// classify decides the syntax kind of a valid arena. Route naming wins over
// content sniffing; JSX anywhere in the tree makes the unit a component
// module.
func classify(a *Arena, filePath string) engine.SyntaxKind {
	base := filepath.Base(filePath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	if routeFileNames[name] && inFrameworkDir(filePath) {
		return engine.KindRouteModule
	}

	hasJSX := false
	a.Walk(func(v NodeView) bool {
		switch v.Kind() {
		case "jsx_element", "jsx_self_closing_element", "jsx_fragment":
			hasJSX = true
			return false
		}
		return true
	})
	if hasJSX {
		return engine.KindComponentModule
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	if ext == ".tsx" || ext == ".jsx" {
		return engine.KindComponentModule
	}
	return engine.KindScript
}

func inFrameworkDir(filePath string) bool {
	norm := filepath.ToSlash(filePath)
	return strings.Contains(norm, "/app/") || strings.Contains(norm, "/pages/") ||
		strings.HasPrefix(norm, "app/") || strings.HasPrefix(norm, "pages/")
}
