package rules

import (
	"strings"

	"github.com/Alcatecablee/fixwise-sub008/internal/parser"
)

// browserGlobals are identifiers that do not exist during server rendering.
var browserGlobals = map[string]bool{
	"window":         true,
	"document":       true,
	"localStorage":   true,
	"sessionStorage": true,
	"navigator":      true,
}

// leftmostIdentifier descends the object side of a member/call chain to the
// base identifier, e.g. window in window.matchMedia("...").matches.
func leftmostIdentifier(v parser.NodeView) (string, bool) {
	cur := v
	for {
		switch cur.Kind() {
		case "identifier":
			return cur.Text(), true
		case "member_expression", "subscript_expression", "call_expression":
			next, ok := cur.NamedChild(0)
			if !ok {
				return "", false
			}
			cur = next
		case "parenthesized_expression":
			next, ok := cur.NamedChild(0)
			if !ok {
				return "", false
			}
			cur = next
		default:
			return "", false
		}
	}
}

// insideEnvironmentGuard reports whether the node already sits under a
// typeof-window style guard, so repairing it again would double-guard.
func insideEnvironmentGuard(v parser.NodeView) bool {
	return v.HasAncestor(func(p parser.NodeView) bool {
		switch p.Kind() {
		case "ternary_expression", "if_statement", "binary_expression":
			return strings.Contains(p.Text(), "typeof ")
		}
		return false
	})
}

// insideDeferredCallback reports whether the node runs inside an effect or
// event callback, where browser APIs are reachable by construction.
func insideDeferredCallback(v parser.NodeView) bool {
	return v.HasAncestor(func(p parser.NodeView) bool {
		if p.Kind() != "call_expression" {
			return false
		}
		fn, ok := p.NamedChild(0)
		if !ok {
			return false
		}
		switch fn.Text() {
		case "useEffect", "useLayoutEffect", "addEventListener":
			return true
		}
		return false
	})
}

// rootOf climbs to the program node.
func rootOf(v parser.NodeView) parser.NodeView {
	cur := v
	for {
		p, ok := cur.Parent()
		if !ok {
			return cur
		}
		cur = p
	}
}

// unitHasImports reports whether the enclosing program carries ES module
// imports.
func unitHasImports(v parser.NodeView) bool {
	root := rootOf(v)
	for i := 0; i < root.NamedChildCount(); i++ {
		c, _ := root.NamedChild(i)
		if c.Kind() == "import_statement" {
			return true
		}
	}
	return false
}

// openingElementText returns the opening-tag slice of a JSX element, which
// is where attributes live.
func openingElementText(v parser.NodeView) string {
	if v.Kind() == "jsx_self_closing_element" {
		return v.Text()
	}
	opening, ok := v.FirstChildOfKind("jsx_opening_element")
	if !ok {
		return ""
	}
	return opening.Text()
}

// jsxHasAttribute does a token-level scan of an opening tag for an
// attribute name.
func jsxHasAttribute(openingTag, name string) bool {
	return strings.Contains(openingTag, name+"=") ||
		strings.Contains(openingTag, " "+name+" ") ||
		strings.HasSuffix(strings.TrimSuffix(strings.TrimSuffix(openingTag, ">"), "/"), " "+name)
}

// jsxTagName extracts the element name from an element node.
func jsxTagName(v parser.NodeView) string {
	target := v
	if v.Kind() == "jsx_element" {
		opening, ok := v.FirstChildOfKind("jsx_opening_element")
		if !ok {
			return ""
		}
		target = opening
	}
	name, ok := target.NamedChild(0)
	if !ok {
		return ""
	}
	return name.Text()
}

// insideMapCallback reports whether a JSX element is produced by an
// Array.prototype.map callback, the list-rendering shape that requires a key
// prop.
func insideMapCallback(v parser.NodeView) bool {
	return v.HasAncestor(func(p parser.NodeView) bool {
		if p.Kind() != "call_expression" {
			return false
		}
		fn, ok := p.NamedChild(0)
		if !ok || fn.Kind() != "member_expression" {
			return false
		}
		return strings.HasSuffix(fn.Text(), ".map")
	})
}

// hasDirectivePrologue checks the program's directive prologue for the
// given directive, e.g. "use client". Only leading expression statements
// count: the same string inside an ordinary literal is not a directive.
func hasDirectivePrologue(program parser.NodeView, directive string) bool {
	for i := 0; i < program.NamedChildCount(); i++ {
		c, _ := program.NamedChild(i)
		switch c.Kind() {
		case "comment", "hash_bang_line":
			continue
		case "expression_statement":
			s, ok := c.NamedChild(0)
			if !ok || s.Kind() != "string" {
				return false
			}
			if s.Text() == `"`+directive+`"` || s.Text() == "'"+directive+"'" {
				return true
			}
			// A different directive; the prologue may continue.
			continue
		default:
			return false
		}
	}
	return false
}
