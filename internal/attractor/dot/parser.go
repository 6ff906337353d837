// Package dot parses the DOT subset described by the workflow
// specification into a model.Graph AST. The grammar accepted is narrow by
// design: a single `digraph NAME { ... }` envelope containing graph/node/edge
// attribute statements, chained edges, node/edge default statements (applied
// to later declarations in the same and nested scopes), subgraphs (whose
// label becomes a class on their nodes), and bare assignments (stored as
// graph attributes).
package dot

import (
	"fmt"
	"strings"

	"github.com/go-attractor/attractor/internal/attractor/model"
)

// Parse parses a DOT-subset workflow graph into a model.Graph, or returns a
// human-readable error identifying the first failure. There is no error
// recovery: parsing stops at the first malformed construct.
func Parse(src []byte) (*model.Graph, error) {
	clean, err := stripComments(src)
	if err != nil {
		return nil, err
	}
	p := &parser{lx: newLexer(clean)}
	if err := p.fill(); err != nil {
		return nil, err
	}
	return p.parseGraph()
}

type parser struct {
	lx   *lexer
	peek token
	has  bool
}

func (p *parser) fill() error {
	if p.has {
		return nil
	}
	tok, err := p.lx.next()
	if err != nil {
		return err
	}
	p.peek = tok
	p.has = true
	return nil
}

func (p *parser) advance() (token, error) {
	if err := p.fill(); err != nil {
		return token{}, err
	}
	tok := p.peek
	p.has = false
	return tok, nil
}

func (p *parser) expectSymbol(sym string) error {
	tok, err := p.advance()
	if err != nil {
		return err
	}
	if tok.typ != tokenSymbol || tok.lit != sym {
		return fmt.Errorf("dot parse: expected %q, got %q at %d", sym, tok.lit, tok.pos)
	}
	return nil
}

func (p *parser) expectIdent(lit string) error {
	tok, err := p.advance()
	if err != nil {
		return err
	}
	if tok.typ != tokenIdent || tok.lit != lit {
		return fmt.Errorf("dot parse: expected %q, got %q at %d", lit, tok.lit, tok.pos)
	}
	return nil
}

func (p *parser) parseGraph() (*model.Graph, error) {
	if err := p.expectIdent("digraph"); err != nil {
		return nil, err
	}
	nameTok, err := p.advance()
	if err != nil {
		return nil, err
	}
	if nameTok.typ != tokenIdent {
		return nil, fmt.Errorf("dot parse: expected graph identifier, got %q at %d", nameTok.lit, nameTok.pos)
	}
	g := model.NewGraph(nameTok.lit)
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}

	root := newScope(nil)
	if err := p.parseStatements(g, root); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	_ = p.consumeOptionalSemicolon()
	if err := p.fill(); err != nil {
		return nil, err
	}
	if p.peek.typ != tokenEOF {
		return nil, fmt.Errorf("dot parse: trailing tokens after graph end at %d", p.peek.pos)
	}
	return g, nil
}

// scope tracks node/edge defaults and the derived subgraph label class,
// inherited by value from the parent so nested subgraphs see the union of
// every enclosing scope's defaults without leaking their own back out.
type scope struct {
	parent       *scope
	nodeDefaults map[string]string
	edgeDefaults map[string]string

	subgraphLabel string
	nodeIDs       map[string]struct{}
}

func newScope(parent *scope) *scope {
	s := &scope{
		nodeDefaults: map[string]string{},
		edgeDefaults: map[string]string{},
		nodeIDs:      map[string]struct{}{},
		parent:       parent,
	}
	if parent != nil {
		for k, v := range parent.nodeDefaults {
			s.nodeDefaults[k] = v
		}
		for k, v := range parent.edgeDefaults {
			s.edgeDefaults[k] = v
		}
	}
	return s
}

func (s *scope) recordNode(id string) {
	for cur := s; cur != nil; cur = cur.parent {
		cur.nodeIDs[id] = struct{}{}
	}
}

func (p *parser) parseStatements(g *model.Graph, sc *scope) error {
	for {
		if err := p.fill(); err != nil {
			return err
		}
		if p.peek.typ == tokenEOF {
			return fmt.Errorf("dot parse: unexpected EOF (missing '}')")
		}
		if p.peek.typ == tokenSymbol && p.peek.lit == "}" {
			if sc.parent != nil {
				p.applySubgraphLabelClass(g, sc)
			}
			return nil
		}

		tok, err := p.advance()
		if err != nil {
			return err
		}
		if tok.typ != tokenIdent {
			return fmt.Errorf("dot parse: expected identifier, got %q at %d", tok.lit, tok.pos)
		}

		switch tok.lit {
		case "graph":
			attrs, err := p.parseAttrBlock()
			if err != nil {
				return err
			}
			for k, v := range attrs {
				g.Attrs[k] = v
			}
			_ = p.consumeOptionalSemicolon()
		case "node":
			attrs, err := p.parseAttrBlock()
			if err != nil {
				return err
			}
			for k, v := range attrs {
				sc.nodeDefaults[k] = v
			}
			_ = p.consumeOptionalSemicolon()
		case "edge":
			attrs, err := p.parseAttrBlock()
			if err != nil {
				return err
			}
			for k, v := range attrs {
				sc.edgeDefaults[k] = v
			}
			_ = p.consumeOptionalSemicolon()
		case "subgraph":
			if err := p.fill(); err != nil {
				return err
			}
			if p.peek.typ == tokenIdent {
				if _, err := p.advance(); err != nil {
					return err
				}
			}
			if err := p.expectSymbol("{"); err != nil {
				return err
			}
			sub := newScope(sc)
			if err := p.parseStatements(g, sub); err != nil {
				return err
			}
			if err := p.expectSymbol("}"); err != nil {
				return err
			}
			p.applySubgraphLabelClass(g, sub)
		default:
			if err := p.parseDeclOrStmt(g, sc, tok); err != nil {
				return err
			}
		}
	}
}

// parseDeclOrStmt handles a statement that started with a bare identifier:
// a graph attribute assignment (`key = value;`), a node statement
// (`id [attrs];`), or an edge chain (`a -> b -> c [attrs];`).
func (p *parser) parseDeclOrStmt(g *model.Graph, sc *scope, tok token) error {
	if err := p.fill(); err != nil {
		return err
	}

	if p.peek.typ == tokenSymbol && p.peek.lit == "=" {
		if _, err := p.advance(); err != nil {
			return err
		}
		valTok, err := p.advance()
		if err != nil {
			return err
		}
		if valTok.typ != tokenIdent && valTok.typ != tokenString {
			return fmt.Errorf("dot parse: expected value after '=', got %q at %d", valTok.lit, valTok.pos)
		}
		if sc.parent != nil && tok.lit == "label" {
			sc.subgraphLabel = valTok.lit
		} else {
			g.Attrs[tok.lit] = valTok.lit
		}
		return p.consumeOptionalSemicolon()
	}

	if p.peek.typ == tokenSymbol && p.peek.lit == "->" {
		return p.parseEdgeChain(g, sc, tok.lit)
	}

	nodeAttrs := map[string]string{}
	if p.peek.typ == tokenSymbol && p.peek.lit == "[" {
		var err error
		nodeAttrs, err = p.parseAttrBlock()
		if err != nil {
			return err
		}
	}

	n := model.NewNode(tok.lit)
	n.Order = len(g.Nodes)
	for k, v := range sc.nodeDefaults {
		n.Attrs[k] = v
	}
	for k, v := range nodeAttrs {
		n.Attrs[k] = v
	}
	if err := g.AddNode(n); err != nil {
		return err
	}
	sc.recordNode(n.ID)
	return p.consumeOptionalSemicolon()
}

func (p *parser) parseEdgeChain(g *model.Graph, sc *scope, from string) error {
	chain := []string{from}
	for {
		if _, err := p.advance(); err != nil { // consume "->"
			return err
		}
		toTok, err := p.advance()
		if err != nil {
			return err
		}
		if toTok.typ != tokenIdent {
			return fmt.Errorf("dot parse: expected edge target identifier, got %q at %d", toTok.lit, toTok.pos)
		}
		chain = append(chain, toTok.lit)

		if err := p.fill(); err != nil {
			return err
		}
		if !(p.peek.typ == tokenSymbol && p.peek.lit == "->") {
			break
		}
	}

	attrs := map[string]string{}
	if err := p.fill(); err != nil {
		return err
	}
	if p.peek.typ == tokenSymbol && p.peek.lit == "[" {
		var err error
		attrs, err = p.parseAttrBlock()
		if err != nil {
			return err
		}
	}

	// Every edge in the chain gets its own attribute map (defaults then
	// explicit attrs) so conditions/labels are never accidentally shared
	// between edges of the same chain.
	for i := 0; i+1 < len(chain); i++ {
		e := model.NewEdge(chain[i], chain[i+1])
		for k, v := range sc.edgeDefaults {
			e.Attrs[k] = v
		}
		for k, v := range attrs {
			e.Attrs[k] = v
		}
		if err := g.AddEdge(e); err != nil {
			return err
		}
	}
	return p.consumeOptionalSemicolon()
}

func (p *parser) consumeOptionalSemicolon() error {
	if err := p.fill(); err != nil {
		return err
	}
	if p.peek.typ == tokenSymbol && p.peek.lit == ";" {
		_, err := p.advance()
		return err
	}
	return nil
}

func (p *parser) parseAttrBlock() (map[string]string, error) {
	if err := p.expectSymbol("["); err != nil {
		return nil, err
	}
	attrs := map[string]string{}
	for {
		if err := p.fill(); err != nil {
			return nil, err
		}
		if p.peek.typ == tokenSymbol && p.peek.lit == "]" {
			_, _ = p.advance()
			return attrs, nil
		}

		key, err := p.parseQualifiedKey()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		val, err := p.parseAttrValue()
		if err != nil {
			return nil, err
		}
		attrs[key] = val

		if err := p.fill(); err != nil {
			return nil, err
		}
		if p.peek.typ == tokenSymbol && p.peek.lit == "," {
			_, _ = p.advance()
			continue
		}
		if p.peek.typ == tokenSymbol && p.peek.lit == "]" {
			continue // trailing comma before ']'
		}
		return nil, fmt.Errorf("dot parse: expected ',' or ']', got %q at %d", p.peek.lit, p.peek.pos)
	}
}

// parseAttrValue accepts a quoted string, a signed integer, or a bare
// identifier — the three value forms the grammar recognizes.
func (p *parser) parseAttrValue() (string, error) {
	tok, err := p.advance()
	if err != nil {
		return "", err
	}
	if tok.typ == tokenString || tok.typ == tokenIdent {
		return tok.lit, nil
	}
	return "", fmt.Errorf("dot parse: expected attribute value, got %q at %d", tok.lit, tok.pos)
}

// parseQualifiedKey accepts Identifier or Identifier('.'Identifier)+, so
// keys like tool_hooks.pre parse as a single attribute name.
func (p *parser) parseQualifiedKey() (string, error) {
	first, err := p.advance()
	if err != nil {
		return "", err
	}
	if first.typ != tokenIdent {
		return "", fmt.Errorf("dot parse: expected identifier key, got %q at %d", first.lit, first.pos)
	}
	key := first.lit
	for {
		if err := p.fill(); err != nil {
			return "", err
		}
		if p.peek.typ == tokenSymbol && p.peek.lit == "." {
			_, _ = p.advance()
			part, err := p.advance()
			if err != nil {
				return "", err
			}
			if part.typ != tokenIdent {
				return "", fmt.Errorf("dot parse: expected identifier after '.', got %q at %d", part.lit, part.pos)
			}
			key += "." + part.lit
			continue
		}
		break
	}
	return key, nil
}

func (p *parser) applySubgraphLabelClass(g *model.Graph, sc *scope) {
	if sc == nil {
		return
	}
	lbl := strings.TrimSpace(sc.subgraphLabel)
	if lbl == "" {
		return
	}
	class := deriveClassFromLabel(lbl)
	if class == "" {
		return
	}
	for id := range sc.nodeIDs {
		n := g.Nodes[id]
		if n == nil {
			continue
		}
		n.Classes = append(n.Classes, class)
	}
}

func deriveClassFromLabel(label string) string {
	label = strings.ToLower(label)
	label = strings.ReplaceAll(label, " ", "-")
	var b strings.Builder
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}
