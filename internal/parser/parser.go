package parser

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/polyglot/internal/ir"
	"github.com/roach88/polyglot/internal/naming"
)

// builtinPrimitives are the type names the parser recognizes as IR
// primitives. Anything else becomes a Named reference and is either
// resolved against local definitions or left opaque for the registry.
var builtinPrimitives = map[string]ir.Primitive{
	"string": ir.String,
	"int":    ir.Int,
	"float":  ir.Float,
	"bool":   ir.Bool,
	"unit":   ir.Unit,
}

// Parse converts interface source text into an ir.Module. filename is
// used for diagnostics and to derive the module name. The returned
// module has all local type references resolved.
func Parse(source, filename string) (*ir.Module, error) {
	name := moduleName(filename)
	sanitized, err := naming.Sanitize(name)
	if err != nil {
		return nil, &ParseError{
			File:    filename,
			Message: fmt.Sprintf("cannot derive a module name from %q", filename),
		}
	}

	p := &fileParser{file: filename}
	mod := &ir.Module{Name: sanitized}

	cleaned, docs := stripComments(source)
	decls, err := p.collectDecls(cleaned)
	if err != nil {
		return nil, err
	}
	attachDocs(mod, decls, docs)

	for _, d := range decls {
		switch d.kind {
		case declVal:
			fn, err := p.parseVal(d)
			if err != nil {
				return nil, err
			}
			mod.Functions = append(mod.Functions, *fn)
		case declType:
			def, err := p.parseTypeDef(d)
			if err != nil {
				return nil, err
			}
			mod.TypeDefs = append(mod.TypeDefs, *def)
		}
	}

	resolveModule(mod)
	return mod, nil
}

// moduleName derives the module name from the source file name.
func moduleName(filename string) string {
	base := filepath.Base(filename)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" || base == "." {
		return "module"
	}
	return base
}

type declKind int

const (
	declVal declKind = iota
	declType
)

type decl struct {
	kind declKind
	text string // joined, comment-free declaration text
	line int    // 1-based line of the first declaration line
	doc  string
}

type docComment struct {
	endLine int
	text    string
	used    bool
}

type fileParser struct {
	file string
}

// stripComments removes (* ... *) comments (nesting supported) while
// preserving line structure, and collects (** ... *) documentation
// blocks with the line on which they end.
func stripComments(source string) (string, []docComment) {
	var out strings.Builder
	var docs []docComment
	line := 1
	depth := 0
	isDoc := false
	var docText strings.Builder

	i := 0
	for i < len(source) {
		c := source[i]
		if depth == 0 {
			if c == '(' && i+1 < len(source) && source[i+1] == '*' {
				depth = 1
				isDoc = i+2 < len(source) && source[i+2] == '*'
				docText.Reset()
				out.WriteByte(' ')
				out.WriteByte(' ')
				i += 2
				if isDoc {
					out.WriteByte(' ')
					i++
				}
				continue
			}
			out.WriteByte(c)
			if c == '\n' {
				line++
			}
			i++
			continue
		}

		// Inside a comment.
		switch {
		case c == '(' && i+1 < len(source) && source[i+1] == '*':
			depth++
			out.WriteString("  ")
			i += 2
		case c == '*' && i+1 < len(source) && source[i+1] == ')':
			depth--
			out.WriteString("  ")
			i += 2
			if depth == 0 && isDoc {
				docs = append(docs, docComment{
					endLine: line,
					text:    strings.Join(strings.Fields(docText.String()), " "),
				})
			}
		default:
			if depth == 1 && isDoc {
				docText.WriteByte(c)
			}
			if c == '\n' {
				out.WriteByte('\n')
				line++
			} else {
				out.WriteByte(' ')
			}
			i++
		}
	}
	return out.String(), docs
}

// collectDecls groups source lines into complete declarations. A val
// declaration continues while parentheses are unbalanced or the line
// ends mid-expression; a type declaration continues while braces are
// open or the following line starts a new variant case.
func (p *fileParser) collectDecls(cleaned string) ([]*decl, error) {
	lines := strings.Split(cleaned, "\n")
	var decls []*decl

	i := 0
	for i < len(lines) {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case trimmed == "":
			i++
		case strings.HasPrefix(trimmed, "val ") || trimmed == "val":
			d := &decl{kind: declVal, line: i + 1}
			text := trimmed
			for !declComplete(text) && i+1 < len(lines) {
				i++
				text += " " + strings.TrimSpace(lines[i])
			}
			d.text = strings.TrimSpace(text)
			decls = append(decls, d)
			i++
		case strings.HasPrefix(trimmed, "type ") || trimmed == "type":
			d := &decl{kind: declType, line: i + 1}
			text := trimmed
			for i+1 < len(lines) {
				next := strings.TrimSpace(lines[i+1])
				if declComplete(text) && !strings.HasPrefix(next, "|") {
					break
				}
				if next == "" && declComplete(text) {
					break
				}
				i++
				text += " " + next
			}
			d.text = strings.TrimSpace(text)
			decls = append(decls, d)
			i++
		default:
			return nil, &ParseError{
				File:    p.file,
				Line:    i + 1,
				Message: fmt.Sprintf("unsupported declaration: %q", trimmed),
				Suggestions: []string{
					"only 'val name : type' signatures and 'type name = ...' definitions are supported",
				},
			}
		}
	}
	return decls, nil
}

// declComplete reports whether text forms a complete declaration:
// balanced brackets and not ending mid-expression.
func declComplete(text string) bool {
	parens, braces := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			parens++
		case ')':
			parens--
		case '{':
			braces++
		case '}':
			braces--
		}
	}
	if parens != 0 || braces != 0 {
		return false
	}
	t := strings.TrimSpace(text)
	for _, suffix := range []string{"->", "*", ":", "=", "|", ";"} {
		if strings.HasSuffix(t, suffix) {
			return false
		}
	}
	if strings.HasSuffix(t, " of") || t == "of" {
		return false
	}
	return true
}

// attachDocs associates each documentation block with the declaration
// that immediately follows it. A leading block separated from the first
// declaration by a blank line becomes the module documentation.
func attachDocs(mod *ir.Module, decls []*decl, docs []docComment) {
	for di := range docs {
		for _, d := range decls {
			if docs[di].endLine <= d.line && d.line-docs[di].endLine <= 1 {
				if d.doc == "" {
					d.doc = docs[di].text
					docs[di].used = true
				}
				break
			}
			if d.line > docs[di].endLine {
				break
			}
		}
	}
	firstDeclLine := 0
	if len(decls) > 0 {
		firstDeclLine = decls[0].line
	}
	for di := range docs {
		if !docs[di].used && (firstDeclLine == 0 || docs[di].endLine < firstDeclLine) {
			mod.Doc = docs[di].text
			break
		}
	}
}

// declParser parses one tokenized declaration.
type declParser struct {
	file string
	line int
	toks *tokens
}

func (p *fileParser) newDeclParser(d *decl) (*declParser, error) {
	toks, err := lexDecl(d.text)
	if err != nil {
		return nil, &ParseError{File: p.file, Line: d.line, Message: err.Error()}
	}
	return &declParser{file: p.file, line: d.line, toks: &tokens{toks: toks}}, nil
}

func (dp *declParser) errorf(format string, args ...any) *ParseError {
	return &ParseError{File: dp.file, Line: dp.line, Message: fmt.Sprintf(format, args...)}
}

func (dp *declParser) errorWithSuggestions(suggestions []string, format string, args ...any) *ParseError {
	err := dp.errorf(format, args...)
	err.Suggestions = suggestions
	return err
}

// parseVal parses "val <name> : <type-expr>".
func (p *fileParser) parseVal(d *decl) (*ir.Function, error) {
	dp, err := p.newDeclParser(d)
	if err != nil {
		return nil, err
	}

	if kw, ok := dp.toks.accept(tokIdent); !ok || kw.text != "val" {
		return nil, dp.errorWithSuggestions(suggestSignatureFix("val"), "expected 'val' declaration")
	}
	nameTok, ok := dp.toks.accept(tokIdent)
	if !ok {
		return nil, dp.errorWithSuggestions(suggestSignatureFix("val"), "expected function name after 'val'")
	}
	if _, ok := dp.toks.accept(tokColon); !ok {
		return nil, dp.errorWithSuggestions(suggestSignatureFix("val"),
			"expected ':' after function name '%s'", nameTok.text)
	}

	name, err := naming.Sanitize(nameTok.text)
	if err != nil {
		return nil, dp.errorf("function name %q cannot be normalized to a valid identifier", nameTok.text)
	}

	segments, err := dp.parseArrowChain()
	if err != nil {
		return nil, err
	}
	if tok := dp.toks.peek(); tok.kind != tokEOF {
		return nil, dp.errorWithSuggestions(suggestSignatureFix("val"),
			"unexpected %s in signature of '%s'", tok, name)
	}
	if len(segments) < 2 {
		return nil, dp.errorWithSuggestions(suggestSignatureFix("val"),
			"function '%s' must have at least one parameter and a return type", name)
	}

	fn := &ir.Function{Name: name, Doc: d.doc, Return: segments[len(segments)-1]}
	for i, t := range segments[:len(segments)-1] {
		paramName := "input"
		if i > 0 {
			paramName = fmt.Sprintf("arg%d", i)
		}
		fn.Params = append(fn.Params, ir.Parameter{Name: paramName, Type: t})
	}
	return fn, nil
}

// parseTypeDef parses "type <name> = { ... }" or "type <name> = C1 | C2 of T".
func (p *fileParser) parseTypeDef(d *decl) (*ir.TypeDef, error) {
	dp, err := p.newDeclParser(d)
	if err != nil {
		return nil, err
	}

	if kw, ok := dp.toks.accept(tokIdent); !ok || kw.text != "type" {
		return nil, dp.errorf("expected 'type' declaration")
	}
	nameTok, ok := dp.toks.accept(tokIdent)
	if !ok {
		return nil, dp.errorf("expected type name after 'type'")
	}
	name, err := naming.Sanitize(nameTok.text)
	if err != nil {
		return nil, dp.errorf("type name %q cannot be normalized to a valid identifier", nameTok.text)
	}
	if _, ok := dp.toks.accept(tokEquals); !ok {
		return nil, dp.errorf("expected '=' after type name '%s'", name)
	}

	def := &ir.TypeDef{Name: name, Doc: d.doc}
	if dp.toks.peek().kind == tokLBrace {
		body, err := dp.parseRecordBody(name)
		if err != nil {
			return nil, err
		}
		def.Body = body
	} else {
		body, err := dp.parseVariantBody(name)
		if err != nil {
			return nil, err
		}
		def.Body = body
	}
	if tok := dp.toks.peek(); tok.kind != tokEOF {
		return nil, dp.errorf("unexpected %s after definition of type '%s'", tok, name)
	}
	return def, nil
}

func (dp *declParser) parseRecordBody(typeName string) (ir.Record, error) {
	rec := ir.Record{Name: typeName}
	dp.toks.next() // consume '{'

	for {
		if _, ok := dp.toks.accept(tokRBrace); ok {
			break
		}
		fieldTok, ok := dp.toks.accept(tokIdent)
		if !ok {
			return rec, dp.errorWithSuggestions(suggestSignatureFix("record"),
				"expected field name in record type '%s'", typeName)
		}
		if _, ok := dp.toks.accept(tokColon); !ok {
			return rec, dp.errorWithSuggestions(suggestSignatureFix("record"),
				"expected ':' after field '%s' in record type '%s'", fieldTok.text, typeName)
		}
		fieldName, err := naming.Sanitize(fieldTok.text)
		if err != nil {
			return rec, dp.errorf("field name %q cannot be normalized to a valid identifier", fieldTok.text)
		}
		fieldType, err := dp.parseProduct()
		if err != nil {
			return rec, err
		}
		rec.Fields = append(rec.Fields, ir.Field{Name: fieldName, Type: fieldType})

		if _, ok := dp.toks.accept(tokSemi); ok {
			continue
		}
		if _, ok := dp.toks.accept(tokRBrace); ok {
			break
		}
		return rec, dp.errorWithSuggestions(suggestSignatureFix("record"),
			"expected ';' or '}' after field '%s' in record type '%s'", fieldName, typeName)
	}
	if len(rec.Fields) == 0 {
		return rec, dp.errorWithSuggestions(suggestSignatureFix("record"),
			"record type '%s' must declare at least one field", typeName)
	}
	return rec, nil
}

func (dp *declParser) parseVariantBody(typeName string) (ir.Variant, error) {
	v := ir.Variant{Name: typeName}

	// Optional leading pipe: type t = | A | B
	dp.toks.accept(tokPipe)
	for {
		ctorTok, ok := dp.toks.accept(tokIdent)
		if !ok {
			return v, dp.errorWithSuggestions(suggestSignatureFix("variant"),
				"expected constructor name in variant type '%s'", typeName)
		}
		if ctorTok.text[0] < 'A' || ctorTok.text[0] > 'Z' {
			return v, dp.errorWithSuggestions(suggestSignatureFix("variant"),
				"type '%s': constructor '%s' must start with an uppercase letter (type aliases are not supported)",
				typeName, ctorTok.text)
		}
		ctorName, err := naming.Sanitize(ctorTok.text)
		if err != nil {
			return v, dp.errorf("constructor name %q cannot be normalized to a valid identifier", ctorTok.text)
		}

		c := ir.Case{Name: ctorName}
		if of := dp.toks.peek(); of.kind == tokIdent && of.text == "of" {
			dp.toks.next()
			payload, err := dp.parseProduct()
			if err != nil {
				return v, err
			}
			c.Payload = payload
		}
		v.Cases = append(v.Cases, c)

		if _, ok := dp.toks.accept(tokPipe); !ok {
			break
		}
	}
	return v, nil
}

// parseArrowChain parses "T1 -> T2 -> ... -> Tn" and returns the
// segments. The arrow is right-associative; at the top level of a
// signature the chain is the curried parameter list plus return type.
func (dp *declParser) parseArrowChain() ([]ir.Type, error) {
	var segments []ir.Type
	for {
		t, err := dp.parseProduct()
		if err != nil {
			return nil, err
		}
		segments = append(segments, t)
		if _, ok := dp.toks.accept(tokArrow); !ok {
			return segments, nil
		}
	}
}

// parseProduct parses "T1 * T2 * ... * Tn", left-flattened into a
// single Tuple of arity n. Product binds tighter than the arrow; an
// arrow inside a product element requires explicit parentheses.
func (dp *declParser) parseProduct() (ir.Type, error) {
	first, err := dp.parseElement()
	if err != nil {
		return nil, err
	}
	elems := []ir.Type{first}
	for {
		if _, ok := dp.toks.accept(tokStar); !ok {
			break
		}
		next, err := dp.parseElement()
		if err != nil {
			return nil, err
		}
		elems = append(elems, next)
	}
	if len(elems) == 1 {
		return first, nil
	}
	return ir.Tuple{Elems: elems}, nil
}

// parseElement parses an atom followed by any number of postfix
// container applications (option, list).
func (dp *declParser) parseElement() (ir.Type, error) {
	t, err := dp.parseAtom()
	if err != nil {
		return nil, err
	}
	for {
		tok := dp.toks.peek()
		if tok.kind != tokIdent {
			return t, nil
		}
		switch tok.text {
		case "option":
			dp.toks.next()
			t = ir.Option{Inner: t}
		case "list":
			dp.toks.next()
			t = ir.List{Inner: t}
		default:
			return nil, dp.errorWithSuggestions(suggestTypeFix(tok.text),
				"unsupported type application '%s %s'", t, tok.text)
		}
	}
}

func (dp *declParser) parseAtom() (ir.Type, error) {
	tok := dp.toks.next()
	switch tok.kind {
	case tokLParen:
		segments, err := dp.parseArrowChain()
		if err != nil {
			return nil, err
		}
		if _, ok := dp.toks.accept(tokRParen); !ok {
			return nil, dp.errorWithSuggestions(
				[]string{"did you mean to wrap this in parentheses?"},
				"expected ')' but found %s", dp.toks.peek())
		}
		if len(segments) > 1 {
			return nil, dp.errorWithSuggestions(
				[]string{"pass a serializable value instead, or expose the callback as its own val declaration"},
				"function values cannot cross the FFI boundary")
		}
		return segments[0], nil
	case tokTypeVar:
		return ir.TypeVar{Symbol: tok.text}, nil
	case tokIdent:
		switch tok.text {
		case "option", "list":
			return nil, dp.errorWithSuggestions(
				[]string{fmt.Sprintf("'%s' is a postfix container: write the element type first, e.g. 'string %s'", tok.text, tok.text)},
				"missing element type before '%s'", tok.text)
		case "of", "val", "type":
			return nil, dp.errorf("unexpected keyword '%s' in type expression", tok.text)
		}
		if prim, ok := builtinPrimitives[tok.text]; ok {
			return prim, nil
		}
		name, err := naming.Sanitize(tok.text)
		if err != nil {
			return nil, dp.errorf("type name %q cannot be normalized to a valid identifier", tok.text)
		}
		return ir.Named{Name: name}, nil
	default:
		return nil, dp.errorWithSuggestions(suggestSignatureFix("val"),
			"expected a type but found %s", tok)
	}
}

// resolveModule replaces Named references to locally defined types with
// their Record/Variant bodies, in definition bodies first and then in
// every function signature. Mutually recursive definitions stop
// expanding at the first repeated name and keep the Named reference.
func resolveModule(mod *ir.Module) {
	defs := make(map[string]int, len(mod.TypeDefs))
	for i, d := range mod.TypeDefs {
		defs[d.Name] = i
	}

	var resolve func(t ir.Type, visiting map[string]bool) ir.Type
	resolve = func(t ir.Type, visiting map[string]bool) ir.Type {
		switch tt := t.(type) {
		case ir.Option:
			return ir.Option{Inner: resolve(tt.Inner, visiting)}
		case ir.List:
			return ir.List{Inner: resolve(tt.Inner, visiting)}
		case ir.Tuple:
			elems := make([]ir.Type, len(tt.Elems))
			for i, e := range tt.Elems {
				elems[i] = resolve(e, visiting)
			}
			return ir.Tuple{Elems: elems}
		case ir.Record:
			fields := make([]ir.Field, len(tt.Fields))
			for i, f := range tt.Fields {
				fields[i] = ir.Field{Name: f.Name, Type: resolve(f.Type, visiting)}
			}
			return ir.Record{Name: tt.Name, Fields: fields}
		case ir.Variant:
			cases := make([]ir.Case, len(tt.Cases))
			for i, c := range tt.Cases {
				cases[i] = ir.Case{Name: c.Name}
				if c.Payload != nil {
					cases[i].Payload = resolve(c.Payload, visiting)
				}
			}
			return ir.Variant{Name: tt.Name, Cases: cases}
		case ir.Named:
			idx, ok := defs[tt.Name]
			if !ok || visiting[tt.Name] {
				return tt
			}
			visiting[tt.Name] = true
			body := resolve(mod.TypeDefs[idx].Body, visiting)
			delete(visiting, tt.Name)
			return body
		}
		return t
	}

	for i := range mod.TypeDefs {
		visiting := map[string]bool{mod.TypeDefs[i].Name: true}
		mod.TypeDefs[i].Body = resolve(mod.TypeDefs[i].Body, visiting)
	}
	for i := range mod.Functions {
		fn := &mod.Functions[i]
		for j := range fn.Params {
			fn.Params[j].Type = resolve(fn.Params[j].Type, map[string]bool{})
		}
		fn.Return = resolve(fn.Return, map[string]bool{})
	}
}
