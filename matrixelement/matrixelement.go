package matrixelement

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// MatrixElement is a callable squared amplitude M^2(s,t,u) bound to a
// snapshot of model parameters. Once bound it is pure: repeated calls with
// the same (s,t,u) return the same value.
type MatrixElement struct {
	Indices [4]int
	expr    Expr
	params  MapEnv // snapshot of model parameter values, rebindable
}

// Rebind replaces the element's parameter snapshot. It is called from the
// listeners registered with particle.Catalog.OnParameterChange, which
// particle.Catalog.SetVariable notifies on every successful call, matching
// spec.md's "Mutation is broadcast" invariant.
func (m *MatrixElement) Rebind(params map[string]float64) {
	next := make(MapEnv, len(params))
	for k, v := range params {
		next[k] = v
	}
	m.params = next
}

// Eval evaluates |M|^2 at the given Mandelstam invariants. Negative results
// are not expected of a physical squared amplitude but are not clamped
// here; callers that need nonnegativity (spec.md §3's MatrixElement
// contract) should validate upstream at parse time.
func (m *MatrixElement) Eval(s, t, u float64) float64 {
	env := make(MapEnv, len(m.params)+3)
	for k, v := range m.params {
		env[k] = v
	}
	env["s"], env["t"], env["u"] = s, t, u
	return m.expr.Eval(env)
}

// String renders the bound expression back to infix form.
func (m *MatrixElement) String() string {
	return m.expr.String()
}

// Declaration is one parsed `M[i1,i2,i3,i4] -> expr` line.
type Declaration struct {
	Indices [4]int
	Expr    Expr
	Symbols []string // every non-Mandelstam symbol referenced, for validation
	Line    int
	Raw     string
}

var declHeader = regexp.MustCompile(`^M\s*\[\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*,\s*(\d+)\s*\]\s*->\s*(.+)$`)

// ParseFile parses a matrix-element file (spec.md §6.1) into the list of
// declarations it contains. knownParams is the set of model-parameter
// names that may legally appear in an expression; any other non-Mandelstam
// symbol triggers a ParseError naming the offending line, per spec.md's
// "Parse failure lists the offending line." A nil knownParams skips this
// symbol check.
func ParseFile(r io.Reader, knownParams map[string]bool) ([]Declaration, error) {
	var decls []Declaration
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := stripComment(raw)
		if strings.TrimSpace(line) == "" {
			continue
		}

		m := declHeader.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			return nil, &ParseError{Line: lineNo, Raw: raw, Msg: "line does not match 'M[i1,i2,i3,i4] -> expr'"}
		}

		var idx [4]int
		for k := 0; k < 4; k++ {
			v, err := strconv.Atoi(m[k+1])
			if err != nil {
				return nil, &ParseError{Line: lineNo, Raw: raw, Msg: fmt.Sprintf("bad index %q", m[k+1])}
			}
			idx[k] = v
		}

		expr, err := parseExpr(m[5])
		if err != nil {
			return nil, &ParseError{Line: lineNo, Raw: raw, Msg: err.Error()}
		}

		symSet := map[string]bool{}
		symbols(expr, symSet)

		var syms []string
		for name := range symSet {
			if mandelstamSymbols[name] {
				continue
			}
			if knownParams != nil && !knownParams[name] {
				return nil, &ParseError{Line: lineNo, Raw: raw, Msg: fmt.Sprintf("unresolved symbol %q", name)}
			}
			syms = append(syms, name)
		}

		decls = append(decls, Declaration{
			Indices: idx,
			Expr:    expr,
			Symbols: syms,
			Line:    lineNo,
			Raw:     raw,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return decls, nil
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}

// Bind constructs a MatrixElement from a parsed Declaration and the
// current value of every model parameter it references.
func Bind(decl Declaration, params map[string]float64) *MatrixElement {
	snapshot := make(MapEnv, len(params))
	for k, v := range params {
		snapshot[k] = v
	}
	return &MatrixElement{
		Indices: decl.Indices,
		expr:    decl.Expr,
		params:  snapshot,
	}
}

// ParseError reports a parse failure together with the offending line, per
// spec.md §6.1's "Parse failure lists the offending line."
type ParseError struct {
	Line int
	Raw  string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("matrixelement: parse error at line %d (%q): %s", e.Line, e.Raw, e.Msg)
}
