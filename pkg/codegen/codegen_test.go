package codegen

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/forthc/pkg/ast"
	"github.com/chazu/forthc/pkg/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func squareProgram() *ast.Program {
	return ast.Prog(
		ast.Def("SQUARE", ast.W("DUP"), ast.W("*")),
		ast.Num(7), ast.W("SQUARE"), ast.Num(4), ast.W("+"), ast.W("."),
		ast.Num(1), ast.Num(2), ast.Num(3), ast.W("."),
		ast.W("CR"),
	)
}

func TestCGenerate(t *testing.T) {
	out, err := NewC().Generate(squareProgram())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "#include <stdint.h>"))
	assert.Contains(t, out, "static void w_square(void);")
	assert.Contains(t, out, "static void w_square(void) {\n    { int64_t a = pop(); push(a * a); }\n}")
	assert.Contains(t, out, "static void forth_main(void) {\n    push(7);\n    w_square();\n    push(pop() + 4);\n")
	assert.Contains(t, out, "\n    push(1); push(2); push(3); \n")
	assert.Contains(t, out, `putchar('\n');`)
	assert.Contains(t, out, "int main(void) {\n    forth_main();")
}

func TestRustGenerate(t *testing.T) {
	out, err := NewRust().Generate(squareProgram())
	require.NoError(t, err)

	assert.Contains(t, out, "    fn w_square(&mut self) {\n        { let a = self.pop(); self.push(a.wrapping_mul(a)); }\n    }")
	assert.Contains(t, out, "    fn run(&mut self) {\n        self.push(7);\n        self.w_square();")
	assert.Contains(t, out, "self.push(a.wrapping_add(4));")
	assert.Contains(t, out, "fn main() {\n    let mut forth = Forth::new();")
}

func TestControlFlowIndentation(t *testing.T) {
	prog := ast.Prog(ast.Words("10", "0", "DO", "I", "5", ">", "IF", "I", ".", "ELSE", "0", ".", "THEN", "LOOP")...)

	out, err := NewC().Generate(prog)
	require.NoError(t, err)
	assert.Contains(t, out, strings.Join([]string{
		"    push(10); push(0); ",
		"    do_enter();",
		"    for (;;) {",
		"        push(loop_index(0));",
		"        push(5);",
		"        { int64_t b = pop(), a = pop(); push(a > b ? -1 : 0); }",
		"        if (pop() != 0) {",
		"            push(loop_index(0));",
		`            printf("%lld ", (long long)pop());`,
		"        } else {",
		`            printf("%lld ", (long long)0);`,
		"        }",
		"        if (!loop_next()) break;",
		"    }",
	}, "\n"))

	out, err = NewRust().Generate(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "            if self.pop() != 0 {\n")
	assert.Contains(t, out, "            if !self.loop_next() { break; }\n        }")
}

func TestBeginUntilAndQuestionDo(t *testing.T) {
	prog := ast.Prog(ast.Words("BEGIN", "1", "UNTIL", "3", "3", "?DO", "LOOP")...)
	out, err := NewC().Generate(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "    for (;;) {\n        push(1);\n        if (pop() != 0) break;\n    }")
	assert.Contains(t, out, "    while (loop_live()) {\n        if (!loop_next()) break;\n    }")
}

func TestStrings(t *testing.T) {
	prog := ast.Prog(ast.Str("hi\n"), ast.W("TYPE"), ast.Str(`say "x"`))
	out, err := NewC().Generate(prog)
	require.NoError(t, err)
	assert.Contains(t, out, `fputs("hi\n", stdout);`)
	assert.Contains(t, out, `push_str("say \"x\"", sizeof("say \"x\"") - 1);`)

	out, err = NewRust().Generate(prog)
	require.NoError(t, err)
	assert.Contains(t, out, `io::stdout().write_all(b"hi\n").ok();`)
	assert.Contains(t, out, `self.push_str(b"say \"x\"");`)
}

func TestUnknownWordIsUnmatched(t *testing.T) {
	for _, b := range []*Backend{NewC(), NewRust()} {
		t.Run(b.Name(), func(t *testing.T) {
			_, err := b.Generate(ast.Prog(ast.Num(1), &ast.Word{Name: "FROB", Pos: ast.Position{Line: 1, Column: 3}}))
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrUnmatchedConstruct))
			assert.Contains(t, err.Error(), "1:3")
		})
	}
}

func TestDefinitionsShadowBuiltins(t *testing.T) {
	prog := ast.Prog(ast.Def("DUP", ast.Num(1)), ast.Num(2), ast.W("DUP"))
	out, err := NewC().Generate(prog)
	require.NoError(t, err)
	assert.Contains(t, out, "    push(2);\n    w_dup();")
	assert.NotContains(t, out, "push(peek(0));")
}

func TestCaseInsensitiveWords(t *testing.T) {
	out, err := NewC().Generate(ast.Prog(ast.Def("sq", ast.W("dup"), ast.W("*")), ast.Num(2), ast.W("SQ"), ast.W("drop")))
	require.NoError(t, err)
	assert.Contains(t, out, "w_sq();")
	assert.Contains(t, out, "(void)pop();")
}

func TestRulesAreFrozen(t *testing.T) {
	for _, b := range []*Backend{NewC(), NewRust()} {
		assert.True(t, b.Rules().Frozen(), b.Name())
		rs := b.Rules().Rules()
		for i := 1; i < len(rs); i++ {
			assert.GreaterOrEqual(t, rs[i-1].Priority, rs[i].Priority)
		}
	}
}

func TestMetadata(t *testing.T) {
	c := NewC()
	assert.Equal(t, ".c", c.Extension())
	assert.Equal(t, "gcc -O2 -fwrapv -o out/prog out/prog.c && ./out/prog", c.RunCommand("out/prog.c"))

	r := NewRust()
	assert.Equal(t, ".rs", r.Extension())
	assert.Equal(t, "rustc -O prog.rs -o prog && ./prog", r.RunCommand("prog.rs"))
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"a\tb\001\?"`, CQuote("a\tb\x01?"))
	assert.Equal(t, `b"\x00\xff"`, RustBytes("\x00\xff"))
	assert.Equal(t, "INT64_MIN", CFormatter{}.Number(-9223372036854775808))
	assert.Equal(t, "i64::MIN", RustFormatter{}.Number(-9223372036854775808))
}

func TestWithIndent(t *testing.T) {
	base := NewC()
	tabbed := base.WithIndent("\t")

	out, err := tabbed.Generate(squareProgram())
	require.NoError(t, err)
	assert.Contains(t, out, "static void forth_main(void) {\n\tpush(7);\n\tw_square();")
	assert.Same(t, base.Rules(), tabbed.Rules())

	out, err = base.Generate(squareProgram())
	require.NoError(t, err)
	assert.Contains(t, out, "\n    push(7);\n")
}
