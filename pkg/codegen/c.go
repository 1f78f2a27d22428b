package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/forthc/pkg/rules"
	"github.com/chazu/forthc/pkg/template"
)

// CFormatter spells captured nodes as C99.
type CFormatter struct{}

func (CFormatter) Number(v int64) string {
	if v == math.MinInt64 {
		return "INT64_MIN"
	}
	return strconv.FormatInt(v, 10)
}

func (CFormatter) Word(name string) string { return template.Identifier("w_", name) }

func (CFormatter) String(s string) string { return CQuote(s) }

// CQuote renders s as a C string literal. Bytes outside printable ASCII
// become three-digit octal escapes, which cannot swallow a following digit.
func CQuote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c == '?':
			// avoid trigraphs
			sb.WriteString(`\?`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\%03o`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// CRuntime is the stack machine every generated C program carries.
const CRuntime = `#include <stdint.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>

#define STACK_SIZE 1000
#define LOOP_DEPTH 64

static int64_t stack[STACK_SIZE];
static int sp = 0;
static int64_t loops[LOOP_DEPTH][2];
static int lp = 0;

static void fail(const char *msg) {
    fflush(stdout);
    fprintf(stderr, "%s\n", msg);
    exit(1);
}

static void push(int64_t v) {
    if (sp >= STACK_SIZE) fail("Stack overflow");
    stack[sp++] = v;
}

static int64_t pop(void) {
    if (sp <= 0) fail("Stack underflow");
    return stack[--sp];
}

static int64_t peek(int depth) {
    if (depth >= sp) fail("Stack underflow");
    return stack[sp - 1 - depth];
}

static int64_t checked_div(int64_t a, int64_t b) {
    if (b == 0) fail("Division by zero");
    if (a == INT64_MIN && b == -1) return a;
    return a / b;
}

static int64_t checked_mod(int64_t a, int64_t b) {
    if (b == 0) fail("Division by zero");
    if (b == -1) return 0;
    return a % b;
}

static void dot_s(void) {
    printf("<%d> ", sp);
    for (int i = 0; i < sp; i++) printf("%lld ", (long long)stack[i]);
}

static void push_str(const char *s, int64_t n) {
    for (int64_t i = 0; i < n; i++) push((unsigned char)s[i]);
    push(n);
}

static void type_str(void) {
    int64_t n = pop();
    if (n < 0 || n > sp) fail("Stack underflow");
    for (int64_t i = sp - n; i < sp; i++) putchar((int)stack[i]);
    sp -= (int)n;
}

static int64_t read_key(void) {
    fflush(stdout);
    int c = getchar();
    return c == EOF ? -1 : c;
}

static void do_enter(void) {
    int64_t index = pop();
    int64_t limit = pop();
    if (lp >= LOOP_DEPTH) fail("Loop nesting too deep");
    loops[lp][0] = index;
    loops[lp][1] = limit;
    lp++;
}

static int loop_live(void) {
    if (loops[lp - 1][0] != loops[lp - 1][1]) return 1;
    lp--;
    return 0;
}

static int loop_next(void) {
    if (++loops[lp - 1][0] < loops[lp - 1][1]) return 1;
    lp--;
    return 0;
}

static int64_t loop_index(int depth) {
    if (depth >= lp) fail("Loop index outside loop");
    return loops[lp - 1 - depth][0];
}
`

func cBinary(expr string) string {
	return "{ int64_t b = pop(), a = pop(); push(" + expr + "); }"
}

func cCompare(op string) string {
	return cBinary("a " + op + " b ? -1 : 0")
}

var cBuiltins = map[string]string{
	"DUP":    "push(peek(0));",
	"DROP":   "(void)pop();",
	"SWAP":   "{ int64_t b = pop(), a = pop(); push(b); push(a); }",
	"OVER":   "push(peek(1));",
	"ROT":    "{ int64_t c = pop(), b = pop(), a = pop(); push(b); push(c); push(a); }",
	"+":      cBinary("a + b"),
	"-":      cBinary("a - b"),
	"*":      cBinary("a * b"),
	"/":      cBinary("checked_div(a, b)"),
	"MOD":    cBinary("checked_mod(a, b)"),
	"NEGATE": "push(-pop());",
	"=":      cCompare("=="),
	"<>":     cCompare("!="),
	"<":      cCompare("<"),
	">":      cCompare(">"),
	"<=":     cCompare("<="),
	">=":     cCompare(">="),
	"AND":    cBinary("a != 0 && b != 0 ? -1 : 0"),
	"OR":     cBinary("a != 0 || b != 0 ? -1 : 0"),
	"NOT":    "push(pop() == 0 ? -1 : 0);",
	".":      `printf("%lld ", (long long)pop());`,
	".S":     "dot_s();",
	"EMIT":   "putchar((int)pop());",
	"KEY":    "push(read_key());",
	"CR":     `putchar('\n');`,
	"SPACE":  "putchar(' ');",
	"BL":     "push(32);",
	"TYPE":   "type_str();",
	"I":      "push(loop_index(0));",
	"J":      "push(loop_index(1));",
	"EXIT":   "return;",
}

func cControl() map[string]template.Template {
	open := func(s string) template.Template {
		return template.Template{template.NewLine{}, lit(s), template.Indent{}}
	}
	closeWith := func(last string, s string) template.Template {
		t := template.Template{}
		if last != "" {
			t = append(t, template.NewLine{}, lit(last))
		}
		return append(t, template.Dedent{}, template.NewLine{}, lit(s))
	}
	return map[string]template.Template{
		"IF":     open("if (pop() != 0) {"),
		"ELSE":   {template.Dedent{}, template.NewLine{}, lit("} else {"), template.Indent{}},
		"THEN":   closeWith("", "}"),
		"DO":     append(line(lit("do_enter();")), open("for (;;) {")...),
		"?DO":    append(line(lit("do_enter();")), open("while (loop_live()) {")...),
		"LOOP":   closeWith("if (!loop_next()) break;", "}"),
		"BEGIN":  open("for (;;) {"),
		"UNTIL":  closeWith("if (pop() != 0) break;", "}"),
		"AGAIN":  closeWith("", "}"),
		"WHILE":  line(lit("if (pop() == 0) break;")),
		"REPEAT": closeWith("", "}"),
	}
}

// NewC returns the C pattern backend.
func NewC() *Backend {
	l := &lang{
		builtins: cBuiltins,
		control:  cControl(),
		push: func(v template.Part) []template.Part {
			return []template.Part{lit("push("), v, lit(");")}
		},
		addConst:   "push(pop() + %s);",
		subConst:   "push(pop() - %s);",
		mulConst:   "push(pop() * %s);",
		printConst: []template.Part{lit(`printf("%lld ", (long long)`), ref("n"), lit(");")},
		square:     "{ int64_t a = pop(); push(a * a); }",
		typeLiteral: func(v template.Part) []template.Part {
			return []template.Part{lit("fputs("), v, lit(", stdout);")}
		},
		pushString: func(v template.Part) []template.Part {
			return []template.Part{lit("push_str("), v, lit(", sizeof("), v, lit(") - 1);")}
		},
		call: func(v template.Part) []template.Part {
			return []template.Part{v, lit("();")}
		},
		definition: template.Template{
			template.NewLine{}, template.NewLine{},
			lit("static void "), ref(rules.LabelName), lit("(void) {"),
			template.Indent{}, ref(rules.LabelBody), template.Dedent{},
			template.NewLine{}, lit("}"),
		},
	}

	frame := template.Template{
		lit(CRuntime),
		template.Loop{Label: rules.LabelWords, Parts: []template.Part{
			template.NewLine{}, lit("static void "), ref("item"), lit("(void);"),
		}},
		ref(rules.LabelDefinitions),
		template.NewLine{}, template.NewLine{},
		lit("static void forth_main(void) {"), template.Indent{},
		ref(rules.LabelMain),
		template.Dedent{}, template.NewLine{}, lit("}"),
		template.NewLine{}, template.NewLine{},
		lit("int main(void) {"), template.Indent{},
		template.NewLine{}, lit("forth_main();"),
		template.NewLine{}, lit("fflush(stdout);"),
		template.NewLine{}, lit("return 0;"),
		template.Dedent{}, template.NewLine{}, lit("}"), template.NewLine{},
	}

	return &Backend{
		name:      "c-pattern",
		extension: ".c",
		run: func(file string) string {
			return fmt.Sprintf("gcc -O2 -fwrapv -o %s %s && ./%s", baseName(file), file, baseName(file))
		},
		gen: &rules.Generator{
			Table:     buildTable(l),
			Formatter: CFormatter{},
			Indent:    "    ",
			Frame:     frame,
		},
	}
}
