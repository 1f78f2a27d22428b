package codegen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/chazu/forthc/pkg/rules"
	"github.com/chazu/forthc/pkg/template"
)

// RustFormatter spells captured nodes as Rust. Words become methods on the
// generated Forth struct and strings become byte-string literals.
type RustFormatter struct{}

func (RustFormatter) Number(v int64) string {
	if v == math.MinInt64 {
		return "i64::MIN"
	}
	return strconv.FormatInt(v, 10)
}

func (RustFormatter) Word(name string) string { return template.Identifier("w_", name) }

func (RustFormatter) String(s string) string { return RustBytes(s) }

// RustBytes renders s as a Rust byte-string literal.
func RustBytes(s string) string {
	var sb strings.Builder
	sb.WriteString(`b"`)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// RustRuntime opens the generated program; user words and run are emitted
// into the impl block it leaves open.
const RustRuntime = `use std::io::{self, Read, Write};
use std::process;

struct Forth {
    stack: Vec<i64>,
    loops: Vec<(i64, i64)>,
}

impl Forth {
    fn new() -> Self {
        Forth { stack: Vec::with_capacity(1000), loops: Vec::new() }
    }

    fn fail(&self, msg: &str) -> ! {
        io::stdout().flush().ok();
        eprintln!("{}", msg);
        process::exit(1)
    }

    fn push(&mut self, v: i64) {
        if self.stack.len() >= 1000 {
            self.fail("Stack overflow");
        }
        self.stack.push(v);
    }

    fn pop(&mut self) -> i64 {
        match self.stack.pop() {
            Some(v) => v,
            None => self.fail("Stack underflow"),
        }
    }

    fn peek(&self, depth: usize) -> i64 {
        if depth >= self.stack.len() {
            self.fail("Stack underflow");
        }
        self.stack[self.stack.len() - 1 - depth]
    }

    fn div(&self, a: i64, b: i64) -> i64 {
        if b == 0 {
            self.fail("Division by zero");
        }
        a.wrapping_div(b)
    }

    fn rem(&self, a: i64, b: i64) -> i64 {
        if b == 0 {
            self.fail("Division by zero");
        }
        a.wrapping_rem(b)
    }

    fn emit(&self, c: i64) {
        io::stdout().write_all(&[c as u8]).ok();
    }

    fn dot_s(&self) {
        print!("<{}> ", self.stack.len());
        for v in &self.stack {
            print!("{} ", v);
        }
    }

    fn push_str(&mut self, s: &[u8]) {
        for &c in s {
            self.push(c as i64);
        }
        self.push(s.len() as i64);
    }

    fn type_str(&mut self) {
        let n = self.pop();
        if n < 0 || n as usize > self.stack.len() {
            self.fail("Stack underflow");
        }
        let start = self.stack.len() - n as usize;
        let bytes: Vec<u8> = self.stack.drain(start..).map(|c| c as u8).collect();
        io::stdout().write_all(&bytes).ok();
    }

    fn read_key(&self) -> i64 {
        io::stdout().flush().ok();
        let mut buf = [0u8; 1];
        match io::stdin().read(&mut buf) {
            Ok(1) => buf[0] as i64,
            _ => -1,
        }
    }

    fn do_enter(&mut self) {
        let index = self.pop();
        let limit = self.pop();
        self.loops.push((index, limit));
    }

    fn loop_live(&mut self) -> bool {
        let (index, limit) = self.loops[self.loops.len() - 1];
        if index != limit {
            return true;
        }
        self.loops.pop();
        false
    }

    fn loop_next(&mut self) -> bool {
        let top = self.loops.len() - 1;
        self.loops[top].0 += 1;
        if self.loops[top].0 < self.loops[top].1 {
            return true;
        }
        self.loops.pop();
        false
    }

    fn loop_index(&self, depth: usize) -> i64 {
        if depth >= self.loops.len() {
            self.fail("Loop index outside loop");
        }
        self.loops[self.loops.len() - 1 - depth].0
    }`

func rustBinary(expr string) string {
	return "{ let b = self.pop(); let a = self.pop(); self.push(" + expr + "); }"
}

func rustCompare(op string) string {
	return rustBinary("if a " + op + " b { -1 } else { 0 }")
}

var rustBuiltins = map[string]string{
	"DUP":    "{ let v = self.peek(0); self.push(v); }",
	"DROP":   "self.pop();",
	"SWAP":   "{ let b = self.pop(); let a = self.pop(); self.push(b); self.push(a); }",
	"OVER":   "{ let v = self.peek(1); self.push(v); }",
	"ROT":    "{ let c = self.pop(); let b = self.pop(); let a = self.pop(); self.push(b); self.push(c); self.push(a); }",
	"+":      rustBinary("a.wrapping_add(b)"),
	"-":      rustBinary("a.wrapping_sub(b)"),
	"*":      rustBinary("a.wrapping_mul(b)"),
	"/":      rustBinary("self.div(a, b)"),
	"MOD":    rustBinary("self.rem(a, b)"),
	"NEGATE": "{ let a = self.pop(); self.push(a.wrapping_neg()); }",
	"=":      rustCompare("=="),
	"<>":     rustCompare("!="),
	"<":      rustCompare("<"),
	">":      rustCompare(">"),
	"<=":     rustCompare("<="),
	">=":     rustCompare(">="),
	"AND":    rustBinary("if a != 0 && b != 0 { -1 } else { 0 }"),
	"OR":     rustBinary("if a != 0 || b != 0 { -1 } else { 0 }"),
	"NOT":    "{ let a = self.pop(); self.push(if a == 0 { -1 } else { 0 }); }",
	".":      `{ let v = self.pop(); print!("{} ", v); }`,
	".S":     "self.dot_s();",
	"EMIT":   "{ let c = self.pop(); self.emit(c); }",
	"KEY":    "{ let c = self.read_key(); self.push(c); }",
	"CR":     "println!();",
	"SPACE":  `print!(" ");`,
	"BL":     "self.push(32);",
	"TYPE":   "self.type_str();",
	"I":      "{ let v = self.loop_index(0); self.push(v); }",
	"J":      "{ let v = self.loop_index(1); self.push(v); }",
	"EXIT":   "return;",
}

func rustControl() map[string]template.Template {
	open := func(s string) template.Template {
		return template.Template{template.NewLine{}, lit(s), template.Indent{}}
	}
	closeWith := func(last string) template.Template {
		t := template.Template{}
		if last != "" {
			t = append(t, template.NewLine{}, lit(last))
		}
		return append(t, template.Dedent{}, template.NewLine{}, lit("}"))
	}
	return map[string]template.Template{
		"IF":     open("if self.pop() != 0 {"),
		"ELSE":   {template.Dedent{}, template.NewLine{}, lit("} else {"), template.Indent{}},
		"THEN":   closeWith(""),
		"DO":     append(line(lit("self.do_enter();")), open("loop {")...),
		"?DO":    append(line(lit("self.do_enter();")), open("while self.loop_live() {")...),
		"LOOP":   closeWith("if !self.loop_next() { break; }"),
		"BEGIN":  open("loop {"),
		"UNTIL":  closeWith("if self.pop() != 0 { break; }"),
		"AGAIN":  closeWith(""),
		"WHILE":  line(lit("if self.pop() == 0 { break; }")),
		"REPEAT": closeWith(""),
	}
}

// NewRust returns the Rust pattern backend.
func NewRust() *Backend {
	l := &lang{
		builtins: rustBuiltins,
		control:  rustControl(),
		push: func(v template.Part) []template.Part {
			return []template.Part{lit("self.push("), v, lit(");")}
		},
		addConst:   "{ let a = self.pop(); self.push(a.wrapping_add(%s)); }",
		subConst:   "{ let a = self.pop(); self.push(a.wrapping_sub(%s)); }",
		mulConst:   "{ let a = self.pop(); self.push(a.wrapping_mul(%s)); }",
		printConst: []template.Part{lit(`print!("{} ", `), ref("n"), lit(" as i64);")},
		square:     "{ let a = self.pop(); self.push(a.wrapping_mul(a)); }",
		typeLiteral: func(v template.Part) []template.Part {
			return []template.Part{lit("io::stdout().write_all("), v, lit(").ok();")}
		},
		pushString: func(v template.Part) []template.Part {
			return []template.Part{lit("self.push_str("), v, lit(");")}
		},
		call: func(v template.Part) []template.Part {
			return []template.Part{lit("self."), v, lit("();")}
		},
		definition: template.Template{
			template.NewLine{}, template.NewLine{},
			lit("fn "), ref(rules.LabelName), lit("(&mut self) {"),
			template.Indent{}, ref(rules.LabelBody), template.Dedent{},
			template.NewLine{}, lit("}"),
		},
	}

	frame := template.Template{
		lit(RustRuntime),
		template.Indent{},
		ref(rules.LabelDefinitions),
		template.NewLine{}, template.NewLine{},
		lit("fn run(&mut self) {"), template.Indent{},
		ref(rules.LabelMain),
		template.Dedent{}, template.NewLine{}, lit("}"),
		template.Dedent{}, template.NewLine{}, lit("}"),
		template.NewLine{}, template.NewLine{},
		lit("fn main() {"), template.Indent{},
		template.NewLine{}, lit("let mut forth = Forth::new();"),
		template.NewLine{}, lit("forth.run();"),
		template.NewLine{}, lit("io::stdout().flush().ok();"),
		template.Dedent{}, template.NewLine{}, lit("}"), template.NewLine{},
	}

	return &Backend{
		name:      "rust-pattern",
		extension: ".rs",
		run: func(file string) string {
			return fmt.Sprintf("rustc -O %s -o %s && ./%s", file, baseName(file), baseName(file))
		},
		gen: &rules.Generator{
			Table:     buildTable(l),
			Formatter: RustFormatter{},
			Indent:    "    ",
			Frame:     frame,
		},
	}
}
