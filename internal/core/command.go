package core

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind discriminates the parts a command word is built from.
type TokenKind int

const (
	TokenLiteral TokenKind = iota
	TokenDepend
	TokenTarget
	TokenArg
	TokenAllDepends
)

// Token is a literal piece of text or a reference into a task's declared
// dependencies, targets or positional arguments.
type Token struct {
	Kind  TokenKind
	Index int
	Text  string
}

// Lit returns a literal token.
func Lit(s string) Token { return Token{Kind: TokenLiteral, Text: s} }

// Depend refers to the i-th declared dependency.
func Depend(i int) Token { return Token{Kind: TokenDepend, Index: i} }

// Target refers to the i-th declared target.
func Target(i int) Token { return Token{Kind: TokenTarget, Index: i} }

// Arg refers to the i-th positional argument.
func Arg(i int) Token { return Token{Kind: TokenArg, Index: i} }

// AllDepends expands to every declared dependency, one argv word each.
// It is only valid as a word of its own.
func AllDepends() Token { return Token{Kind: TokenAllDepends} }

// placeholder renders the token in the legacy template syntax.
func (t Token) placeholder() string {
	switch t.Kind {
	case TokenDepend:
		return "[depends[" + strconv.Itoa(t.Index) + "]]"
	case TokenTarget:
		return "[targets[" + strconv.Itoa(t.Index) + "]]"
	case TokenArg:
		return "[args[" + strconv.Itoa(t.Index) + "]]"
	case TokenAllDepends:
		return "[depends]"
	default:
		return t.Text
	}
}

// Word is one argv element, the concatenation of its tokens.
type Word []Token

// Command is a typed command description: the program, its argv words and
// an optional redirection of standard output into one of the task targets.
//
// The zero value is not usable; build one with NewCommand.
type Command struct {
	Program string
	Words   []Word

	// Stdout, when non-nil, names the target (Kind TokenTarget) that receives
	// the program's standard output.
	Stdout *Token
}

// NewCommand starts a command for the given program.
func NewCommand(program string) *Command {
	return &Command{Program: program}
}

// Lit appends literal words.
func (c *Command) Lit(words ...string) *Command {
	for _, w := range words {
		c.Words = append(c.Words, Word{Lit(w)})
	}
	return c
}

// Ref appends a word made of a single reference.
func (c *Command) Ref(t Token) *Command {
	c.Words = append(c.Words, Word{t})
	return c
}

// Pair appends a flag followed by its value as two words ("--input X").
func (c *Command) Pair(flag string, t Token) *Command {
	c.Words = append(c.Words, Word{Lit(flag)}, Word{t})
	return c
}

// Join appends a single word made of prefix and value ("--input_dir=X").
func (c *Command) Join(prefix string, t Token) *Command {
	c.Words = append(c.Words, Word{Lit(prefix), t})
	return c
}

// StdoutTo redirects standard output into the i-th target.
func (c *Command) StdoutTo(i int) *Command {
	tok := Target(i)
	c.Stdout = &tok
	return c
}

// Template renders the command in the bioBakery task placeholder syntax, e.g. "FastTree -gtr -nt [depends[0]] > [targets[0]]".
func (c *Command) Template() string {
	parts := make([]string, 0, len(c.Words)+3)
	parts = append(parts, c.Program)
	for _, w := range c.Words {
		var b strings.Builder
		for _, t := range w {
			b.WriteString(t.placeholder())
		}
		parts = append(parts, b.String())
	}
	if c.Stdout != nil {
		parts = append(parts, ">", c.Stdout.placeholder())
	}
	return strings.Join(parts, " ")
}

// validate checks every reference against the declared list sizes.
func (c *Command) validate(nDepends, nTargets, nArgs int) error {
	if c == nil {
		return fmt.Errorf("command is nil")
	}
	if strings.TrimSpace(c.Program) == "" {
		return fmt.Errorf("command program is required")
	}
	for wi, w := range c.Words {
		if len(w) == 0 {
			return fmt.Errorf("word %d is empty", wi)
		}
		for _, t := range w {
			switch t.Kind {
			case TokenLiteral:
			case TokenDepend:
				if t.Index < 0 || t.Index >= nDepends {
					return fmt.Errorf("word %d: %s out of range (%d depends)", wi, t.placeholder(), nDepends)
				}
			case TokenTarget:
				if t.Index < 0 || t.Index >= nTargets {
					return fmt.Errorf("word %d: %s out of range (%d targets)", wi, t.placeholder(), nTargets)
				}
			case TokenArg:
				if t.Index < 0 || t.Index >= nArgs {
					return fmt.Errorf("word %d: %s out of range (%d args)", wi, t.placeholder(), nArgs)
				}
			case TokenAllDepends:
				if len(w) != 1 {
					return fmt.Errorf("word %d: [depends] must be a word of its own", wi)
				}
				if nDepends == 0 {
					return fmt.Errorf("word %d: [depends] with no depends", wi)
				}
			default:
				return fmt.Errorf("word %d: unknown token kind %d", wi, t.Kind)
			}
		}
	}
	if c.Stdout != nil {
		if c.Stdout.Kind != TokenTarget {
			return fmt.Errorf("stdout must redirect into a target")
		}
		if c.Stdout.Index < 0 || c.Stdout.Index >= nTargets {
			return fmt.Errorf("stdout %s out of range (%d targets)", c.Stdout.placeholder(), nTargets)
		}
	}
	return nil
}
