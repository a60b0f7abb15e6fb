package chirtext

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/fatih/color"

	"chir/internal/chir"
)

var parser = participle.MustBuild[File](
	participle.Lexer(textLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.UseLookahead(3),
)

// Parse builds a package from textual CHIR source. The name labels error
// positions, usually a file path.
func Parse(name, source string) (*chir.Package, error) {
	file, err := parser.ParseString(name, source)
	if err != nil {
		return nil, err
	}
	return assemble(file)
}

// ParseFile parses a textual CHIR file, printing a caret-style report when
// the source does not parse.
func ParseFile(path string) (*chir.Package, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	pkg, err := Parse(path, string(source))
	if err != nil {
		reportParseError(string(source), err)
		return nil, err
	}
	return pkg, nil
}

// reportParseError prints a friendly caret-style parse error message.
func reportParseError(src string, err error) {
	pe, ok := err.(participle.Error)
	if !ok {
		color.Red("Error: %s", err)
		return
	}

	pos := pe.Position()
	lines := strings.Split(src, "\n")
	if pos.Line <= 0 || pos.Line > len(lines) {
		color.Red("Syntax error at unknown location: %s", err)
		return
	}

	line := lines[pos.Line-1]
	caret := strings.Repeat(" ", pos.Column-1) + "^"

	color.Red("Syntax error in %s at line %d, column %d:", pos.Filename, pos.Line, pos.Column)
	fmt.Println(line)
	color.HiRed(caret)
	fmt.Printf("-> %s\n", pe.Message())
}
