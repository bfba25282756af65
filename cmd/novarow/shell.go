package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/tuannm99/novarow/internal/row"
)

var (
	histPath string
	histMax  int
	useName  string

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell for encoding and decoding rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runShell(cmd.OutOrStdout())
		},
	}
)

func init() {
	shellCmd.Flags().StringVar(&histPath, "history", defaultHistoryPath(), "history file path")
	shellCmd.Flags().IntVar(&histMax, "history-max", 2000, "max history lines loaded into memory")
	shellCmd.Flags().StringVar(&useName, "use", "", "schema to start with")
}

const shellHelp = `meta commands:
  \q | quit | exit       quit
  \use SCHEMA            switch schema
  \schemas               list schemas
  \schema                print the current schema
  \history               print history
  \help                  show help

rows:
  encode JSON            encode an object or array; may span lines
  decode DATA            decode hex/base64 and print the fields
  inspect [DATA]         show where each value lives`

// shell runs commands against one schema at a time.
type shell struct {
	s      *session
	schema string
	format string
	out    io.Writer
	hist   *History
}

func (sh *shell) prompt() string {
	if sh.schema == "" {
		return "novarow> "
	}
	return "novarow(" + sh.schema + ")> "
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, `\`) || line == "quit" || line == "exit"
}

// meta runs a meta command and reports whether the shell should quit.
func (sh *shell) meta(line string) (bool, error) {
	verb, arg := splitVerb(line)
	switch verb {
	case `\q`, "quit", "exit":
		return true, nil
	case `\help`:
		fmt.Fprintln(sh.out, shellHelp)
	case `\history`:
		sh.hist.Print(sh.out, 50)
	case `\schemas`:
		for _, n := range sh.s.catalog.Names() {
			fmt.Fprintln(sh.out, n)
		}
	case `\schema`:
		l, err := sh.current()
		if err != nil {
			return false, err
		}
		fmt.Fprintln(sh.out, l.Schema().String())
	case `\use`:
		if _, err := sh.s.layout(arg); err != nil {
			return false, err
		}
		sh.schema = arg
	default:
		return false, fmt.Errorf("unknown command: %s", line)
	}
	return false, nil
}

func (sh *shell) current() (*row.Layout, error) {
	if sh.schema == "" {
		return nil, errors.New(`no schema selected, use \use SCHEMA`)
	}
	return sh.s.layout(sh.schema)
}

// exec runs one complete row command.
func (sh *shell) exec(line string) error {
	if _, err := sh.current(); err != nil {
		return err
	}
	verb, arg := splitVerb(line)
	switch verb {
	case "encode":
		data, err := sh.s.Encode(sh.schema, []byte(arg))
		if err != nil {
			return err
		}
		fmt.Fprintln(sh.out, formatData(sh.format, data))
	case "decode":
		data, err := parseData(sh.format, arg)
		if err != nil {
			return err
		}
		l, values, err := sh.s.Decode(sh.schema, data)
		if err != nil {
			return err
		}
		printRow(sh.out, l.Schema(), values)
	case "inspect":
		var data []byte
		if arg != "" {
			var err error
			if data, err = parseData(sh.format, arg); err != nil {
				return err
			}
		}
		return sh.s.inspect(sh.out, sh.schema, data)
	default:
		return fmt.Errorf("unknown command %q, try \\help", verb)
	}
	return nil
}

// printRow prints one decoded row as a table, one column per field.
func printRow(w io.Writer, s row.Schema, values []any) {
	cols := make([]string, len(s.Fields))
	out := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		cols[i] = f.Name
		out[i] = display(f.Type, values[i])
	}
	printTable(w, cols, [][]string{out})
	fmt.Fprintln(w, "(1 row)")
}

func splitVerb(line string) (string, string) {
	line = strings.TrimSpace(line)
	verb, arg, _ := strings.Cut(line, " ")
	return verb, strings.TrimSpace(arg)
}

// documentComplete reports whether buf holds a JSON document whose
// brackets are balanced outside of strings.
func documentComplete(buf string) bool {
	depth := 0
	inString, escaped, seen := false, false, false
	for _, r := range buf {
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && r == '\\':
			escaped = true
		case r == '"':
			inString = !inString
		case inString:
		case r == '{' || r == '[':
			depth++
			seen = true
		case r == '}' || r == ']':
			depth--
		}
	}
	return !seen || (depth <= 0 && !inString)
}

func runShell(out io.Writer) error {
	h := NewHistory(histPath)
	_ = h.Load(histMax)

	sh := &shell{s: app, format: dataFormat, out: out, hist: h}
	if useName != "" {
		if _, err := sh.meta(`\use ` + useName); err != nil {
			return err
		}
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          sh.prompt(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          out,
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	var buf strings.Builder
	fmt.Fprintln(out, `type \help for help`)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			// Ctrl+C drops a partial document
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt(sh.prompt())
				continue
			}
			fmt.Fprintln(out, "^C")
			continue
		}
		if err != nil {
			fmt.Fprintln(out)
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buf.Len() == 0 && isMetaCommand(line) {
			quit, err := sh.meta(line)
			if err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
			if quit {
				return nil
			}
			rl.SetPrompt(sh.prompt())
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if verb, arg := splitVerb(buf.String()); verb == "encode" && !documentComplete(arg) {
			rl.SetPrompt("...> ")
			continue
		}

		cmd := buf.String()
		buf.Reset()
		rl.SetPrompt(sh.prompt())

		_ = h.Append(cmd)
		_ = rl.SaveHistory(compactOneLine(cmd))

		if err := sh.exec(cmd); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
