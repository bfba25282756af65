package main

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode"
)

const (
	formatHex    = "hex"
	formatBase64 = "base64"
)

func checkFormat(f string) error {
	switch f {
	case formatHex, formatBase64:
		return nil
	}
	return fmt.Errorf("unknown format %q, want hex or base64", f)
}

func formatData(f string, b []byte) string {
	if f == formatBase64 {
		return base64.StdEncoding.EncodeToString(b)
	}
	return hex.EncodeToString(b)
}

// parseData accepts whitespace anywhere, so hex dumps can be pasted.
func parseData(f, s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if f == formatBase64 {
		return base64.StdEncoding.DecodeString(s)
	}
	return hex.DecodeString(s)
}

// argOrStdin returns args[i], or all of in when the argument is missing
// or "-".
func argOrStdin(args []string, i int, in io.Reader) ([]byte, error) {
	if len(args) > i && args[i] != "-" {
		return []byte(args[i]), nil
	}
	b, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return b, nil
}

// ---- tables ----

func printTable(w io.Writer, cols []string, rows [][]string) {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, r := range rows {
		for i := range cols {
			if i < len(r) && len(r[i]) > widths[i] {
				widths[i] = len(r[i])
			}
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			v := ""
			if i < len(values) {
				v = values[i]
			}
			if i == len(cols)-1 {
				fmt.Fprint(w, v)
			} else {
				fmt.Fprint(w, padRight(v, widths[i]))
			}
		}
		fmt.Fprintln(w)
	}

	printRow(cols)
	for i := range cols {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", widths[i]))
	}
	fmt.Fprintln(w)
	for _, r := range rows {
		printRow(r)
	}
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}
