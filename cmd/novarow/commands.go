package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tuannm99/novarow/internal/memory"
	"github.com/tuannm99/novarow/internal/row"
)

var (
	encodeCmd = &cobra.Command{
		Use:   "encode SCHEMA [JSON|-]",
		Short: "Encode a JSON object or array as a row",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := argOrStdin(args, 1, cmd.InOrStdin())
			if err != nil {
				return err
			}
			data, err := app.Encode(args[0], doc)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatData(dataFormat, data))
			return nil
		},
	}

	decodeCmd = &cobra.Command{
		Use:   "decode SCHEMA [DATA|-]",
		Short: "Decode a row and print it as JSON",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readData(cmd, args)
			if err != nil {
				return err
			}
			l, values, err := app.Decode(args[0], data)
			if err != nil {
				return err
			}
			out, err := json.Marshal(rowToJSON(l.Schema(), values))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	inspectCmd = &cobra.Command{
		Use:   "inspect SCHEMA [DATA|-]",
		Short: "Show the layout of a schema, and where each value of a row lives",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			if len(args) > 1 {
				var err error
				if data, err = readData(cmd, args); err != nil {
					return err
				}
			}
			return app.inspect(cmd.OutOrStdout(), args[0], data)
		},
	}

	schemasCmd = &cobra.Command{
		Use:   "schemas",
		Short: "List the schemas in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rows := make([][]string, 0, len(app.catalog.Schemas))
			for _, name := range app.catalog.Names() {
				l, err := app.layout(name)
				if err != nil {
					return err
				}
				rows = append(rows, []string{name, strconv.Itoa(l.Schema().NumFields()), strconv.FormatInt(app.hash(l), 10), l.Schema().String()})
			}
			printTable(cmd.OutOrStdout(), []string{"name", "fields", "hash", "schema"}, rows)
			return nil
		},
	}

	hashCmd = &cobra.Command{
		Use:   "hash SCHEMA",
		Short: "Print the schema hash written ahead of rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := app.layout(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.hash(l))
			return nil
		},
	}
)

func readData(cmd *cobra.Command, args []string) ([]byte, error) {
	text, err := argOrStdin(args, 1, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	return parseData(dataFormat, string(text))
}

// inspect prints the layout of schema name and, given data, each field's
// value and location in it.
func (s *session) inspect(w io.Writer, name string, data []byte) error {
	l, err := s.layout(name)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "schema     %s\n", name)
	fmt.Fprintf(w, "hash       %d\n", s.hash(l))
	fmt.Fprintf(w, "fixed      %d bytes, %d packed ints\n", l.FixedSize(), l.NumPacked())

	var (
		view   *row.Row
		values []any
	)
	if data != nil {
		body, err := s.unframe(l, data)
		if err != nil {
			return err
		}
		view = row.NewRowWithLayout(l)
		if err := view.PointTo(memory.Wrap(body), 0, len(body)); err != nil {
			return err
		}
		if values, err = view.Values(); err != nil {
			return err
		}
		fmt.Fprintf(w, "size       %d bytes\n", len(data))
	}
	fmt.Fprintln(w)

	cols := []string{"#", "name", "type", "slot"}
	if view != nil {
		cols = append(cols, "data", "value")
	}
	rows := make([][]string, 0, l.Schema().NumFields())
	for i, f := range l.Schema().Fields {
		typ := f.Type.String()
		if f.Nullable {
			typ += " null"
		}
		slot := fmt.Sprintf("+%d", l.SlotOffset(i))
		if l.IsPacked(i) {
			slot = "packed"
		}
		r := []string{strconv.Itoa(i), f.Name, typ, slot}
		if view != nil {
			r = append(r, location(view, l, i), display(f.Type, values[i]))
		}
		rows = append(rows, r)
	}
	printTable(w, cols, rows)
	return nil
}

// location describes where field i's value is stored.
func location(r *row.Row, l *row.Layout, i int) string {
	switch {
	case r.IsNullAt(i):
		return "null"
	case l.IsPacked(i):
		return "varint"
	case r.Schema().Fields[i].Type.FixedWidth():
		return "inline"
	}
	word := r.GetInt64(i)
	return fmt.Sprintf("@%d len %d", int32(word>>32), int32(word))
}

func display(t row.DataType, v any) string {
	if v == nil {
		return "NULL"
	}
	b, err := json.Marshal(toJSON(t, v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return strings.TrimSpace(string(b))
}
