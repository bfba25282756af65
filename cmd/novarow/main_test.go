package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tuannm99/novarow/internal/alias/bx"
	"github.com/tuannm99/novarow/internal/catalog"
	"github.com/tuannm99/novarow/internal/codec"
)

const testCatalog = `
schemas:
  person:
    fields:
      - {name: age, type: int32}
      - {name: name, type: string}
      - {name: nickname, type: string, nullable: true}
  order:
    fields:
      - {name: id, type: int64}
      - {name: total, type: decimal, precision: 10, scale: 2}
      - {name: placed, type: timestamp}
      - {name: due, type: date, nullable: true}
      - {name: blob, type: binary, nullable: true}
      - name: qty
        type: map
        key: {type: int32}
        value: {type: int16}
      - name: lines
        type: list
        elem:
          type: struct
          fields:
            - {name: sku, type: string}
            - {name: price, type: float64}
`

const aliceHex = "0400000000000000" + "1e00000000000000" + "0500000020000000" + "0000000000000000" + "416c696365000000"

func testSession(t *testing.T, opts ...codec.Option) *session {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)
	return newSession(cat, codec.NewRegistry(opts...))
}

func TestSession_EncodePerson(t *testing.T) {
	s := testSession(t)

	data, err := s.Encode("person", []byte(`{"age": 30, "name": "Alice"}`))
	require.NoError(t, err)
	require.Equal(t, aliceHex, formatData(formatHex, data))

	// positional form
	same, err := s.Encode("person", []byte(`[30, "Alice", null]`))
	require.NoError(t, err)
	require.Equal(t, data, same)

	_, err = s.Encode("person", []byte(`{"age": 30, "name": "Alice", "email": "a@b"}`))
	require.Error(t, err)
	_, err = s.Encode("person", []byte(`{"age": 30} {}`))
	require.Error(t, err)
	_, err = s.Encode("nobody", []byte(`{}`))
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestSession_OrderRoundTrip(t *testing.T) {
	s := testSession(t)
	doc := `{"id": 7, "total": "12.5", "placed": "2024-01-02T03:04:05.000006Z", "due": null,
		"blob": "AAEC", "qty": {"3": 2, "1": 5}, "lines": [{"sku": "a", "price": 1.5}]}`

	data, err := s.Encode("order", []byte(doc))
	require.NoError(t, err)

	l, values, err := s.Decode("order", data)
	require.NoError(t, err)
	out, err := rowToJSON(l.Schema(), values).MarshalJSON()
	require.NoError(t, err)
	require.JSONEq(t,
		`{"id":7,"total":12.50,"placed":"2024-01-02T03:04:05.000006Z","due":null,"blob":"AAEC","qty":{"1":5,"3":2},"lines":[{"sku":"a","price":1.5}]}`,
		string(out))
	require.True(t, strings.HasPrefix(string(out), `{"id":7,"total":12.50,`))
}

func TestSession_FramedCompressed(t *testing.T) {
	s := testSession(t, codec.WithSchemaHash(), codec.WithCompressedInts())
	data, err := s.Encode("person", []byte(`{"age": 30, "name": "Alice", "nickname": "Al"}`))
	require.NoError(t, err)

	l, err := s.layout("person")
	require.NoError(t, err)
	require.Equal(t, codec.SchemaHash(l.Schema(), true), bx.I64(data))

	_, values, err := s.Decode("person", data)
	require.NoError(t, err)
	require.Equal(t, []any{int32(30), "Alice", "Al"}, values)

	plain := testSession(t, codec.WithSchemaHash())
	_, _, err = plain.Decode("person", data)
	require.ErrorIs(t, err, codec.ErrVersionMismatch)
	_, _, err = plain.Decode("person", data[:3])
	require.ErrorIs(t, err, codec.ErrBounds)
}

func TestInspect(t *testing.T) {
	s := testSession(t)
	data, err := parseData(formatHex, aliceHex)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, s.inspect(&out, "person", data))
	text := out.String()
	require.Contains(t, text, "fixed      32 bytes, 0 packed ints")
	require.Contains(t, text, "size       40 bytes")
	require.Contains(t, text, "@32 len 5")
	require.Contains(t, text, `"Alice"`)
	require.Contains(t, text, "NULL")

	out.Reset()
	require.NoError(t, s.inspect(&out, "person", nil))
	require.NotContains(t, out.String(), "value")
}

func TestShell(t *testing.T) {
	var out bytes.Buffer
	sh := &shell{s: testSession(t), format: formatHex, out: &out, hist: NewHistory("")}

	require.Error(t, sh.exec(`encode {"age": 1, "name": "x"}`))
	_, err := sh.meta(`\use nobody`)
	require.ErrorIs(t, err, catalog.ErrNotFound)

	quit, err := sh.meta(`\use person`)
	require.NoError(t, err)
	require.False(t, quit)
	require.Equal(t, "novarow(person)> ", sh.prompt())

	require.NoError(t, sh.exec(`encode {"age": 30, "name": "Alice"}`))
	require.Equal(t, aliceHex+"\n", out.String())

	out.Reset()
	require.NoError(t, sh.exec("decode "+aliceHex))
	require.Contains(t, out.String(), "age | name    | nickname")
	require.Contains(t, out.String(), `30  | "Alice" | NULL`)
	require.Contains(t, out.String(), "(1 row)")

	require.Error(t, sh.exec("frobnicate"))
	_, err = sh.meta(`\nope`)
	require.Error(t, err)

	quit, err = sh.meta("exit")
	require.NoError(t, err)
	require.True(t, quit)
}

func TestDocumentComplete(t *testing.T) {
	cases := map[string]bool{
		``:                     true,
		`{"a": 1}`:             true,
		`{"a": [1, 2`:          false,
		`{"a": "}"`:            false,
		`{"a": "\"}"}`:         true,
		`[{"a": {}}, {"b": 2}`: false,
		`[]`:                   true,
	}
	for in, want := range cases {
		require.Equal(t, want, documentComplete(in), in)
	}
}

func TestHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "history")
	h := NewHistory(path)
	require.NoError(t, h.Load(10))
	require.NoError(t, h.Append("encode {\n  \"a\":   1\n}"))
	require.NoError(t, h.Append("  "))
	require.NoError(t, h.Append(`\use person`))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "encode { \"a\": 1 }\n\\use person\n", string(raw))

	again := NewHistory(path)
	require.NoError(t, again.Load(1))
	require.Equal(t, []string{`\use person`}, again.lines)

	var out bytes.Buffer
	h.Print(&out, 1)
	require.Equal(t, "    2  \\use person\n", out.String())
}

func TestRootCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o600))

	run := func(args ...string) string {
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--catalog", path}, args...))
		require.NoError(t, rootCmd.Execute())
		return strings.TrimSpace(out.String())
	}

	require.Equal(t, aliceHex, run("encode", "person", `{"age": 30, "name": "Alice"}`))
	require.Equal(t, `{"age":30,"name":"Alice","nickname":null}`, run("decode", "person", aliceHex))
	require.Contains(t, run("schemas"), "person")
	require.NotEmpty(t, run("hash", "order"))
}
