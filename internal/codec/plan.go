package codec

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/tuannm99/novarow/internal/row"
)

const tagName = "row"

// structPlan is the compiled form of a struct type: its schema, its
// layout, and ordered write and read steps over its fields.
type structPlan struct {
	typ    reflect.Type
	schema row.Schema
	layout *row.Layout
	fields []fieldPlan

	writes []func(w *row.RowWriter, v reflect.Value) error
	reads  []func(r *row.Row, v reflect.Value) error
}

type fieldPlan struct {
	name  string
	index int // reflect field index
	codec *valueCodec
}

func (r *Registry) planStruct(t reflect.Type) (*structPlan, error) {
	p := &structPlan{typ: t}
	seen := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, skip := fieldName(sf)
		if skip {
			continue
		}
		if prev, dup := seen[name]; dup {
			return nil, &SpecializationError{Type: t, Field: sf.Name, Reason: fmt.Sprintf("row name %q already used by %s", name, prev)}
		}
		seen[name] = sf.Name

		vc, err := r.valueFor(sf.Type)
		if err != nil {
			return nil, within(err, t, sf.Name)
		}
		p.fields = append(p.fields, fieldPlan{name: name, index: i, codec: vc})
		p.schema.Fields = append(p.schema.Fields, row.Field{Name: name, Type: vc.dt, Nullable: vc.nullable})
	}
	p.layout = row.NewLayout(p.schema, r.compressed)
	p.compile()
	return p, nil
}

// fieldName returns the row name of sf: the row tag, or the field name in
// snake_case. A "-" tag skips the field.
func fieldName(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get(tagName)
	if tag == "-" {
		return "", true
	}
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name, false
	}
	return snakeCase(sf.Name), false
}

func snakeCase(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, c := range rs {
		if unicode.IsUpper(c) {
			if i > 0 && (unicode.IsLower(rs[i-1]) || unicode.IsDigit(rs[i-1]) ||
				(i+1 < len(rs) && unicode.IsLower(rs[i+1]) && unicode.IsUpper(rs[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(c))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func hasExportedFields(t reflect.Type) bool {
	return anyField(t, func(reflect.Type) bool { return true })
}

// compile turns the field list into steps. Packed ints go first so they
// are pending before the first variable-length write flushes them. Runs of
// adjacent non-null primitive slots are read and written as one slice.
func (p *structPlan) compile() {
	var rest []int
	for i := range p.fields {
		if p.layout.IsPacked(i) {
			p.addField(i)
		} else {
			rest = append(rest, i)
		}
	}
	for k := 0; k < len(rest); {
		n := 1
		for k+n < len(rest) && rest[k+n] == rest[k]+n && p.groupable(rest[k]) && p.groupable(rest[k+n]) {
			n++
		}
		if n > 1 && p.layout.Contiguous(rest[k], n) {
			p.addGroup(rest[k], n)
		} else {
			n = 1
			p.addField(rest[k])
		}
		k += n
	}
}

func (p *structPlan) groupable(i int) bool {
	c := p.fields[i].codec
	return c.slot != nil && !c.nullable
}

func (p *structPlan) addField(i int) {
	f := p.fields[i]
	p.writes = append(p.writes, func(w *row.RowWriter, v reflect.Value) error {
		if err := f.codec.write(w, i, v.Field(f.index)); err != nil {
			return fmt.Errorf("field %q: %w", f.name, err)
		}
		return nil
	})
	p.reads = append(p.reads, func(r *row.Row, v reflect.Value) error {
		if err := f.codec.read(r, i, v.Field(f.index)); err != nil {
			return fmt.Errorf("field %q: %w", f.name, err)
		}
		return nil
	})
}

func (p *structPlan) addGroup(first, n int) {
	run := p.fields[first : first+n]
	p.writes = append(p.writes, func(w *row.RowWriter, v reflect.Value) error {
		dst := w.FixedSlots(first, n)
		clear(dst)
		for k, f := range run {
			f.codec.slot.put(dst[8*k:], v.Field(f.index))
		}
		return nil
	})
	p.reads = append(p.reads, func(r *row.Row, v reflect.Value) error {
		src := r.FixedSlots(first, n)
		for k, f := range run {
			f.codec.slot.get(src[8*k:], v.Field(f.index))
		}
		return nil
	})
}

func (p *structPlan) writeFields(w *row.RowWriter, v reflect.Value) error {
	for _, step := range p.writes {
		if err := step(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *structPlan) readFields(r *row.Row, v reflect.Value) error {
	for _, step := range p.reads {
		if err := step(r, v); err != nil {
			return err
		}
	}
	return nil
}

// compileStruct builds the row codec of a struct type. Nested structs
// reach it through lookup so their plans are memoized too.
func (r *Registry) compileStruct(t reflect.Type) (*valueCodec, error) {
	p, err := r.planStruct(t)
	if err != nil {
		return nil, err
	}
	return &valueCodec{
		typ:  t,
		dt:   row.StructOf(p.schema.Fields...),
		plan: p,
		write: func(w row.Writer, i int, v reflect.Value) error {
			cw := row.NewRowWriterWithLayout(p.layout, w)
			cw.Reset()
			if err := p.writeFields(cw, v); err != nil {
				return err
			}
			cw.Finish()
			w.SetOffsetAndSize(i, cw.StartIndex(), cw.Size())
			return nil
		},
		read: func(r reader, i int, v reflect.Value) error {
			child, err := r.GetStruct(i)
			if err != nil {
				return err
			}
			return p.readFields(child, v)
		},
	}, nil
}
