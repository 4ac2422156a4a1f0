package httpcache

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"
)

// Undefined marks a parameter that is present but carries no value.
// It serializes differently from nil.
var Undefined = undefined{}

type undefined struct{}

var (
	undefinedType = reflect.TypeOf(undefined{})
	timeType      = reflect.TypeOf(time.Time{})
)

// SerializeParams renders params as a canonical string: map keys are sorted,
// slice order is kept, and values of different types never render the same.
// Values that contain themselves render as [Circular] at the point of recursion.
func SerializeParams(params any) string {
	s := &paramSerializer{visiting: make(map[visit]bool)}
	s.write(reflect.ValueOf(params))
	return s.b.String()
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

type paramSerializer struct {
	b        strings.Builder
	visiting map[visit]bool
}

func (s *paramSerializer) write(v reflect.Value) {
	if !v.IsValid() {
		s.b.WriteString("null")
		return
	}

	switch v.Type() {
	case undefinedType:
		s.b.WriteString("undefined")
		return
	case timeType:
		t := v.Interface().(time.Time)
		s.b.WriteString("date:" + t.UTC().Format(time.RFC3339Nano))
		return
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			s.b.WriteString("null")
			return
		}
		s.write(v.Elem())
	case reflect.Pointer:
		if v.IsNil() {
			s.b.WriteString("null")
			return
		}
		s.enter(v, func() { s.write(v.Elem()) })
	case reflect.String:
		s.b.WriteString(strconv.Quote(v.String()))
	case reflect.Bool:
		s.b.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s.b.WriteString(strconv.FormatInt(v.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		s.b.WriteString(strconv.FormatUint(v.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		s.b.WriteString(formatFloat(v.Float()))
	case reflect.Slice:
		if v.IsNil() {
			s.b.WriteString("null")
			return
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			s.b.WriteString(strconv.Quote(string(v.Bytes())))
			return
		}
		s.enter(v, func() { s.writeList(v) })
	case reflect.Array:
		s.writeList(v)
	case reflect.Map:
		if v.IsNil() {
			s.b.WriteString("null")
			return
		}
		s.enter(v, func() { s.writeMap(v) })
	case reflect.Struct:
		if !v.CanInterface() {
			s.b.WriteString(fmt.Sprintf("%v", v))
			return
		}
		s.write(reflect.ValueOf(structFields(v.Interface())))
	default:
		s.b.WriteString("<" + v.Type().String() + ">")
	}
}

// enter guards fn against values reachable from themselves
func (s *paramSerializer) enter(v reflect.Value, fn func()) {
	key := visit{ptr: v.Pointer(), typ: v.Type()}
	if s.visiting[key] {
		s.b.WriteString("[Circular]")
		return
	}
	s.visiting[key] = true
	fn()
	delete(s.visiting, key)
}

func (s *paramSerializer) writeList(v reflect.Value) {
	s.b.WriteByte('[')
	for i := 0; i < v.Len(); i++ {
		if i > 0 {
			s.b.WriteByte(',')
		}
		s.write(v.Index(i))
	}
	s.b.WriteByte(']')
}

// writeMap renders keys with their type, so 1 and "1" stay distinct, and
// orders pairs by rendered key then rendered value
func (s *paramSerializer) writeMap(v reflect.Value) {
	type pair struct {
		key   string
		value string
	}
	pairs := make([]pair, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, pair{key: s.render(iter.Key()), value: s.render(iter.Value())})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].key != pairs[j].key {
			return pairs[i].key < pairs[j].key
		}
		return pairs[i].value < pairs[j].value
	})

	s.b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			s.b.WriteByte(',')
		}
		s.b.WriteString(p.key)
		s.b.WriteByte(':')
		s.b.WriteString(p.value)
	}
	s.b.WriteByte('}')
}

// render serializes v on its own, sharing the cycle guard of s
func (s *paramSerializer) render(v reflect.Value) string {
	sub := &paramSerializer{visiting: s.visiting}
	sub.write(v)
	return sub.b.String()
}

// structFields maps exported field names (or their `structs` tag) to raw values,
// so that nested times and pointers keep their own rendering
func structFields(v any) map[string]any {
	fields := make(map[string]any)
	for _, f := range structs.New(v).Fields() {
		if !f.IsExported() {
			continue
		}
		name := f.Name()
		if tag, _, _ := strings.Cut(f.Tag("structs"), ","); tag == "-" {
			continue
		} else if tag != "" {
			name = tag
		}
		fields[name] = f.Value()
	}
	return fields
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
