package sandbox

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/dop251/goja"
)

// jsonDecoder builds VM values straight from JSON text. JSON.parse in goja goes through
// encoding/json, which replaces lone surrogate escapes with U+FFFD and rejects numbers
// beyond float64 range; this decoder keeps every UTF-16 unit and turns such numbers
// into Infinity like browser engines do.
type jsonDecoder struct {
	vm   *goja.Runtime
	data []byte
	pos  int
	// bare gives objects and arrays a null prototype so inherited toJSON hooks or
	// accessors installed by candidate code never apply to them.
	bare bool
}

func decodeJSONValue(vm *goja.Runtime, data []byte, bare bool) (goja.Value, error) {
	d := &jsonDecoder{vm: vm, data: data, bare: bare}
	value, err := d.value()
	if err != nil {
		return nil, err
	}
	d.skipSpace()
	if d.pos != len(d.data) {
		return nil, d.errorf("unexpected data after value")
	}
	return value, nil
}

func (d *jsonDecoder) errorf(format string, args ...any) error {
	return fmt.Errorf("decode json at offset %d: %s", d.pos, fmt.Sprintf(format, args...))
}

func (d *jsonDecoder) peek() byte {
	if d.pos >= len(d.data) {
		return 0
	}
	return d.data[d.pos]
}

func (d *jsonDecoder) skipSpace() {
	for d.pos < len(d.data) {
		switch d.data[d.pos] {
		case ' ', '\t', '\n', '\r':
			d.pos++
		default:
			return
		}
	}
}

func (d *jsonDecoder) value() (goja.Value, error) {
	d.skipSpace()
	switch c := d.peek(); {
	case c == '{':
		return d.object()
	case c == '[':
		return d.array()
	case c == '"':
		units, err := d.str()
		if err != nil {
			return nil, err
		}
		return goja.StringFromUTF16(units), nil
	case c == 't':
		return d.keyword("true", d.vm.ToValue(true))
	case c == 'f':
		return d.keyword("false", d.vm.ToValue(false))
	case c == 'n':
		return d.keyword("null", goja.Null())
	case c == '-' || (c >= '0' && c <= '9'):
		return d.number()
	case c == 0:
		return nil, d.errorf("unexpected end of input")
	default:
		return nil, d.errorf("unexpected character %q", c)
	}
}

func (d *jsonDecoder) keyword(word string, value goja.Value) (goja.Value, error) {
	if !bytes.HasPrefix(d.data[d.pos:], []byte(word)) {
		return nil, d.errorf("invalid literal")
	}
	d.pos += len(word)
	return value, nil
}

func (d *jsonDecoder) number() (goja.Value, error) {
	start := d.pos
	for d.pos < len(d.data) && isNumberByte(d.data[d.pos]) {
		d.pos++
	}
	text := string(d.data[start:d.pos])
	f, err := strconv.ParseFloat(text, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return nil, d.errorf("invalid number %q", text)
	}
	return d.vm.ToValue(f), nil
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.' || c == 'e' || c == 'E'
}

func (d *jsonDecoder) str() ([]uint16, error) {
	d.pos++
	units := make([]uint16, 0, 16)
	for {
		if d.pos >= len(d.data) {
			return nil, d.errorf("unterminated string")
		}
		c := d.data[d.pos]
		switch {
		case c == '"':
			d.pos++
			return units, nil
		case c == '\\':
			if d.pos+1 >= len(d.data) {
				return nil, d.errorf("unterminated string")
			}
			escape := d.data[d.pos+1]
			d.pos += 2
			switch escape {
			case '"', '\\', '/':
				units = append(units, uint16(escape))
			case 'b':
				units = append(units, '\b')
			case 'f':
				units = append(units, '\f')
			case 'n':
				units = append(units, '\n')
			case 'r':
				units = append(units, '\r')
			case 't':
				units = append(units, '\t')
			case 'u':
				if d.pos+4 > len(d.data) {
					return nil, d.errorf("short unicode escape")
				}
				code, err := strconv.ParseUint(string(d.data[d.pos:d.pos+4]), 16, 16)
				if err != nil {
					return nil, d.errorf("invalid unicode escape")
				}
				units = append(units, uint16(code))
				d.pos += 4
			default:
				return nil, d.errorf("invalid escape %q", escape)
			}
		case c < 0x20:
			return nil, d.errorf("control character in string")
		case c < utf8.RuneSelf:
			units = append(units, uint16(c))
			d.pos++
		default:
			r, size := utf8.DecodeRune(d.data[d.pos:])
			units = utf16.AppendRune(units, r)
			d.pos += size
		}
	}
}

func (d *jsonDecoder) object() (goja.Value, error) {
	d.pos++
	obj := d.vm.NewObject()
	if d.bare {
		obj = d.vm.CreateObject(nil)
	}

	d.skipSpace()
	if d.peek() == '}' {
		d.pos++
		return obj, nil
	}
	for {
		d.skipSpace()
		if d.peek() != '"' {
			return nil, d.errorf("expected object key")
		}
		key, err := d.str()
		if err != nil {
			return nil, err
		}
		d.skipSpace()
		if d.peek() != ':' {
			return nil, d.errorf("expected ':' after object key")
		}
		d.pos++
		value, err := d.value()
		if err != nil {
			return nil, err
		}
		// Defined rather than assigned so a "__proto__" key stays an own property.
		if err := obj.DefineDataProperty(string(utf16.Decode(key)), value, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			return nil, err
		}

		d.skipSpace()
		switch d.peek() {
		case ',':
			d.pos++
		case '}':
			d.pos++
			return obj, nil
		default:
			return nil, d.errorf("expected ',' or '}' in object")
		}
	}
}

func (d *jsonDecoder) array() (goja.Value, error) {
	d.pos++
	items := make([]any, 0, 8)

	d.skipSpace()
	if d.peek() != ']' {
		for {
			value, err := d.value()
			if err != nil {
				return nil, err
			}
			items = append(items, value)

			d.skipSpace()
			if d.peek() == ']' {
				break
			}
			if d.peek() != ',' {
				return nil, d.errorf("expected ',' or ']' in array")
			}
			d.pos++
		}
	}
	d.pos++

	arr := d.vm.NewArray(items...)
	if d.bare {
		if err := arr.SetPrototype(nil); err != nil {
			return nil, err
		}
	}
	return arr, nil
}
