package form

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// schemaFields はstruct型tのformタグ名からフィールド位置への対応を返す。
// formタグを持つフィールドはstring型でなければならない。
func schemaFields(t reflect.Type) (map[string]int, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("form schema must be a struct, got %s", t.Kind())
	}

	out := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		name := strings.SplitN(sf.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			continue
		}
		if sf.Type.Kind() != reflect.String {
			return nil, fmt.Errorf("form field %q must be a string, got %s", name, sf.Type.Kind())
		}
		out[name] = i
	}
	return out, nil
}

// decoder は送信値を種類ごとに正規化して検証スキーマへ書き込む。
type decoder struct {
	values map[string]string
	target reflect.Value
	index  map[string]int
}

func (d *decoder) set(name, value string) {
	d.target.Field(d.index[name]).SetString(value)
}

func (d *decoder) raw(name string) (string, bool) {
	v, ok := d.values[name]
	return v, ok
}

func (d *decoder) VisitText(f Field, k Text) {
	if v, ok := d.raw(f.Name); ok {
		if k.Secret {
			d.set(f.Name, v)
			return
		}
		d.set(f.Name, strings.TrimSpace(v))
	}
}

func (d *decoder) VisitEmail(f Field, _ Email) {
	if v, ok := d.raw(f.Name); ok {
		d.set(f.Name, strings.ToLower(strings.TrimSpace(v)))
	}
}

func (d *decoder) VisitSelect(f Field, _ Select) {
	if v, ok := d.raw(f.Name); ok {
		d.set(f.Name, strings.TrimSpace(v))
	}
}

func (d *decoder) VisitColor(f Field, _ Color) {
	if v, ok := d.raw(f.Name); ok {
		d.set(f.Name, strings.TrimSpace(v))
	}
}

func (d *decoder) VisitDate(f Field, _ Date) {
	v, ok := d.raw(f.Name)
	if !ok {
		return
	}
	v = strings.TrimSpace(v)
	// datetime-local やRFC3339で届いた場合は日付部分だけを使う
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		v = t.Format(time.DateOnly)
	} else if len(v) > len(time.DateOnly) && v[len(time.DateOnly)] == 'T' {
		v = v[:len(time.DateOnly)]
	}
	d.set(f.Name, v)
}

// VisitImage は画像URLを送信値から受け取らない。既定値（編集中の現在の画像）を維持する。
func (d *decoder) VisitImage(Field, Image) {}

// encode は検証スキーマの値をフォームの値に変換する。
func encode(v reflect.Value, index map[string]int) map[string]string {
	out := make(map[string]string, len(index))
	for name, i := range index {
		out[name] = v.Field(i).String()
	}
	return out
}
