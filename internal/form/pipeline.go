package form

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/hitoshi/babynest/internal/model"
	"github.com/hitoshi/babynest/internal/storage"
)

// ErrSubmitting は送信処理中に再度送信された場合のエラー。
var ErrSubmitting = errors.New("form is already submitting")

// Submission はフォーム送信1回分の入力。Imageは任意。
type Submission struct {
	Values map[string]string
	Image  *storage.Image
}

// CommitFunc は検証済みの値を永続化する。画像があれば保存してURLを反映する。
type CommitFunc[T any] func(ctx context.Context, payload T, image *storage.Image) error

// Pipeline は検証スキーマTに対するフォームの状態と送信処理を保持する。
type Pipeline[T any] struct {
	fields   []Field
	defaults T
	index    map[string]int

	mu         sync.Mutex
	values     map[string]string
	errors     map[string]string
	submitErr  string
	preview    string
	submitting bool
}

// New はパイプラインを生成する。
// fieldsの各Nameが検証スキーマTのformタグに存在しない場合はエラーを返す。
func New[T any](fields []Field, defaults T) (*Pipeline[T], error) {
	index, err := schemaFields(reflect.TypeOf(defaults))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f.Kind == nil {
			return nil, fmt.Errorf("form field %q has no kind", f.Name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate form field %q", f.Name)
		}
		seen[f.Name] = true
		if _, ok := index[f.Name]; !ok {
			return nil, fmt.Errorf("form field %q does not exist on %T", f.Name, defaults)
		}
	}

	p := &Pipeline[T]{
		fields:   fields,
		defaults: defaults,
		index:    index,
	}
	p.values = encode(reflect.ValueOf(defaults), index)
	return p, nil
}

// MustNew はNewと同じだが、エラー時にpanicする。パッケージ変数の初期化用。
func MustNew[T any](fields []Field, defaults T) *Pipeline[T] {
	p, err := New(fields, defaults)
	if err != nil {
		panic(err)
	}
	return p
}

// Fields は入力項目を返す。
func (p *Pipeline[T]) Fields() []Field {
	return p.fields
}

// Load は編集対象の値でフォームを初期化する。
func (p *Pipeline[T]) Load(v T) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaults = v
	p.values = encode(reflect.ValueOf(v), p.index)
	p.errors = nil
	p.submitErr = ""
	p.preview = ""
}

// Values は現在のフォーム値のコピーを返す。
func (p *Pipeline[T]) Values() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}

// FieldErrors はフィールドごとの検証メッセージを返す。
func (p *Pipeline[T]) FieldErrors() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.errors))
	for k, v := range p.errors {
		out[k] = v
	}
	return out
}

// SubmitError は直近の確定処理の失敗メッセージを返す。
func (p *Pipeline[T]) SubmitError() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.submitErr
}

// Preview は選択された画像のdata URLを返す。
func (p *Pipeline[T]) Preview() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.preview
}

// Decode は送信値を検証スキーマに変換する。検証は行わない。
func (p *Pipeline[T]) Decode(values map[string]string) T {
	payload := p.defaults
	d := &decoder{
		values: values,
		target: reflect.ValueOf(&payload).Elem(),
		index:  p.index,
	}
	for _, f := range p.fields {
		f.Kind.Accept(f, d)
	}
	return payload
}

// Submit は値をデコードして検証し、問題がなければcommitを1回だけ呼ぶ。
// 検証エラーがあればcommitを呼ばずに*model.ValidationErrorを返す。
// 成功時はフォーム値を既定値に戻し、失敗時は値を保持してエラーメッセージを設定する。
func (p *Pipeline[T]) Submit(ctx context.Context, sub Submission, commit CommitFunc[T]) error {
	p.mu.Lock()
	if p.submitting {
		p.mu.Unlock()
		return ErrSubmitting
	}
	p.submitting = true
	p.values = mergeValues(p.values, sub.Values)
	p.submitErr = ""
	if sub.Image != nil {
		p.preview = sub.Image.PreviewURL()
	}
	payload := p.Decode(sub.Values)
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.submitting = false
		p.mu.Unlock()
	}()

	fieldErrs, err := validateStruct(payload, p.fields)
	if err != nil {
		return fmt.Errorf("failed to validate form: %w", err)
	}
	if len(fieldErrs) > 0 {
		p.mu.Lock()
		p.errors = fieldErrs
		p.mu.Unlock()
		return &model.ValidationError{Fields: fieldErrs}
	}

	p.mu.Lock()
	p.errors = nil
	p.mu.Unlock()

	if err := commit(ctx, payload, sub.Image); err != nil {
		var verr *model.ValidationError
		p.mu.Lock()
		if errors.As(err, &verr) {
			p.errors = verr.Fields
		}
		p.submitErr = model.UserMessage(err)
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.values = encode(reflect.ValueOf(p.defaults), p.index)
	p.preview = ""
	p.mu.Unlock()
	return nil
}

func mergeValues(current, submitted map[string]string) map[string]string {
	out := make(map[string]string, len(current))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range submitted {
		if _, ok := out[k]; ok {
			out[k] = v
		}
	}
	return out
}
