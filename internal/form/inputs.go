package form

// Input はテンプレートで描画する入力欄1つ分の情報。
type Input struct {
	Name     string
	Label    string
	Type     string // HTMLのinput type。selectの場合は"select"
	Value    string
	Error    string
	Required bool
	Options  []Option
	Accept   string
	Preview  string
}

// inputBuilder は入力項目をInputへ変換するVisitor。
type inputBuilder struct {
	values  map[string]string
	errors  map[string]string
	preview string
	out     []Input
}

func (b *inputBuilder) add(f Field, typ string, fill func(*Input)) {
	in := Input{
		Name:     f.Name,
		Label:    f.Label,
		Type:     typ,
		Value:    b.values[f.Name],
		Error:    b.errors[f.Name],
		Required: f.Required,
	}
	if fill != nil {
		fill(&in)
	}
	b.out = append(b.out, in)
}

func (b *inputBuilder) VisitText(f Field, k Text) {
	if k.Secret {
		b.add(f, "password", func(in *Input) { in.Value = "" })
		return
	}
	b.add(f, "text", nil)
}

func (b *inputBuilder) VisitEmail(f Field, _ Email) { b.add(f, "email", nil) }

func (b *inputBuilder) VisitSelect(f Field, k Select) {
	b.add(f, "select", func(in *Input) { in.Options = k.Options })
}

func (b *inputBuilder) VisitColor(f Field, _ Color) { b.add(f, "color", nil) }

func (b *inputBuilder) VisitDate(f Field, _ Date) { b.add(f, "date", nil) }

func (b *inputBuilder) VisitImage(f Field, k Image) {
	b.add(f, "file", func(in *Input) {
		in.Accept = k.MIME
		in.Preview = b.preview
		if in.Preview == "" {
			in.Preview = in.Value
		}
	})
}

// Inputs は現在の状態から描画用の入力欄を組み立てる。
func (p *Pipeline[T]) Inputs() []Input {
	b := &inputBuilder{
		values:  p.Values(),
		errors:  p.FieldErrors(),
		preview: p.Preview(),
	}
	for _, f := range p.fields {
		f.Kind.Accept(f, b)
	}
	return b.out
}
