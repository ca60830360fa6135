// Package view は埋め込みHTMLテンプレートによる画面描画を提供する。
// コアはこのパッケージをRenderer（外部コラボレーター）として呼び出すだけで、
// 描画結果を検査することはない。
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer は埋め込みテンプレートのレンダラー。
type Renderer struct {
	tmpl *template.Template
}

// New は埋め込みテンプレートをパースしてRendererを生成する。
func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render は指定テンプレートをdataとともに描画する。
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	if err := r.tmpl.ExecuteTemplate(w, name+".html", data); err != nil {
		return fmt.Errorf("failed to render template %q: %w", name, err)
	}
	return nil
}
