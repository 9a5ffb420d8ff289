package echoapi

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/microcosm-cc/bluemonday"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/session"
)

const webTemplatesDir = "templates/web"

type (
	renderer struct {
		pages map[string]*template.Template
	}

	pageData struct {
		AppName     string
		Title       string
		Path        string
		User        *session.User
		Infos       []string
		Errors      []string
		FieldErrors map[string]string
		Data        interface{}
	}
)

var _ echo.Renderer = (*renderer)(nil)

// newRenderer parses every page of templates/web with the shared _base layout.
func newRenderer(fsys fs.FS, logger core.Logger) *renderer {
	r := &renderer{pages: make(map[string]*template.Template)}

	entries, err := fs.ReadDir(fsys, webTemplatesDir)
	if err != nil {
		logger.Fatal(fmt.Sprintf("reading web templates: %v", err), err)
		return r
	}
	md := newMarkdown()
	base := path.Join(webTemplatesDir, "_base.gohtml")
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, "_") || path.Ext(name) != ".gohtml" {
			continue
		}
		tmpl, err := template.New("_base.gohtml").
			Funcs(template.FuncMap{
				"markdown": md.render,
				"cell":     md.cell,
				"value":    value,
				"dict":     dict,
				"lower":    strings.ToLower,
			}).
			ParseFS(fsys, base, path.Join(webTemplatesDir, name))
		if err != nil {
			logger.Fatal(fmt.Sprintf("parsing web template %s: %v", name, err), err)
			continue
		}
		r.pages[strings.TrimSuffix(name, ".gohtml")] = tmpl
	}
	return r
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return errors.Errorf("unknown page %q", name)
	}
	return errors.Wrapf(tmpl.Execute(w, data), "rendering %s", name)
}

// render pops the pending flashes and renders page inside the layout.
func (s *Server) render(ctx echo.Context, code int, page, title string, data interface{}) error {
	pd := pageData{
		AppName: s.Conf.AppName,
		Title:   title,
		Path:    ctx.Request().URL.Path,
		Data:    data,
	}
	if sess, ok := currentSession(ctx); ok {
		pd.User = &sess.User
	}

	flashes := s.popFlashes(ctx, flashInfo, flashError, flashFields)
	for _, f := range flashes[flashInfo] {
		pd.Infos = append(pd.Infos, fmt.Sprint(f))
	}
	for _, f := range flashes[flashError] {
		pd.Errors = append(pd.Errors, fmt.Sprint(f))
	}
	for _, f := range flashes[flashFields] {
		if fields, ok := f.(map[string]string); ok {
			pd.FieldErrors = fields
		}
	}

	return ctx.Render(code, page, pd)
}

// Markdown

type markdown struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func newMarkdown() *markdown {
	return &markdown{
		md:     goldmark.New(goldmark.WithExtensions(extension.GFM)),
		policy: bluemonday.UGCPolicy(),
	}
}

// render converts user supplied markdown to sanitized HTML.
func (m *markdown) render(src string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(src), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return template.HTML(m.policy.SanitizeBytes(buf.Bytes()))
}

// Record cells

// value formats a decoded JSON value for form inputs.
func value(row map[string]interface{}, name string) string {
	switch v := row[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// cell formats a decoded JSON value for the records table.
func (m *markdown) cell(row map[string]interface{}, f field) interface{} {
	v := value(row, f.Name)
	switch {
	case v == "":
		return ""
	case f.Kind == kindMarkdown:
		return m.render(v)
	case f.Kind == kindBool:
		if v == "true" {
			return "yes"
		}
		return "no"
	case f.Kind == kindDate:
		if d, err := school.ParseDate(v); err == nil {
			return d.Format(school.DateLayout)
		}
	}
	return v
}

// dict builds a map from key/value pairs so a template can pass several values to another.
func dict(pairs ...interface{}) (map[string]interface{}, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, errors.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}
