package frontend

import (
	"embed"
	"html/template"
	"io"

	"github.com/jo-hoe/sitegallery/internal/common"
	"github.com/labstack/echo/v4"
)

const viewsPattern = "views/*.html"

//go:embed views/*.html
var templateFS embed.FS

//go:embed views/icon.svg
var assetsFS embed.FS

var templateFuncs = template.FuncMap{
	"imageURL":     common.ImageURL,
	"thumbnailURL": common.ThumbnailURL,
	"galleryURL":   common.GalleryURL,
	"caption":      formatCaption,
}

// Template renders the embedded views for echo.
type Template struct {
	templates *template.Template
}

func newTemplate() *Template {
	return &Template{
		templates: template.Must(template.New("").Funcs(templateFuncs).ParseFS(templateFS, viewsPattern)),
	}
}

func (t *Template) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return t.templates.ExecuteTemplate(w, name, data)
}
