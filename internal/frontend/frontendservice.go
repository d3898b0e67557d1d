package frontend

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jo-hoe/sitegallery/internal/backend/database"
	"github.com/jo-hoe/sitegallery/internal/common"
	"github.com/jo-hoe/sitegallery/internal/core"
	"github.com/labstack/echo/v4"
)

const (
	MainPageName    = "index.html"
	successPageName = "success.html"
	galleryPageName = "gallery.html"
	mimePNG         = "image/png"
	captionLayout   = "2006-01-02 15:04:05 UTC"
)

type FrontendService struct {
	coreService *core.CoreService
}

type indexPage struct {
	Title      string
	Error      string
	Identifier string
	Accept     string
}

type successPage struct {
	Title    string
	Site     string
	Filename string
}

type galleryPage struct {
	Title  string
	Site   string
	Images []database.UploadLogEntry
}

func NewFrontendService(coreService *core.CoreService) *FrontendService {
	return &FrontendService{
		coreService: coreService,
	}
}

// rootRedirectHandler redirects root path to index.html
func (service *FrontendService) rootRedirectHandler(ctx echo.Context) error {
	return ctx.Redirect(http.StatusMovedPermanently, "/"+MainPageName)
}

func (service *FrontendService) SetRoutes(e *echo.Echo) {
	e.Renderer = newTemplate()

	e.GET("/", service.rootRedirectHandler) // Redirect root to index.html
	e.GET("/"+MainPageName, service.indexHandler)
	e.POST("/upload", service.uploadHandler)

	e.GET("/gallery", service.galleryHandler)
	e.GET("/storage/:site/:filename", service.storageHandler)
	e.GET("/thumbnail/:site/:filename", service.thumbnailHandler)

	// Favicon (SVG) route
	e.GET("/icon.svg", service.iconHandler)

	// Catch-all gallery by site name, static routes take precedence
	e.GET("/:site", service.siteGalleryHandler)
}

func (service *FrontendService) newIndexPage() indexPage {
	extensions := service.coreService.AllowedExtensions()
	accept := make([]string, len(extensions))
	for i, ext := range extensions {
		accept[i] = "." + ext
	}
	return indexPage{Title: "Upload", Accept: strings.Join(accept, ",")}
}

func (service *FrontendService) indexHandler(ctx echo.Context) error {
	return ctx.Render(http.StatusOK, MainPageName, service.newIndexPage())
}

func (service *FrontendService) uploadHandler(ctx echo.Context) error {
	page := service.newIndexPage()

	upload, err := common.ReadMultipartUpload(ctx, service.coreService.MaxUploadBytes())
	if err != nil {
		slog.Error("uploadHandler: failed to read uploaded file",
			"status", http.StatusBadRequest, "error", err)
		page.Error = "Failed to read uploaded file"
		return ctx.Render(http.StatusBadRequest, MainPageName, page)
	}
	page.Identifier = upload.Identifier

	result, err := service.coreService.Upload(ctx.Request().Context(), core.UploadRequest{
		Identifier: upload.Identifier,
		Filename:   upload.Filename,
		Data:       upload.Data,
	})
	if err != nil {
		status := core.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.Error("uploadHandler: failed to store uploaded image",
				"status", status, "error", err, "identifier", upload.Identifier, "filename", upload.Filename)
		} else {
			slog.Warn("uploadHandler: upload rejected",
				"status", status, "error", err, "identifier", upload.Identifier, "filename", upload.Filename)
		}
		page.Error = core.UserMessage(err)
		return ctx.Render(status, MainPageName, page)
	}

	return ctx.Render(http.StatusOK, successPageName, successPage{
		Title:    "Upload complete",
		Site:     result.Site,
		Filename: result.Filename,
	})
}

func (service *FrontendService) galleryHandler(ctx echo.Context) error {
	return service.renderGallery(ctx, strings.TrimSpace(ctx.QueryParam("site")))
}

func (service *FrontendService) siteGalleryHandler(ctx echo.Context) error {
	site, err := pathParam(ctx, "site")
	if err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid site")
	}
	return service.renderGallery(ctx, site)
}

func (service *FrontendService) renderGallery(ctx echo.Context, site string) error {
	entries, err := service.coreService.Gallery(ctx.Request().Context(), site, 0)
	if err != nil {
		slog.Error("renderGallery: failed to list images",
			"status", http.StatusInternalServerError, "site", site, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to list images")
	}

	// Prevent caching so the latest images are always shown
	setNoCache(ctx)

	title := "Gallery"
	if site != "" {
		title = "Gallery of " + site
	}
	return ctx.Render(http.StatusOK, galleryPageName, galleryPage{Title: title, Site: site, Images: entries})
}

func (service *FrontendService) storageHandler(ctx echo.Context) error {
	site, filename, err := imageParams(ctx)
	if err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid image path")
	}

	reader, err := service.coreService.OpenImage(site, filename)
	if err != nil {
		return service.imageError(ctx, "storageHandler", err, site, filename)
	}
	defer func() {
		if cerr := reader.Close(); cerr != nil {
			slog.Error("storageHandler: failed to close image reader", "error", cerr, "site", site, "filename", filename)
		}
	}()

	contentType := mime.TypeByExtension(filepath.Ext(filename))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Stream(http.StatusOK, contentType, reader)
}

func (service *FrontendService) thumbnailHandler(ctx echo.Context) error {
	site, filename, err := imageParams(ctx)
	if err != nil {
		return ctx.String(http.StatusBadRequest, "Invalid image path")
	}

	thumbnail, usedPlaceholder, err := service.coreService.Thumbnail(site, filename)
	if err != nil {
		return service.imageError(ctx, "thumbnailHandler", err, site, filename)
	}
	if usedPlaceholder {
		ctx.Response().Header().Set("X-Thumbnail-Placeholder", "true")
	}

	// Prevent caching
	setNoCache(ctx)

	return ctx.Blob(http.StatusOK, mimePNG, thumbnail)
}

func (service *FrontendService) imageError(ctx echo.Context, handler string, err error, site, filename string) error {
	status := core.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error(handler+": failed to load image",
			"status", status, "site", site, "filename", filename, "error", err)
		return ctx.String(status, "Failed to load image")
	}
	slog.Warn(handler+": image not available",
		"status", status, "site", site, "filename", filename, "error", err)
	if errors.Is(err, core.ErrImageNotFound) {
		return ctx.String(status, "Image not available")
	}
	return ctx.String(status, "Invalid image path")
}

func (service *FrontendService) iconHandler(ctx echo.Context) error {
	data, err := assetsFS.ReadFile("views/icon.svg")
	if err != nil {
		slog.Error("iconHandler: failed to read icon.svg", "status", http.StatusInternalServerError, "error", err)
		return ctx.String(http.StatusInternalServerError, "Failed to load icon")
	}
	// Cache for 7 days
	ctx.Response().Header().Set("Cache-Control", "public, max-age=604800, immutable")
	return ctx.Blob(http.StatusOK, "image/svg+xml", data)
}

func setNoCache(ctx echo.Context) {
	ctx.Response().Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	ctx.Response().Header().Set("Pragma", "no-cache")
	ctx.Response().Header().Set("Expires", "0")
}

// pathParam returns the unescaped value of a route parameter.
func pathParam(ctx echo.Context, name string) (string, error) {
	return url.PathUnescape(ctx.Param(name))
}

func imageParams(ctx echo.Context) (string, string, error) {
	site, err := pathParam(ctx, "site")
	if err != nil {
		return "", "", err
	}
	filename, err := pathParam(ctx, "filename")
	if err != nil {
		return "", "", err
	}
	return site, filename, nil
}

func formatCaption(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.UTC().Format(captionLayout)
}
