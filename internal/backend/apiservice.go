package backend

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jo-hoe/sitegallery/internal/backend/database"
	"github.com/jo-hoe/sitegallery/internal/common"
	"github.com/jo-hoe/sitegallery/internal/core"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const ProbePath = "/probe"

type APIService struct {
	coreService *core.CoreService
}

type identifierRequest struct {
	Identifier string `param:"id" validate:"required"`
}

type siteImagesRequest struct {
	Site  string `param:"site" validate:"required"`
	Limit int    `query:"limit" validate:"min=0,max=1000"`
}

type IdentifierResponse struct {
	Identifier string `json:"identifier"`
	Site       string `json:"site"`
}

type ImageResponse struct {
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"uploadedAt"`
	URL        string    `json:"url"`
}

type UploadResponse struct {
	Site string `json:"site"`
	ImageResponse
}

type SiteImagesResponse struct {
	Site   string          `json:"site"`
	Images []ImageResponse `json:"images"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewAPIService(coreService *core.CoreService) *APIService {
	return &APIService{
		coreService: coreService,
	}
}

func (s *APIService) SetRoutes(e *echo.Echo) {
	e.GET(ProbePath, s.probeHandler)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	e.GET("/api/identifiers/:id", s.identifierHandler)
	e.POST("/api/uploads", s.uploadHandler)
	e.GET("/api/sites/:site/images", s.siteImagesHandler)
}

func toImageResponse(entry database.UploadLogEntry) ImageResponse {
	return ImageResponse{
		Filename:   entry.Filename,
		UploadedAt: entry.UploadedAt,
		URL:        common.ImageURL(entry.Site, entry.Filename),
	}
}

func (s *APIService) probeHandler(ctx echo.Context) error {
	if !s.coreService.Ready() {
		slog.Error("probeHandler: database unavailable", "status", http.StatusServiceUnavailable)
		return ctx.String(http.StatusServiceUnavailable, "Database unavailable")
	}
	return ctx.String(http.StatusOK, "API Service is running")
}

func (s *APIService) identifierHandler(ctx echo.Context) error {
	var request identifierRequest
	if err := ctx.Bind(&request); err != nil {
		return err
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	site, err := s.coreService.ResolveSite(ctx.Request().Context(), request.Identifier)
	if err != nil {
		return s.errorResponse(ctx, "identifierHandler", err, "identifier", request.Identifier)
	}
	return ctx.JSON(http.StatusOK, IdentifierResponse{Identifier: request.Identifier, Site: site})
}

func (s *APIService) uploadHandler(ctx echo.Context) error {
	upload, err := common.ReadMultipartUpload(ctx, s.coreService.MaxUploadBytes())
	if err != nil {
		slog.Error("uploadHandler: failed to read multipart form",
			"status", http.StatusBadRequest, "error", err)
		return ctx.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to read upload form"})
	}

	result, err := s.coreService.Upload(ctx.Request().Context(), core.UploadRequest{
		Identifier: upload.Identifier,
		Filename:   upload.Filename,
		Data:       upload.Data,
	})
	if err != nil {
		return s.errorResponse(ctx, "uploadHandler", err, "identifier", upload.Identifier, "filename", upload.Filename)
	}

	return ctx.JSON(http.StatusCreated, UploadResponse{
		Site: result.Site,
		ImageResponse: ImageResponse{
			Filename:   result.Filename,
			UploadedAt: result.UploadedAt,
			URL:        common.ImageURL(result.Site, result.Filename),
		},
	})
}

func (s *APIService) siteImagesHandler(ctx echo.Context) error {
	var request siteImagesRequest
	if err := ctx.Bind(&request); err != nil {
		return err
	}
	if err := ctx.Validate(&request); err != nil {
		return err
	}

	entries, err := s.coreService.Gallery(ctx.Request().Context(), request.Site, request.Limit)
	if err != nil {
		return s.errorResponse(ctx, "siteImagesHandler", err, "site", request.Site)
	}

	images := make([]ImageResponse, 0, len(entries))
	for _, entry := range entries {
		images = append(images, toImageResponse(entry))
	}
	return ctx.JSON(http.StatusOK, SiteImagesResponse{Site: request.Site, Images: images})
}

// errorResponse logs err and writes its client-facing JSON form.
func (s *APIService) errorResponse(ctx echo.Context, handler string, err error, attrs ...any) error {
	status := core.HTTPStatus(err)
	attrs = append([]any{"status", status, "error", err}, attrs...)
	if status >= http.StatusInternalServerError {
		slog.Error(handler+": request failed", attrs...)
	} else {
		slog.Warn(handler+": request rejected", attrs...)
	}
	return ctx.JSON(status, ErrorResponse{Error: core.UserMessage(err)})
}
