package core

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jo-hoe/sitegallery/internal/backend/database"
	"github.com/jo-hoe/sitegallery/internal/backend/imageprocessing"
	"github.com/jo-hoe/sitegallery/internal/backend/mediastore"
	"github.com/jo-hoe/sitegallery/internal/backend/sitecache"
	"github.com/jo-hoe/sitegallery/internal/metrics"
)

// maxNameCollisions bounds how often the filename timestamp is advanced when a
// file with the same name already exists for the site.
const maxNameCollisions = 64

//go:embed assets/placeholder.svg
var placeholderSVG []byte

var placeholderBackground = color.RGBA{R: 0x30, G: 0x2b, B: 0x63, A: 0xff}

type UploadRequest struct {
	Identifier string
	Filename   string // original client filename, only its extension is kept
	Data       []byte
}

type UploadResult struct {
	Site       string
	Filename   string
	UploadedAt time.Time
}

type AuditReport struct {
	Site          string
	Logged        int
	Stored        int
	MissingFiles  []string // logged but not on disk
	UnloggedFiles []string // on disk but not logged
}

func (r *AuditReport) Consistent() bool {
	return len(r.MissingFiles) == 0 && len(r.UnloggedFiles) == 0
}

type CoreService struct {
	config          *ServiceConfig
	databaseService database.DatabaseService
	mediaStore      mediastore.MediaStore
	siteCache       sitecache.SiteCache
	thumbnailer     *imageprocessing.CommandInvoker
	now             func() time.Time

	placeholderOnce sync.Once
	placeholder     []byte
	placeholderErr  error
}

func NewCoreService(config *ServiceConfig) (*CoreService, error) {
	databaseService, err := getDatabaseService(config)
	if err != nil {
		return nil, err
	}

	mediaStore, err := mediastore.NewLocalFilesystemStore(config.Storage.Root)
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	siteCache, err := sitecache.NewSiteCache(config.Cache.toSiteCacheConfig())
	if err != nil {
		_ = databaseService.Close()
		return nil, fmt.Errorf("failed to initialize site cache: %w", err)
	}

	thumbnailer, err := imageprocessing.NewCommandInvokerFromConfig(imageprocessing.DefaultRegistry, config.ThumbnailCommands)
	if err != nil {
		_ = databaseService.Close()
		_ = siteCache.Close()
		return nil, fmt.Errorf("invalid thumbnail commands: %w", err)
	}

	slog.Info("core service initialized",
		"storage_root", mediaStore.Root(),
		"cache", config.Cache.Type,
		"allowed_extensions", config.AllowedExtensions,
		"thumbnail_commands", thumbnailer.CommandNames())

	return &CoreService{
		config:          config,
		databaseService: databaseService,
		mediaStore:      mediaStore,
		siteCache:       siteCache,
		thumbnailer:     thumbnailer,
		now:             time.Now,
	}, nil
}

func getDatabaseService(config *ServiceConfig) (database.DatabaseService, error) {
	databaseService, err := database.NewDatabase(config.Database.Type, config.Database.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("database initialized successfully", "type", config.Database.Type)
	return databaseService, nil
}

// Ready reports whether the database still answers.
func (service *CoreService) Ready() bool {
	return service.databaseService.DoesDatabaseExist()
}

func (service *CoreService) Close() error {
	return errors.Join(service.siteCache.Close(), service.databaseService.Close())
}

func (service *CoreService) AllowedExtensions() []string {
	return slices.Clone(service.config.AllowedExtensions)
}

func (service *CoreService) MaxUploadBytes() int64 {
	return service.config.MaxUploadBytes
}

// ResolveSite returns the site mapped to identifier or ErrUnknownIdentifier.
// The match is exact; no trimming or case folding is applied.
func (service *CoreService) ResolveSite(ctx context.Context, identifier string) (string, error) {
	if identifier == "" {
		return "", ErrMissingIdentifier
	}

	site, found, err := service.siteCache.Get(ctx, identifier)
	if err != nil {
		slog.Warn("site cache lookup failed, falling back to database", "identifier", identifier, "error", err)
	} else if found {
		return site, nil
	}

	site, found, err = service.databaseService.LookupSite(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("failed to look up identifier %s: %w", identifier, err)
	}
	if !found {
		return "", ErrUnknownIdentifier
	}

	if err := service.siteCache.Set(ctx, identifier, site); err != nil {
		slog.Warn("failed to cache site mapping", "identifier", identifier, "error", err)
	}
	return site, nil
}

func (service *CoreService) validateUpload(request UploadRequest) (string, error) {
	if request.Identifier == "" {
		return "", ErrMissingIdentifier
	}
	if request.Filename == "" || len(request.Data) == 0 {
		return "", ErrMissingFile
	}
	if limit := service.config.MaxUploadBytes; limit > 0 && int64(len(request.Data)) > limit {
		return "", ErrFileTooLarge
	}

	ext := extension(request.Filename)
	if ext == "" || !slices.Contains(service.config.AllowedExtensions, ext) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, request.Filename)
	}
	if service.config.VerifyImageContent && !imageprocessing.MatchesExtension(request.Data, ext) {
		return "", fmt.Errorf("%w: content of %q is not a %s image", ErrUnsupportedFileType, request.Filename, ext)
	}
	if service.config.VerifyImageContent {
		if err := imageprocessing.CheckPixelLimit(request.Data, service.config.MaxImagePixels); err != nil {
			return "", fmt.Errorf("%w: %w", ErrFileTooLarge, err)
		}
	}
	return ext, nil
}

// Upload validates the request, resolves the identifier, stores the bytes as
// {site}/{timestamp}.{ext} and appends the upload log row. Rejected requests
// never touch the media store or the log.
func (service *CoreService) Upload(ctx context.Context, request UploadRequest) (*UploadResult, error) {
	result, err := service.upload(ctx, request)
	metrics.Uploads.WithLabelValues(uploadResultLabel(err)).Inc()
	if err == nil {
		metrics.UploadSize.Observe(float64(len(request.Data)))
	}
	return result, err
}

func (service *CoreService) upload(ctx context.Context, request UploadRequest) (*UploadResult, error) {
	ext, err := service.validateUpload(request)
	if err != nil {
		return nil, err
	}

	site, err := service.ResolveSite(ctx, request.Identifier)
	if err != nil {
		return nil, err
	}

	if err := service.mediaStore.EnsureSite(site); err != nil {
		return nil, fmt.Errorf("failed to prepare storage for %s: %w", site, err)
	}

	uploadedAt, filename, err := service.storeUnique(site, ext, request.Data)
	if err != nil {
		return nil, err
	}

	_, err = service.databaseService.AppendUpload(ctx, database.UploadLogEntry{
		Site:       site,
		Filename:   filename,
		UploadedAt: uploadedAt,
	})
	if err != nil {
		if rmErr := service.mediaStore.Remove(site, filename); rmErr != nil {
			slog.Error("failed to remove file after log append failure",
				"site", site, "filename", filename, "error", rmErr)
		}
		return nil, &logAppendError{err: fmt.Errorf("failed to record upload %s/%s: %w", site, filename, err)}
	}

	slog.Info("image uploaded", "identifier", request.Identifier, "site", site, "filename", filename, "size_bytes", len(request.Data))
	return &UploadResult{Site: site, Filename: filename, UploadedAt: uploadedAt}, nil
}

// storeUnique writes data under a timestamp name. If the name is taken the
// timestamp is advanced one microsecond at a time, so concurrent uploads to a
// site never overwrite each other and names stay fixed-width.
func (service *CoreService) storeUnique(site, ext string, data []byte) (time.Time, string, error) {
	at := service.now().UTC().Truncate(time.Microsecond)
	for attempt := 0; attempt < maxNameCollisions; attempt++ {
		filename := timestampFilename(at, ext)
		_, err := service.mediaStore.Create(site, filename, bytes.NewReader(data))
		if err == nil {
			return at, filename, nil
		}
		if !errors.Is(err, mediastore.ErrExists) {
			return time.Time{}, "", fmt.Errorf("failed to store image for %s: %w", site, err)
		}
		slog.Debug("filename collision, advancing timestamp", "site", site, "filename", filename)
		at = at.Add(time.Microsecond)
	}
	return time.Time{}, "", fmt.Errorf("failed to store image for %s: no free filename after %d attempts", site, maxNameCollisions)
}

type logAppendError struct {
	err error
}

func (e *logAppendError) Error() string { return e.err.Error() }
func (e *logAppendError) Unwrap() error { return e.err }

func uploadResultLabel(err error) string {
	var appendErr *logAppendError
	switch {
	case err == nil:
		return metrics.ResultStored
	case errors.Is(err, ErrMissingIdentifier):
		return metrics.ResultMissingID
	case errors.Is(err, ErrMissingFile):
		return metrics.ResultMissingFile
	case errors.Is(err, ErrUnsupportedFileType), errors.Is(err, ErrFileTooLarge):
		return metrics.ResultUnsupportedType
	case errors.Is(err, ErrUnknownIdentifier):
		return metrics.ResultUnknownID
	case errors.As(err, &appendErr):
		return metrics.ResultLogAppendFailure
	default:
		return metrics.ResultStorageFailure
	}
}

// Gallery lists the uploads of a site newest first, as recorded in the upload log.
// Unknown sites yield an empty list. limit <= 0 returns all entries.
func (service *CoreService) Gallery(ctx context.Context, site string, limit int) ([]database.UploadLogEntry, error) {
	metrics.GalleryRequests.Inc()
	if site == "" {
		return []database.UploadLogEntry{}, nil
	}
	entries, err := service.databaseService.ListUploads(ctx, site, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads for %s: %w", site, err)
	}
	return entries, nil
}

// OpenImage returns the stored bytes of an uploaded image. The caller closes the reader.
func (service *CoreService) OpenImage(site, filename string) (io.ReadCloser, error) {
	reader, err := service.mediaStore.Open(site, filename)
	if err != nil {
		switch {
		case errors.Is(err, mediastore.ErrInvalidName):
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		case errors.Is(err, mediastore.ErrNotFound):
			return nil, fmt.Errorf("%w: %s/%s", ErrImageNotFound, site, filename)
		default:
			return nil, err
		}
	}
	return reader, nil
}

// Thumbnail runs the configured thumbnail pipeline over a stored image. When the
// image cannot be decoded, or its header declares more pixels than allowed, a
// placeholder PNG is returned and usedPlaceholder is true.
func (service *CoreService) Thumbnail(site, filename string) (thumbnail []byte, usedPlaceholder bool, err error) {
	reader, err := service.OpenImage(site, filename)
	if err != nil {
		return nil, false, err
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read %s/%s: %w", site, filename, err)
	}

	if err = imageprocessing.CheckPixelLimit(data, service.config.MaxImagePixels); err == nil {
		thumbnail, err = service.thumbnailer.Execute(data)
		if err == nil {
			return thumbnail, false, nil
		}
	}

	slog.Warn("thumbnail generation failed, serving placeholder", "site", site, "filename", filename, "error", err)
	metrics.ThumbnailFallbacks.Inc()
	placeholder, perr := service.Placeholder()
	if perr != nil {
		return nil, false, errors.Join(err, perr)
	}
	return placeholder, true, nil
}

// Placeholder renders the embedded placeholder SVG once at thumbnail size.
func (service *CoreService) Placeholder() ([]byte, error) {
	service.placeholderOnce.Do(func() {
		width := service.config.ThumbnailWidth
		service.placeholder, service.placeholderErr = imageprocessing.RenderSVGToPNG(placeholderSVG, width, width*3/4, placeholderBackground)
	})
	return service.placeholder, service.placeholderErr
}

// AuditSite compares the site's directory with its upload log.
func (service *CoreService) AuditSite(ctx context.Context, site string) (*AuditReport, error) {
	entries, err := service.databaseService.ListUploads(ctx, site, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads for %s: %w", site, err)
	}
	stored, err := service.mediaStore.List(site)
	if err != nil {
		if errors.Is(err, mediastore.ErrInvalidName) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
		return nil, err
	}

	report := &AuditReport{Site: site, Logged: len(entries), Stored: len(stored)}
	logged := make(map[string]bool, len(entries))
	for _, entry := range entries {
		logged[entry.Filename] = true
	}
	onDisk := make(map[string]bool, len(stored))
	for _, name := range stored {
		onDisk[name] = true
		if !logged[name] {
			report.UnloggedFiles = append(report.UnloggedFiles, name)
		}
	}
	for _, entry := range entries {
		if !onDisk[entry.Filename] {
			report.MissingFiles = append(report.MissingFiles, entry.Filename)
		}
	}
	return report, nil
}

func (service *CoreService) SeedMappings(ctx context.Context, entries []database.MappingEntry) (int, error) {
	return service.databaseService.SeedMappings(ctx, entries)
}

func (service *CoreService) Mappings(ctx context.Context) ([]database.MappingEntry, error) {
	return service.databaseService.GetMappings(ctx)
}
