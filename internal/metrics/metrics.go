// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload results used as the "result" label.
const (
	ResultStored           = "stored"
	ResultMissingID        = "missing_identifier"
	ResultMissingFile      = "missing_file"
	ResultUnsupportedType  = "unsupported_file_type"
	ResultUnknownID        = "unknown_identifier"
	ResultStorageFailure   = "storage_failure"
	ResultLogAppendFailure = "log_append_failure"
)

var (
	Uploads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sitegallery_uploads_total",
		Help: "Upload attempts by outcome",
	}, []string{"result"})

	GalleryRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitegallery_gallery_requests_total",
		Help: "Gallery listings served",
	})

	ThumbnailFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sitegallery_thumbnail_fallbacks_total",
		Help: "Thumbnails replaced by the placeholder because the stored image could not be processed",
	})

	UploadSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sitegallery_upload_size_bytes",
		Help:    "Size of stored uploads",
		Buckets: prometheus.ExponentialBuckets(16*1024, 4, 7),
	})
)
