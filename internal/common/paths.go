package common

import "net/url"

// ImageURL is the path under which a stored image is served.
func ImageURL(site, filename string) string {
	return "/storage/" + url.PathEscape(site) + "/" + url.PathEscape(filename)
}

// ThumbnailURL is the path of the PNG thumbnail of a stored image.
func ThumbnailURL(site, filename string) string {
	return "/thumbnail/" + url.PathEscape(site) + "/" + url.PathEscape(filename)
}

// GalleryURL is the path of the gallery page of a site.
func GalleryURL(site string) string {
	return "/" + url.PathEscape(site)
}
