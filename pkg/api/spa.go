// SPA fallback handling based on https://github.com/mandrigin/gin-spa
// (MIT License, Copyright (c) 2020 Igor Mandrigin).

package api

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// cacheControlWriter wraps http.ResponseWriter to set Cache-Control headers
// based on the request path before writing the response.
type cacheControlWriter struct {
	http.ResponseWriter
	path        string
	wroteHeader bool
}

func (w *cacheControlWriter) WriteHeader(statusCode int) {
	if !w.wroteHeader {
		w.wroteHeader = true
		switch {
		case strings.HasPrefix(w.path, "/assets/"):
			// Vite builds produce hashed filenames under /assets/
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		case strings.HasSuffix(w.path, ".html") || w.path == "/":
			// index.html must always be revalidated to pick up new app versions
			w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		default:
			w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// ServeSPA serves the built frontend from spaDirectory, falling back to
// index.html for client-side routes.
func ServeSPA(urlPrefix, spaDirectory string) gin.HandlerFunc {
	directory := static.LocalFile(spaDirectory, true)
	fileserver := http.FileServer(directory)
	if urlPrefix != "" {
		fileserver = http.StripPrefix(urlPrefix, fileserver)
	}
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if !directory.Exists(urlPrefix, path) {
			// SPA fallback to index.html
			c.Request.URL.Path = "/"
			path = "/"
		}
		ccWriter := &cacheControlWriter{ResponseWriter: c.Writer, path: path}
		fileserver.ServeHTTP(ccWriter, c.Request)
		c.Abort()
	}
}
