// Package static embeds the built web client and serves it as the catch-all
// route. Unknown paths fall back to index.html so client-side routing works
// after a reload.
package static

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed dist
var dist embed.FS

// assetExts are served from the embedded tree as-is; everything else gets
// the app shell.
var assetExts = map[string]bool{
	".js":   true,
	".css":  true,
	".svg":  true,
	".ico":  true,
	".png":  true,
	".jpg":  true,
	".webp": true,
	".txt":  true,
	".map":  true,
}

func Handler() http.Handler {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		return http.NotFoundHandler()
	}
	files := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/assets/") || assetExts[path.Ext(r.URL.Path)] {
			files.ServeHTTP(w, r)
			return
		}

		index, err := fs.ReadFile(sub, "index.html")
		if err != nil {
			http.Error(w, "index not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(index)
	})
}
