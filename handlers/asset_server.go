package handlers

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AssetServer serves derivatives and team assets from the local store root.
// routePrefix is the URL prefix the handler is mounted on. Keys below any of
// the blocked prefixes (raw uploads awaiting processing) and dot-prefixed
// entries are never served.
//
//	r.Get("/media/*", AssetServer(cfg.LocalStoragePath, "/media/", "uploads"))
func AssetServer(baseStoragePath, routePrefix string, blockedPrefixes ...string) http.HandlerFunc {
	root := filepath.Clean(baseStoragePath)
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	log.Printf("Serving assets for '%s*' from directory: %s", routePrefix, root)

	return func(w http.ResponseWriter, r *http.Request) {
		relativePath := strings.TrimPrefix(r.URL.Path, routePrefix)

		if relativePath == "" || strings.Contains(relativePath, "..") {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}
		for _, blocked := range blockedPrefixes {
			if relativePath == blocked || strings.HasPrefix(relativePath, blocked+"/") {
				http.NotFound(w, r)
				return
			}
		}
		// hidden entries include in-flight ".upload-*" writes of the local store
		for _, segment := range strings.Split(relativePath, "/") {
			if strings.HasPrefix(segment, ".") {
				http.NotFound(w, r)
				return
			}
		}

		cleanedAssetPath := filepath.Clean(filepath.Join(root, filepath.FromSlash(relativePath)))
		if !strings.HasPrefix(cleanedAssetPath, root+string(os.PathSeparator)) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			log.Printf("SECURITY: Attempted asset access outside designated directory: Request='%s', Resolved='%s', Allowed Base='%s'",
				r.URL.Path, cleanedAssetPath, root)
			return
		}

		info, err := os.Stat(cleanedAssetPath)
		if os.IsNotExist(err) || (err == nil && info.IsDir()) {
			http.NotFound(w, r)
			return
		} else if err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			log.Printf("Error stating asset file %s: %v", cleanedAssetPath, err)
			return
		}

		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(cacheDuration.Seconds())))
		w.Header().Set("Expires", time.Now().Add(cacheDuration).Format(http.TimeFormat))

		http.ServeFile(w, r, cleanedAssetPath)
	}
}
