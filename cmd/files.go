package cmd

import (
	"path/filepath"
	"strings"
)

// imageExtensions are the file types the extractor can decode.
var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// isImageFile reports whether path has a supported image extension and is
// not a hidden file.
func isImageFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return imageExtensions[strings.ToLower(filepath.Ext(base))]
}

// nameForFile derives a person's name from where a photo sits under root.
// Photos in a subdirectory take the first directory name (people/Alice/1.jpg
// is Alice); photos directly in root take the file name without extension,
// with underscores read as spaces (Jan_Novak.jpg is "Jan Novak").
func nameForFile(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) > 1 && parts[0] != ".." {
		return parts[0]
	}
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(stem, "_", " ")
}
