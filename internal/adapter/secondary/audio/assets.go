package audio

import (
	"path/filepath"

	"github.com/spf13/afero"

	"pa-alarm/internal/domain"
)

var searchDirs = []string{"sounds", "../sounds", ""}

// DetectBasePath returns the first directory in which the first catalog clip
// exists. It falls back to "sounds".
func DetectBasePath(fs afero.Fs, catalog domain.Catalog) string {
	marker := catalog.First().Locator
	for _, dir := range searchDirs {
		if ok, _ := afero.Exists(fs, filepath.Join(dir, marker)); ok {
			return dir
		}
	}
	return searchDirs[0]
}

// Missing lists catalog clips that are not present under base.
func Missing(fs afero.Fs, base string, catalog domain.Catalog) []domain.Sound {
	var out []domain.Sound
	for _, s := range catalog.All() {
		if ok, _ := afero.Exists(fs, filepath.Join(base, s.Locator)); !ok {
			out = append(out, s)
		}
	}
	return out
}
