package docdex

import (
	"path/filepath"
	"strings"
)

// File name suffixes for the per-index files living next to the data file.
const (
	mappingSuffix    = "_mapping"
	backupSuffix     = ".bak"
	quarantineSuffix = ".corrupt"
)

// indexPaths holds the resolved on-disk locations for one index.
type indexPaths struct {
	data       string
	mapping    string
	backup     string
	quarantine string
}

// pathsFor maps an index name to its file set under root. Names must already
// be validated via checkName.
func pathsFor(root, name string) indexPaths {
	data := filepath.Join(root, name)
	return indexPaths{
		data:       data,
		mapping:    data + mappingSuffix,
		backup:     data + backupSuffix,
		quarantine: data + quarantineSuffix,
	}
}

// checkName rejects blank names and names that would escape the storage root
// or collide with sibling index files.
func checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ErrNameRequired
	}
	return nil
}
