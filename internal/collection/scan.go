package collection

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// realFileType resolves the effective file type of a directory entry,
// following symlinks only when allowed.
func realFileType(entry fs.DirEntry, dir string, allowSymlinks bool) (fs.FileMode, error) {
	info, err := entry.Info()
	if err != nil {
		return 0, err
	}
	mode := info.Mode()

	if allowSymlinks && mode&fs.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(filepath.Join(dir, entry.Name()))
		if err != nil {
			return 0, err
		}
		ti, err := os.Stat(target)
		if err != nil {
			return 0, err
		}
		return ti.Mode(), nil
	}
	return mode, nil
}

// ListFolder scans one folder of a collection. base is the collection's
// base directory, rel the folder path within it ("" for the collection
// root). Files and subfolders come back sorted by name; the first usable
// cover image and description file are picked up along the way.
func ListFolder(base, rel string, allowSymlinks bool) (*AudioFolder, error) {
	dir := filepath.Join(base, rel)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read folder %s: %w", dir, err)
	}

	folder := &AudioFolder{
		Files:      []AudioFile{},
		Subfolders: []FolderRef{},
	}

	for _, entry := range entries {
		mode, err := realFileType(entry, dir, allowSymlinks)
		if err != nil {
			// Broken symlink or vanished entry, skip it.
			continue
		}

		name := entry.Name()
		relPath := filepath.Join(rel, name)

		switch {
		case mode.IsDir():
			folder.Subfolders = append(folder.Subfolders, FolderRef{
				Name: name,
				Path: relPath,
			})
		case !mode.IsRegular():
			continue
		case IsAudio(name):
			folder.Files = append(folder.Files, AudioFile{
				Name: name,
				Path: relPath,
				Mime: MimeFor(name),
			})
		case IsCover(name):
			if folder.Cover == nil {
				tf := NewTypedFile(relPath)
				folder.Cover = &tf
			}
		case IsDescription(name):
			if folder.Description == nil {
				tf := NewTypedFile(relPath)
				folder.Description = &tf
			}
		}
	}

	sort.Slice(folder.Files, func(i, j int) bool {
		return folder.Files[i].Name < folder.Files[j].Name
	})
	sort.Slice(folder.Subfolders, func(i, j int) bool {
		return folder.Subfolders[i].Name < folder.Subfolders[j].Name
	})

	return folder, nil
}
