package uploader

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
)

type Record struct {
	Path  string
	Name  string
	Split string
	Class string
	Size  int64
}

var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

func isImage(name string) bool {
	return imageExts[strings.ToLower(path.Ext(name))]
}

// Stats counts images per split and class folder.
type Stats map[string]map[string]int

func (s Stats) Total() int {
	total := 0
	for _, classes := range s {
		for _, n := range classes {
			total += n
		}
	}
	return total
}

// Classes returns the sorted union of class names seen across splits.
func (s Stats) Classes() []string {
	seen := make(map[string]bool)
	for _, classes := range s {
		for name := range classes {
			seen[name] = true
		}
	}
	res := make([]string, 0, len(seen))
	for name := range seen {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// Verify checks the {split}/{class}/*.{png,jpg,jpeg} layout under root.
// A missing root or split directory is fatal; an empty or missing class
// folder only produces a warning during upload.
func Verify(root string, splits []string) (Stats, error) {
	finfo, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ConfigErrorf("dataset root not found: %s", root)
		}
		return nil, err
	}
	if !finfo.IsDir() {
		return nil, ConfigErrorf("dataset root is not a directory: %s", root)
	}

	stats := make(Stats, len(splits))
	for _, split := range splits {
		splitPath := path.Join(root, split)
		if _, err := os.Stat(splitPath); err != nil {
			if os.IsNotExist(err) {
				return nil, ConfigErrorf("missing %s directory under %s", split, root)
			}
			return nil, err
		}
		stats[split] = make(map[string]int)
		entries, err := os.ReadDir(splitPath)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			n, err := countImages(path.Join(splitPath, entry.Name()))
			if err != nil {
				return nil, err
			}
			stats[split][entry.Name()] = n
		}
	}
	return stats, nil
}

func countImages(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if isImage(entry.Name()) {
			n++
		}
	}
	return n, nil
}

// List walks root/{split}/{class} and returns one Record per image file,
// splits in configured order, classes and file names sorted. Recomputed
// from disk on every call.
func List(root string, splits []string) ([]Record, error) {
	records := make([]Record, 0)
	for _, split := range splits {
		splitPath := path.Join(root, split)
		classes, err := os.ReadDir(splitPath)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ConfigErrorf("missing %s directory under %s", split, root)
			}
			return nil, err
		}
		for _, class := range classes {
			if !class.IsDir() || strings.HasPrefix(class.Name(), ".") {
				continue
			}
			classPath := path.Join(splitPath, class.Name())
			files, err := os.ReadDir(classPath)
			if err != nil {
				return nil, err
			}
			for _, file := range files {
				if file.IsDir() || strings.HasPrefix(file.Name(), ".") {
					continue
				}
				if !isImage(file.Name()) {
					continue
				}
				info, err := file.Info()
				if err != nil {
					return nil, err
				}
				records = append(records, Record{
					Path:  path.Join(classPath, file.Name()),
					Name:  file.Name(),
					Split: split,
					Class: class.Name(),
					Size:  info.Size(),
				})
			}
		}
	}
	return records, nil
}

// ListAsync streams Records over a channel, recomputing the walk from
// disk on every call. Walk errors are logged and close the channel.
func ListAsync(root string, splits []string) chan Record {
	rchan := make(chan Record)
	go func() {
		defer close(rchan)
		records, err := List(root, splits)
		if err != nil {
			log.Warn(err)
			return
		}
		for _, rec := range records {
			rchan <- rec
		}
	}()
	return rchan
}

func fmtFolder(split, class string) string {
	return fmt.Sprintf("%s/%s", split, class)
}
