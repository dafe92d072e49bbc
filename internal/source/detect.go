// Package source finds the event-stream files under a root directory.
//
// Roots come in three shapes: a standard ~/.claude tree (projects/<dir>/*.jsonl),
// a backup folder holding one sub-directory per project, or a flat folder of
// .jsonl files. The first shape that matches is used for the whole root.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zhaobenny/ccwrapped/internal/parser"
)

// Layout classifies a source root
type Layout int

const (
	LayoutNone Layout = iota
	LayoutStandard
	LayoutProjectsFolder
	LayoutFlat
)

func (l Layout) String() string {
	switch l {
	case LayoutStandard:
		return "standard"
	case LayoutProjectsFolder:
		return "projects-folder"
	case LayoutFlat:
		return "flat"
	default:
		return "none"
	}
}

func (l Layout) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

const (
	streamExt   = ".jsonl"
	projectsDir = "projects"
	historyFile = "history.jsonl"
)

// ErrUnreadable is returned when a root does not exist or cannot be listed
var ErrUnreadable = errors.New("source root unreadable")

// Options controls discovery
type Options struct {
	// IncludeHistory adds <root>/history.jsonl for standard roots
	IncludeHistory bool
}

// Stream is one event-stream file
type Stream struct {
	Path string
	// Project is the layout-assigned project name; empty means resolve
	// per record from its working directory.
	Project string
}

// Source is a classified root and its streams, in read order
type Source struct {
	Root     string
	Layout   Layout
	Streams  []Stream
	Warnings []error
}

// Detect classifies root without collecting streams
func Detect(root string) Layout {
	if isDir(filepath.Join(root, projectsDir)) {
		return LayoutStandard
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return LayoutNone
	}
	for _, e := range entries {
		if entryIsDir(root, e) && containsStream(filepath.Join(root, e.Name())) {
			return LayoutProjectsFolder
		}
	}
	for _, e := range entries {
		if isStreamEntry(e) {
			return LayoutFlat
		}
	}
	return LayoutNone
}

// Discover classifies root and lists its streams in lexical path order
func Discover(root string, opts Options) (Source, error) {
	src := Source{Root: root}

	info, err := os.Stat(root)
	if err != nil {
		return src, fmt.Errorf("%w: %s: %w", ErrUnreadable, root, err)
	}
	if !info.IsDir() {
		return src, fmt.Errorf("%w: %s: not a directory", ErrUnreadable, root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return src, fmt.Errorf("%w: %s: %w", ErrUnreadable, root, err)
	}

	src.Layout = Detect(root)

	switch src.Layout {
	case LayoutStandard:
		dir := filepath.Join(root, projectsDir)
		for _, sub := range subdirs(dir, &src.Warnings) {
			for _, path := range walkStreams(sub, &src.Warnings) {
				src.Streams = append(src.Streams, Stream{Path: path})
			}
		}
		history := filepath.Join(root, historyFile)
		if opts.IncludeHistory && isFile(history) {
			src.Streams = append(src.Streams, Stream{Path: history})
		}

	case LayoutProjectsFolder:
		for _, sub := range subdirs(root, &src.Warnings) {
			name := filepath.Base(sub)
			for _, path := range walkStreams(sub, &src.Warnings) {
				src.Streams = append(src.Streams, Stream{Path: path, Project: name})
			}
		}

	case LayoutFlat:
		name := filepath.Base(filepath.Clean(root))
		entries, _ := os.ReadDir(root)
		for _, e := range entries {
			if isStreamEntry(e) {
				src.Streams = append(src.Streams, Stream{Path: filepath.Join(root, e.Name()), Project: name})
			}
		}
	}

	return src, nil
}

// Records opens the stream and parses it lazily. Every iteration re-reads
// the file from the start. An open failure is reported through counts.
func (s Stream) Records(counts *parser.Counts) iter.Seq[parser.RawRecord] {
	if counts == nil {
		counts = &parser.Counts{}
	}

	return func(yield func(parser.RawRecord) bool) {
		file, err := os.Open(s.Path)
		if err != nil {
			counts.Err = err
			return
		}
		defer file.Close()

		for rec := range parser.Parse(file, counts) {
			if !yield(rec) {
				return
			}
		}
	}
}

func subdirs(dir string, warnings *[]error) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		*warnings = append(*warnings, fmt.Errorf("list %s: %w", dir, err))
		return nil
	}

	var dirs []string
	for _, e := range entries {
		if entryIsDir(dir, e) {
			dirs = append(dirs, filepath.Join(dir, e.Name()))
		}
	}
	return dirs
}

// walkStreams finds all JSONL files under dir, recursively. dir itself may be
// a symlink; links further down are not followed.
func walkStreams(dir string, warnings *[]error) []string {
	var files []string

	_ = filepath.WalkDir(walkRoot(dir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			*warnings = append(*warnings, fmt.Errorf("walk %s: %w", path, err))
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), streamExt) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files
}

func containsStream(dir string) bool {
	found := false
	_ = filepath.WalkDir(walkRoot(dir), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if isStreamEntry(d) {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// entryIsDir reports whether e is a directory or a symlink to one
func entryIsDir(parent string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	return isDir(filepath.Join(parent, e.Name()))
}

// walkRoot makes WalkDir stat through a symlinked start directory.
// WalkDir joins child names with filepath.Join, so reported paths stay clean.
func walkRoot(dir string) string {
	return dir + string(filepath.Separator)
}

func isStreamEntry(e fs.DirEntry) bool {
	return !e.IsDir() && strings.HasSuffix(e.Name(), streamExt)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
