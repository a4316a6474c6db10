// Package queue manages the directory-backed post queue.
//
// Each record is a directory named by its decimal id:
//
//	<root>/<id>/meta.json  (caption, location, upload time)
//	<root>/<id>/ims/*      (image files, published in sorted filename order)
//
// Records live under the unprocessed root until published, then the whole
// directory is renamed into the processed root. The roots are assumed to be
// owned by a single process; there is no locking.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/Sean-McConnachie/delayedgram/internal/schedule"
)

const (
	// MetaFile is the metadata blob inside a record directory.
	MetaFile = "meta.json"
	// ImageDir is the image subdirectory inside a record directory.
	ImageDir = "ims"
)

// Meta is the human-edited part of a record. A nil LocLat/LocLong pair means
// "no location"; new records are written with explicit zero coordinates,
// which Validate rejects until someone fills them in or nulls them out.
type Meta struct {
	Caption  string     `json:"caption"`
	LocLat   *float64   `json:"loc_lat"`
	LocLong  *float64   `json:"loc_long"`
	UploadAt *time.Time `json:"upload_at"`
}

// Post is one queued record.
type Post struct {
	ID     int
	Meta   Meta
	Images []string
}

// Dir returns the record's directory under parent.
func (p Post) Dir(parent string) string {
	return filepath.Join(parent, strconv.Itoa(p.ID))
}

// ImagePaths returns the record's image files under parent, in publish order.
func (p Post) ImagePaths(parent string) []string {
	paths := make([]string, 0, len(p.Images))
	for _, im := range p.Images {
		paths = append(paths, filepath.Join(p.Dir(parent), ImageDir, im))
	}
	return paths
}

// Validate reports whether the record is publishable: at least one image,
// and a location that is either fully unset (both nil) or fully set with
// non-zero coordinates. A half-set pair or a 0.0 component reads as a
// forgotten edit and blocks publishing.
func (p Post) Validate() bool {
	if len(p.Images) == 0 {
		return false
	}
	lat, long := p.Meta.LocLat, p.Meta.LocLong
	if lat == nil && long == nil {
		return true
	}
	if lat == nil || long == nil {
		return false
	}
	return *lat != 0 && *long != 0
}

// WriteEmpty creates the next record under dir: id newest+1 (or 0), empty
// caption, zero coordinates, upload time computed from the newest record's
// slot. The record directory must not already exist; a collision (e.g. a
// concurrent writer) surfaces as the Mkdir error.
func WriteEmpty(dir string, newest *Post, now time.Time, target schedule.TimeOfDay, delay time.Duration) error {
	var last *time.Time
	newID := 0
	if newest != nil {
		newID = newest.ID + 1
		last = newest.Meta.UploadAt
	}
	uploadAt := schedule.NextUploadTime(now, last, target, delay)

	lat, long := 0.0, 0.0
	meta := Meta{Caption: "", LocLat: &lat, LocLong: &long, UploadAt: &uploadAt}

	recordDir := filepath.Join(dir, strconv.Itoa(newID))
	if err := os.Mkdir(recordDir, 0o755); err != nil {
		return fmt.Errorf("create post %d: %w", newID, err)
	}
	if err := os.Mkdir(filepath.Join(recordDir, ImageDir), 0o755); err != nil {
		return fmt.Errorf("create post %d: %w", newID, err)
	}

	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("create post %d: %w", newID, err)
	}
	if err := os.WriteFile(filepath.Join(recordDir, MetaFile), b, 0o644); err != nil {
		return fmt.Errorf("create post %d: %w", newID, err)
	}
	return nil
}

// Load reads the record with the given id from parent.
func Load(id int, parent string) (Post, error) {
	dir := filepath.Join(parent, strconv.Itoa(id))
	metaPath := filepath.Join(dir, MetaFile)

	b, err := os.ReadFile(metaPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Post{}, fmt.Errorf("post %d: %w", id, ErrNotFound)
		}
		return Post{}, fmt.Errorf("post %d: %w", id, err)
	}
	var meta Meta
	if err := json.Unmarshal(b, &meta); err != nil {
		return Post{}, &ParseError{Path: metaPath, Err: err}
	}

	entries, err := os.ReadDir(filepath.Join(dir, ImageDir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Post{}, fmt.Errorf("post %d images: %w", id, ErrNotFound)
		}
		return Post{}, fmt.Errorf("post %d images: %w", id, err)
	}
	// os.ReadDir sorts by filename, which is the publish order.
	images := make([]string, 0, len(entries))
	for _, e := range entries {
		images = append(images, e.Name())
	}

	return Post{ID: id, Meta: meta, Images: images}, nil
}

// LoadAll loads every record under parent, sorted ascending by id.
// A directory entry whose name is not a decimal integer is a ParseError.
func LoadAll(parent string) ([]Post, error) {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", parent, err)
	}
	posts := make([]Post, 0, len(entries))
	for _, e := range entries {
		id, err := strconv.Atoi(e.Name())
		if err != nil {
			return nil, &ParseError{
				Path: filepath.Join(parent, e.Name()),
				Err:  fmt.Errorf("unexpected entry %q in queue directory", e.Name()),
			}
		}
		p, err := Load(id, parent)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].ID < posts[j].ID })
	return posts, nil
}

// Relocate renames the record directory from one root to another. The rename
// either fully succeeds or leaves the record where it was.
func Relocate(id int, from, to string) error {
	name := strconv.Itoa(id)
	if err := os.Rename(filepath.Join(from, name), filepath.Join(to, name)); err != nil {
		return fmt.Errorf("relocate post %d: %w", id, err)
	}
	return nil
}
