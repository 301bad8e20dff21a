package render

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	"github.com/SuperGenLabs/img-velocity/internal/fsutil"
	"github.com/SuperGenLabs/img-velocity/internal/manifest"
	"github.com/SuperGenLabs/img-velocity/internal/plan"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Error wraps a codec or I/O failure for one variant. The destination file
// is never left behind in a partial state: encoding happens fully in memory
// and the write is temp-file + rename.
type Error struct {
	Target string
	Err    error
}

func (e *Error) Error() string { return fmt.Sprintf("render %s: %v", e.Target, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Task is the per-source context shared by all of a source's variants.
type Task struct {
	Stem      string // sanitized source stem
	Folder    string // aspect-ratio bucket folder
	SrcWidth  int
	SrcHeight int
}

// Probe reads just enough of the file to report dimensions and format.
func Probe(path string) (width, height int, format string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return cfg.Width, cfg.Height, format, nil
}

// Decode loads the full image.
func Decode(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// Renderer produces variant files under OutputRoot.
type Renderer struct {
	OutputRoot string
	Log        zerolog.Logger
}

// Render resizes src to the target, sharpens when the downscale is
// significant, encodes lossy WebP at the planned quality, and persists the
// result. Alpha survives the whole chain: resize and sharpen operate on
// NRGBA and the encoder keeps the channel.
func (r *Renderer) Render(src image.Image, t Task, target plan.Target) (manifest.Variant, error) {
	name := fmt.Sprintf("%s-%dx%d.webp", t.Stem, target.Width, target.Height)
	if target.Thumbnail {
		name = "thumbnail-" + name
	}
	outPath := filepath.Join(r.OutputRoot, t.Folder, t.Stem, name)

	if err := fsutil.WithinRoot(r.OutputRoot, outPath); err != nil {
		return manifest.Variant{}, &Error{Target: name, Err: err}
	}

	resized := imaging.Resize(src, target.Width, target.Height, imaging.Lanczos)
	if sigma := plan.SharpenSigma(t.SrcWidth, t.SrcHeight, target.Width, target.Height); sigma > 0 {
		resized = imaging.Sharpen(resized, sigma)
	}

	var buf bytes.Buffer
	buf.Grow(128 * 1024)
	opts := &webp.Options{Lossless: false, Quality: float32(target.Quality)}
	if err := webp.Encode(&buf, resized, opts); err != nil {
		return manifest.Variant{}, &Error{Target: name, Err: err}
	}

	if err := fsutil.WriteFileAtomic(outPath, buf.Bytes(), 0o644); err != nil {
		return manifest.Variant{}, &Error{Target: name, Err: err}
	}

	rel := filepath.ToSlash(filepath.Join(t.Folder, t.Stem, name))
	r.Log.Debug().Str("path", rel).Int("quality", target.Quality).Msg("variant written")

	vtype := manifest.TypeStandard
	if target.Thumbnail {
		vtype = manifest.TypeThumbnail
	}
	return manifest.Variant{
		Path:   rel,
		Width:  target.Width,
		Height: target.Height,
		Size:   int64(buf.Len()),
		Type:   vtype,
	}, nil
}
