package plan

import (
	"errors"

	"github.com/SuperGenLabs/img-velocity/internal/policy"
	"github.com/SuperGenLabs/img-velocity/internal/rules"
)

// ErrNoEligibleVariants is returned when the source is valid for its bucket
// but smaller than every configured output size.
var ErrNoEligibleVariants = errors.New("no eligible variants: source smaller than every configured output")

// Target is one planned output: dimensions, encode quality, and whether it
// is a thumbnail variant.
type Target struct {
	Width, Height int
	Quality       int
	Thumbnail     bool
}

// Quality bands. Fixed policy, deliberately independent of image content so
// output sizes stay reproducible across runs.
const (
	qualityThumbnail = 65
	qualitySmall     = 85 // max dimension <= 800
	qualityMedium    = 90 // max dimension <= 2000
	qualityLarge     = 82
)

// Quality returns the encode quality for an output of the given dimensions.
func Quality(width, height int, thumbnail bool) int {
	if thumbnail {
		return qualityThumbnail
	}
	maxDim := width
	if height > maxDim {
		maxDim = height
	}
	switch {
	case maxDim <= 800:
		return qualitySmall
	case maxDim <= 2000:
		return qualityMedium
	default:
		return qualityLarge
	}
}

// sharpenThreshold is the scale below which a resize counts as a
// significant downscale and receives a sharpening pass.
const sharpenThreshold = 0.75

// SharpenSigma maps a resize to the Gaussian sigma for the post-resize
// sharpening pass. The scale is taken on the smaller axis to stay
// conservative. Strength steps up with the downscale factor but is capped
// so the strongest band cannot produce visible halos.
//
//	scale >= 0.75  → 0 (no sharpening)
//	scale >= 0.5   → 0.6
//	scale <  0.5   → 1.0
func SharpenSigma(srcW, srcH, dstW, dstH int) float64 {
	if srcW <= 0 || srcH <= 0 {
		return 0
	}
	scale := float64(dstW) / float64(srcW)
	if s := float64(dstH) / float64(srcH); s < scale {
		scale = s
	}
	switch {
	case scale >= sharpenThreshold:
		return 0
	case scale >= 0.5:
		return 0.6
	default:
		return 1.0
	}
}

// Targets plans the ordered output list for a validated source: the rule's
// standard ladder first, then thumbnails when requested, each filtered so no
// target exceeds the source on either axis. A resolution override replaces
// the rule's ladders with one derived from the override size.
func Targets(srcW, srcH int, rule rules.Rule, thumbnails bool, p *policy.Policy) ([]Target, error) {
	sizes := rule.Sizes
	thumbSizes := rule.Thumbnails
	if p.HasResolution() {
		sizes, thumbSizes = overrideLadder(p.MinWidth, p.MinHeight)
	}

	var targets []Target
	for _, s := range sizes {
		if s.W > srcW || s.H > srcH {
			continue
		}
		targets = append(targets, Target{
			Width: s.W, Height: s.H,
			Quality: Quality(s.W, s.H, false),
		})
	}
	if thumbnails {
		for _, s := range thumbSizes {
			if s.W > srcW || s.H > srcH {
				continue
			}
			targets = append(targets, Target{
				Width: s.W, Height: s.H,
				Quality:   Quality(s.W, s.H, true),
				Thumbnail: true,
			})
		}
	}

	if len(targets) == 0 {
		return nil, ErrNoEligibleVariants
	}
	return targets, nil
}

// Ladder derivation for resolution overrides: the override size is the top
// of the ladder, scaled down by fixed factors with a 50px floor; thumbnail
// candidates use much smaller factors, a 25px floor, and must be strictly
// smaller than every standard size on both axes and by area.
var (
	ladderFactors = []float64{0.75, 0.5, 0.375, 0.25, 0.125}
	thumbFactors  = []float64{0.05, 0.03, 0.02}
)

func overrideLadder(width, height int) (sizes, thumbs []rules.Size) {
	sizes = []rules.Size{{W: width, H: height}}
	for _, f := range ladderFactors {
		w := int(float64(width) * f)
		h := int(float64(height) * f)
		if w >= 50 && h >= 50 {
			sizes = append(sizes, rules.Size{W: w, H: h})
		}
	}

	minArea := sizes[0].Area()
	minW, minH := sizes[0].W, sizes[0].H
	for _, s := range sizes[1:] {
		if s.Area() < minArea {
			minArea = s.Area()
		}
		if s.W < minW {
			minW = s.W
		}
		if s.H < minH {
			minH = s.H
		}
	}

	for _, f := range thumbFactors {
		w := int(float64(width) * f)
		h := int(float64(height) * f)
		if w < 25 || h < 25 {
			continue
		}
		if w*h < minArea && w < minW && h < minH {
			thumbs = append(thumbs, rules.Size{W: w, H: h})
		}
	}
	return sizes, thumbs
}
