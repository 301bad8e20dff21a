package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/SuperGenLabs/img-velocity/internal/ratio"
	"github.com/SuperGenLabs/img-velocity/internal/rules"
)

// ErrAspectRatioMismatch is returned when a policy restricts the run to one
// ratio and an image classifies as a different one.
var ErrAspectRatioMismatch = errors.New("aspect ratio mismatch")

// MinResolutionError reports a source smaller than the effective minimums.
type MinResolutionError struct {
	Width, Height       int
	MinWidth, MinHeight int
}

func (e *MinResolutionError) Error() string {
	return fmt.Sprintf("below minimum resolution: %dx%d, need at least %dx%d",
		e.Width, e.Height, e.MinWidth, e.MinHeight)
}

// Policy is a caller-supplied relaxation or restriction of the rule table's
// validation, scoped to one batch run. The zero value applies rule defaults.
//
// Precedence: AcceptAll bypasses every check; otherwise a Ratio restriction
// rejects mismatched images regardless of size; otherwise an explicit
// minimum resolution replaces the rule's minimums.
type Policy struct {
	AcceptAll bool
	Ratio     *ratio.Key
	MinWidth  int
	MinHeight int
}

// HasResolution reports whether the policy carries explicit minimums.
func (p *Policy) HasResolution() bool {
	return p != nil && p.MinWidth > 0 && p.MinHeight > 0
}

var resolutionPattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

// maxDimension bounds accepted resolution overrides so a typo cannot turn
// into a multi-gigabyte allocation downstream.
const maxDimension = 50000

// FromFlags builds a Policy from the CLI override flags. All empty/false
// inputs yield nil, meaning rule defaults apply.
func FromFlags(acceptAll bool, onlyRatio, minResolution string) (*Policy, error) {
	if !acceptAll && onlyRatio == "" && minResolution == "" {
		return nil, nil
	}

	p := &Policy{AcceptAll: acceptAll}

	if onlyRatio != "" {
		key, err := ratio.Parse(onlyRatio)
		if err != nil {
			return nil, err
		}
		p.Ratio = &key
	}

	if minResolution != "" {
		m := resolutionPattern.FindStringSubmatch(minResolution)
		if m == nil {
			return nil, fmt.Errorf("invalid resolution %q, expected a form like 1920x1080", minResolution)
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		if w < 1 || h < 1 || w > maxDimension || h > maxDimension {
			return nil, fmt.Errorf("resolution %q outside valid range 1-%d", minResolution, maxDimension)
		}
		p.MinWidth, p.MinHeight = w, h
	}

	return p, nil
}

// Validate decides whether an image with the given dimensions and classified
// key satisfies the rule's minimums under the policy. It is pure; it never
// touches the filesystem.
func Validate(width, height int, key ratio.Key, rule rules.Rule, p *Policy) error {
	if p != nil {
		if p.AcceptAll {
			return nil
		}
		if p.Ratio != nil && key != *p.Ratio {
			return fmt.Errorf("%w: image is %s, run restricted to %s",
				ErrAspectRatioMismatch, key, *p.Ratio)
		}
		if p.HasResolution() {
			if width < p.MinWidth || height < p.MinHeight {
				return &MinResolutionError{
					Width: width, Height: height,
					MinWidth: p.MinWidth, MinHeight: p.MinHeight,
				}
			}
			return nil
		}
	}

	if width < rule.MinWidth || height < rule.MinHeight {
		return &MinResolutionError{
			Width: width, Height: height,
			MinWidth: rule.MinWidth, MinHeight: rule.MinHeight,
		}
	}
	return nil
}

// String describes the active overrides for run logs.
func (p *Policy) String() string {
	if p == nil {
		return "defaults"
	}
	switch {
	case p.AcceptAll && p.Ratio == nil && !p.HasResolution():
		return "accept all"
	case p.Ratio != nil && p.HasResolution():
		return fmt.Sprintf("ratio %s, min %dx%d", *p.Ratio, p.MinWidth, p.MinHeight)
	case p.Ratio != nil:
		return fmt.Sprintf("ratio %s", *p.Ratio)
	case p.HasResolution():
		return fmt.Sprintf("min %dx%d", p.MinWidth, p.MinHeight)
	default:
		return "accept all"
	}
}
