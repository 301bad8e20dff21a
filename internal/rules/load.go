package rules

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/SuperGenLabs/img-velocity/internal/ratio"
)

// fileTable mirrors the on-disk rule file layout (YAML, JSON or TOML,
// whatever viper recognizes from the extension).
type fileTable struct {
	Rules []fileRule `mapstructure:"rules"`
}

type fileRule struct {
	Ratio      string  `mapstructure:"ratio"`
	MinWidth   int     `mapstructure:"min_width"`
	MinHeight  int     `mapstructure:"min_height"`
	Folder     string  `mapstructure:"folder"`
	Sizes      [][]int `mapstructure:"sizes"`
	Thumbnails [][]int `mapstructure:"thumbnails"`
}

// Load reads a rule table from a config file, replacing the builtin table
// entirely. The file must define at least one rule.
func Load(path string) (*Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var ft fileTable
	if err := v.Unmarshal(&ft); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(ft.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s defines no rules", path)
	}

	out := make([]Rule, 0, len(ft.Rules))
	for i, fr := range ft.Rules {
		r, err := fr.toRule()
		if err != nil {
			return nil, fmt.Errorf("rules file %s, rule %d: %w", path, i, err)
		}
		out = append(out, r)
	}
	return NewTable(out), nil
}

func (fr fileRule) toRule() (Rule, error) {
	key, err := ratio.Parse(fr.Ratio)
	if err != nil {
		return Rule{}, err
	}
	if fr.MinWidth <= 0 || fr.MinHeight <= 0 {
		return Rule{}, fmt.Errorf("ratio %s: minimum resolution must be positive, got %dx%d",
			fr.Ratio, fr.MinWidth, fr.MinHeight)
	}
	if fr.Folder == "" {
		return Rule{}, fmt.Errorf("ratio %s: folder is required", fr.Ratio)
	}
	sizes, err := toSizes(fr.Sizes)
	if err != nil {
		return Rule{}, fmt.Errorf("ratio %s sizes: %w", fr.Ratio, err)
	}
	if len(sizes) == 0 {
		return Rule{}, fmt.Errorf("ratio %s: at least one output size is required", fr.Ratio)
	}
	thumbs, err := toSizes(fr.Thumbnails)
	if err != nil {
		return Rule{}, fmt.Errorf("ratio %s thumbnails: %w", fr.Ratio, err)
	}
	return Rule{
		Ratio:      key,
		MinWidth:   fr.MinWidth,
		MinHeight:  fr.MinHeight,
		Folder:     fr.Folder,
		Sizes:      sizes,
		Thumbnails: thumbs,
	}, nil
}

func toSizes(pairs [][]int) ([]Size, error) {
	sizes := make([]Size, 0, len(pairs))
	for _, p := range pairs {
		if len(p) != 2 {
			return nil, fmt.Errorf("size entries must be [width, height] pairs, got %v", p)
		}
		if p[0] <= 0 || p[1] <= 0 {
			return nil, fmt.Errorf("size dimensions must be positive, got %dx%d", p[0], p[1])
		}
		sizes = append(sizes, Size{W: p[0], H: p[1]})
	}
	return sizes, nil
}
