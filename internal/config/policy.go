package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// LoadPolicy reads a standalone brand-policy YAML file and overlays it onto
// the configured brands. Operators use this to adjust size allow-lists
// without touching the main config. The file shape is:
//
//	brands:
//	  - name: Starbucks
//	    label: 스타벅스
//	    size_allowlist: [TALL, GRANDE, VENTI]
//
// Brands named in the policy file replace the matching configured brand;
// unknown brands are appended in file order.
func LoadPolicy(path string, brands []BrandConfig) ([]BrandConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read policy %s", path)
	}

	var wrapper struct {
		Brands []BrandConfig `yaml:"brands"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "config: parse policy")
	}

	merged := make([]BrandConfig, len(brands))
	copy(merged, brands)
	for _, override := range wrapper.Brands {
		replaced := false
		for i, existing := range merged {
			if existing.Name != override.Name {
				continue
			}
			if override.Label == "" {
				override.Label = existing.Label
			}
			if override.Feed == "" {
				override.Feed = existing.Feed
			}
			merged[i] = override
			replaced = true
			break
		}
		if !replaced {
			merged = append(merged, override)
		}
	}

	return merged, nil
}
