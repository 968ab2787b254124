package extractor

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile describes the shape of the watched listing document: the marker
// tokens bounding one entry block, captions to ignore, and the document's
// character encoding. Defaults match the contest entry page; a YAML file
// can override them when the source drifts.
type Profile struct {
	Encoding   string         `yaml:"encoding"`
	Markers    ProfileMarkers `yaml:"markers"`
	Exclusions []string       `yaml:"exclusions"`
}

type ProfileMarkers struct {
	EntryOpen  string `yaml:"entry_open"`
	EntryClose string `yaml:"entry_close"`
	TitleOpen  string `yaml:"title_open"`
	TitleClose string `yaml:"title_close"`
	Download   string `yaml:"download"`
	Author     string `yaml:"author"`
}

func DefaultProfile() *Profile {
	return &Profile{
		Encoding: "Shift_JIS",
		Markers: ProfileMarkers{
			EntryOpen:  "【",
			EntryClose: "】",
			TitleOpen:  "『",
			TitleClose: "』",
			Download:   "ダウンロード",
			Author:     "作者",
		},
		Exclusions: []string{
			"エントリー一覧",
			"作品一覧",
			"entry list",
			"エントリー作品",
		},
	}
}

// LoadProfile reads a profile file and overlays it on the defaults.
// An empty path returns the defaults unchanged.
func LoadProfile(path string) (*Profile, error) {
	profile := DefaultProfile()
	if path == "" {
		return profile, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	var override Profile
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, fmt.Errorf("failed to parse profile %s: %w", path, err)
	}

	if override.Encoding != "" {
		profile.Encoding = override.Encoding
	}
	if override.Markers.EntryOpen != "" {
		profile.Markers.EntryOpen = override.Markers.EntryOpen
	}
	if override.Markers.EntryClose != "" {
		profile.Markers.EntryClose = override.Markers.EntryClose
	}
	if override.Markers.TitleOpen != "" {
		profile.Markers.TitleOpen = override.Markers.TitleOpen
	}
	if override.Markers.TitleClose != "" {
		profile.Markers.TitleClose = override.Markers.TitleClose
	}
	if override.Markers.Download != "" {
		profile.Markers.Download = override.Markers.Download
	}
	if override.Markers.Author != "" {
		profile.Markers.Author = override.Markers.Author
	}
	if len(override.Exclusions) > 0 {
		profile.Exclusions = override.Exclusions
	}

	return profile, nil
}
