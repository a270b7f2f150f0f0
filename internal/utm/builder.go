// Package utm builds campaign tracking links and QR codes for them.
package utm

import (
	"net/url"
	"strings"
)

// Params are the tracking fields appended to a destination URL.
type Params struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
	Term     string `json:"term,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Preset pre-fills source and medium for a known platform.
type Preset struct {
	Key    string `json:"key"`
	Label  string `json:"label"`
	Source string `json:"source"`
	Medium string `json:"medium"`
}

// Presets lists the platform presets offered by the generator. The custom
// preset leaves source and medium blank for manual entry.
func Presets() []Preset {
	return []Preset{
		{Key: "youtube", Label: "YouTube", Source: "youtube", Medium: "video"},
		{Key: "instagram", Label: "Instagram", Source: "instagram", Medium: "social"},
		{Key: "facebook", Label: "Facebook", Source: "facebook", Medium: "social"},
		{Key: "twitter", Label: "Twitter / X", Source: "twitter", Medium: "social"},
		{Key: "linkedin", Label: "LinkedIn", Source: "linkedin", Medium: "social"},
		{Key: "tiktok", Label: "TikTok", Source: "tiktok", Medium: "social"},
		{Key: "custom", Label: "Custom", Source: "", Medium: ""},
	}
}

// PresetByKey returns the preset with the given key, or nil.
func PresetByKey(key string) *Preset {
	for _, p := range Presets() {
		if p.Key == key {
			return &p
		}
	}
	return nil
}

// utm parameter order is fixed so equal inputs always yield equal links
var paramOrder = []struct {
	key string
	get func(Params) string
}{
	{"utm_source", func(p Params) string { return p.Source }},
	{"utm_medium", func(p Params) string { return p.Medium }},
	{"utm_campaign", func(p Params) string { return p.Campaign }},
	{"utm_term", func(p Params) string { return p.Term }},
	{"utm_content", func(p Params) string { return p.Content }},
}

// Build appends the tracking parameters to a destination URL. Fields are
// trimmed and empty fields are omitted. The destination must be an
// absolute http or https URL; anything else yields an empty string and
// ok=false.
func Build(destination string, p Params) (link string, ok bool) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", false
	}

	u, err := url.Parse(destination)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}

	// Keep any non-tracking query parameters in their original order and
	// drop stale utm_ parameters before appending the new ones.
	var pairs []string
	if u.RawQuery != "" {
		for _, pair := range strings.Split(u.RawQuery, "&") {
			key, _, _ := strings.Cut(pair, "=")
			if pair == "" || strings.HasPrefix(key, "utm_") {
				continue
			}
			pairs = append(pairs, pair)
		}
	}
	for _, entry := range paramOrder {
		v := strings.TrimSpace(entry.get(p))
		if v == "" {
			continue
		}
		pairs = append(pairs, entry.key+"="+url.QueryEscape(v))
	}

	u.RawQuery = strings.Join(pairs, "&")
	return u.String(), true
}

// Form is the generator's editable state. Selecting a platform preset
// overwrites source and medium with the preset values, replacing any
// manual edits.
type Form struct {
	Destination string
	Platform    string
	Params      Params
}

// SetPlatform applies a preset to the form.
func (f *Form) SetPlatform(key string) {
	p := PresetByKey(key)
	if p == nil {
		return
	}
	f.Platform = p.Key
	f.Params.Source = p.Source
	f.Params.Medium = p.Medium
}

// Link builds the tracking link for the current form state.
func (f *Form) Link() (string, bool) {
	return Build(f.Destination, f.Params)
}
