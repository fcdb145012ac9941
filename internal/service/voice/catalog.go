package voice

import "strings"

// Voice is one synthesizer voice the provider advertises.
type Voice struct {
	ID     string
	Name   string
	Locale string
}

// Catalog picks voices on a best-effort basis.
type Catalog struct {
	voices []Voice
}

func NewCatalog(voices []Voice) *Catalog {
	return &Catalog{voices: append([]Voice(nil), voices...)}
}

// Select returns the preferred voice when it is listed for locale, otherwise
// the first voice for locale, otherwise "" so the provider default applies.
func (c *Catalog) Select(locale, preferred string) string {
	if c == nil {
		return ""
	}
	preferred = strings.ToLower(strings.TrimSpace(preferred))

	first := ""
	for _, v := range c.voices {
		if !sameLanguage(v.Locale, locale) {
			continue
		}
		if preferred != "" && (strings.ToLower(v.ID) == preferred || strings.Contains(strings.ToLower(v.Name), preferred)) {
			return v.ID
		}
		if first == "" {
			first = v.ID
		}
	}
	return first
}

// sameLanguage compares BCP 47 tags, falling back to the primary language
// subtag when either side has no region.
func sameLanguage(a, b string) bool {
	a = normalizeTag(a)
	b = normalizeTag(b)
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	la, ra, _ := strings.Cut(a, "-")
	lb, rb, _ := strings.Cut(b, "-")
	return la == lb && (ra == "" || rb == "")
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(tag), "_", "-"))
}
