package internal

// ExtractorSource reads a visit key candidate from the request.
// Returns ("", false) when the source has nothing.
type ExtractorSource = func(Context) (string, bool)

// Extractor tries visit key sources in the configured order.
type Extractor struct {
	sources []ExtractorSource
}

// NewExtractor creates an Extractor that tries the given sources in order.
func NewExtractor(sources ...ExtractorSource) Extractor {
	return Extractor{sources: sources}
}

// Extract returns the first non-empty value.
func (e Extractor) Extract(c Context) (string, bool) {
	for _, src := range e.sources {
		if v, ok := src(c); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// FromCookie reads a plain cookie.
func FromCookie(name string) ExtractorSource {
	return func(c Context) (string, bool) {
		v, err := c.Cookie(name)
		if err != nil || v == "" {
			return "", false
		}
		return v, true
	}
}

// FromCookieSigned reads a signed cookie. A tampered cookie is a miss.
func FromCookieSigned(name string) ExtractorSource {
	return func(c Context) (string, bool) {
		v, err := c.CookieSigned(name)
		if err != nil || v == "" {
			return "", false
		}
		return v, true
	}
}

// PopForm reads a request parameter and removes it so handlers never see it.
func PopForm(name string) ExtractorSource {
	return func(c Context) (string, bool) {
		r := c.Request()
		if err := r.ParseForm(); err != nil {
			return "", false
		}
		v := r.Form.Get(name)
		r.Form.Del(name)
		if r.PostForm != nil {
			r.PostForm.Del(name)
		}
		return v, v != ""
	}
}
