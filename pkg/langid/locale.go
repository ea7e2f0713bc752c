package langid

// locales is the canonical tag-to-locale table. All code that needs a
// recognizer locale or a display name goes through this table; there is
// deliberately exactly one copy of it.
var locales = map[Tag]struct {
	locale string
	name   string
}{
	English:  {"en-US", "English"},
	Chinese:  {"zh-CN", "Chinese"},
	Japanese: {"ja-JP", "Japanese"},
	Korean:   {"ko-KR", "Korean"},
	Russian:  {"ru-RU", "Russian"},
	Arabic:   {"ar-SA", "Arabic"},
	Hindi:    {"hi-IN", "Hindi"},
	Thai:     {"th-TH", "Thai"},
	Greek:    {"el-GR", "Greek"},
	Spanish:  {"es-ES", "Spanish"},
	French:   {"fr-FR", "French"},
	German:   {"de-DE", "German"},
}

// Locale returns the BCP-47 recognizer locale for a tag. Tags outside the
// table fall back to "<tag>-<TAG uppercased>" so unseen codes still produce
// a plausible locale instead of failing.
func Locale(tag Tag) string {
	if l, ok := locales[tag]; ok {
		return l.locale
	}
	if tag == Unknown {
		return ""
	}
	s := string(tag)
	return s + "-" + upper(s)
}

// DisplayName returns the English display name for a tag, or the raw code
// when the tag is not in the table.
func DisplayName(tag Tag) string {
	if l, ok := locales[tag]; ok {
		return l.name
	}
	return string(tag)
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
