package widget

// Labels are the localized strings placed into the view tree.
type Labels struct {
	ForGroup     string
	Updated      string
	Today        string
	Tomorrow     string
	NotSpecified string
	NoLessons    string
	Refresh      string
}

var catalog = map[string]Labels{
	"en": {
		ForGroup:     "for group:",
		Updated:      "updated:",
		Today:        "today",
		Tomorrow:     "tomorrow",
		NotSpecified: "not specified",
		NoLessons:    "No lessons",
		Refresh:      "refresh",
	},
	"ru": {
		ForGroup:     "для группы:",
		Updated:      "обновлено:",
		Today:        "сегодня",
		Tomorrow:     "завтра",
		NotSpecified: "не указано",
		NoLessons:    "Занятий нет",
		Refresh:      "обновить",
	},
}

// LabelsFor returns the catalog entry for locale, or English.
func LabelsFor(locale string) Labels {
	if l, ok := catalog[locale]; ok {
		return l
	}
	return catalog["en"]
}
