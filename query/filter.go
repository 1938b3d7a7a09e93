// Package query builds the metadata filter sent with each question.
package query

import "ragstudio/sources"

// AdHocFilter holds the filter fields entered directly in the query box.
// Empty fields are ignored.
type AdHocFilter struct {
	Category   string
	Department string
	FileType   string
}

// Empty reports whether no ad-hoc field is set.
func (f AdHocFilter) Empty() bool {
	return f.Category == "" && f.Department == "" && f.FileType == ""
}

// BuildFilter merges the current source selection with the ad-hoc fields
// into one metadata filter. Exactly one selected source narrows retrieval to
// that filename; zero or several selected sources add no filename
// restriction. A filter with no entries is returned as nil, never as an
// empty map, because the backend distinguishes absence from emptiness.
func BuildFilter(selected []sources.Source, adhoc AdHocFilter) map[string]string {
	filter := make(map[string]string)

	if adhoc.Category != "" {
		filter["category"] = adhoc.Category
	}
	if adhoc.Department != "" {
		filter["department"] = adhoc.Department
	}
	if adhoc.FileType != "" {
		filter["file_type"] = adhoc.FileType
	}
	if len(selected) == 1 {
		filter["source"] = selected[0].Filename
	}

	if len(filter) == 0 {
		return nil
	}
	return filter
}
