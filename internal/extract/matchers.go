package extract

import (
	"fmt"
	"strings"
)

// Row is one CSV data row keyed by header name. Columns missing from a
// short row are absent from the map.
type Row map[string]string

// Matcher recognises one table shape by the columns it requires and turns
// a row of that shape into a sentence.
type Matcher struct {
	// Name identifies the shape in logs.
	Name string
	// Columns lists the headers that must all be present for the matcher
	// to claim a row.
	Columns []string
	// Format builds the sentence for a claimed row. It returns false when
	// the row is irrelevant or incomplete, in which case the row is skipped.
	Format func(Row) (string, bool)
}

// matches reports whether every required column exists in headers.
func (m Matcher) matches(headers map[string]struct{}) bool {
	for _, c := range m.Columns {
		if _, ok := headers[c]; !ok {
			return false
		}
	}
	return true
}

// FormatRow tries matchers in order against a single row. The first matcher
// whose columns are all present in headers decides the outcome; later
// matchers are not consulted even if it declines the row.
func FormatRow(matchers []Matcher, headers []string, cells []string) (string, bool) {
	set := make(map[string]struct{}, len(headers))
	row := make(Row, len(headers))
	for i, h := range headers {
		set[h] = struct{}{}
		if i < len(cells) {
			row[h] = cells[i]
		}
	}

	for _, m := range matchers {
		if !m.matches(set) {
			continue
		}
		return m.Format(row)
	}
	return "", false
}

// DefaultMatchers returns the shapes of the public safety datasets the
// assistant ships with: fire stations, frontline administrative agencies
// and police stations.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{
			Name:    "fire_station",
			Columns: []string{"소방서", "주소", "전화번호"},
			Format: func(r Row) (string, bool) {
				v, ok := values(r, "소방서", "주소", "전화번호")
				if !ok {
					return "", false
				}
				return fmt.Sprintf("%s의 주소는 %s입니다. 전화번호는 %s입니다.", v[0], v[1], v[2]), true
			},
		},
		{
			Name:    "administrative_agency",
			Columns: []string{"기관유형별분류", "최하위기관명", "대표전화번호", "도로명주소"},
			Format: func(r Row) (string, bool) {
				v, ok := values(r, "최하위기관명", "기관유형별분류", "도로명주소", "대표전화번호")
				if !ok {
					return "", false
				}
				if !strings.Contains(v[1], "소방") && !strings.Contains(v[1], "경찰") {
					return "", false
				}
				return fmt.Sprintf("%s(%s)의 주소는 %s입니다. 대표 전화번호는 %s입니다.", v[0], v[1], v[2], v[3]), true
			},
		},
		{
			Name:    "police_station",
			Columns: []string{"시도경찰청", "경찰서명칭", "경찰서주소"},
			Format: func(r Row) (string, bool) {
				v, ok := values(r, "경찰서명칭", "경찰서주소")
				if !ok {
					return "", false
				}
				name := v[0]
				if agency := strings.TrimSpace(r["시도경찰청"]); agency != "" {
					name = agency + " " + name
				}
				return fmt.Sprintf("%s의 주소는 %s입니다.", name, v[1]), true
			},
		},
	}
}

// values returns the trimmed cells for keys, or false if any is missing
// or blank.
func values(r Row, keys ...string) ([]string, bool) {
	out := make([]string, len(keys))
	for i, k := range keys {
		v, ok := r[k]
		v = strings.TrimSpace(v)
		if !ok || v == "" {
			return nil, false
		}
		out[i] = v
	}
	return out, true
}
