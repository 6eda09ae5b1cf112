package model

import (
	"sort"
	"strings"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// SortableFields lists the attributes the listing can be ordered by
var SortableFields = []string{"id", "name", "gender", "role", "created_at"}

// MonsterSearch holds the listing filters taken from the query string
type MonsterSearch struct {
	ID      int64
	Name    string
	Gender  string
	Role    string
	Sort    string
	Page    int
	PerPage int
}

// Normalize clamps paging values and drops unknown sort keys
func (s *MonsterSearch) Normalize() {
	if s.Page < 1 {
		s.Page = 1
	}
	if s.PerPage < 1 {
		s.PerPage = DefaultPerPage
	}
	if s.PerPage > MaxPerPage {
		s.PerPage = MaxPerPage
	}
	s.Name = strings.TrimSpace(s.Name)
	if _, _, ok := s.SortField(); !ok {
		s.Sort = ""
	}
}

// SortField returns the attribute and direction encoded in Sort ("-name" is descending)
func (s MonsterSearch) SortField() (field string, desc bool, ok bool) {
	if s.Sort == "" {
		return "id", false, true
	}
	field = strings.TrimPrefix(s.Sort, "-")
	desc = strings.HasPrefix(s.Sort, "-")
	for _, f := range SortableFields {
		if f == field {
			return field, desc, true
		}
	}
	return "", false, false
}

// Offset of the first record of the page
func (s MonsterSearch) Offset() int {
	return (s.Page - 1) * s.PerPage
}

// Matches applies the filters to one record. Name is a case-insensitive substring match.
func (s MonsterSearch) Matches(m Monster) bool {
	if s.ID > 0 && m.ID != s.ID {
		return false
	}
	if s.Name != "" && !strings.Contains(strings.ToLower(m.Name), strings.ToLower(s.Name)) {
		return false
	}
	if s.Gender != "" && m.Gender != s.Gender {
		return false
	}
	if s.Role != "" && m.Role != s.Role {
		return false
	}
	return true
}

// Apply filters, sorts and paginates an in-memory record set
func (s MonsterSearch) Apply(all []Monster) MonsterPage {
	s.Normalize()

	var matched []Monster
	for _, m := range all {
		if s.Matches(m) {
			matched = append(matched, m)
		}
	}

	field, desc, _ := s.SortField()
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return lessBy(field, matched[j], matched[i])
		}
		return lessBy(field, matched[i], matched[j])
	})

	page := MonsterPage{Total: len(matched), Page: s.Page, PerPage: s.PerPage}
	start := s.Offset()
	if start < len(matched) {
		end := start + s.PerPage
		if end > len(matched) {
			end = len(matched)
		}
		page.Items = matched[start:end]
	}
	return page
}

func lessBy(field string, a, b Monster) bool {
	switch field {
	case "name":
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	case "gender":
		return a.Gender < b.Gender
	case "role":
		return a.Role < b.Role
	case "created_at":
		return a.CreatedAt.Before(b.CreatedAt)
	default:
		return a.ID < b.ID
	}
}

// MonsterPage is one page of a listing
type MonsterPage struct {
	Items   []Monster
	Total   int
	Page    int
	PerPage int
}

// PageCount returns the number of pages, at least one
func (p MonsterPage) PageCount() int {
	if p.PerPage < 1 || p.Total == 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

func (p MonsterPage) HasPrev() bool { return p.Page > 1 }
func (p MonsterPage) HasNext() bool { return p.Page < p.PageCount() }
func (p MonsterPage) PrevPage() int { return p.Page - 1 }
func (p MonsterPage) NextPage() int { return p.Page + 1 }
