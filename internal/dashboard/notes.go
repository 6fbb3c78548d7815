package dashboard

import (
	"sort"

	"finsview/internal/domain"
)

// NoteGroup is the annotation trail of one ticker, oldest note first.
type NoteGroup struct {
	Ticker string
	Notes  []domain.Note
}

// Latest returns the newest note of the group.
func (g NoteGroup) Latest() domain.Note {
	return g.Notes[len(g.Notes)-1]
}

// GroupNotes groups notes by ticker. Within a group notes run oldest first;
// groups are ordered by their newest note, most recent first.
func GroupNotes(notes []domain.Note) []NoteGroup {
	idx := make(map[string]int)
	var groups []NoteGroup
	for _, n := range notes {
		i, ok := idx[n.Ticker]
		if !ok {
			i = len(groups)
			idx[n.Ticker] = i
			groups = append(groups, NoteGroup{Ticker: n.Ticker})
		}
		groups[i].Notes = append(groups[i].Notes, n)
	}

	for i := range groups {
		ns := groups[i].Notes
		sort.SliceStable(ns, func(a, b int) bool { return ns[a].CreatedAt.Before(ns[b].CreatedAt) })
	}
	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Latest().CreatedAt.After(groups[b].Latest().CreatedAt)
	})
	return groups
}
