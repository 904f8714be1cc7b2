package behavior

import (
	"sort"
	"time"
)

// Ranked is one candidate id with its score.
type Ranked struct {
	ID    string
	Score float64
	Count int
	Last  time.Time
}

// RankProjects ranks the projects in entries, best first.
// Entries without a project are ignored.
func RankProjects(entries []Entry, now time.Time) []Ranked {
	return rank(entries, now, func(e Entry) string { return e.ProjectID })
}

// RankRoutes ranks the routes in entries, best first.
func RankRoutes(entries []Entry, now time.Time) []Ranked {
	return rank(entries, now, func(e Entry) string { return e.Route })
}

/*
rank scores every id by recency-weighted frequency:

	score(id) = Σ 1 / (1 + ageHours)

so a visit a minute ago weighs close to 1 and a visit a day ago about 0.04.
Ties go to the most recent visit, then to the smaller id.
*/
func rank(entries []Entry, now time.Time, idOf func(Entry) string) []Ranked {
	byID := make(map[string]*Ranked)
	for _, e := range entries {
		id := idOf(e)
		if id == "" {
			continue
		}
		r, ok := byID[id]
		if !ok {
			r = &Ranked{ID: id}
			byID[id] = r
		}

		age := now.Sub(e.Timestamp).Hours()
		if age < 0 {
			age = 0
		}
		r.Score += 1 / (1 + age)
		r.Count++
		if e.Timestamp.After(r.Last) {
			r.Last = e.Timestamp
		}
	}

	out := make([]Ranked, 0, len(byID))
	for _, r := range byID {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if !out[i].Last.Equal(out[j].Last) {
			return out[i].Last.After(out[j].Last)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Top returns the ids of the first n ranked items.
func Top(ranked []Ranked, n int) []string {
	if n <= 0 {
		return nil
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	ids := make([]string, 0, n)
	for _, r := range ranked[:n] {
		ids = append(ids, r.ID)
	}
	return ids
}
