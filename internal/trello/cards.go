package trello

import (
	"sort"
	"strings"

	"worksync/internal"
)

type List struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Closed bool   `json:"closed"`
}

type Label struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type CheckItem struct {
	Name  string  `json:"name"`
	State string  `json:"state"`
	Pos   float64 `json:"pos"`
}

type Checklist struct {
	ID         string      `json:"id"`
	IDCard     string      `json:"idCard"`
	Name       string      `json:"name"`
	Pos        float64     `json:"pos"`
	CheckItems []CheckItem `json:"checkItems"`
}

type Card struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Desc       string      `json:"desc"`
	IDList     string      `json:"idList"`
	Closed     bool        `json:"closed"`
	Due        string      `json:"due"`
	ShortURL   string      `json:"shortUrl"`
	Pos        float64     `json:"pos"`
	Labels     []Label     `json:"labels"`
	Checklists []Checklist `json:"checklists"`
}

// toRawCards resolves list names and flattens labels and checklist items, keeping card order.
func toRawCards(cards []Card, lists []List, checklists []Checklist) []internal.RawCard {
	listNames := make(map[string]string, len(lists))
	for _, l := range lists {
		listNames[l.ID] = l.Name
	}
	byCard := map[string][]Checklist{}
	for _, cl := range checklists {
		byCard[cl.IDCard] = append(byCard[cl.IDCard], cl)
	}

	out := make([]internal.RawCard, 0, len(cards))
	seen := map[string]struct{}{}
	for _, c := range cards {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}

		labels := make([]string, 0, len(c.Labels))
		for _, l := range c.Labels {
			if name := strings.TrimSpace(l.Name); name != "" {
				labels = append(labels, name)
			}
		}

		cls := c.Checklists
		if len(cls) == 0 {
			cls = byCard[c.ID]
		}

		out = append(out, internal.RawCard{
			ID:          c.ID,
			Title:       c.Name,
			Description: c.Desc,
			Labels:      labels,
			ListName:    listNames[c.IDList],
			Closed:      c.Closed,
			Checklist:   checklistItems(cls),
			Due:         c.Due,
			URL:         c.ShortURL,
		})
	}
	return out
}

func checklistItems(cls []Checklist) []string {
	sorted := append([]Checklist(nil), cls...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Pos < sorted[j].Pos })

	var items []string
	for _, cl := range sorted {
		checkItems := append([]CheckItem(nil), cl.CheckItems...)
		sort.SliceStable(checkItems, func(i, j int) bool { return checkItems[i].Pos < checkItems[j].Pos })
		for _, item := range checkItems {
			if name := strings.TrimSpace(item.Name); name != "" {
				items = append(items, name)
			}
		}
	}
	return items
}
