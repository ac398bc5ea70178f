package trello

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"worksync/internal"
)

type boardExport struct {
	Cards      []Card      `json:"cards"`
	Lists      []List      `json:"lists"`
	Checklists []Checklist `json:"checklists"`
}

// FileSource reads cards from a board JSON export or from a plain JSON array of cards.
type FileSource struct {
	Path            string
	IncludeArchived bool
}

func (s FileSource) FetchCards(_ context.Context) ([]internal.RawCard, error) {
	blob, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	cards, err := ParseExport(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	if s.IncludeArchived {
		return cards, nil
	}
	open := cards[:0]
	for _, c := range cards {
		if !c.Closed {
			open = append(open, c)
		}
	}
	return open, nil
}

func ParseExport(blob []byte) ([]internal.RawCard, error) {
	trimmed := bytes.TrimSpace(blob)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var cards []internal.RawCard
		if err := json.Unmarshal(trimmed, &cards); err != nil {
			return nil, err
		}
		return cards, nil
	}

	var export boardExport
	if err := json.Unmarshal(trimmed, &export); err != nil {
		return nil, err
	}
	return toRawCards(export.Cards, export.Lists, export.Checklists), nil
}
