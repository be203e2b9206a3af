package export

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/starfall-labs/favpanel/internal/host"
)

// WorldbookEntry is the host's fixed-shape lorebook record. Favorited
// messages become constant, always-on entries keyed and ordered by their
// original positional index.
type WorldbookEntry struct {
	UID                 int      `json:"uid"`
	Key                 []string `json:"key"`
	KeySecondary        []string `json:"keysecondary"`
	Comment             string   `json:"comment"`
	Content             string   `json:"content"`
	Constant            bool     `json:"constant"`
	Vectorized          bool     `json:"vectorized"`
	Selective           bool     `json:"selective"`
	SelectiveLogic      int      `json:"selectiveLogic"`
	AddMemo             bool     `json:"addMemo"`
	Order               int      `json:"order"`
	Position            int      `json:"position"`
	Disable             bool     `json:"disable"`
	ExcludeRecursion    bool     `json:"excludeRecursion"`
	PreventRecursion    bool     `json:"preventRecursion"`
	DelayUntilRecursion bool     `json:"delayUntilRecursion"`
	Probability         int      `json:"probability"`
	UseProbability      bool     `json:"useProbability"`
	Depth               int      `json:"depth"`
	Group               string   `json:"group"`
	GroupOverride       bool     `json:"groupOverride"`
	GroupWeight         int      `json:"groupWeight"`
	ScanDepth           *int     `json:"scanDepth"`
	CaseSensitive       *bool    `json:"caseSensitive"`
	MatchWholeWords     *bool    `json:"matchWholeWords"`
	UseGroupScoring     *bool    `json:"useGroupScoring"`
	AutomationID        string   `json:"automationId"`
	Role                int      `json:"role"`
	Sticky              int      `json:"sticky"`
	Cooldown            int      `json:"cooldown"`
	Delay               int      `json:"delay"`
	DisplayIndex        int      `json:"displayIndex"`
}

type worldbook struct {
	Entries map[string]WorldbookEntry `json:"entries"`
}

// Worldbook renders favorites as a lorebook document consumable by the
// host's generation pipeline. Unresolvable favorites are skipped: a lore
// entry with no content serves nothing.
func Worldbook(in Input) (*File, error) {
	sorted, err := in.sortedFavorites()
	if err != nil {
		return nil, err
	}

	book := worldbook{Entries: make(map[string]WorldbookEntry)}
	count := 0
	for _, fav := range sorted {
		idx := host.MessageIndex(fav, in.Messages)
		if idx < 0 {
			continue
		}
		msg := in.Messages[idx]
		role := 2
		if msg.IsUser() {
			role = 1
		}
		comment := fmt.Sprintf("收藏消息 #%d - %s", idx, worldbookSender(fav, msg))
		if fav.Note != "" {
			comment += fmt.Sprintf(" (备注: %s)", fav.Note)
		}
		book.Entries[strconv.Itoa(idx)] = WorldbookEntry{
			UID:              idx,
			Key:              []string{},
			KeySecondary:     []string{},
			Comment:          comment,
			Content:          msg.Text(),
			Constant:         true,
			AddMemo:          true,
			Order:            idx,
			Position:         4,
			PreventRecursion: true,
			Probability:      100,
			GroupWeight:      100,
			Role:             role,
			DisplayIndex:     idx,
		}
		count++
	}
	if count == 0 {
		return nil, ErrNoFavorites
	}

	content, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return nil, err
	}

	now := in.now()
	name := fmt.Sprintf("%s_收藏世界书_%s.json", safeName(in.DisplayName), now.Format("20060102_150405"))
	return &File{
		Name:    name,
		MIME:    "application/json; charset=utf-8",
		Content: content,
		Count:   count,
	}, nil
}

func worldbookSender(fav host.FavoriteItem, msg host.Message) string {
	if n := msg.Name(); n != "" {
		return n
	}
	if fav.Sender != "" {
		return fav.Sender
	}
	if msg.IsUser() {
		return "User"
	}
	return "Character"
}
