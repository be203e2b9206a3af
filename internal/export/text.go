package export

import (
	"fmt"
	"strings"

	"github.com/starfall-labs/favpanel/internal/host"
)

// Text renders favorites as a delimited plain-text document. Favorites
// whose message no longer resolves are kept as explicit placeholder
// blocks rather than dropped.
func Text(in Input) (*File, error) {
	sorted, err := in.sortedFavorites()
	if err != nil {
		return nil, err
	}

	now := in.now()
	var lines []string
	lines = append(lines,
		"收藏夹导出 (TXT)",
		fmt.Sprintf("聊天: %s", in.DisplayName),
		fmt.Sprintf("导出时间: %s", now.Format("2006-01-02 15:04:05")),
		fmt.Sprintf("总收藏数: %d", len(sorted)),
		"---",
		"",
	)

	for _, fav := range sorted {
		lines = append(lines, fmt.Sprintf("--- 消息 #%s ---", fav.MessageID))
		if idx := host.MessageIndex(fav, in.Messages); idx >= 0 {
			msg := in.Messages[idx]
			lines = append(lines,
				fmt.Sprintf("发送者: %s", senderName(fav, msg, in.UserName)),
				fmt.Sprintf("时间: %s", sendDateLabel(msg)),
			)
			if fav.Note != "" {
				lines = append(lines, fmt.Sprintf("备注: %s", fav.Note))
			}
			lines = append(lines, "内容:", messageText(msg))
		} else {
			lines = append(lines, "[原始消息内容不可用或已删除]")
			if fav.Sender != "" {
				lines = append(lines, fmt.Sprintf("原始发送者: %s", fav.Sender))
			}
			if fav.Note != "" {
				lines = append(lines, fmt.Sprintf("备注: %s", fav.Note))
			}
		}
		lines = append(lines, fmt.Sprintf("--- 结束消息 #%s ---", fav.MessageID), "")
	}

	name := fmt.Sprintf("%s_收藏_%s.txt", safeName(in.DisplayName), now.Format("20060102_150405"))
	return &File{
		Name:    name,
		MIME:    "text/plain; charset=utf-8",
		Content: []byte(strings.Join(lines, "\n")),
		Count:   len(sorted),
	}, nil
}

func senderName(fav host.FavoriteItem, msg host.Message, userName string) string {
	if fav.Sender != "" {
		return fav.Sender
	}
	if msg.IsUser() {
		if userName != "" {
			return userName
		}
		return "You"
	}
	if n := msg.Name(); n != "" {
		return n
	}
	return "Character"
}

func sendDateLabel(msg host.Message) string {
	if t, ok := msg.SendDate(); ok {
		return t.Format("2006-01-02 15:04:05")
	}
	return "[时间未知]"
}

func messageText(msg host.Message) string {
	if s := msg.Text(); s != "" {
		return s
	}
	return "[消息内容为空]"
}
