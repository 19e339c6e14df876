package cache

import (
	"fmt"
	"strings"
)

// 键语义：
// - roomKey(sessionID):  会话的在线观众（ZSet<viewerID, expireAtUnix>，score=expireAt）
// - namesKey(sessionID): 观众 viewerID→显示名（Hash）

const (
	keyRoomPrefix = "replay:viewers:"
	keyRoomFmt    = keyRoomPrefix + "{session:%s}"       // ZSet<viewerID, expireAtUnix>
	keyNamesFmt   = keyRoomPrefix + "names:{session:%s}" // Hash<viewerID -> name>
)

func roomKey(sessionID string) string  { return fmt.Sprintf(keyRoomFmt, sessionID) }
func namesKey(sessionID string) string { return fmt.Sprintf(keyNamesFmt, sessionID) }

// sessionFromRoomKey 返回 roomKey 中的 sessionID；names 键返回 false。
func sessionFromRoomKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, keyRoomPrefix+"{session:")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "}")
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
