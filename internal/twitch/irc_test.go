package twitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatterName_DisplayNameTag(t *testing.T) {
	line := "@badge-info=;display-name=Bob;login=bobby :bobby!bobby@bobby.tmi.twitch.tv PRIVMSG #chan :hello"
	assert.Equal(t, "Bob", chatterName(line))
}

func TestChatterName_LoginTagFallback(t *testing.T) {
	line := "@badge-info=;display-name=;login=bobby :bobby!bobby@bobby.tmi.twitch.tv PRIVMSG #chan :hello"
	assert.Equal(t, "bobby", chatterName(line))
}

func TestChatterName_LegacyPrefix(t *testing.T) {
	line := ":bobby!bobby@bobby.tmi.twitch.tv PRIVMSG #chan :hello"
	assert.Equal(t, "bobby", chatterName(line))
}

func TestChatterName_TaggedLineWithoutNameTags(t *testing.T) {
	// With both name tags absent the legacy scan runs from the start of the
	// line and picks up everything before the first bang, tags included.
	// Faithful to the original parser; pinned so a refactor does not change
	// it silently.
	line := "@badge-info=;color= :bobby!bobby@bobby.tmi.twitch.tv PRIVMSG #chan :hello"
	assert.Equal(t, "badge-info=;color= :bobby", chatterName(line))
}

func TestChatterName_NoSender(t *testing.T) {
	assert.Empty(t, chatterName("PRIVMSG #chan :hello"))
}

func TestTagValue(t *testing.T) {
	line := "@display-name=Bob;login=bobby :rest"
	assert.Equal(t, "Bob", tagValue(line, "display-name="))
	assert.Equal(t, "bobby", tagValue(line, "login="))
	assert.Empty(t, tagValue(line, "color="))
}

func TestTagValue_SpaceTerminated(t *testing.T) {
	assert.Equal(t, "bobby", tagValue("@login=bobby :rest", "login="))
}

func TestTagValue_Unterminated(t *testing.T) {
	assert.Empty(t, tagValue("@login=bobby", "login="))
}

func TestMessageText_AfterLastColon(t *testing.T) {
	assert.Equal(t, "hello", messageText(":bobby!b@b PRIVMSG #chan :hello"))
}

func TestMessageText_BodyWithColonSplitsOnLast(t *testing.T) {
	// Only the final colon delimits, so bodies containing colons lose their
	// leading segment. Pinned lossy behavior.
	assert.Equal(t, "30", messageText(":bobby!b@b PRIVMSG #chan :time is 12:30"))
}

func TestMessageText_NoColon(t *testing.T) {
	assert.Empty(t, messageText("PING tmi.twitch.tv"))
}

func TestMarkChannel(t *testing.T) {
	assert.Equal(t, "#chan", markChannel("chan"))
	assert.Equal(t, "#chan", markChannel("#chan"))
}

func TestStripMarker(t *testing.T) {
	assert.Equal(t, "chan", stripMarker("#chan"))
	assert.Equal(t, "chan", stripMarker("chan"))
}
