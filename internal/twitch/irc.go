package twitch

import "strings"

// IRC protocol constants. The outbound side of this protocol is fixed and
// must be matched byte-for-byte, including the two-character line
// terminator.
const (
	lineTerminator = "\r\n"
	capRequest     = "CAP REQ :twitch.tv/tags twitch.tv/commands twitch.tv/membership"
	pongReply      = "PONG :tmi.twitch.tv"
	pingPrefix     = "PING"
	loginOKToken   = " 001 "
	privmsgToken   = "PRIVMSG"
)

// chatterName extracts the sender's display name from a PRIVMSG line.
// Preference order: the display-name tag, the login tag, then the legacy
// :nick!user@host prefix. The legacy fallback runs whenever both tags are
// missing, even on tagged lines, which mirrors the upstream parser exactly.
func chatterName(line string) string {
	var username string

	if strings.HasPrefix(line, "@") {
		username = tagValue(line, "display-name=")
		if username == "" {
			username = tagValue(line, "login=")
		}
	}

	if username == "" {
		if bang := strings.IndexByte(line, '!'); bang > 1 {
			username = line[1:bang]
		}
	}

	return username
}

// tagValue returns the value of the first occurrence of key in line,
// terminated by the next semicolon or, failing that, the next space.
func tagValue(line, key string) string {
	pos := strings.Index(line, key)
	if pos < 0 {
		return ""
	}
	start := pos + len(key)

	end := strings.IndexByte(line[start:], ';')
	if end < 0 {
		end = strings.IndexByte(line[start:], ' ')
	}
	if end < 0 {
		return ""
	}
	return line[start : start+end]
}

// messageText returns everything after the last colon in the line. Only the
// final colon is treated as the delimiter, so message bodies containing
// colons are preserved verbatim; a message that itself ends in a colon
// splits lossily. This matches the upstream parser and downstream consumers
// depend on it.
func messageText(line string) string {
	last := strings.LastIndexByte(line, ':')
	if last < 0 {
		return ""
	}
	return line[last+1:]
}

// markChannel returns channel with exactly one leading # marker.
func markChannel(channel string) string {
	return "#" + strings.TrimPrefix(channel, "#")
}

// stripMarker returns channel without its leading # marker.
func stripMarker(channel string) string {
	return strings.TrimPrefix(channel, "#")
}
