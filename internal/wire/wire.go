// Package wire implements the three-message datagram codec shared by every
// neighbor of the routing daemon: join announcements, distance-vector
// adverts, and relayed text messages.
package wire

import (
	"strconv"
	"strings"
)

// Prefixes discriminate the three message kinds on the wire. They are the
// first byte of every datagram.
const (
	PrefixJoin = '@'
	PrefixVector = '*'
	PrefixText = '!'
)

// MaxDatagramSize is the receive buffer size callers should provision.
// Senders must not build advertisements that would exceed it; fragmentation
// across datagrams is not supported.
const MaxDatagramSize = 1024

// VectorEntry is one (destination, metric) record in a distance-vector
// advertisement.
type VectorEntry struct {
	Dst    string
	Metric int
}

// EncodeJoin builds a join-announce datagram for the given sender id.
func EncodeJoin(self string) []byte {
	return append([]byte{PrefixJoin}, self...)
}

// DecodeJoin extracts the sender id from a join-announce datagram. The
// caller must have already checked the message starts with PrefixJoin.
func DecodeJoin(body []byte) string {
	return string(body[1:])
}

// EncodeVector builds a distance-vector advertisement from entries. If
// entries is empty the caller should suppress the message entirely instead
// of sending the result of this call — per the wire grammar, an empty
// vector is not a valid "I have no routes" representation.
func EncodeVector(entries []VectorEntry) []byte {
	var b strings.Builder
	for _, e := range entries {
		b.WriteByte(PrefixVector)
		b.WriteString(e.Dst)
		b.WriteByte(';')
		b.WriteString(strconv.Itoa(e.Metric))
	}
	return []byte(b.String())
}

// DecodeVector parses a vector advertisement body. Malformed records are
// skipped individually; the remaining well-formed records are still
// returned.
func DecodeVector(body []byte) []VectorEntry {
	records := strings.Split(string(body), string(PrefixVector))
	entries := make([]VectorEntry, 0, len(records))
	for _, rec := range records {
		if rec == "" {
			continue
		}
		parts := strings.SplitN(rec, ";", 2)
		if len(parts) != 2 {
			continue
		}
		metric, err := strconv.Atoi(parts[1])
		if err != nil || metric < 0 {
			continue
		}
		entries = append(entries, VectorEntry{Dst: parts[0], Metric: metric})
	}
	return entries
}

// TextMessage is a user datagram relayed hop by hop toward Dst.
type TextMessage struct {
	Src  string
	Dst  string
	Text string
}

// EncodeText builds a text-message datagram. Text may itself contain ';'
// characters; only the first two separators are meaningful on decode.
func EncodeText(src, dst, text string) []byte {
	var b strings.Builder
	b.WriteByte(PrefixText)
	b.WriteString(src)
	b.WriteByte(';')
	b.WriteString(dst)
	b.WriteByte(';')
	b.WriteString(text)
	return []byte(b.String())
}

// DecodeText parses a text-message body. Returns ok=false if the message
// has fewer than three fields, in which case it must be silently dropped.
func DecodeText(body []byte) (msg TextMessage, ok bool) {
	parts := strings.SplitN(string(body[1:]), ";", 3)
	if len(parts) != 3 {
		return TextMessage{}, false
	}
	return TextMessage{Src: parts[0], Dst: parts[1], Text: parts[2]}, true
}

// Kind identifies which of the three message kinds a raw datagram is, or
// reports none if the datagram is empty or starts with an unknown prefix.
type Kind int

const (
	KindUnknown Kind = iota
	KindJoin
	KindVector
	KindText
)

// Classify inspects the first byte of a datagram.
func Classify(body []byte) Kind {
	if len(body) == 0 {
		return KindUnknown
	}
	switch body[0] {
	case PrefixJoin:
		return KindJoin
	case PrefixVector:
		return KindVector
	case PrefixText:
		return KindText
	default:
		return KindUnknown
	}
}
