package tracking

import (
	"net/url"
	"strings"
)

// Link entity kinds, matching the transport's message entities.
const (
	EntityURL = iota
	EntityTextLink
)

// LinkEntity - one marked link sub-range of a message.
type LinkEntity struct {
	Kind   int
	Offset int
	Length int
	URL    string // resolved target, text links only
}

// Message - one inbound message event.
type Message struct {
	ChatID   int64
	UserID   int64
	Name     string
	Handle   string
	Text     string
	Caption  string
	Entities []LinkEntity
}

// LinkExtractor - pulls the first link out of a message and, when the
// link points at a known platform, the account handle from its path.
type LinkExtractor struct {
	domains  map[string]struct{}
	reserved map[string]struct{}
}

// NewLinkExtractor - construct from platform host aliases and the
// reserved first-path-segment denylist.
func NewLinkExtractor(domains, reserved []string) *LinkExtractor {
	x := &LinkExtractor{
		domains:  make(map[string]struct{}, len(domains)),
		reserved: make(map[string]struct{}, len(reserved)),
	}

	for _, d := range domains {
		x.domains[strings.ToLower(d)] = struct{}{}
	}

	for _, r := range reserved {
		x.reserved[strings.ToLower(r)] = struct{}{}
	}

	return x
}

// Extract - scan entities in order and return the first link, plus the
// platform handle when one can be pulled from it. Only the first link
// of a message is acted upon. found is false when the message carries
// no link entity at all.
func (x *LinkExtractor) Extract(text string, entities []LinkEntity) (link, handle string, found bool) {
	runes := []rune(text)

	for _, e := range entities {
		switch e.Kind {
		case EntityTextLink:
			link = e.URL
		case EntityURL:
			if e.Offset < 0 || e.Offset+e.Length > len(runes) {
				continue
			}

			link = string(runes[e.Offset : e.Offset+e.Length])
		default:
			continue
		}

		if link != "" {
			break
		}
	}

	if link == "" {
		return "", "", false
	}

	return link, x.handleFrom(link), true
}

// handleFrom - extract the path segment right after a known platform
// domain. Empty result means "no real handle": caller falls back to
// the raw link text.
func (x *LinkExtractor) handleFrom(link string) string {
	raw := link
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	if _, ok := x.domains[host]; !ok {
		return ""
	}

	seg := strings.TrimPrefix(u.EscapedPath(), "/")
	if i := strings.IndexByte(seg, '/'); i >= 0 {
		seg = seg[:i]
	}

	if seg == "" {
		return ""
	}

	if _, ok := x.reserved[strings.ToLower(seg)]; ok {
		return ""
	}

	return seg
}
