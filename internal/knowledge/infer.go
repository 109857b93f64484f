package knowledge

import "strings"

// siteKeywords maps goal phrasing to canonical domains.
var siteKeywords = []struct {
	domain   string
	keywords []string
}{
	{"instagram.com", []string{"instagram", "insta", " ig "}},
	{"twitter.com", []string{"twitter", "x.com", "tweet"}},
	{"youtube.com", []string{"youtube"}},
	{"facebook.com", []string{"facebook"}},
	{"google.com", []string{"google"}},
}

// SiteFromGoal infers a canonical domain from free-text goal phrasing.
// Returns "" when no known site is mentioned.
func SiteFromGoal(goal string) string {
	lower := " " + strings.ToLower(goal) + " "
	for _, entry := range siteKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(lower, kw) {
				return entry.domain
			}
		}
	}
	return ""
}

// TaskFromGoal classifies the goal into a task name used as the workflow key.
// Returns "unknown" when nothing matches.
func TaskFromGoal(goal string) string {
	lower := strings.ToLower(goal)

	messaging := []string{"dm", "message", "send", "text"}
	social := []string{"instagram", "twitter", "x.com", "on ig"}
	if containsAny(lower, messaging) && containsAny(lower, social) {
		return "send_dm"
	}
	if strings.Contains(lower, "follow") {
		return "follow_user"
	}
	if strings.Contains(lower, "search") {
		return "search"
	}
	if strings.Contains(lower, "like") {
		return "like_post"
	}
	return "unknown"
}

// SiteFromURL extracts a normalized domain from a URL string.
func SiteFromURL(url string) string {
	if url == "" {
		return ""
	}
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")
	domain := url
	if i := strings.IndexByte(domain, '/'); i >= 0 {
		domain = domain[:i]
	}
	return normalizeSite(domain)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
