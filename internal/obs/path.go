package obs

import "strings"

// CanonicalPath collapses identifier segments so metric labels stay bounded.
// Account and notification ids become ":id", document locators ":locator".
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}

	if rest, ok := strings.CutPrefix(path, "/v1/accounts/"); ok && rest != "" {
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		switch {
		case len(parts) == 1 && !isAccountCollection(parts[0]):
			return "/v1/accounts/:id"
		case len(parts) == 2 && isAccountVerb(parts[1]):
			return "/v1/accounts/:id/" + parts[1]
		}
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/v1/notifications/"); ok && rest != "" {
		parts := strings.Split(strings.Trim(rest, "/"), "/")
		if len(parts) == 2 && (parts[1] == "approve" || parts[1] == "reject") {
			return "/v1/notifications/:id/" + parts[1]
		}
		return path
	}

	// Locators always carry a category segment, so a bare segment such as
	// "search" is a literal route, not a locator.
	if rest, ok := strings.CutPrefix(path, "/v1/documents/"); ok && strings.Contains(rest, "/") {
		switch {
		case strings.HasSuffix(rest, "/text"):
			return "/v1/documents/:locator/text"
		case strings.HasSuffix(rest, "/view"):
			return "/v1/documents/:locator/view"
		default:
			return "/v1/documents/:locator"
		}
	}

	return path
}

func isAccountVerb(s string) bool {
	switch s {
	case "revoke", "disable", "promote", "audit":
		return true
	}
	return false
}

func isAccountCollection(s string) bool {
	switch s {
	case "pending", "register", "password":
		return true
	}
	return false
}
