package service

// textKeys are the object keys that may carry the user's text, in order.
var textKeys = []string{"text", "content", "input", "prompt", "query", "message"}

// partKeys are the keys checked on content parts after "text".
var partKeys = []string{"content", "input", "prompt"}

// ExtractUserText finds the user's text in a run request. It understands
// a plain string input, structured input (an object, possibly holding a
// messages list, or a list of content parts) and a top-level messages
// list. It returns "" when nothing usable is found.
func ExtractUserText(input, messages any) string {
	switch v := input.(type) {
	case string:
		return v
	case map[string]any, []any:
		if text, ok := textFromContent(v); ok {
			return text
		}
	}

	if list, ok := messages.([]any); ok {
		if text, ok := lastUserText(list); ok {
			return text
		}
	}

	return ""
}

func textFromContent(content any) (string, bool) {
	switch v := content.(type) {
	case string:
		return v, true

	case map[string]any:
		if list, ok := v["messages"].([]any); ok {
			if text, ok := lastHumanContent(list); ok {
				return text, true
			}
		}
		for _, key := range textKeys {
			if s, ok := v[key].(string); ok {
				return s, true
			}
		}

	case []any:
		for _, item := range v {
			part, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if s, ok := part["text"].(string); ok {
				return s, true
			}
			for _, key := range partKeys {
				if s, ok := part[key].(string); ok {
					return s, true
				}
			}
		}
	}

	return "", false
}

// lastUserText scans a top-level messages list from the end for the newest
// message with a user role whose content yields text.
func lastUserText(messages []any) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m, ok := messages[i].(map[string]any)
		if !ok || !isUser(m["role"]) {
			continue
		}
		if text, ok := textFromContent(m["content"]); ok {
			return text, true
		}
	}
	return "", false
}

// lastHumanContent scans messages nested in an input object. Those are
// typed LangChain messages and only plain string content counts.
func lastHumanContent(messages []any) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		m, ok := messages[i].(map[string]any)
		if !ok || !isUser(m["type"]) {
			continue
		}
		if s, ok := m["content"].(string); ok {
			return s, true
		}
	}
	return "", false
}

func isUser(v any) bool {
	return v == "user" || v == "human"
}
