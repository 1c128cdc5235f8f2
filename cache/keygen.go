package cache

// Separator joins a prefix and a subject id. Subject ids are not escaped, so
// callers must not pass ids containing it.
const Separator = ":"

// BuildKey returns "prefix" or "prefix:subject" when subject is non-empty.
// The layout is read by operators inspecting the store directly.
func BuildKey(prefix, subject string) string {
	if subject == "" {
		return prefix
	}
	return prefix + Separator + subject
}
