package client

import "strings"

// maxComposedNameLen bounds the composed remote tenant name
const maxComposedNameLen = 64

// ComposeTenantName derives a deterministic remote tenant name from an
// owner identity label (typically an email address) and a free-text tenant
// label. Only the local part of an email is used. Both parts are
// lower-cased, non-alphanumeric runs collapse to a single underscore,
// leading and trailing underscores are trimmed, and the joined result is
// truncated to 64 characters. Pure function, no side effects.
func ComposeTenantName(ownerLabel, label string) string {
	owner := ownerLabel
	if at := strings.IndexByte(owner, '@'); at >= 0 {
		owner = owner[:at]
	}

	ownerPart := slugify(owner)
	labelPart := slugify(label)

	var composed string
	switch {
	case ownerPart == "":
		composed = labelPart
	case labelPart == "":
		composed = ownerPart
	default:
		composed = ownerPart + "_" + labelPart
	}

	if len(composed) > maxComposedNameLen {
		composed = strings.Trim(composed[:maxComposedNameLen], "_")
	}
	return composed
}

// slugify lower-cases s and collapses every non-alphanumeric run into a
// single underscore, trimming underscores at both ends.
func slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pendingSep := false
	for _, r := range strings.ToLower(s) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
