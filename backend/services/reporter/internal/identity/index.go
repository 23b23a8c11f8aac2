package identity

import "vaeva/backend/services/reporter/internal/models"

// Index resolves raw contact identifiers to configured user ids.
type Index struct {
	byEmail map[string]string
	byBadge map[string]string
}

// NewIndex builds the email and badge lookups. Users without an email or badge contribute no entry
// to that lookup; on duplicates the later user wins.
func NewIndex(users []models.User) *Index {
	idx := &Index{
		byEmail: make(map[string]string, len(users)),
		byBadge: make(map[string]string, len(users)),
	}
	for _, u := range users {
		if u.Email != "" {
			idx.byEmail[u.Email] = u.ID
		}
		if u.Badge != "" {
			idx.byBadge[u.Badge] = u.ID
		}
	}
	return idx
}

// Resolve tries email first and falls back to badge. Empty identifiers never match.
func (i *Index) Resolve(email, badge string) (string, bool) {
	if email != "" {
		if id, ok := i.byEmail[email]; ok {
			return id, true
		}
	}
	if badge != "" {
		if id, ok := i.byBadge[badge]; ok {
			return id, true
		}
	}
	return "", false
}

// Len returns the number of indexed identifiers.
func (i *Index) Len() int {
	return len(i.byEmail) + len(i.byBadge)
}
