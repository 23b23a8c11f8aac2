package models

import "time"

// Meta is the run-scoped value bag every render pass sees.
type Meta struct {
	BeginDate time.Time
	EndDate   time.Time
	Today     time.Time
	Extra     map[string]any
}

// Fields merges configured values with the run dates. Run dates win on key collisions.
func (m Meta) Fields() map[string]any {
	out := make(map[string]any, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["begin_date"] = m.BeginDate
	out["end_date"] = m.EndDate
	out["today"] = m.Today
	return out
}
