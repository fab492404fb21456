package allocation

import (
	"time"

	"emctl/internal/model"
)

// Snapshot is the member set of one pivot as last confirmed by the backend.
type Snapshot struct {
	CompanyID string       `json:"companyId"`
	Relation  string       `json:"relation"`
	Mode      Mode         `json:"-"`
	Path      string       `json:"path"`
	Pivot     model.Entity `json:"pivot"`
	MemberIDs []string     `json:"memberIds"`
	FetchedAt time.Time    `json:"fetchedAt"`
}

// memberDelta returns ids present in exactly one of before and after.
func memberDelta(before, after []string) []string {
	in := make(map[string]int, len(before)+len(after))
	for _, id := range before {
		in[id] |= 1
	}
	for _, id := range after {
		in[id] |= 2
	}
	out := make([]string, 0)
	for _, id := range append(append([]string(nil), before...), after...) {
		if in[id] == 1 || in[id] == 2 {
			out = append(out, id)
			in[id] = 0
		}
	}
	return out
}
