package catalog

import (
	"strings"

	"emctl/internal/model"
)

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(haystack)), needle)
}

// FilterProjects matches query against id, name and code. active is a single
// optional value: nil keeps both active and inactive projects.
func FilterProjects(projects []model.Project, query string, active *bool) []model.Project {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if active != nil && p.Active != *active {
			continue
		}
		if q != "" && !containsFold(p.ID, q) && !containsFold(p.Name, q) && !containsFold(p.Code, q) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FilterActivities matches query against id and name.
func FilterActivities(activities []model.Activity, query string) []model.Activity {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.Activity, 0, len(activities))
	for _, a := range activities {
		if q != "" && !containsFold(a.ID, q) && !containsFold(a.Name, q) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// FilterUsers matches query against username, name and surname.
func FilterUsers(users []model.UserInCompany, query string) []model.UserInCompany {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.UserInCompany, 0, len(users))
	for _, u := range users {
		if q != "" && !containsFold(u.Username, q) && !containsFold(u.Name, q) && !containsFold(u.Surname, q) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func ProjectEntities(projects []model.Project) []model.Entity {
	out := make([]model.Entity, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Entity())
	}
	return out
}

func ActivityEntities(activities []model.Activity) []model.Entity {
	out := make([]model.Entity, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Entity())
	}
	return out
}

func UserEntities(users []model.UserInCompany) []model.Entity {
	out := make([]model.Entity, 0, len(users))
	for _, u := range users {
		out = append(out, u.Entity())
	}
	return out
}
