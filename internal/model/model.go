package model

import "strings"

// Kind names one side of an allocation relation.
type Kind string

const (
	KindUser     Kind = "user"
	KindProject  Kind = "project"
	KindActivity Kind = "activity"
)

func ParseKind(s string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindUser, "users":
		return KindUser, true
	case KindProject, "projects":
		return KindProject, true
	case KindActivity, "activities":
		return KindActivity, true
	}
	return "", false
}

// Entity is the addressable handle of anything that can sit on either side of a relation.
// Names are for display and search; IDs are what the backend accepts.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CompanyRole string

const (
	CompanyRoleOwner CompanyRole = "Owner"
	CompanyRoleAdmin CompanyRole = "Admin"
	CompanyRoleUser  CompanyRole = "User"
)

type Company struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Active     bool        `json:"active"`
	TotalUsers int         `json:"totalUsers"`
	Role       CompanyRole `json:"role"`
}

// IsAdminOrHigher reports whether the caller may edit allocations in this company.
func (c Company) IsAdminOrHigher() bool {
	return c.Role == CompanyRoleAdmin || c.Role == CompanyRoleOwner
}

type UserInCompany struct {
	UserID         string      `json:"userId"`
	CompanyID      string      `json:"companyId"`
	Username       string      `json:"userUsername"`
	Name           string      `json:"userName"`
	Surname        string      `json:"userSurname"`
	Role           CompanyRole `json:"role"`
	JobTitle       string      `json:"jobTitle"`
	ManagementTeam bool        `json:"managementTeam"`
}

func (u UserInCompany) Entity() Entity {
	return Entity{ID: u.UserID, Name: u.Username}
}

type Project struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Code   string `json:"code"`
	Active bool   `json:"active"`
}

func (p Project) Entity() Entity {
	return Entity{ID: p.ID, Name: p.Name}
}

type Activity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a Activity) Entity() Entity {
	return Entity{ID: a.ID, Name: a.Name}
}

// LoginResponse is the body of POST /auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"tokenType"`
}
