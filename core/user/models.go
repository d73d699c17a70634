package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/jarida/core"
)

// Roles
const (
	// Admin
	RoleAdmin      = "admin:"
	RoleAdminOwner = "admin:owner"

	// Editor
	RoleEditor      = "editor:"
	RoleEditorChief = "editor:chief"

	// Production (copyeditors, typesetters)
	RoleProduction = "production:"

	// Reviewer
	RoleReviewer = "reviewer:"

	// Author
	RoleAuthor = "author:"
)

var (
	AdminRoles      = []string{RoleAdmin, RoleAdminOwner}
	EditorRoles     = []string{RoleEditor, RoleEditorChief}
	ProductionRoles = []string{RoleProduction}
	ReviewerRoles   = []string{RoleReviewer}
	AuthorRoles     = []string{RoleAuthor}
	AllRoles        = getAllRoles()

	rolePriorities = map[string]int{
		// Admins: 30 - 21
		RoleAdminOwner: 30,
		RoleAdmin:      21,

		// Editors: 20 - 13
		RoleEditorChief: 20,
		RoleEditor:      15,

		// Production: 12 - 7
		RoleProduction: 12,

		// Reviewers: 6 - 2
		RoleReviewer: 6,

		// Authors: 1
		RoleAuthor: 1,
	}

	Roles = []Role{
		{Name: "Author", Value: RoleAuthor},
		{Name: "Reviewer", Value: RoleReviewer},
		{Name: "Production", Value: RoleProduction},
		{Name: "Editor", Value: RoleEditor},
		{Name: "Editor in Chief", Value: RoleEditorChief},
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Admin Owner", Value: RoleAdminOwner},
	}
)

func getAllRoles() []string {
	all := make([]string, 0, 7)
	all = append(all, AdminRoles...)
	all = append(all, EditorRoles...)
	all = append(all, ProductionRoles...)
	all = append(all, ReviewerRoles...)
	all = append(all, AuthorRoles...)
	return all
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Username          string    `json:"username"`
	Email             string    `json:"email"`
	Affiliation       string    `json:"affiliation"`
	ORCID             string    `json:"orcid"`
	Expertise         []string  `json:"expertise"`
	SubjectAreas      []string  `json:"subject_areas"`
	DeclaredConflicts []string  `json:"declared_conflicts"` // user IDs or emails
	IsActive          *bool     `json:"is_active"`
	Roles             []string  `json:"roles"`
	PasswordHash      []byte    `json:"-"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
	LastLogin         time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) SetActive(active bool) {
	u.IsActive = &active
}

func (u User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

// IsEditor is true for editors and admins.
func (u *User) IsEditor() bool {
	return u.RoleStartsWith(RoleEditor) || u.IsAdmin()
}

func (u *User) IsProduction() bool {
	return u.RoleStartsWith(RoleProduction) || u.IsEditor()
}

func (u *User) IsReviewer() bool {
	return u.RoleStartsWith(RoleReviewer)
}

func (u *User) IsAuthor() bool {
	return u.RoleStartsWith(RoleAuthor)
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name              string   `json:"name" validate:"required,max=200"`
	Username          string   `json:"username" validate:"omitempty,min=6,max=50,alphanum_"`
	Email             string   `json:"email" validate:"omitempty,email"`
	Affiliation       string   `json:"affiliation" validate:"max=300"`
	ORCID             string   `json:"orcid" validate:"omitempty,orcid"`
	Expertise         []string `json:"expertise" validate:"max=20,dive,min=2,max=50"`
	SubjectAreas      []string `json:"subject_areas" validate:"max=10"`
	DeclaredConflicts []string `json:"declared_conflicts"`
	Password          string   `json:"password" validate:"required"`
	PasswordConfirm   string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles             []string `json:"roles" validate:"omitempty,allroles"`
}

func (nu *NewUser) clean() {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Affiliation = core.CleanString(nu.Affiliation)
	nu.ORCID = strings.ToUpper(core.CleanString(nu.ORCID))
	nu.Expertise = core.CleanStrings(nu.Expertise, true /* lower */)
	nu.SubjectAreas = core.CleanStrings(nu.SubjectAreas, true /* lower */)
	nu.DeclaredConflicts = core.CleanStrings(nu.DeclaredConflicts, true /* lower */)
	nu.Roles = core.CleanStrings(nu.Roles)
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nu.clean()
	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name              string   `json:"name" validate:"max=200"`
	Username          string   `json:"username" validate:"omitempty,min=6,max=50,alphanum_"`
	Email             string   `json:"email" validate:"omitempty,email"`
	Affiliation       *string  `json:"affiliation" validate:"omitempty,max=300"`
	ORCID             *string  `json:"orcid" validate:"omitempty"`
	Expertise         []string `json:"expertise" validate:"max=20,dive,min=2,max=50"`
	SubjectAreas      []string `json:"subject_areas" validate:"max=10"`
	DeclaredConflicts []string `json:"declared_conflicts"`
	IsActive          *bool    `json:"is_active"`
	Roles             []string `json:"roles" validate:"omitempty,allroles"`
	Password          string   `json:"password" validate:"omitempty"`
	PasswordConfirm   string   `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

// HasAdminFields reports whether fields only admins may change are set.
func (uu *UpdateUser) HasAdminFields() bool {
	return uu.IsActive != nil || uu.Roles != nil || uu.Username != "" || uu.Email != ""
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc Service) error {
	name := core.CleanString(uu.Name)
	if name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	uname := core.CleanString(uu.Username, true /* lower */)
	if uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	email := core.CleanString(uu.Email, true /* lower */)
	if email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if uu.Affiliation != nil {
		aff := core.CleanString(*uu.Affiliation)
		uu.Affiliation = &aff
	}
	if uu.ORCID != nil {
		orcid := strings.ToUpper(core.CleanString(*uu.ORCID))
		uu.ORCID = &orcid
		if orcid != "" && !core.ValidORCID(orcid) {
			return core.NewValidationError(nil, core.FieldError{Field: "orcid", Error: "invalid ORCID iD (expected 0000-0000-0000-000X)"})
		}
	}
	uu.Expertise = core.CleanStrings(uu.Expertise, true /* lower */)
	uu.SubjectAreas = core.CleanStrings(uu.SubjectAreas, true /* lower */)
	uu.DeclaredConflicts = core.CleanStrings(uu.DeclaredConflicts, true /* lower */)
	uu.Roles = core.CleanStrings(uu.Roles)

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, uu.Username, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	IDs         []string  `query:"id"`
	Search      string    `query:"search"`
	Roles       []string  `query:"role"`
	SubjectArea string    `query:"subject_area"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.IDs == nil && qf.Search == "" && qf.Roles == nil && qf.SubjectArea == "" &&
		qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.SubjectArea = core.CleanString(qf.SubjectArea, true /* lower */)
}

// Match applies the filter to a single user (used by in-memory repositories).
func (qf *QueryFilter) Match(usr User) bool {
	if qf == nil {
		return true
	}
	if qf.IDs != nil && !core.StringInSlice(usr.ID, qf.IDs) {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(usr.Name), s) ||
			strings.Contains(usr.Username, s) ||
			strings.Contains(usr.Email, s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var found bool
		for _, role := range qf.Roles {
			if usr.RoleStartsWith(role) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if qf.SubjectArea != "" && !core.StringInSlice(qf.SubjectArea, usr.SubjectAreas) {
		return false
	}
	if qf.IsActive != nil && usr.Active() != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom.UTC()) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo.UTC()) {
		return false
	}
	return true
}

type GetFilter struct {
	ID              string
	Username        string
	Email           string
	UsernameOrEmail string
}

// OrderingFields are the fields users may be ordered by.
var OrderingFields = []string{"name", "username", "email", "is_active", "created_at", "updated_at", "last_login"}
