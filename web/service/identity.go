package service

import "github.com/viewer360/viewer360/database/model"

// Identity is the already-resolved caller of a service method. The zero value is
// an anonymous visitor.
type Identity struct {
	UserId int
	Role   model.Role
}

func Anonymous() Identity {
	return Identity{}
}

// IdentityOf builds the identity of a loaded user. Banned users are anonymous.
func IdentityOf(u *model.User) Identity {
	if u == nil || u.IsBanned {
		return Anonymous()
	}
	return Identity{UserId: u.Id, Role: u.Role}
}

func (i Identity) IsAuthenticated() bool {
	return i.UserId > 0
}

func (i Identity) IsAdmin() bool {
	return i.IsAuthenticated() && i.Role == model.RoleAdmin
}

// CurrentUserId returns nil for anonymous callers.
func (i Identity) CurrentUserId() *int {
	if !i.IsAuthenticated() {
		return nil
	}
	id := i.UserId
	return &id
}

func (i Identity) Owns(ownerId int) bool {
	return i.IsAuthenticated() && i.UserId == ownerId
}
