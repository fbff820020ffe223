// Package session stores the logged-in user in the gin session.
package session

import (
	"encoding/gob"
	"net/http"

	"github.com/viewer360/viewer360/database/model"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CookieName = "viewer360"
	loginUser  = "LOGIN_USER"
)

func init() {
	gob.Register(model.User{})
}

// SetLoginUser keeps a copy of user without its password hash.
func SetLoginUser(c *gin.Context, user *model.User) error {
	s := sessions.Default(c)
	stored := *user
	stored.PasswordHash = ""
	s.Set(loginUser, stored)
	return s.Save()
}

func SetMaxAge(c *gin.Context, maxAge int) error {
	s := sessions.Default(c)
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s.Save()
}

func GetLoginUser(c *gin.Context) *model.User {
	s := sessions.Default(c)
	if obj := s.Get(loginUser); obj != nil {
		if user, ok := obj.(model.User); ok {
			return &user
		}
	}
	return nil
}

func ClearSession(c *gin.Context) error {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{
		Path:   "/",
		MaxAge: -1,
	})
	if err := s.Save(); err != nil {
		return err
	}
	c.SetCookie(CookieName, "", -1, "/", "", false, true)
	return nil
}
