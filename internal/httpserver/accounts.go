package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mizunoto/tankwatch/pkg/apperr"
)

// genericCredentialMessage never distinguishes unknown usernames from wrong
// passwords.
const genericCredentialMessage = "invalid username or password"

const accountTimeout = 10 * time.Second

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleSignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	user, ok, err := s.store.VerifyUser(ctx, req.Username, req.Password)
	if err != nil {
		s.log.Error("credential verification failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": genericCredentialMessage})
		return
	}
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": genericCredentialMessage})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        user.ID,
		"username":  user.Username,
		"is_admin":  user.IsAdmin,
		"dark_mode": user.DarkMode,
	})
}

func (s *Server) handleSignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	if _, exists, err := s.store.GetUserByUsername(ctx, req.Username); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account creation failed"})
		return
	} else if exists {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}

	id, err := s.store.CreateUser(ctx, req.Username, req.Password)
	if err != nil {
		// The remote uniqueness constraint closes the check/create race.
		if apperr.IsCode(err, apperr.CodeUsernameExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
			return
		}
		s.log.Error("user creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "account creation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":        id,
		"username":  req.Username,
		"is_admin":  false,
		"dark_mode": false,
	})
}

type recoveryRequest struct {
	Username string `json:"username" binding:"required"`
}

func (s *Server) handleRecoveryRequest(c *gin.Context) {
	var req recoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	user, found, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recovery request failed"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "username not found"})
		return
	}
	if user.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no email registered for this account"})
		return
	}

	token, err := s.store.GenerateRecoveryToken(ctx, user.ID)
	if err != nil {
		s.log.Error("recovery token generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "recovery request failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

type recoveryResetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) handleRecoveryReset(c *gin.Context) {
	var req recoveryResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token and new_password are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	valid, err := s.store.VerifyRecoveryToken(ctx, req.Token)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password reset failed"})
		return
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		return
	}

	hash, err := s.store.HashPassword(ctx, req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password reset failed"})
		return
	}

	ok, err := s.store.ResetPasswordWithToken(ctx, req.Token, hash)
	if err != nil {
		s.log.Error("password reset failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password reset failed"})
		return
	}
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid or expired token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleListUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	users, err := s.store.ListUsers(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"id":         u.ID,
			"username":   u.Username,
			"is_admin":   u.IsAdmin,
			"created_at": u.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

type changePasswordRequest struct {
	NewPassword string `json:"new_password" binding:"required"`
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "new_password is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	if err := s.store.ChangePassword(ctx, c.Param("id"), req.NewPassword); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "password change failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type setAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

func (s *Server) handleSetAdmin(c *gin.Context) {
	var req setAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "is_admin is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	if err := s.store.SetAdmin(ctx, c.Param("id"), *req.IsAdmin); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "admin update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type setDarkModeRequest struct {
	DarkMode *bool `json:"dark_mode" binding:"required"`
}

func (s *Server) handleSetDarkMode(c *gin.Context) {
	var req setDarkModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "dark_mode is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	if err := s.store.SetDarkMode(ctx, c.Param("id"), *req.DarkMode); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "preference update failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), accountTimeout)
	defer cancel()

	if err := s.store.DeleteUser(ctx, c.Param("id")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user deletion failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
