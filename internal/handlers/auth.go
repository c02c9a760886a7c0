package handlers

import (
	"net/http"

	"schoolsite/internal/middleware"
	"schoolsite/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	auth         *services.AuthService
	registration *services.Registration
	log          *zap.Logger
}

func NewAuthHandler(auth *services.AuthService, registration *services.Registration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, registration: registration, log: log}
}

type sendCodeRequest struct {
	Email string `json:"email"`
}

type verifyCodeRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type signupRequest struct {
	TempKey string `json:"tempKey"`
	services.SignupForm
}

type resetPasswordRequest struct {
	TempKey     string `json:"tempKey"`
	NewPassword string `json:"newPassword"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) sendCode(c *gin.Context, purpose services.Purpose) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	if err := h.registration.SendCode(c.Request.Context(), req.Email, purpose); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "인증 코드가 발송되었습니다."})
}

func (h *AuthHandler) verifyCode(c *gin.Context, purpose services.Purpose) {
	var req verifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	key, err := h.registration.VerifyCode(c.Request.Context(), req.Email, req.Code, purpose)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"tempKey": key})
}

func (h *AuthHandler) SendSignupCode(c *gin.Context)   { h.sendCode(c, services.PurposeSignup) }
func (h *AuthHandler) VerifySignupCode(c *gin.Context) { h.verifyCode(c, services.PurposeSignup) }
func (h *AuthHandler) SendResetCode(c *gin.Context)    { h.sendCode(c, services.PurposePasswordReset) }
func (h *AuthHandler) VerifyResetCode(c *gin.Context)  { h.verifyCode(c, services.PurposePasswordReset) }

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	userID, err := h.registration.CompleteSignup(c.Request.Context(), req.TempKey, req.SignupForm)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusCreated, gin.H{
		"userId":  userID,
		"message": "가입 신청이 완료되었습니다. 관리자 승인 후 로그인할 수 있습니다.",
	})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "잘못된 요청입니다.")
		return
	}
	if err := h.registration.ResetPassword(c.Request.Context(), req.TempKey, req.NewPassword); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "비밀번호가 변경되었습니다."})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "아이디와 비밀번호를 입력해 주세요.")
		return
	}

	user, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	session := sessions.Default(c)
	session.Clear()
	session.Set(middleware.SessionUserIDKey, user.ID)
	if err := session.Save(); err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info("user logged in", zap.Uint("user_id", user.ID))
	respond(c, http.StatusOK, gin.H{"user": user})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, h.log, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"message": "로그아웃되었습니다."})
}

// Me returns the caller's session projection and profile.
func (h *AuthHandler) Me(c *gin.Context) {
	unread, _ := c.Get(middleware.UnreadCountKey)
	respond(c, http.StatusOK, gin.H{
		"session":     middleware.CurrentSession(c).User,
		"user":        middleware.CurrentUser(c),
		"unreadCount": unread,
	})
}
