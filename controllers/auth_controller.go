package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"shopapi/apperror"
	"shopapi/services"

	"github.com/gin-gonic/gin"
)

func sessionJSON(message string, s *services.Session, withShop bool) gin.H {
	body := gin.H{
		"message":     message,
		"id":          s.ID,
		"email":       s.Email,
		"phoneNumber": s.PhoneNumber,
		"token":       s.Token,
		"name":        s.Name,
	}
	if withShop {
		body["cart"] = s.Cart
		body["orders"] = s.Orders
	}
	return body
}

func (ctl *Controller) Signup(c *gin.Context) {
	var input services.SignupInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	sess, err := ctl.Auth.Signup(ctx, input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, sessionJSON("Signed up successfully", sess, true))
}

func (ctl *Controller) Login(c *gin.Context) {
	var input services.LoginInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	sess, err := ctl.Auth.Login(ctx, input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sessionJSON("Logged in successfully", sess, true))
}

func (ctl *Controller) AdminSignup(c *gin.Context) {
	var input services.SignupInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	sess, err := ctl.Auth.AdminSignup(ctx, input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, sessionJSON("Signed up successfully", sess, false))
}

func (ctl *Controller) AdminLogin(c *gin.Context) {
	var input services.LoginInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	sess, err := ctl.Auth.AdminLogin(ctx, input)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, sessionJSON("Logged in successfully", sess, false))
}

func (ctl *Controller) RequestPasswordReset(c *gin.Context) {
	var input struct {
		Email string `json:"email" binding:"required,email"`
	}
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	tok, err := ctl.Auth.RequestPasswordReset(ctx, input.Email)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "E-Mail sent successfully", "token": tok})
}

// VerifyResetCode reads the reset token from the Authorization header. The
// code may arrive as a JSON number or string.
func (ctl *Controller) VerifyResetCode(c *gin.Context) {
	var input struct {
		Code interface{} `json:"code" binding:"required"`
	}
	if !bind(c, &input) {
		return
	}
	code := fmt.Sprint(input.Code)
	if f, ok := input.Code.(float64); ok {
		code = strconv.FormatFloat(f, 'f', -1, 64)
	}

	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	email, err := ctl.Auth.VerifyResetCode(ctx, c.GetHeader("Authorization"), code)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Code validated and is valid", "code": code, "email": email})
}

func (ctl *Controller) SetNewPassword(c *gin.Context) {
	var input services.NewPasswordInput
	if !bind(c, &input) {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	if err := ctl.Auth.SetNewPassword(ctx, input); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func (ctl *Controller) ListUsers(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	users, err := ctl.Auth.ListUsers(ctx)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Users found successfully", "users": users})
}

// MailFailures lists undelivered mail, newest first. ?limit caps the result.
func (ctl *Controller) MailFailures(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.Error(apperror.Validation("Unable to Process", apperror.Field("limit", "limit must be a positive number")))
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	failures, err := ctl.Failures.RecentFailures(ctx, limit)
	if err != nil {
		c.Error(apperror.Persistence("Unable to read the mail failure log", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mail failures found successfully", "failures": failures})
}
