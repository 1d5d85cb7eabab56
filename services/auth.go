package services

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"strings"
	"time"

	"shopapi/apperror"
	"shopapi/database"
	"shopapi/mailer"
	"shopapi/models"
	"shopapi/token"

	"golang.org/x/crypto/bcrypt"
)

const (
	PasswordCost = 12
	CountryCode  = "254"
)

// PhoneNumber accepts both a JSON string and a JSON number.
type PhoneNumber string

func (p *PhoneNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = PhoneNumber(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*p = PhoneNumber(n.String())
	return nil
}

type SignupInput struct {
	Name        string      `json:"name" binding:"required,min=3"`
	Email       string      `json:"email" binding:"required,email"`
	Password    string      `json:"password" binding:"required,min=8"`
	PhoneNumber PhoneNumber `json:"phoneNumber" binding:"required,min=9"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type NewPasswordInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// Session is what a successful signup or login hands back to the client.
type Session struct {
	ID          string
	Name        string
	Email       string
	PhoneNumber int64
	Token       string
	Cart        []models.CartLine
	Orders      []models.Order
}

type AuthService struct {
	Store    Store
	Tokens   *token.Issuer
	Mail     Mailer
	Verified ResetVerifier

	// RequireVerified makes SetNewPassword demand a prior successful VerifyResetCode.
	RequireVerified bool
	HashCost        int
}

func (s *AuthService) cost() int {
	if s.HashCost == 0 {
		return PasswordCost
	}
	return s.HashCost
}

// NormalizePhone strips leading zeros and prefixes the country code.
func NormalizePhone(raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || n <= 0 {
		return 0, apperror.Validation("Unable to Process", apperror.Field("phoneNumber", "Please enter a valid phone number"))
	}
	full, err := strconv.ParseInt(CountryCode+strconv.FormatInt(n, 10), 10, 64)
	if err != nil {
		return 0, apperror.Validation("Unable to Process", apperror.Field("phoneNumber", "Please enter a valid phone number"))
	}
	return full, nil
}

func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := apperror.Check(in); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(string(in.PhoneNumber))
	if err != nil {
		return nil, err
	}

	if _, err := s.Store.UserByEmail(ctx, in.Email); err == nil {
		return nil, userExists()
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperror.Persistence("Could not look up users", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "An error occurred encrypting the password", err)
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:        in.Name,
		Email:       in.Email,
		Password:    string(hash),
		PhoneNumber: phone,
		Cart:        []models.CartLine{},
		Orders:      []models.Order{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, userExists()
		}
		return nil, apperror.Persistence("An error occurred while saving the user", err)
	}

	tok, err := s.Tokens.IssueUser(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "An error occurred while creating a token", err)
	}
	return &Session{
		ID:          user.ID.Hex(),
		Name:        user.Name,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		Token:       tok,
		Cart:        user.Cart,
		Orders:      user.Orders,
	}, nil
}

func userExists() error {
	return apperror.Conflict("Unable to process email", apperror.Field("email",
		"A user with the E-Mail address you have provided already exists. Please try using another one."))
}

// Login returns the user's ledger orders, joined on the customer id.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if err := apperror.Check(in); err != nil {
		return nil, err
	}
	user, err := s.Store.UserByEmail(ctx, in.Email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.NotFound("Unable to process email", apperror.Field("email",
			"We have not found this E-Mail address. Perhaps create an account with us."))
	}
	if err != nil {
		return nil, apperror.Persistence("An error occurred while looking for a user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, wrongPassword()
	}

	orders, err := s.Store.OrdersByCustomer(ctx, user.ID.Hex())
	if err != nil {
		return nil, apperror.Persistence("Error while looking for user's orders", err)
	}
	tok, err := s.Tokens.IssueUser(user.ID.Hex(), user.Email)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "An error occurred while creating a token", err)
	}
	cart := user.Cart
	if cart == nil {
		cart = []models.CartLine{}
	}
	return &Session{
		ID:          user.ID.Hex(),
		Name:        user.Name,
		Email:       user.Email,
		PhoneNumber: user.PhoneNumber,
		Token:       tok,
		Cart:        cart,
		Orders:      orders,
	}, nil
}

func wrongPassword() error {
	return apperror.Auth("Unable to process password", apperror.Field("password",
		"You have entered the wrong password. Please try again!"))
}

func (s *AuthService) AdminSignup(ctx context.Context, in SignupInput) (*Session, error) {
	if err := apperror.Check(in); err != nil {
		return nil, err
	}
	phone, err := NormalizePhone(string(in.PhoneNumber))
	if err != nil {
		return nil, err
	}

	exists := apperror.Conflict("Unable to process email", apperror.Field("email",
		"An administrator with the E-Mail address you have provided already exists. Please try using another one."))
	if _, err := s.Store.AdminByEmail(ctx, in.Email); err == nil {
		return nil, exists
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperror.Persistence("Could not look up administrators", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "An error occurred encrypting the password", err)
	}
	admin := &models.Admin{
		Name:        in.Name,
		Email:       in.Email,
		Password:    string(hash),
		PhoneNumber: phone,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.Store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, exists
		}
		return nil, apperror.Persistence("An error occurred while saving the admin", err)
	}

	tok, err := s.Tokens.IssueAdmin(admin.ID.Hex(), admin.Email)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "An error occurred while creating a token", err)
	}
	return &Session{ID: admin.ID.Hex(), Name: admin.Name, Email: admin.Email, PhoneNumber: admin.PhoneNumber, Token: tok}, nil
}

func (s *AuthService) AdminLogin(ctx context.Context, in LoginInput) (*Session, error) {
	if err := apperror.Check(in); err != nil {
		return nil, err
	}
	admin, err := s.Store.AdminByEmail(ctx, in.Email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, apperror.NotFound("Unable to process email", apperror.Field("email",
			"We have not found this E-Mail address. Perhaps create an account."))
	}
	if err != nil {
		return nil, apperror.Persistence("An error occurred while looking for an administrator", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.Password), []byte(in.Password)); err != nil {
		return nil, wrongPassword()
	}
	tok, err := s.Tokens.IssueAdmin(admin.ID.Hex(), admin.Email)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "An error occurred while creating a token", err)
	}
	return &Session{ID: admin.ID.Hex(), Name: admin.Name, Email: admin.Email, PhoneNumber: admin.PhoneNumber, Token: tok}, nil
}

// RequestPasswordReset mails a one-time code and returns the bearer reset
// token that carries it. Mail delivery happens in the background; failures
// land in the dispatcher's failure log.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.Store.UserByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, database.ErrNotFound) {
		return "", apperror.NotFound("Unable to process email", apperror.Field("email", "We have not found this E-Mail address."))
	}
	if err != nil {
		return "", apperror.Persistence("An error occurred while looking for a user", err)
	}

	code, err := ResetCode()
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "Unable to generate password reset token", err)
	}
	tok, err := s.Tokens.IssueReset(user.ID.Hex(), user.Email, code)
	if err != nil {
		return "", apperror.Wrap(apperror.KindInternal, "Unable to generate password reset token", err)
	}

	if s.Mail != nil {
		msg := mailer.Message{
			To:      user.Email,
			Subject: "Reset Password",
			Body:    fmt.Sprintf("<h1>Here's your code</h1><p>Please use this code %s to create a new password</p>", code),
		}
		if err := s.Mail.Enqueue(msg); err != nil {
			log.Printf("reset mail for %s not queued: %v", user.Email, err)
		}
	}
	return "Bearer " + tok, nil
}

// ResetCode returns a uniformly random six-digit code.
func ResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+100000, 10), nil
}

// VerifyResetCode checks code against the reset token and opens the short
// window in which SetNewPassword is accepted. It returns the token's email.
func (s *AuthService) VerifyResetCode(ctx context.Context, rawToken, code string) (string, error) {
	claims, err := s.Tokens.Parse(rawToken)
	if err != nil || !claims.IsReset() {
		return "", apperror.Auth("Token error", apperror.Field("code", "Your token has expired"))
	}
	if !s.Tokens.CheckResetCode(claims, code) {
		return "", apperror.Auth("Error validating code", apperror.Field("code",
			"You have entered the wrong reset code. Please check your E-Mail for the correct one"))
	}
	if s.Verified != nil {
		if err := s.Verified.MarkVerified(ctx, claims.Email); err != nil {
			return "", apperror.Persistence("Unable to record the verified code", err)
		}
	}
	return claims.Email, nil
}

func (s *AuthService) SetNewPassword(ctx context.Context, in NewPasswordInput) error {
	if err := apperror.Check(in); err != nil {
		return err
	}
	user, err := s.Store.UserByEmail(ctx, in.Email)
	if errors.Is(err, database.ErrNotFound) {
		return apperror.NotFound("Unable to process email", apperror.Field("email",
			"We have not found this E-Mail address. Perhaps create an account with us."))
	}
	if err != nil {
		return apperror.Persistence("An error occurred while looking for a user", err)
	}

	if s.RequireVerified {
		if s.Verified == nil {
			return apperror.Auth("Token error", apperror.Field("code", "Password reset is not available"))
		}
		ok, err := s.Verified.ConsumeVerified(ctx, user.Email)
		if err != nil {
			return apperror.Persistence("Unable to check the reset verification", err)
		}
		if !ok {
			return apperror.Auth("Token error", apperror.Field("code",
				"Please validate the reset code sent to your E-Mail first"))
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost())
	if err != nil {
		return apperror.Wrap(apperror.KindInternal, "An error occurred encrypting the password", err)
	}
	if err := s.Store.SetUserPassword(ctx, user.ID.Hex(), string(hash)); err != nil {
		return apperror.Persistence("Unable to save the user who has updated their password", err)
	}
	return nil
}

func (s *AuthService) ListUsers(ctx context.Context) ([]models.UserSummary, error) {
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return nil, apperror.Persistence("Unable to fetch the users", err)
	}
	out := make([]models.UserSummary, 0, len(users))
	for _, u := range users {
		out = append(out, models.UserSummary{
			ID:          u.ID.Hex(),
			Name:        u.Name,
			Email:       u.Email,
			PhoneNumber: u.PhoneNumber,
			JoinedAt:    u.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out, nil
}

// AdminExists is the revocable half of the admin capability check: a valid
// admin claim only counts while the admin record still exists.
func (s *AuthService) AdminExists(ctx context.Context, id string) (bool, error) {
	_, err := s.Store.AdminByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
