package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"shopapi/apperror"
	"shopapi/database/memstore"

	"golang.org/x/crypto/bcrypt"
)

func TestSignupAnnDoe(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	auth, _ := newAuth(store)
	auth.HashCost = 0 // production cost

	var in SignupInput
	body := `{"name":"Ann Doe","email":"ann@x.com","password":"longpass1","phoneNumber":"712345678"}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("decode: %v", err)
	}

	sess, err := auth.Signup(ctx, in)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if sess.PhoneNumber != 254712345678 {
		t.Fatalf("expected phone 254712345678, got %d", sess.PhoneNumber)
	}
	if len(sess.Cart) != 0 || len(sess.Orders) != 0 {
		t.Fatal("new user should have an empty cart and no orders")
	}

	stored, err := store.UserByEmail(ctx, "ann@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if stored.PhoneNumber != 254712345678 {
		t.Fatalf("stored phone %d", stored.PhoneNumber)
	}
	if stored.Password == "longpass1" {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("longpass1")); err != nil {
		t.Fatalf("hash does not verify: %v", err)
	}
	if cost, _ := bcrypt.Cost([]byte(stored.Password)); cost != PasswordCost {
		t.Fatalf("expected cost %d, got %d", PasswordCost, cost)
	}

	claims, err := auth.Tokens.Parse(sess.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.IsAdmin || claims.ID != sess.ID || claims.ExpiresAt == nil {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestSignupAcceptsNumericPhone(t *testing.T) {
	var in SignupInput
	body := `{"name":"Bob","email":"bob@x.com","password":"longpass1","phoneNumber":712345679}`
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		t.Fatalf("decode: %v", err)
	}
	auth, _ := newAuth(memstore.New())
	sess, err := auth.Signup(context.Background(), in)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if sess.PhoneNumber != 254712345679 {
		t.Fatalf("unexpected phone %d", sess.PhoneNumber)
	}
}

func TestSignupValidation(t *testing.T) {
	valid := SignupInput{Name: "Ann Doe", Email: "ann@x.com", Password: "longpass1", PhoneNumber: "712345678"}
	cases := map[string]func(in *SignupInput){
		"short name":        func(in *SignupInput) { in.Name = "An" },
		"short password":    func(in *SignupInput) { in.Password = "short" },
		"malformed email":   func(in *SignupInput) { in.Email = "ann-at-x" },
		"short phone":       func(in *SignupInput) { in.PhoneNumber = "71234" },
		"non-numeric phone": func(in *SignupInput) { in.PhoneNumber = "71234abcd" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			auth, _ := newAuth(memstore.New())
			in := valid
			mutate(&in)
			if _, err := auth.Signup(context.Background(), in); !apperror.Is(err, apperror.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuth(memstore.New())
	in := SignupInput{Name: "Ann Doe", Email: "ann@x.com", Password: "longpass1", PhoneNumber: "712345678"}

	if _, err := auth.Signup(ctx, in); err != nil {
		t.Fatalf("first signup: %v", err)
	}
	if _, err := auth.Signup(ctx, in); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestNormalizePhoneDropsLeadingZero(t *testing.T) {
	got, err := NormalizePhone("0712345678")
	if err != nil || got != 254712345678 {
		t.Fatalf("got %d, %v", got, err)
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	auth, _ := newAuth(store)
	sess, err := auth.Signup(ctx, SignupInput{Name: "Ann Doe", Email: "ann@x.com", Password: "longpass1", PhoneNumber: "712345678"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	orders := NewOrderService(store, nil)
	if _, err := orders.PlaceOrder(ctx, sess.ID, milkOrder()); err != nil {
		t.Fatalf("place order: %v", err)
	}

	if _, err := auth.Login(ctx, LoginInput{Email: "nobody@x.com", Password: "longpass1"}); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := auth.Login(ctx, LoginInput{Email: "ann@x.com", Password: "wrongpass"}); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}

	got, err := auth.Login(ctx, LoginInput{Email: "ann@x.com", Password: "longpass1"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(got.Orders) != 1 || got.Orders[0].FirstTitle() != "Milk" {
		t.Fatalf("expected the ledger order, got %+v", got.Orders)
	}
	if got.Token == "" {
		t.Fatal("expected a fresh token")
	}
}

func TestAdminTokensDoNotExpire(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuth(memstore.New())
	in := SignupInput{Name: "Root", Email: "root@x.com", Password: "longpass1", PhoneNumber: "700000000"}

	sess, err := auth.AdminSignup(ctx, in)
	if err != nil {
		t.Fatalf("admin signup: %v", err)
	}
	claims, err := auth.Tokens.Parse(sess.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !claims.IsAdmin || claims.ExpiresAt != nil {
		t.Fatalf("expected non-expiring admin claims, got %+v", claims)
	}
	if _, err := auth.AdminSignup(ctx, in); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := auth.AdminLogin(ctx, LoginInput{Email: "root@x.com", Password: "longpass1"}); err != nil {
		t.Fatalf("admin login: %v", err)
	}
	ok, err := auth.AdminExists(ctx, sess.ID)
	if err != nil || !ok {
		t.Fatalf("expected admin to exist: %v", err)
	}
	if ok, _ := auth.AdminExists(ctx, "not-an-id"); ok {
		t.Fatal("unknown id must not resolve to an admin")
	}
}

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	auth, mail := newAuth(memstore.New())
	if _, err := auth.Signup(ctx, SignupInput{Name: "Ann Doe", Email: "ann@x.com", Password: "longpass1", PhoneNumber: "712345678"}); err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := auth.RequestPasswordReset(ctx, "nobody@x.com"); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	resetToken, err := auth.RequestPasswordReset(ctx, "ann@x.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	if len(mail.sent) != 1 || mail.sent[0].To != "ann@x.com" {
		t.Fatalf("expected one reset mail, got %+v", mail.sent)
	}
	code := codePattern.FindString(mail.sent[0].Body)
	if code == "" {
		t.Fatalf("no code in mail body %q", mail.sent[0].Body)
	}

	newPass := NewPasswordInput{Email: "ann@x.com", Password: "brandnew99"}
	if err := auth.SetNewPassword(ctx, newPass); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("unverified reset must be refused, got %v", err)
	}

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if _, err := auth.VerifyResetCode(ctx, resetToken, wrong); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("expected auth error for wrong code, got %v", err)
	}
	if _, err := auth.VerifyResetCode(ctx, "Bearer garbage", code); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("expected auth error for bad token, got %v", err)
	}

	email, err := auth.VerifyResetCode(ctx, resetToken, code)
	if err != nil || email != "ann@x.com" {
		t.Fatalf("verify: %q %v", email, err)
	}
	if err := auth.SetNewPassword(ctx, newPass); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if _, err := auth.Login(ctx, LoginInput{Email: "ann@x.com", Password: "brandnew99"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if err := auth.SetNewPassword(ctx, newPass); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("verification must be single use, got %v", err)
	}
}

func TestResetTokenDoesNotRevealCode(t *testing.T) {
	ctx := context.Background()
	auth, mail := newAuth(memstore.New())
	if _, err := auth.Signup(ctx, SignupInput{Name: "Ann Doe", Email: "ann@x.com", Password: "longpass1", PhoneNumber: "712345678"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	resetToken, err := auth.RequestPasswordReset(ctx, "ann@x.com")
	if err != nil {
		t.Fatalf("request reset: %v", err)
	}
	code := codePattern.FindString(mail.sent[0].Body)

	parts := strings.Split(strings.TrimPrefix(resetToken, "Bearer "), ".")
	if len(parts) != 3 {
		t.Fatalf("malformed token %q", resetToken)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if strings.Contains(string(payload), code) {
		t.Fatalf("code %s readable in token payload %s", code, payload)
	}

	// Without the mailed code, the token alone cannot open the reset window.
	var claims struct {
		Digit string `json:"passwordResetDigit"`
	}
	json.Unmarshal(payload, &claims)
	if _, err := auth.VerifyResetCode(ctx, resetToken, claims.Digit); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("digest accepted as code: %v", err)
	}
	if err := auth.SetNewPassword(ctx, NewPasswordInput{Email: "ann@x.com", Password: "brandnew99"}); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("password reset without the mailed code must be refused, got %v", err)
	}
}

func TestVerifyRejectsSessionToken(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuth(memstore.New())
	sess, err := auth.Signup(ctx, SignupInput{Name: "Ann Doe", Email: "ann@x.com", Password: "longpass1", PhoneNumber: "712345678"})
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := auth.VerifyResetCode(ctx, sess.Token, ""); !apperror.Is(err, apperror.KindAuth) {
		t.Fatalf("session tokens must not pass reset verification, got %v", err)
	}
}

func TestSetNewPasswordWithoutVerificationWhenRelaxed(t *testing.T) {
	ctx := context.Background()
	auth, _ := newAuth(memstore.New())
	auth.RequireVerified = false
	if _, err := auth.Signup(ctx, SignupInput{Name: "Ann Doe", Email: "ann@x.com", Password: "longpass1", PhoneNumber: "712345678"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if err := auth.SetNewPassword(ctx, NewPasswordInput{Email: "ann@x.com", Password: "brandnew99"}); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := auth.SetNewPassword(ctx, NewPasswordInput{Email: "ann@x.com", Password: "short"}); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestResetCodeIsSixDigits(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := ResetCode()
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != 6 || code[0] == '0' {
			t.Fatalf("bad code %q", code)
		}
	}
}

func TestListUsers(t *testing.T) {
	store := memstore.New()
	seedUser(t, store, "a@x.com", 254700000001)
	seedUser(t, store, "b@x.com", 254700000002)
	auth, _ := newAuth(store)

	users, err := auth.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 2 || users[0].JoinedAt == "" {
		t.Fatalf("unexpected users %+v", users)
	}
}
