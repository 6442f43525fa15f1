package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"tienda/internal/apitoken"
	"tienda/internal/domain"
	"tienda/internal/repos"
	"tienda/internal/validate"
)

var ErrBadCreds = errors.New("invalid username or password")

type AuthService struct {
	DB        *sqlx.DB
	Users     *repos.UserRepo
	Customers *repos.CustomerRepo
	Tokens    *apitoken.Issuer
}

func NewAuthService(db *sqlx.DB, tokens *apitoken.Issuer) *AuthService {
	return &AuthService{
		DB:        db,
		Users:     repos.NewUserRepo(db),
		Customers: repos.NewCustomerRepo(db),
		Tokens:    tokens,
	}
}

// RegisterInput is the sign-up form.
type RegisterInput struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email,max=254"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Password1 string `form:"password1" validate:"required"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

// checkCreds returns the account when username/password match. Every failure is ErrBadCreds.
func (s *AuthService) checkCreds(username, password string) (*repos.Account, error) {
	a, err := s.Users.ByUsername(strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrBadCreds
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(a.Hash), []byte(password)) != nil {
		return nil, ErrBadCreds
	}
	return a, nil
}

func (s *AuthService) Login(sid, username, password string) (domain.Principal, error) {
	a, err := s.checkCreds(username, password)
	if err != nil {
		return domain.Principal{}, err
	}
	if err := s.Users.BindSession(sid, a.ID); err != nil {
		return domain.Principal{}, err
	}
	return a.Principal(), nil
}

func (s *AuthService) Logout(sid string) error {
	return s.Users.UnbindSession(sid)
}

// CurrentPrincipal resolves the session; unknown or unbound sessions are anonymous.
func (s *AuthService) CurrentPrincipal(sid string) (domain.Principal, error) {
	if sid == "" {
		return domain.Principal{}, nil
	}
	a, err := s.Users.SessionAccount(sid)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, nil
		}
		return domain.Principal{}, err
	}
	return a.Principal(), nil
}

// Register creates the user, its customer profile and the Customers membership atomically.
func (s *AuthService) Register(in RegisterInput) (domain.Principal, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	verr := validate.Struct(in)
	if in.Password1 != "" {
		if msg := validate.Password(in.Password1, in.Username); msg != "" {
			verr.Add("password2", msg)
		}
	}
	if in.Username != "" {
		taken, err := s.Users.UsernameTaken(in.Username)
		if err != nil {
			return domain.Principal{}, err
		}
		if taken {
			verr.Add("username", "A user with that username already exists.")
		}
	}
	if err := verr.OrNil(); err != nil {
		return domain.Principal{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password1), bcrypt.DefaultCost)
	if err != nil {
		return domain.Principal{}, err
	}

	u := domain.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Hash:      string(hash),
	}
	var customerID int64
	err = repos.InTx(s.DB, func(tx *sqlx.Tx) error {
		users := s.Users.With(tx)
		if err := users.Create(&u); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		c := domain.Customer{UserID: u.ID}
		if err := s.Customers.With(tx).Create(&c); err != nil {
			return fmt.Errorf("create customer: %w", err)
		}
		gid, err := users.EnsureGroup(repos.CustomersGroup)
		if err != nil {
			return err
		}
		customerID = c.ID
		return users.AddToGroup(u.ID, gid)
	})
	if err != nil {
		return domain.Principal{}, err
	}
	return domain.Principal{
		UserID:     u.ID,
		Username:   u.Username,
		Name:       u.DisplayName(),
		CustomerID: customerID,
	}, nil
}

// IssueToken exchanges credentials for a bearer token.
func (s *AuthService) IssueToken(username, password string) (string, error) {
	a, err := s.checkCreds(username, password)
	if err != nil {
		return "", err
	}
	return s.Tokens.Issue(a.ID, a.Username)
}

// TokenPrincipal resolves a bearer token to the current state of its user.
func (s *AuthService) TokenPrincipal(token string) (domain.Principal, error) {
	claims, err := s.Tokens.Parse(token)
	if err != nil {
		return domain.Principal{}, err
	}
	a, err := s.Users.ByID(claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Principal{}, apitoken.ErrInvalidToken
		}
		return domain.Principal{}, err
	}
	return a.Principal(), nil
}
