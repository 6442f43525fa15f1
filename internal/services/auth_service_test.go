package services_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda/internal/apitoken"
	"tienda/internal/repos"
	"tienda/internal/services"
)

func newAuth(t *testing.T) (*services.AuthService, *repos.UserRepo) {
	t.Helper()
	db := seeded(t)
	return services.NewAuthService(db, apitoken.NewIssuer("test-secret", time.Hour)), repos.NewUserRepo(db)
}

func TestLoginBindsSession(t *testing.T) {
	auth, _ := newAuth(t)

	_, err := auth.Login("sid-a", "alice", "wrong")
	assert.ErrorIs(t, err, services.ErrBadCreds)
	_, err = auth.Login("sid-a", "nobody", "Passw0rd!")
	assert.ErrorIs(t, err, services.ErrBadCreds)

	p, err := auth.Login("sid-a", " Alice ", "Passw0rd!")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.CustomerID)

	cur, err := auth.CurrentPrincipal("sid-a")
	require.NoError(t, err)
	assert.Equal(t, p, cur)

	require.NoError(t, auth.Logout("sid-a"))
	cur, err = auth.CurrentPrincipal("sid-a")
	require.NoError(t, err)
	assert.False(t, cur.Authenticated())

	anon, err := auth.CurrentPrincipal("")
	require.NoError(t, err)
	assert.False(t, anon.Authenticated())
}

func TestRegisterCreatesCustomer(t *testing.T) {
	auth, users := newAuth(t)

	p, err := auth.Register(services.RegisterInput{
		Username: "carol", Email: "carol@tienda.test", FirstName: "Carol",
		Password1: "S3cure-pass", Password2: "S3cure-pass",
	})
	require.NoError(t, err)
	assert.NotZero(t, p.CustomerID)
	assert.False(t, p.IsStaff)

	var groups []string
	require.NoError(t, sqlx.Select(users.DB, &groups, `
	  SELECT g.name FROM user_groups ug
	  JOIN auth_groups g ON g.id = ug.group_id
	  WHERE ug.user_id = ?`, p.UserID))
	assert.Equal(t, []string{repos.CustomersGroup}, groups)

	_, err = auth.Login("sid-c", "carol", "S3cure-pass")
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newAuth(t)

	_, err := auth.Register(services.RegisterInput{Username: "ALICE", Password1: "S3cure-pass", Password2: "S3cure-pass"})
	assert.Equal(t, "A user with that username already exists.", fieldErrors(t, err)["username"])

	_, err = auth.Register(services.RegisterInput{Username: "dave", Password1: "S3cure-pass", Password2: "other-pass"})
	assert.Equal(t, "The two password fields didn't match.", fieldErrors(t, err)["password2"])

	_, err = auth.Register(services.RegisterInput{Username: "dave", Password1: "short", Password2: "short"})
	assert.Contains(t, fieldErrors(t, err)["password2"], "too short")

	_, err = auth.Register(services.RegisterInput{Username: "bad name", Password1: "S3cure-pass", Password2: "S3cure-pass"})
	assert.Contains(t, fieldErrors(t, err), "username")

	_, err = auth.Register(services.RegisterInput{Username: "dave", Password1: "S3cure-pass", Password2: "S3cure-pass"})
	assert.Equal(t, "This field is required.", fieldErrors(t, err)["email"])

	_, err = auth.Register(services.RegisterInput{Username: "dave", Email: "not-an-email", Password1: "S3cure-pass", Password2: "S3cure-pass"})
	assert.Contains(t, fieldErrors(t, err), "email")
}

func TestRegisterIsAtomic(t *testing.T) {
	db := seeded(t)
	auth := services.NewAuthService(db, apitoken.NewIssuer("test-secret", time.Hour))
	_, err := db.Exec(`CREATE TRIGGER fail_customer BEFORE INSERT ON customers BEGIN SELECT RAISE(ABORT, 'boom'); END;`)
	require.NoError(t, err)

	_, err = auth.Register(services.RegisterInput{Username: "erin", Email: "erin@tienda.test", Password1: "S3cure-pass", Password2: "S3cure-pass"})
	require.Error(t, err)

	taken, err := repos.NewUserRepo(db).UsernameTaken("erin")
	require.NoError(t, err)
	assert.False(t, taken, "user row must roll back with the customer")
}

func TestTokens(t *testing.T) {
	auth, _ := newAuth(t)

	_, err := auth.IssueToken("bob", "nope")
	assert.ErrorIs(t, err, services.ErrBadCreds)

	tok, err := auth.IssueToken("bob", "Passw0rd!")
	require.NoError(t, err)
	p, err := auth.TokenPrincipal(tok)
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Username)
	assert.Equal(t, int64(2), p.CustomerID)

	other := apitoken.NewIssuer("someone-else", time.Hour)
	forged, err := other.Issue(1, "admin")
	require.NoError(t, err)
	_, err = auth.TokenPrincipal(forged)
	assert.True(t, errors.Is(err, apitoken.ErrInvalidToken))

	ghost, err := auth.Tokens.Issue(404, "ghost")
	require.NoError(t, err)
	_, err = auth.TokenPrincipal(ghost)
	assert.ErrorIs(t, err, apitoken.ErrInvalidToken)

	_, err = auth.TokenPrincipal("")
	assert.ErrorIs(t, err, apitoken.ErrMissingToken)
}
