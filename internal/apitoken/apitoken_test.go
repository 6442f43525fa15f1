package apitoken_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tienda/internal/apitoken"
)

func TestIssueAndParse(t *testing.T) {
	iss := apitoken.NewIssuer("s3cret", time.Hour)
	tok, err := iss.Issue(7, "alice")
	require.NoError(t, err)

	claims, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "alice", claims.Username)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	tok, err := apitoken.NewIssuer("one", time.Hour).Issue(1, "admin")
	require.NoError(t, err)

	_, err = apitoken.NewIssuer("two", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, apitoken.ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	iss := apitoken.NewIssuer("s3cret", time.Nanosecond)
	tok, err := iss.Issue(1, "admin")
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond) // expiry has second precision

	_, err = iss.Parse(tok)
	assert.ErrorIs(t, err, apitoken.ErrInvalidToken)
}

func TestParseEmpty(t *testing.T) {
	_, err := apitoken.NewIssuer("s3cret", 0).Parse("")
	assert.ErrorIs(t, err, apitoken.ErrMissingToken)
}
