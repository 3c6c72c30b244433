package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeRoleType(t *testing.T) {
	assert.Equal(t, "ADMIN", NormalizeRoleType(" admin "))
	assert.Equal(t, "", NormalizeRoleType("  "))
}

func TestJoinRoleNames(t *testing.T) {
	assert.Equal(t, "", JoinRoleNames(nil))
	assert.Equal(t, "USER", JoinRoleNames([]string{"user"}))
	assert.Equal(t, "USER,HR,ADMIN", JoinRoleNames([]string{"user", " hr ", "ADMIN", ""}))
}

func TestSplitRoleNames(t *testing.T) {
	assert.Nil(t, SplitRoleNames(""))
	assert.Nil(t, SplitRoleNames("  "))
	assert.Equal(t, []string{"USER"}, SplitRoleNames("USER"))
	assert.Equal(t, []string{"USER", "HR"}, SplitRoleNames("user, hr,"))
}
