package tenant

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sqlStateErr string

func (e sqlStateErr) Error() string    { return "SQLSTATE " + string(e) }
func (e sqlStateErr) SQLState() string { return string(e) }

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(sqlStateErr("23505")))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert workspace: %w", sqlStateErr("23505"))),
		"wrapped unique violations must still match")
	assert.False(t, isUniqueViolation(sqlStateErr("23503")))
	assert.False(t, isUniqueViolation(errors.New("connection refused")))
}
