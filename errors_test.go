package vireo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{table: "users"}
	assert.Equal(t, "vireo: no rows in users", err.Error())
	assert.Equal(t, "users", err.Table())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, IsNotFound(ErrNotFound))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("other")))
}

func TestNotSingularError(t *testing.T) {
	err := &NotSingularError{table: "users", count: 3}
	assert.Equal(t, "vireo: users not singular (got 3 rows, expected 1)", err.Error())
	assert.Equal(t, 3, err.Count())
	assert.ErrorIs(t, err, ErrNotSingular)
	assert.True(t, IsNotSingular(err))

	unknown := &NotSingularError{table: "users", count: -1}
	assert.Equal(t, "vireo: users not singular", unknown.Error())
}

func TestQueryAndMutationErrors(t *testing.T) {
	cause := errors.New("boom")

	qe := &QueryError{Table: "users", Op: "select", Err: cause}
	assert.Equal(t, "vireo: querying users (select): boom", qe.Error())
	assert.ErrorIs(t, qe, cause)
	assert.True(t, IsQueryError(qe))
	assert.False(t, IsQueryError(cause))

	me := &MutationError{Table: "users", Op: "insert", Err: cause}
	assert.Equal(t, "vireo: insert users: boom", me.Error())
	assert.True(t, IsMutationError(me))
	assert.ErrorIs(t, me, cause)
}

func TestAggregateError(t *testing.T) {
	require.Nil(t, NewAggregateError(nil, nil))

	single := errors.New("one")
	assert.Equal(t, single, NewAggregateError(nil, single))

	agg := NewAggregateError(errors.New("one"), errors.New("two"))
	var ae *AggregateError
	require.ErrorAs(t, agg, &ae)
	require.Len(t, ae.Errors, 2)
	assert.Contains(t, agg.Error(), "multiple errors")
	assert.Contains(t, agg.Error(), "[1] one")
	assert.Contains(t, agg.Error(), "[2] two")
}

func TestRollbackError(t *testing.T) {
	cause := errors.New("connection lost")
	re := &RollbackError{Err: cause}
	assert.Contains(t, re.Error(), "rollback failed")
	assert.ErrorIs(t, re, cause)
}
