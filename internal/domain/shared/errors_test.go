package shared_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gym/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	err := shared.NewNotFoundError("payment")

	assert.Equal(t, "payment not found", err.Error())
	assert.True(t, errors.Is(err, shared.ErrNotFound))
	assert.False(t, errors.Is(err, shared.ErrInvalidState))

	wrapped := fmt.Errorf("load payment: %w", err)
	assert.True(t, errors.Is(wrapped, shared.ErrNotFound))
}

func TestFilter_Normalize(t *testing.T) {
	f := shared.Filter{Page: 0, PageSize: 500, OrderDir: "sideways"}.Normalize()

	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 100, f.PageSize)
	assert.Equal(t, "created_at", f.OrderBy)
	assert.Equal(t, "desc", f.OrderDir)
	assert.NotNil(t, f.Filters)
	assert.Equal(t, 0, f.Offset())

	assert.Equal(t, 40, shared.Filter{Page: 3, PageSize: 20}.Offset())
}

func TestNewPaginated(t *testing.T) {
	p := shared.NewPaginated([]int{1, 2, 3}, 45, 2, 20)

	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, int64(45), p.Total)
	assert.Len(t, p.Items, 3)
}
