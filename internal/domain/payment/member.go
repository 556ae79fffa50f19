package payment

import (
	"strings"

	"github.com/gym/backend/internal/domain/shared"
)

// Member is the gym member that owns payments, schedules and plans.
// Member records are maintained elsewhere; this package only reads them.
type Member struct {
	shared.BaseEntity
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// FullName returns the display name of the member
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}
