package auth

import (
	"strings"

	"github.com/taohansen/blog-backend/models"
)

// AdminGate decides which signed-in users may mutate posts. Emails compare
// case-insensitively.
type AdminGate struct {
	admins map[string]struct{}
}

func NewAdminGate(emails ...string) AdminGate {
	g := AdminGate{admins: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if e = normalizeEmail(e); e != "" {
			g.admins[e] = struct{}{}
		}
	}
	return g
}

func (g AdminGate) IsAdmin(email string) bool {
	_, ok := g.admins[normalizeEmail(email)]
	return ok
}

// Caller turns verified claims into the principal the post service sees.
// Nil claims yield an anonymous caller.
func (g AdminGate) Caller(claims *Claims) models.Caller {
	if claims == nil {
		return models.Caller{}
	}
	return models.Caller{
		Subject:   claims.Email,
		CanMutate: g.IsAdmin(claims.Email),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
