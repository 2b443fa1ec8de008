// Package views holds the state behind the catalog and order lists. Local
// collections are patched only after the backend acknowledges a mutation;
// failures leave the previous state intact and raise an error notification.
package views

import (
	"github.com/xenking/pasta-storefront/internal/domain/auth"
)

// CurrentUser reports the signed-in user, or nil.
type CurrentUser interface {
	Current() *auth.User
}
