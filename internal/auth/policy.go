package auth

import "fintrack/internal/core"

// CategoryPolicy decides whether an account may create, edit or delete
// categories. The category namespace is shared across accounts, so
// whether mutation is open to everyone is a deployment choice rather
// than a hard-coded rule.
type CategoryPolicy interface {
	CanMutateCategory(account core.Account) bool
}

// SharedCategoryPolicy lets any authenticated account mutate any
// category. This mirrors the openness of the shared namespace.
type SharedCategoryPolicy struct{}

func (SharedCategoryPolicy) CanMutateCategory(core.Account) bool { return true }

// LockedCategoryPolicy rejects all category mutation through the web
// interface; the taxonomy is then managed out of band.
type LockedCategoryPolicy struct{}

func (LockedCategoryPolicy) CanMutateCategory(core.Account) bool { return false }

// PolicyFromName maps a configuration value to a policy, defaulting to
// the open shared policy.
func PolicyFromName(name string) CategoryPolicy {
	if name == "locked" {
		return LockedCategoryPolicy{}
	}
	return SharedCategoryPolicy{}
}
