package postgres

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Accounts *AccountRepository
	Tokens   *TokenRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(exec pgExecutor) *Repositories {
	return &Repositories{
		Accounts: NewAccountRepository(exec),
		Tokens:   NewTokenRepository(exec),
	}
}
