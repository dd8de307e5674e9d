package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Merchants    *MerchantRepository
	Users        *UserRepository
	Roles        *RoleRepository
	Accounts     *AccountRepository
	Shops        *ShopRepository
	Transactions *TransactionRepository
	Store        *Store
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Merchants:    NewMerchantRepository(pool),
		Users:        NewUserRepository(pool),
		Roles:        NewRoleRepository(pool),
		Accounts:     NewAccountRepository(pool),
		Shops:        NewShopRepository(pool),
		Transactions: NewTransactionRepository(pool),
		Store:        NewStore(pool),
	}
}
