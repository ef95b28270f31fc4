package users

import (
	"fmt"

	"github.com/fastprodman/matrixledger/internal/domain"
	"github.com/fastprodman/matrixledger/internal/repos/users"
)

var _ users.Users = (*usersRepo)(nil)

type usersRepo struct{}

func New() *usersRepo {
	return &usersRepo{}
}

// balanceColumn maps a currency onto its column. Only these literals ever
// reach SQL text.
func balanceColumn(c domain.Currency) (string, error) {
	switch c {
	case domain.CurrencyPrimary:
		return "balance_primary", nil
	case domain.CurrencyBonus:
		return "balance_bonus", nil
	case domain.CurrencyPool:
		return "balance_pool", nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidCurrency, c)
	}
}
