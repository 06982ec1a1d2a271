package models

import (
	"github.com/shopspring/decimal"
)

// BranchAccount is one financial account at one branch (cash box, bank
// account, mobile-payment account). Verified payments move these balances;
// pending payments do not.
type BranchAccount struct {
	BranchId  string          `json:"branch_id"`
	AccountId string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// ApplyAccountDelta adjusts one branch account by a signed base-currency
// amount, creating the record on first use. The input slice is returned with
// the adjustment applied.
func ApplyAccountDelta(accounts []BranchAccount, branchId, accountId string, delta decimal.Decimal) []BranchAccount {
	for i := range accounts {
		if accounts[i].BranchId == branchId && accounts[i].AccountId == accountId {
			accounts[i].Balance = RoundMoney(accounts[i].Balance.Add(delta))
			return accounts
		}
	}
	return append(accounts, BranchAccount{
		BranchId:  branchId,
		AccountId: accountId,
		Balance:   RoundMoney(delta),
	})
}
