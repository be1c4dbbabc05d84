package accounts

import "github.com/tallybooks/tally/internal/model"

// Section is a top-level account every book must have directly under the root.
type Section struct {
	Name  string
	Flags model.AccountFlags
}

// Skeleton returns the required top-level sections with their exact flags.
func Skeleton() []Section {
	return []Section{
		{Name: "Assets", Flags: model.FlagAsset | model.FlagPlaceholder | model.FlagPermanent},
		{Name: "Liabilities", Flags: model.FlagLiability | model.FlagPlaceholder | model.FlagPermanent},
		{Name: "Income", Flags: model.FlagIncome | model.FlagPlaceholder | model.FlagPermanent},
		{Name: "Expenses", Flags: model.FlagExpense | model.FlagPlaceholder | model.FlagPermanent},
		{Name: "Equity", Flags: model.FlagNoChildren | model.FlagPermanent | model.FlagHidden},
		{Name: "Unspecified", Flags: model.FlagNoChildren | model.FlagPermanent | model.FlagHidden},
	}
}

// DefaultChart returns a starter chart: the root, the skeleton sections, and
// a few common accounts below them. newID supplies account ids.
func DefaultChart(rootID string, newID func() string) []model.Account {
	chart := []model.Account{{ID: rootID, Name: "Root Account"}}
	section := make(map[string]string)
	for _, s := range Skeleton() {
		id := newID()
		section[s.Name] = id
		chart = append(chart, model.Account{ID: id, Name: s.Name, ParentID: rootID, Flags: s.Flags})
	}

	add := func(parent, name string, flags model.AccountFlags, desc string) string {
		id := newID()
		chart = append(chart, model.Account{ID: id, Name: name, ParentID: parent, Flags: flags, Description: desc})
		return id
	}

	add(section["Assets"], "Checking", 0, "Primary checking account")
	add(section["Assets"], "Savings", 0, "Savings account")
	brokerage := add(section["Assets"], "Brokerage", model.FlagMarketable|model.FlagPlaceholder, "Taxable investments")
	add(brokerage, "Money Market", 0, "Sweep fund")
	add(section["Assets"], "Retirement", model.FlagMarketable|model.FlagTaxDeferred|model.FlagPlaceholder, "Tax-deferred investments")
	add(section["Liabilities"], "Credit Card", 0, "")
	add(section["Income"], "Salary", model.FlagTaxRelated, "")
	add(section["Income"], "Interest", model.FlagTaxRelated, "")
	add(section["Income"], "Dividends", model.FlagNeedsCommodityLink|model.FlagTaxRelated|model.FlagPlaceholder, "One child per holding")
	add(section["Expenses"], "Groceries", 0, "")
	add(section["Expenses"], "Housing", 0, "")
	add(section["Expenses"], "Taxes", model.FlagTaxRelated, "")
	return chart
}
