package accounts

// SeedAccount is a row of the default chart of accounts.
type SeedAccount struct {
	Code       string
	Name       string
	Type       AccountType
	Category   string
	ParentCode string
}

// DefaultChart is inserted by SeedDefaults. Parents precede their children.
var DefaultChart = []SeedAccount{
	{Code: "1000", Name: "Assets", Type: AccountTypeAsset},
	{Code: "1100", Name: "Cash and Cash Equivalents", Type: AccountTypeAsset, Category: "current_asset", ParentCode: "1000"},
	{Code: "1110", Name: "Petty Cash", Type: AccountTypeAsset, Category: "current_asset", ParentCode: "1100"},
	{Code: "1120", Name: "Bank Accounts", Type: AccountTypeAsset, Category: "current_asset", ParentCode: "1100"},
	{Code: "1200", Name: "Accounts Receivable", Type: AccountTypeAsset, Category: "current_asset", ParentCode: "1000"},
	{Code: "1300", Name: "Inventory", Type: AccountTypeAsset, Category: "current_asset", ParentCode: "1000"},
	{Code: "1400", Name: "Prepaid Expenses", Type: AccountTypeAsset, Category: "current_asset", ParentCode: "1000"},
	{Code: "1500", Name: "Property, Plant and Equipment", Type: AccountTypeAsset, Category: "fixed_asset", ParentCode: "1000"},
	{Code: "2000", Name: "Liabilities", Type: AccountTypeLiability},
	{Code: "2100", Name: "Accounts Payable", Type: AccountTypeLiability, Category: "current_liability", ParentCode: "2000"},
	{Code: "2200", Name: "Accrued Liabilities", Type: AccountTypeLiability, Category: "current_liability", ParentCode: "2000"},
	{Code: "2300", Name: "Taxes Payable", Type: AccountTypeLiability, Category: "current_liability", ParentCode: "2000"},
	{Code: "2500", Name: "Long-term Debt", Type: AccountTypeLiability, Category: "long_term_liability", ParentCode: "2000"},
	{Code: "3000", Name: "Equity", Type: AccountTypeEquity},
	{Code: "3100", Name: "Owner's Capital", Type: AccountTypeEquity, Category: "equity", ParentCode: "3000"},
	{Code: "3200", Name: "Retained Earnings", Type: AccountTypeEquity, Category: "equity", ParentCode: "3000"},
	{Code: "4000", Name: "Revenue", Type: AccountTypeRevenue},
	{Code: "4100", Name: "Sales Revenue", Type: AccountTypeRevenue, Category: "operating_revenue", ParentCode: "4000"},
	{Code: "4200", Name: "Service Revenue", Type: AccountTypeRevenue, Category: "operating_revenue", ParentCode: "4000"},
	{Code: "4900", Name: "Other Income", Type: AccountTypeRevenue, Category: "other_income", ParentCode: "4000"},
	{Code: "5000", Name: "Expenses", Type: AccountTypeExpense},
	{Code: "5100", Name: "Cost of Goods Sold", Type: AccountTypeExpense, Category: "cost_of_sales", ParentCode: "5000"},
	{Code: "5200", Name: "Salaries and Wages", Type: AccountTypeExpense, Category: "operating_expense", ParentCode: "5000"},
	{Code: "5300", Name: "Rent Expense", Type: AccountTypeExpense, Category: "operating_expense", ParentCode: "5000"},
	{Code: "5400", Name: "Utilities Expense", Type: AccountTypeExpense, Category: "operating_expense", ParentCode: "5000"},
	{Code: "5500", Name: "Depreciation Expense", Type: AccountTypeExpense, Category: "operating_expense", ParentCode: "5000"},
}
