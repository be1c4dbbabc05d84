package accounts

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/tallybooks/tally/internal/model"
)

const (
	numFields    = 7
	colID        = 0
	colName      = 1
	colParent    = 2
	colFlags     = 3
	colCommodity = 4
	colCode      = 5
	colDesc      = 6
)

// Header is the first row of a chart-of-accounts CSV.
var Header = []string{"account_id", "name", "parent_id", "flags", "commodity_id", "code", "description"}

// ReadAccounts reads a chart-of-accounts CSV.
func ReadAccounts(r io.Reader) ([]model.Account, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading accounts CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	var accounts []model.Account
	for i, rec := range records[1:] {
		acct, err := UnmarshalAccount(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		accounts = append(accounts, acct)
	}
	return accounts, nil
}

// WriteAccounts writes a chart-of-accounts CSV.
func WriteAccounts(w io.Writer, accounts []model.Account) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, acct := range accounts {
		if err := cw.Write(MarshalAccount(acct)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// MarshalAccount converts an Account to a CSV row.
func MarshalAccount(acct model.Account) []string {
	row := make([]string, numFields)
	row[colID] = acct.ID
	row[colName] = acct.Name
	row[colParent] = acct.ParentID
	row[colFlags] = acct.Flags.String()
	row[colCommodity] = acct.CommodityID
	row[colCode] = acct.Code
	row[colDesc] = acct.Description
	return row
}

// UnmarshalAccount converts a CSV row to an Account.
func UnmarshalAccount(record []string) (model.Account, error) {
	if len(record) != numFields {
		return model.Account{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	if record[colID] == "" {
		return model.Account{}, fmt.Errorf("account_id is empty")
	}

	flags, err := model.ParseAccountFlags(record[colFlags])
	if err != nil {
		return model.Account{}, fmt.Errorf("parsing flags of %s: %w", record[colID], err)
	}

	return model.Account{
		ID:          record[colID],
		Name:        record[colName],
		ParentID:    record[colParent],
		Flags:       flags,
		CommodityID: record[colCommodity],
		Code:        record[colCode],
		Description: record[colDesc],
	}, nil
}
