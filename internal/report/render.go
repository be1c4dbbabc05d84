package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"github.com/tallybooks/tally/internal/aggregate"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/position"
)

// Output formats.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

const absent = "n/a"

// Renderer writes statements as tables.
type Renderer struct {
	Format   string // table, markdown or csv
	Depth    int    // account levels below each section; 0 shows all
	Currency string // ISO 4217 code, USD when empty
}

func (r Renderer) money(d decimal.Decimal) string {
	code := r.Currency
	if code == "" {
		code = money.USD
	}
	cur := money.New(0, code).Currency()
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// sheet is one statement's rows, kept apart from any table writer so each
// format can lay it out on its own terms.
type sheet struct {
	title   string
	header  table.Row
	rows    []table.Row
	breaks  []int // separators go before these row indexes
	footer  table.Row
	amounts []int // right-aligned column numbers, 1-based
}

func (s *sheet) separate() { s.breaks = append(s.breaks, len(s.rows)) }

func (s *sheet) table() table.Writer {
	t := table.NewWriter()
	t.AppendHeader(s.header)
	next := 0
	for i, row := range s.rows {
		for next < len(s.breaks) && s.breaks[next] == i {
			if i > 0 {
				t.AppendSeparator()
			}
			next++
		}
		t.AppendRow(row)
	}
	t.AppendFooter(s.footer)
	configs := make([]table.ColumnConfig, 0, len(s.amounts))
	for _, n := range s.amounts {
		configs = append(configs, table.ColumnConfig{Number: n, Align: text.AlignRight, AlignFooter: text.AlignRight})
	}
	t.SetColumnConfigs(configs)
	return t
}

// write lays s out in the renderer's format. Titles are printed on their
// own line so they never wrap to the column widths.
func (r Renderer) write(w io.Writer, s *sheet) error {
	switch r.Format {
	case FormatCSV:
		return writeCSV(w, s)
	case FormatMarkdown:
		_, err := fmt.Fprintf(w, "## %s\n\n%s\n\n", s.title, s.table().RenderMarkdown())
		return err
	case FormatTable, "":
		t := s.table()
		t.SetStyle(table.StyleLight)
		_, err := fmt.Fprintf(w, "%s\n%s\n\n", s.title, t.Render())
		return err
	default:
		return fmt.Errorf("unknown report format %q", r.Format)
	}
}

// writeCSV emits RFC 4180 records: header, rows, then the footer.
func writeCSV(w io.Writer, s *sheet) error {
	cw := csv.NewWriter(w)
	records := append([]table.Row{s.header}, s.rows...)
	records = append(records, s.footer)
	for _, row := range records {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = fmt.Sprint(cell)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// sectionRows appends one row per visible account of the section carrying
// flag, indented by depth.
func (r Renderer) sectionRows(s *sheet, tree *aggregate.Tree, flag model.AccountFlags) error {
	section, err := tree.Section(flag)
	if err != nil {
		return err
	}
	s.separate()
	tree.Walk(section, r.Depth, func(n *aggregate.Node, level int) {
		s.rows = append(s.rows, table.Row{strings.Repeat("  ", level) + n.Name, r.money(n.Value)})
	})
	return nil
}

// BalanceSheet writes assets and liabilities as of the window's end.
func (r Renderer) BalanceSheet(w io.Writer, st *Statement) error {
	s := &sheet{
		title:   "Balance sheet as of " + st.Window.End.Format(model.DateLayout),
		header:  table.Row{"Account", "Balance"},
		amounts: []int{2},
	}
	for _, flag := range []model.AccountFlags{model.FlagAsset, model.FlagLiability} {
		if err := r.sectionRows(s, st.Tree, flag); err != nil {
			return err
		}
	}
	s.footer = table.Row{"Net worth", r.money(st.NetWorth)}
	return r.write(w, s)
}

// IncomeStatement writes income and expenses over the window.
func (r Renderer) IncomeStatement(w io.Writer, st *Statement) error {
	s := &sheet{
		title: fmt.Sprintf("Income statement %s to %s",
			st.Window.Begin.Format(model.DateLayout), st.Window.End.Format(model.DateLayout)),
		header:  table.Row{"Account", "Amount"},
		amounts: []int{2},
	}
	for _, flag := range []model.AccountFlags{model.FlagIncome, model.FlagExpense} {
		if err := r.sectionRows(s, st.Tree, flag); err != nil {
			return err
		}
	}
	s.footer = table.Row{"Net income", r.money(st.NetIncome)}
	return r.write(w, s)
}

// Positions writes one row per open position.
func (r Renderer) Positions(w io.Writer, ps []position.Position) error {
	s := &sheet{
		title: "Investment positions",
		header: table.Row{"Symbol", "Name", "Quantity", "Basis", "Price", "Quoted", "Value",
			"Capital gain", "Dividends", "Total gain", "Return %", "Total return %"},
		amounts: []int{3, 4, 5, 7, 8, 9, 10, 11, 12},
	}

	var value, basis, gain decimal.Decimal
	for _, p := range ps {
		price, quoted := absent, absent
		if p.HasQuote {
			price = p.Quote.Price.StringFixed(4)
			quoted = p.Quote.At.Format(model.DateLayout)
		}
		s.rows = append(s.rows, table.Row{
			p.Symbol,
			p.Name,
			decimal.NewFromFloat(p.Quantity).StringFixed(4),
			r.money(decimal.NewFromFloat(p.Basis)),
			price,
			quoted,
			r.figure(p.CurrentValue),
			r.figure(p.CapitalGain),
			r.money(decimal.NewFromFloat(p.Dividends)),
			r.figure(p.TotalGain),
			percent(p.AnnualizedReturn),
			percent(p.TotalAnnualizedReturn),
		})
		basis = basis.Add(decimal.NewFromFloat(p.Basis))
		if p.CurrentValue.Valid {
			value = value.Add(decimal.NewFromFloat(p.CurrentValue.Value))
		}
		if p.TotalGain.Valid {
			gain = gain.Add(decimal.NewFromFloat(p.TotalGain.Value))
		}
	}
	s.footer = table.Row{"Total", "", "", r.money(basis), "", "", r.money(value), "", "", r.money(gain), "", ""}
	return r.write(w, s)
}

func (r Renderer) figure(f position.Figure) string {
	if !f.Valid {
		return absent
	}
	return r.money(decimal.NewFromFloat(f.Value))
}

func percent(f position.Figure) string {
	if !f.Valid {
		return absent
	}
	return decimal.NewFromFloat(f.Value).StringFixed(2)
}
