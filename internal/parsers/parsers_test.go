package parsers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
)

func statementConfig() *StatementConfig {
	config := DefaultStatementConfig()
	config.DefaultYear = 2024
	return config
}

func parseLines(t *testing.T, lines []string) ([]*models.Transaction, *ParseStats) {
	t.Helper()

	parser, err := NewStatementParser(statementConfig())
	if err != nil {
		t.Fatalf("NewStatementParser failed: %v", err)
	}

	txns, stats, err := parser.ParseLines(context.Background(), "extrato.txt", lines)
	if err != nil {
		t.Fatalf("ParseLines failed: %v", err)
	}
	return txns, stats
}

func TestStatementParsesDebitLine(t *testing.T) {
	txns, stats := parseLines(t, []string{
		"05/03/2024 PAGTO FORNECEDOR LTDA 123.456-7 1.234,56 D",
	})

	if stats.Parsed != 1 || len(txns) != 1 {
		t.Fatalf("Expected 1 parsed transaction, got %d", len(txns))
	}

	tx := txns[0]
	if !tx.Date.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected date: %s", tx.Date)
	}
	if !tx.Amount.Equal(decimal.NewFromFloat(1234.56)) {
		t.Errorf("Expected amount 1234.56, got %s", tx.Amount)
	}
	if tx.DocumentCode != "234567" {
		t.Errorf("Expected document '234567' (digits only, last six), got %q", tx.DocumentCode)
	}
	if tx.Side != models.SideStatement {
		t.Errorf("Expected statement side, got %s", tx.Side)
	}
}

func TestStatementDefaultsMissingYear(t *testing.T) {
	txns, _ := parseLines(t, []string{
		"05/03 TED TRANSF ELETR 990011 500,00 D",
	})

	if len(txns) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txns))
	}
	if txns[0].Date.Year() != 2024 {
		t.Errorf("Expected default year 2024, got %d", txns[0].Date.Year())
	}
}

func TestStatementDocumentFromLastQualifyingToken(t *testing.T) {
	// "12" is too short; the last token with at least four digits wins.
	txns, _ := parseLines(t, []string{
		"05/03/2024 PAGTO 778899 AG 12 150,00 D",
	})

	if len(txns) != 1 {
		t.Fatalf("Expected 1 transaction, got %d", len(txns))
	}
	if txns[0].DocumentCode != "778899" {
		t.Errorf("Expected document '778899', got %q", txns[0].DocumentCode)
	}
}

func TestStatementExcludesNoiseLines(t *testing.T) {
	txns, stats := parseLines(t, []string{
		"05/03/2024 SALDO ANTERIOR 9.999,99 D",
		"05/03/2024 BB-APLIC C.PRZ-APL.AUT 1.000,00 D",
		"05/03/2024 PAGTO FORNECEDOR 445566 150,00 D",
	})

	if stats.Excluded != 2 {
		t.Errorf("Expected 2 excluded lines, got %d", stats.Excluded)
	}
	if len(txns) != 1 || txns[0].DocumentCode != "445566" {
		t.Fatalf("Expected only the payment line, got %d transactions", len(txns))
	}
}

func TestStatementKeepsOnlyReturnCredits(t *testing.T) {
	txns, _ := parseLines(t, []string{
		"05/03/2024 DEPOSITO EM CONTA 300,00 C",
		"05/03/2024 TED DEVOLVIDA CONTA INVALIDA 500,00 C",
	})

	if len(txns) != 1 {
		t.Fatalf("Expected only the return credit, got %d transactions", len(txns))
	}
	if !txns[0].Amount.Equal(decimal.NewFromFloat(-500.00)) {
		t.Errorf("Expected negative amount -500.00, got %s", txns[0].Amount)
	}
}

func TestStatementIgnoresNonTransactionLines(t *testing.T) {
	txns, stats := parseLines(t, []string{
		"BANCO DO BRASIL S.A.",
		"Extrato de Conta Corrente",
		"05/03/2024 Lote 13113-2 TARIFA PACOTE SERVICOS 35,40 D",
		"",
	})

	if len(txns) != 1 || stats.Parsed != 1 {
		t.Fatalf("Expected 1 transaction among noise, got %d", len(txns))
	}
	if stats.Dropped != 0 {
		t.Errorf("Expected layout noise not to count as dropped, got %d", stats.Dropped)
	}
}

func TestLedgerLayoutValidate(t *testing.T) {
	layout := DefaultLedgerLayout()
	if err := layout.Validate(); err != nil {
		t.Errorf("Expected default layout to validate, got: %v", err)
	}

	layout.Amount = -1
	if err := layout.Validate(); err == nil {
		t.Error("Expected error for unmapped amount column")
	}
}

// ledgerRowCells builds a spreadsheet row shaped like the payment export.
func ledgerRowCells(entry, date, dc, amount, lcType, altHistory, history string) []string {
	row := make([]string, 28)
	row[1] = entry
	row[4] = date
	row[5] = dc
	row[8] = amount
	row[25] = lcType
	row[26] = altHistory
	row[27] = history
	return row
}

func TestLedgerMapRows(t *testing.T) {
	parser, err := NewLedgerParser(nil)
	if err != nil {
		t.Fatalf("NewLedgerParser failed: %v", err)
	}

	cells := [][]string{
		ledgerRowCells("2024NE000123", "05/03/2024", "D", "1.234,56", "Pagamento de OB", "", "PAGTO DOC 123456"),
		ledgerRowCells("", "", "", "", "", "", ""), // blank row, skipped
		ledgerRowCells("2024NE000124", "05/03/2024", "D", "not-a-number", "Pagamento", "", "X"),
	}

	rows, stats, err := parser.mapRows(context.Background(), "razao.xlsx", cells)
	if err != nil {
		t.Fatalf("mapRows failed: %v", err)
	}

	if stats.Parsed != 1 || stats.Dropped != 1 {
		t.Errorf("Expected 1 parsed and 1 dropped, got %d/%d", stats.Parsed, stats.Dropped)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(rows))
	}

	row := rows[0]
	if !row.IsDebit() {
		t.Error("Expected a debit row")
	}
	if !row.Amount.Equal(decimal.NewFromFloat(1234.56)) {
		t.Errorf("Expected amount 1234.56, got %s", row.Amount)
	}
	if row.History != "PAGTO DOC 123456" {
		t.Errorf("Unexpected history: %q", row.History)
	}
}

func TestLedgerHistoryFallsBackToAltColumn(t *testing.T) {
	parser, _ := NewLedgerParser(nil)

	cells := [][]string{
		ledgerRowCells("1", "05/03/2024", "D", "10,00", "Pagamento", "HISTORICO ALTERNATIVO", ""),
	}

	rows, _, err := parser.mapRows(context.Background(), "razao.xlsx", cells)
	if err != nil {
		t.Fatalf("mapRows failed: %v", err)
	}
	if rows[0].History != "HISTORICO ALTERNATIVO" {
		t.Errorf("Expected alternate history column, got %q", rows[0].History)
	}
}

func TestLedgerTransactionsFilter(t *testing.T) {
	parser, _ := NewLedgerParser(nil)
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	rows := []LedgerRow{
		{Date: day, DebitCredit: "D", Amount: decimal.NewFromFloat(100), Type: "Pagamento de OB", History: "PAGTO 1234"},
		{Date: day, DebitCredit: "C", Amount: decimal.NewFromFloat(200), Type: "TRANSFERENCIA ENTRE CONTAS DE MESMA UG", History: "TRANSF"},
		{Date: day, DebitCredit: "D", Amount: decimal.NewFromFloat(300), Type: "TRANSFERENCIA ENTRE CONTAS DE MESMA UG", History: "TRANSF"},
		{Date: day, DebitCredit: "D", Amount: decimal.NewFromFloat(400), Type: "Empenho", History: "EMPENHO"},
		{DebitCredit: "D", Amount: decimal.NewFromFloat(500), Type: "Pagamento", History: "SEM DATA"},
	}

	txns := parser.Transactions(rows, nil)

	if len(txns) != 2 {
		t.Fatalf("Expected 2 transactions (payment + transfer credit), got %d", len(txns))
	}
	if !txns[0].Amount.Equal(decimal.NewFromFloat(100)) || !txns[1].Amount.Equal(decimal.NewFromFloat(200)) {
		t.Error("Unexpected filtered rows")
	}
	if txns[0].Side != models.SideLedger {
		t.Errorf("Expected ledger side, got %s", txns[0].Side)
	}
}

func TestDocumentLookupInfer(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	statements := []*models.Transaction{
		models.NewTransaction(day, "PAGTO", "001234", decimal.NewFromFloat(10), models.SideStatement),
		models.NewTransaction(day, "Bank Fees", "Bank Fees", decimal.NewFromFloat(5), models.SideStatement),
	}

	lookup := NewDocumentLookup(statements, "TARIFA", "Bank Fees")

	// Digit run matches across zero padding.
	if got := lookup.Infer(day, "PAGAMENTO OB 0001234 FORNECEDOR"); got != "001234" {
		t.Errorf("Expected '001234', got %q", got)
	}

	// Fee history meets the synthetic fee document.
	if got := lookup.Infer(day, "TARIFAS BANCARIAS DIVERSAS"); got != "Bank Fees" {
		t.Errorf("Expected 'Bank Fees', got %q", got)
	}

	// No digit run known for that date.
	if got := lookup.Infer(day, "PAGAMENTO OB 999999"); got != DocumentNotFound {
		t.Errorf("Expected %q, got %q", DocumentNotFound, got)
	}

	// Date absent on the statement side.
	other := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	if got := lookup.Infer(other, "PAGAMENTO OB 1234"); got != DocumentMissingDate {
		t.Errorf("Expected %q, got %q", DocumentMissingDate, got)
	}
}

func TestParseFileMissing(t *testing.T) {
	parser, _ := NewLedgerParser(nil)
	if _, _, err := parser.ParseFile(context.Background(), "/no/such/file.xlsx"); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLedgerParsesCSVLatin1(t *testing.T) {
	// "Liquidação" in ISO8859-1: ç=0xE7, ã=0xE3.
	var row []byte
	cells := make([]string, 28)
	cells[1] = "77"
	cells[4] = "05/03/2024"
	cells[5] = "D"
	cells[8] = "1.500,00"
	cells[25] = "Pagamento"
	cells[27] = "PAGTO LIQUIDA\xC7\xC3O 1234"
	for i, c := range cells {
		if i > 0 {
			row = append(row, ';')
		}
		row = append(row, []byte(c)...)
	}
	row = append(row, '\n')

	path := filepath.Join(t.TempDir(), "razao.csv")
	if err := os.WriteFile(path, row, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	parser, _ := NewLedgerParser(nil)
	rows, stats, err := parser.ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if stats.Parsed != 1 || len(rows) != 1 {
		t.Fatalf("Expected 1 parsed row, got %d", len(rows))
	}
	if rows[0].History != "PAGTO LIQUIDAÇÃO 1234" {
		t.Errorf("Expected decoded Latin-1 history, got %q", rows[0].History)
	}
}

func TestSniffDelimiter(t *testing.T) {
	if got := sniffDelimiter([]byte("a;b;c\n")); got != ';' {
		t.Errorf("Expected ';', got %q", got)
	}
	if got := sniffDelimiter([]byte("a,b,c,d\n")); got != ',' {
		t.Errorf("Expected ',', got %q", got)
	}
	if got := sniffDelimiter([]byte("a\tb\tc\td\n")); got != '\t' {
		t.Errorf("Expected tab, got %q", got)
	}
}
