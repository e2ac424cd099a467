// Command generate writes a matched set of sample input files for manual
// runs of the CLI: a bank statement text export, the corresponding ledger
// CSV and a retention account export.
//
// Usage:
//
//	go run generate.go -output-dir ../generated -count 50 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"conciliador/internal/models"

	"github.com/shopspring/decimal"
)

var suppliers = []string{
	"CONSTRUTORA HORIZONTE", "DISTRIBUIDORA MEDICAL", "POSTO SAO JORGE",
	"PAPELARIA CENTRAL", "ENGENHARIA VIANA", "TRANSPORTES LITORAL",
	"INFORMATICA MUNIX", "LIMPEZA URBANA SUL",
}

func main() {
	var (
		outputDir = flag.String("output-dir", "../generated", "output directory")
		count     = flag.Int("count", 40, "number of matched payment pairs")
		unmatched = flag.Int("unmatched", 5, "extra statement debits without a ledger row")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		year      = flag.Int("year", time.Now().Year(), "statement year")
	)
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("creating output dir: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	g := &generator{rng: rng, year: *year}

	if err := g.writeStatementAndLedger(*outputDir, *count, *unmatched); err != nil {
		log.Fatalf("writing statement fixtures: %v", err)
	}
	if err := g.writeRetentions(*outputDir, *count/2); err != nil {
		log.Fatalf("writing retention fixture: %v", err)
	}

	fmt.Printf("Wrote extrato.txt, razao.csv and retencoes.csv to %s\n", *outputDir)
}

type generator struct {
	rng  *rand.Rand
	year int
}

func (g *generator) date(day int) string {
	month := 1 + g.rng.Intn(12)
	return fmt.Sprintf("%02d/%02d/%04d", day, month, g.year)
}

func (g *generator) amount() decimal.Decimal {
	cents := 1000 + g.rng.Intn(5000000)
	return decimal.New(int64(cents), -2)
}

func (g *generator) document() string {
	return fmt.Sprintf("%06d", 1+g.rng.Intn(999999))
}

func (g *generator) supplier() string {
	return suppliers[g.rng.Intn(len(suppliers))]
}

// writeStatementAndLedger emits matched statement lines and ledger rows,
// plus noise the parsers must skip: a balance line, fee lines and a
// returned transfer with its cancelling credit.
func (g *generator) writeStatementAndLedger(dir string, count, unmatched int) error {
	var statement strings.Builder
	var ledger strings.Builder

	statement.WriteString("EXTRATO DE CONTA CORRENTE\n")
	statement.WriteString("Agencia 1234-5 Conta 67890-1\n")

	for i := 0; i < count; i++ {
		day := 1 + g.rng.Intn(28)
		date := g.date(day)
		doc := g.document()
		value := g.amount()
		name := g.supplier()

		fmt.Fprintf(&statement, "%s PAGTO FORNEC %s %s %s D\n",
			date, name, doc, models.FormatBRAmount(value))
		g.ledgerRow(&ledger, date, "D", value,
			"Pagamento de Documento", fmt.Sprintf("PAGTO %s NF %s", name, doc))
	}

	for i := 0; i < unmatched; i++ {
		day := 1 + g.rng.Intn(28)
		fmt.Fprintf(&statement, "%s PAGTO AVULSO %s %s D\n",
			g.date(day), g.document(), models.FormatBRAmount(g.amount()))
	}

	// Fee lines aggregate per day during normalization.
	feeDate := g.date(15)
	feeTotal := decimal.Zero
	for i := 0; i < 3; i++ {
		fee := decimal.New(int64(100+g.rng.Intn(5000)), -2)
		feeTotal = feeTotal.Add(fee)
		fmt.Fprintf(&statement, "%s TARIFA PACOTE SERVICOS 13113-%d %s D\n",
			feeDate, i+1, models.FormatBRAmount(fee))
	}
	g.ledgerRow(&ledger, feeDate, "D", feeTotal,
		"Pagamento de Documento", "TARIFA BANCARIA PACOTE SERVICOS")

	// A returned transfer: the debit goes out and the same-day credit
	// cancels it.
	returnedDate := g.date(20)
	returned := g.amount()
	fmt.Fprintf(&statement, "%s TED FOLHA %s %s D\n",
		returnedDate, g.document(), models.FormatBRAmount(returned))
	fmt.Fprintf(&statement, "%s TED DEVOLVIDA %s C\n",
		returnedDate, models.FormatBRAmount(returned))

	// Balance lines are excluded by the parser.
	fmt.Fprintf(&statement, "%s S A L D O 999.999,99 C\n", g.date(28))

	if err := os.WriteFile(filepath.Join(dir, "extrato.txt"), []byte(statement.String()), 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "razao.csv"), []byte(ledger.String()), 0o644)
}

// ledgerRow writes one positional CSV row in the default ledger layout.
func (g *generator) ledgerRow(b *strings.Builder, date, dc string, value decimal.Decimal, rowType, history string) {
	cells := make([]string, 28)
	cells[1] = fmt.Sprintf("%dNL%06d", g.year, 1+g.rng.Intn(999999))
	cells[4] = date
	cells[5] = dc
	cells[8] = models.FormatBRAmount(value)
	cells[25] = rowType
	cells[27] = history
	b.WriteString(strings.Join(cells, ";"))
	b.WriteString("\n")
}

// writeRetentions emits a retention account export: retentions, their
// payments, one reversal pair and one retention left pending.
func (g *generator) writeRetentions(dir string, count int) error {
	var b strings.Builder

	row := func(date, dc string, value decimal.Decimal, commitment, rowType, history string) {
		cells := make([]string, 28)
		cells[0] = "170010"
		cells[4] = date
		cells[5] = dc
		cells[6] = "218810199"
		cells[8] = models.FormatBRAmount(value)
		cells[14] = commitment
		cells[19] = rowType
		cells[27] = history
		b.WriteString(strings.Join(cells, ";"))
		b.WriteString("\n")
	}

	for i := 0; i < count; i++ {
		commitment := fmt.Sprintf("%dNE%06d", g.year, 1+g.rng.Intn(999999))
		value := g.amount()
		retDay := 1 + g.rng.Intn(14)
		payDay := retDay + g.rng.Intn(14)
		month := 1 + g.rng.Intn(12)

		retDate := fmt.Sprintf("%02d/%02d/%04d", retDay, month, g.year)
		payDate := fmt.Sprintf("%02d/%02d/%04d", payDay, month, g.year)

		row(retDate, "C", value, commitment, "Retenção Empenho", "RETENCAO INSS "+commitment)

		switch {
		case i%7 == 0:
			// Reversed retention: no payment follows.
			row(payDate, "D", value, commitment, "Retenção Empenho", "ESTORNO RETENCAO")
		case i%5 == 0:
			// Left pending.
		default:
			row(payDate, "D", value, commitment, "Pagamento de Documento Extra", "PAGTO INSS "+commitment)
		}
	}

	return os.WriteFile(filepath.Join(dir, "retencoes.csv"), []byte(b.String()), 0o644)
}
