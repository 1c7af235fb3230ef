// Package report turns a cash session snapshot into the closing report:
// hourly sales, payment mix, best sellers and the movement timeline.
// Everything here is a pure function of the snapshot.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/caixa-pos/api/internal/enum"
	"github.com/caixa-pos/api/internal/money"
	"github.com/caixa-pos/api/internal/service"
	"github.com/google/uuid"
)

// HourBucket is the sales of one wall-clock hour.
type HourBucket struct {
	Hour  int         `json:"hour"`
	Count int         `json:"count"`
	Total money.Cents `json:"total"`
}

// MethodShare is the total of one payment method and its share of vendas
// in basis points (10000 = 100%).
type MethodShare struct {
	Method enum.PaymentMethod `json:"method"`
	Total  money.Cents        `json:"total"`
	Bps    int64              `json:"bps"`
}

// ItemRank is a product and the quantity sold.
type ItemRank struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
}

// Entry kinds on the timeline.
const (
	EntryVenda   = "VENDA"
	EntryEntrada = "ENTRADA"
	EntrySaida   = "SAIDA"
)

// Entry is one line of the timeline. Balance is the register balance right
// after the entry.
type Entry struct {
	At      time.Time   `json:"at"`
	Kind    string      `json:"kind"`
	Value   money.Cents `json:"value"`
	By      string      `json:"by,omitempty"`
	Desc    string      `json:"desc,omitempty"`
	Balance money.Cents `json:"balance"`
}

// Summary is the full closing report.
type Summary struct {
	SessionID   uuid.UUID          `json:"sessionId"`
	Status      enum.SessionStatus `json:"status"`
	OpenedAt    time.Time          `json:"openedAt"`
	OpenedBy    string             `json:"openedBy"`
	ClosedAt    *time.Time         `json:"closedAt,omitempty"`
	ClosedBy    string             `json:"closedBy,omitempty"`
	Base        money.Cents        `json:"base"`
	Vendas      money.Cents        `json:"vendas"`
	Entradas    money.Cents        `json:"entradas"`
	Saidas      money.Cents        `json:"saidas"`
	Balance     money.Cents        `json:"balance"`
	VendasCount int                `json:"vendasCount"`
	TicketMedio money.Cents        `json:"ticketMedio"`
	Hourly      []HourBucket       `json:"hourly"`
	Mix         []MethodShare      `json:"mix"`
	TopItems    []ItemRank         `json:"topItems"`
	Timeline    []Entry            `json:"timeline"`
	GeneratedAt time.Time          `json:"generatedAt"`
	Location    *time.Location     `json:"-"`
}

// DefaultTopItems is how many products Build ranks.
const DefaultTopItems = 10

// HourlySales buckets completed sales by hour of day in loc. All 24 buckets
// are returned.
func HourlySales(s *service.CashSession, loc *time.Location) []HourBucket {
	if loc == nil {
		loc = time.UTC
	}
	buckets := make([]HourBucket, 24)
	for h := range buckets {
		buckets[h].Hour = h
	}
	for _, c := range s.Completos {
		h := c.At.In(loc).Hour()
		buckets[h].Count++
		buckets[h].Total = buckets[h].Total.Add(c.Total)
	}
	return buckets
}

// PaymentMix lists every settlement method, in enum order, with its share
// of vendas. Shares are floored so they never sum above 10000.
func PaymentMix(s *service.CashSession) []MethodShare {
	out := make([]MethodShare, 0, len(enum.SettlementMethods))
	for _, m := range enum.SettlementMethods {
		total := s.Totals.PorPagamento[m]
		var bps int64
		if s.Totals.Vendas > 0 {
			bps = total.Int64() * 10000 / s.Totals.Vendas.Int64()
		}
		out = append(out, MethodShare{Method: m, Total: total, Bps: bps})
	}
	return out
}

// TopItems returns the n best selling products, ties broken by name.
// n <= 0 returns all of them.
func TopItems(s *service.CashSession, n int) []ItemRank {
	out := make([]ItemRank, 0, len(s.Items))
	for name, qty := range s.Items {
		out = append(out, ItemRank{Name: name, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Timeline merges sales, entradas and saidas in time order with the running
// balance, starting from the base. The last entry's balance is the session
// balance.
func Timeline(s *service.CashSession) []Entry {
	entries := make([]Entry, 0, len(s.Completos)+len(s.Entradas)+len(s.Saidas))
	for _, c := range s.Completos {
		entries = append(entries, Entry{At: c.At, Kind: EntryVenda, Value: c.Total, Desc: c.OrderID})
	}
	for _, m := range s.Entradas {
		entries = append(entries, Entry{At: m.At, Kind: EntryEntrada, Value: m.Value, By: m.By, Desc: m.Desc})
	}
	for _, m := range s.Saidas {
		entries = append(entries, Entry{At: m.At, Kind: EntrySaida, Value: m.Value, By: m.By, Desc: m.Desc})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].At.Before(entries[j].At) })

	running := s.Base
	for i := range entries {
		if entries[i].Kind == EntrySaida {
			running = running.Sub(entries[i].Value)
		} else {
			running = running.Add(entries[i].Value)
		}
		entries[i].Balance = running
	}
	return entries
}

// Build assembles the full report for s.
func Build(s *service.CashSession, loc *time.Location, now time.Time) Summary {
	if loc == nil {
		loc = time.UTC
	}
	sum := Summary{
		SessionID:   s.ID,
		Status:      s.Status(),
		OpenedAt:    s.OpenedAt,
		OpenedBy:    s.OpenedBy,
		ClosedAt:    s.ClosedAt,
		ClosedBy:    s.ClosedBy,
		Base:        s.Base,
		Vendas:      s.Totals.Vendas,
		Entradas:    s.Totals.Entradas,
		Saidas:      s.Totals.Saidas,
		Balance:     s.Balance(),
		VendasCount: s.VendasCount,
		Hourly:      HourlySales(s, loc),
		Mix:         PaymentMix(s),
		TopItems:    TopItems(s, DefaultTopItems),
		Timeline:    Timeline(s),
		GeneratedAt: now,
		Location:    loc,
	}
	if s.VendasCount > 0 {
		sum.TicketMedio = money.Cents(s.Totals.Vendas.Int64() / int64(s.VendasCount))
	}
	return sum
}

// CSVRows flattens the summary into section,field,value rows.
func CSVRows(sum Summary) [][]string {
	loc := sum.Location
	if loc == nil {
		loc = time.UTC
	}
	ts := func(t time.Time) string { return t.In(loc).Format("2006-01-02 15:04:05") }

	rows := [][]string{
		{"secao", "campo", "valor"},
		{"caixa", "id", sum.SessionID.String()},
		{"caixa", "status", string(sum.Status)},
		{"caixa", "aberto_em", ts(sum.OpenedAt)},
		{"caixa", "aberto_por", sum.OpenedBy},
	}
	if sum.ClosedAt != nil {
		rows = append(rows,
			[]string{"caixa", "fechado_em", ts(*sum.ClosedAt)},
			[]string{"caixa", "fechado_por", sum.ClosedBy},
		)
	}
	rows = append(rows,
		[]string{"totais", "base", sum.Base.String()},
		[]string{"totais", "vendas", sum.Vendas.String()},
		[]string{"totais", "entradas", sum.Entradas.String()},
		[]string{"totais", "saidas", sum.Saidas.String()},
		[]string{"totais", "saldo", sum.Balance.String()},
		[]string{"totais", "vendas_count", strconv.Itoa(sum.VendasCount)},
		[]string{"totais", "ticket_medio", sum.TicketMedio.String()},
	)
	for _, m := range sum.Mix {
		rows = append(rows, []string{"pagamento", string(m.Method), m.Total.String()})
	}
	for _, it := range sum.TopItems {
		rows = append(rows, []string{"item", it.Name, strconv.FormatInt(it.Quantity, 10)})
	}
	for _, h := range sum.Hourly {
		if h.Count == 0 {
			continue
		}
		rows = append(rows, []string{"hora", fmt.Sprintf("%02d", h.Hour), h.Total.String()})
	}
	for _, e := range sum.Timeline {
		rows = append(rows, []string{"movimento", ts(e.At) + " " + e.Kind, e.Value.String()})
	}
	return rows
}

// WriteCSV writes CSVRows to w.
func WriteCSV(w io.Writer, sum Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(CSVRows(sum)); err != nil {
		return fmt.Errorf("report: write csv: %w", err)
	}
	return nil
}
