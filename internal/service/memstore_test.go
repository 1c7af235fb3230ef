package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/caixa-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- In-memory database ---
//
// memDB mimics the parts of Postgres the services rely on: conditional
// updates, unique constraints and transactions. Transactions work on a copy
// of the state and hold the lock until Commit or Rollback, so they are
// serializable. Pool-level calls take the same lock per statement.

type memState struct {
	seq           int64
	sessions      map[uuid.UUID]database.CashSession
	paymentTotals map[uuid.UUID]map[enum.PaymentMethod]int64
	itemTotals    map[uuid.UUID]map[string]int64
	sales         []database.SessionSale
	movements     []database.CashMovement
	orders        map[string]database.Order
	orderSeq      map[string]int64
	operators     []database.Operator
}

func newMemState() *memState {
	return &memState{
		sessions:      map[uuid.UUID]database.CashSession{},
		paymentTotals: map[uuid.UUID]map[enum.PaymentMethod]int64{},
		itemTotals:    map[uuid.UUID]map[string]int64{},
		orders:        map[string]database.Order{},
		orderSeq:      map[string]int64{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	c.seq = s.seq
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, m := range s.paymentTotals {
		cm := make(map[enum.PaymentMethod]int64, len(m))
		for mk, mv := range m {
			cm[mk] = mv
		}
		c.paymentTotals[k] = cm
	}
	for k, m := range s.itemTotals {
		cm := make(map[string]int64, len(m))
		for mk, mv := range m {
			cm[mk] = mv
		}
		c.itemTotals[k] = cm
	}
	c.sales = append([]database.SessionSale(nil), s.sales...)
	c.movements = append([]database.CashMovement(nil), s.movements...)
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderSeq {
		c.orderSeq[k] = v
	}
	c.operators = append([]database.Operator(nil), s.operators...)
	return c
}

type memDB struct {
	mu    sync.Mutex
	state *memState
	now   func() time.Time

	// failBegins makes the next n Begin calls fail with a serialization error.
	failBegins int
	begins     int
}

func newMemDB() *memDB {
	return &memDB{state: newMemState(), now: time.Now}
}

func (db *memDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.mu.Lock()
	db.begins++
	if db.failBegins > 0 {
		db.failBegins--
		db.mu.Unlock()
		return nil, &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
	}
	return &memTx{db: db, state: db.state.clone()}, nil
}

func (db *memDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (db *memDB) Query(context.Context, string, ...interface{}) (pgx.Rows, error) {
	panic("not implemented")
}
func (db *memDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	panic("not implemented")
}

func (db *memDB) snapshot() *memState {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.state.clone()
}

// memTx implements pgx.Tx with only the methods we need.
// The unused methods panic so we catch accidental calls.
type memTx struct {
	db    *memDB
	state *memState
	done  bool
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	*t.db.state = *t.state
	t.db.mu.Unlock()
	return nil
}
func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.db.mu.Unlock()
	return nil
}
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *memTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (t *memTx) Conn() *pgx.Conn { panic("not implemented") }

// memStore implements every store interface of this package.
type memStore struct {
	db    *memDB
	state *memState
	lock  bool
}

func storeFor(db database.DBTX) *memStore {
	switch v := db.(type) {
	case *memTx:
		return &memStore{db: v.db, state: v.state}
	case *memDB:
		return &memStore{db: v, state: v.state, lock: true}
	}
	panic("unexpected DBTX")
}

func newMemOrderStore(db database.DBTX) OrderStore     { return storeFor(db) }
func newMemLedgerStore(db database.DBTX) LedgerStore   { return storeFor(db) }
func newMemSessionStore(db database.DBTX) SessionStore { return storeFor(db) }

func (m *memStore) enter() func() {
	if !m.lock {
		return func() {}
	}
	m.db.mu.Lock()
	return m.db.mu.Unlock
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

func (m *memStore) active() (database.CashSession, bool) {
	for _, s := range m.state.sessions {
		if !s.ClosedAt.Valid {
			return s, true
		}
	}
	return database.CashSession{}, false
}

// --- sessions ---

func (m *memStore) CreateCashSession(_ context.Context, arg database.CreateCashSessionParams) (database.CashSession, error) {
	defer m.enter()()
	if _, ok := m.active(); ok {
		return database.CashSession{}, uniqueViolation("cash_sessions_one_open")
	}
	now := m.db.now()
	s := database.CashSession{ID: arg.ID, OpenedAt: now, OpenedBy: arg.OpenedBy, BaseCents: arg.BaseCents, UpdatedAt: now}
	m.state.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) GetActiveCashSession(context.Context) (database.CashSession, error) {
	defer m.enter()()
	if s, ok := m.active(); ok {
		return s, nil
	}
	return database.CashSession{}, pgx.ErrNoRows
}

func (m *memStore) GetActiveCashSessionForUpdate(ctx context.Context) (database.CashSession, error) {
	return m.GetActiveCashSession(ctx)
}

func (m *memStore) GetActiveCashSessionForShare(ctx context.Context) (database.CashSession, error) {
	return m.GetActiveCashSession(ctx)
}

func (m *memStore) GetCashSession(_ context.Context, id uuid.UUID) (database.CashSession, error) {
	defer m.enter()()
	s, ok := m.state.sessions[id]
	if !ok {
		return database.CashSession{}, pgx.ErrNoRows
	}
	return s, nil
}

func (m *memStore) ListClosedCashSessions(_ context.Context, arg database.ListClosedCashSessionsParams) ([]database.CashSession, error) {
	defer m.enter()()
	var out []database.CashSession
	for _, s := range m.state.sessions {
		if s.ClosedAt.Valid {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClosedAt.Time.After(out[j].ClosedAt.Time) })
	return page(out, arg.Limit, arg.Offset), nil
}

func (m *memStore) SetCashSessionPaused(_ context.Context, paused bool) (database.CashSession, error) {
	defer m.enter()()
	s, ok := m.active()
	if !ok || s.Paused == paused {
		return database.CashSession{}, pgx.ErrNoRows
	}
	s.Paused = paused
	m.state.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) CloseCashSession(_ context.Context, arg database.CloseCashSessionParams) (database.CashSession, error) {
	defer m.enter()()
	s, ok := m.state.sessions[arg.ID]
	if !ok || s.ClosedAt.Valid {
		return database.CashSession{}, pgx.ErrNoRows
	}
	s.ClosedAt = pgtype.Timestamptz{Time: m.db.now(), Valid: true}
	s.ClosedBy = pgtype.Text{String: arg.ClosedBy, Valid: true}
	s.Paused = false
	m.state.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) CountPendingOrdersBySession(_ context.Context, sessionID uuid.UUID) (int64, error) {
	defer m.enter()()
	var n int64
	for _, o := range m.state.orders {
		if o.SessionID == sessionID && !o.Status.Terminal() {
			n++
		}
	}
	return n, nil
}

// --- ledger ---

func (m *memStore) InsertSessionSale(_ context.Context, arg database.InsertSessionSaleParams) (database.SessionSale, error) {
	defer m.enter()()
	for _, s := range m.state.sales {
		if s.OrderID == arg.OrderID {
			return database.SessionSale{}, pgx.ErrNoRows
		}
	}
	sale := database.SessionSale{
		OrderID:    arg.OrderID,
		SessionID:  arg.SessionID,
		Method:     arg.Method,
		ItemCount:  arg.ItemCount,
		TotalCents: arg.TotalCents,
		Cliente:    arg.Cliente,
		RecordedAt: arg.RecordedAt.Time,
	}
	m.state.sales = append(m.state.sales, sale)
	return sale, nil
}

func (m *memStore) increment(id uuid.UUID, apply func(*database.CashSession)) (database.CashSession, error) {
	defer m.enter()()
	s, ok := m.state.sessions[id]
	if !ok || s.ClosedAt.Valid {
		return database.CashSession{}, pgx.ErrNoRows
	}
	apply(&s)
	m.state.sessions[id] = s
	return s, nil
}

func (m *memStore) IncrementSessionSales(_ context.Context, arg database.IncrementSessionTotalParams) (database.CashSession, error) {
	return m.increment(arg.ID, func(s *database.CashSession) {
		s.VendasCents += arg.AmountCents
		s.VendasCount++
	})
}

func (m *memStore) IncrementSessionEntradas(_ context.Context, arg database.IncrementSessionTotalParams) (database.CashSession, error) {
	return m.increment(arg.ID, func(s *database.CashSession) { s.EntradasCents += arg.AmountCents })
}

func (m *memStore) IncrementSessionSaidas(_ context.Context, arg database.IncrementSessionTotalParams) (database.CashSession, error) {
	return m.increment(arg.ID, func(s *database.CashSession) { s.SaidasCents += arg.AmountCents })
}

func (m *memStore) AddSessionPaymentTotal(_ context.Context, arg database.AddSessionPaymentTotalParams) error {
	defer m.enter()()
	t := m.state.paymentTotals[arg.SessionID]
	if t == nil {
		t = map[enum.PaymentMethod]int64{}
		m.state.paymentTotals[arg.SessionID] = t
	}
	t[arg.Method] += arg.AmountCents
	return nil
}

func (m *memStore) AddSessionItemTotal(_ context.Context, arg database.AddSessionItemTotalParams) error {
	defer m.enter()()
	t := m.state.itemTotals[arg.SessionID]
	if t == nil {
		t = map[string]int64{}
		m.state.itemTotals[arg.SessionID] = t
	}
	t[arg.ProductName] += arg.Quantity
	return nil
}

func (m *memStore) ListSessionPaymentTotals(_ context.Context, sessionID uuid.UUID) ([]database.SessionPaymentTotal, error) {
	defer m.enter()()
	out := []database.SessionPaymentTotal{}
	for method, total := range m.state.paymentTotals[sessionID] {
		out = append(out, database.SessionPaymentTotal{SessionID: sessionID, Method: method, TotalCents: total})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out, nil
}

func (m *memStore) ListSessionItemTotals(_ context.Context, sessionID uuid.UUID) ([]database.SessionItemTotal, error) {
	defer m.enter()()
	out := []database.SessionItemTotal{}
	for name, qty := range m.state.itemTotals[sessionID] {
		out = append(out, database.SessionItemTotal{SessionID: sessionID, ProductName: name, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductName < out[j].ProductName })
	return out, nil
}

func (m *memStore) ListSessionSales(_ context.Context, sessionID uuid.UUID) ([]database.SessionSale, error) {
	defer m.enter()()
	out := []database.SessionSale{}
	for _, s := range m.state.sales {
		if s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) InsertCashMovement(_ context.Context, arg database.InsertCashMovementParams) (database.CashMovement, error) {
	defer m.enter()()
	for _, mv := range m.state.movements {
		if mv.RequestID == arg.RequestID {
			return database.CashMovement{}, pgx.ErrNoRows
		}
	}
	mv := database.CashMovement{
		ID:          arg.ID,
		RequestID:   arg.RequestID,
		SessionID:   arg.SessionID,
		Kind:        arg.Kind,
		ValueCents:  arg.ValueCents,
		CreatedBy:   arg.CreatedBy,
		Description: arg.Description,
		CreatedAt:   m.db.now(),
	}
	m.state.movements = append(m.state.movements, mv)
	return mv, nil
}

func (m *memStore) GetCashMovementByRequestID(_ context.Context, requestID string) (database.CashMovement, error) {
	defer m.enter()()
	for _, mv := range m.state.movements {
		if mv.RequestID == requestID {
			return mv, nil
		}
	}
	return database.CashMovement{}, pgx.ErrNoRows
}

func (m *memStore) ListCashMovements(_ context.Context, sessionID uuid.UUID) ([]database.CashMovement, error) {
	defer m.enter()()
	out := []database.CashMovement{}
	for _, mv := range m.state.movements {
		if mv.SessionID == sessionID {
			out = append(out, mv)
		}
	}
	return out, nil
}

// --- orders ---

func (m *memStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	defer m.enter()()
	if _, ok := m.state.orders[arg.ID]; ok {
		return database.Order{}, uniqueViolation("orders_pkey")
	}
	now := m.db.now()
	o := database.Order{
		ID:              arg.ID,
		Code:            arg.Code,
		SessionID:       arg.SessionID,
		Status:          arg.Status,
		Cliente:         arg.Cliente,
		Items:           arg.Items,
		TotalCents:      arg.TotalCents,
		Pagamento:       arg.Pagamento,
		PagamentoStatus: arg.PagamentoStatus,
		TrocoCents:      arg.TrocoCents,
		Endereco:        arg.Endereco,
		Observacao:      arg.Observacao,
		Timestamps:      arg.Timestamps,
		CreatedBy:       arg.CreatedBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.state.seq++
	m.state.orders[o.ID] = o
	m.state.orderSeq[o.ID] = m.state.seq
	return o, nil
}

func (m *memStore) GetOrder(_ context.Context, id string) (database.Order, error) {
	defer m.enter()()
	o, ok := m.state.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, id string) (database.Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *memStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	defer m.enter()()
	var out []database.Order
	for _, o := range m.state.orders {
		if arg.Status.Valid && string(o.Status) != arg.Status.String {
			continue
		}
		if arg.SessionID.Valid && o.SessionID != uuid.UUID(arg.SessionID.Bytes) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return m.state.orderSeq[out[i].ID] > m.state.orderSeq[out[j].ID] })
	return page(out, arg.Limit, arg.Offset), nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	defer m.enter()()
	o, ok := m.state.orders[arg.ID]
	if !ok || o.Status != arg.PreviousStatus {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	if arg.Status == enum.OrderStatusCancelado && o.PagamentoStatus == enum.PaymentStatusPendente {
		o.PagamentoStatus = enum.PaymentStatusCancelado
	}
	ts := make(map[enum.OrderStatus]time.Time, len(o.Timestamps)+1)
	for k, v := range o.Timestamps {
		ts[k] = v
	}
	if _, seen := ts[arg.Status]; !seen {
		ts[arg.Status] = arg.At.UTC()
	}
	o.Timestamps = ts
	o.UpdatedAt = m.db.now()
	m.state.orders[o.ID] = o
	return o, nil
}

func (m *memStore) MarkOrderPaid(_ context.Context, arg database.MarkOrderPaidParams) (database.Order, error) {
	defer m.enter()()
	o, ok := m.state.orders[arg.ID]
	if !ok || o.PagamentoStatus != enum.PaymentStatusPendente || o.Status == enum.OrderStatusCancelado {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Pagamento = arg.Pagamento
	o.PagamentoStatus = enum.PaymentStatusPago
	o.UpdatedAt = m.db.now()
	m.state.orders[o.ID] = o
	return o, nil
}

// --- operators ---

func (m *memStore) ListActiveOperatorsByRoles(_ context.Context, roles []string) ([]database.Operator, error) {
	defer m.enter()()
	var out []database.Operator
	for _, op := range m.state.operators {
		if !op.Active {
			continue
		}
		for _, r := range roles {
			if string(op.Role) == r {
				out = append(out, op)
				break
			}
		}
	}
	return out, nil
}

func page[T any](rows []T, limit, offset int32) []T {
	if int(offset) >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// --- Recording notifier ---

type event struct {
	Topic string
	Type  string
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingNotifier) Notify(topic, eventType string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{Topic: topic, Type: eventType})
}

func (r *recordingNotifier) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

var errBoom = errors.New("boom")
