package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/honeynil/GymLedgerService/internal/infrastructure/redis"
	"github.com/honeynil/GymLedgerService/internal/models"
	pkgerrors "github.com/honeynil/GymLedgerService/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory double for every repository the services use.
// A single mutex plays the role of the balance row lock.
type memStore struct {
	mu sync.Mutex

	users     map[int64]*models.User
	balances  map[int64]decimal.Decimal
	entries   []models.Transaction
	plans     map[int64]*models.SubscriptionPlan
	subs      map[[2]int64]*models.UserSubscription
	goods     map[int64]*models.Good
	purchases []models.Purchase
	orders    map[int64]*models.Order
	events    map[int64]*models.CalendarEvent
	actions   map[int64]*models.CalendarAction
	records   map[[2]int64]*models.CalendarRecord
	trainers  map[int64]*models.Trainer
	links     []models.UserTrainer

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]*models.User{},
		balances: map[int64]decimal.Decimal{},
		plans:    map[int64]*models.SubscriptionPlan{},
		subs:     map[[2]int64]*models.UserSubscription{},
		goods:    map[int64]*models.Good{},
		orders:   map[int64]*models.Order{},
		events:   map[int64]*models.CalendarEvent{},
		actions:  map[int64]*models.CalendarAction{},
		records:  map[[2]int64]*models.CalendarRecord{},
		trainers: map[int64]*models.Trainer{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

// post appends entry and applies it; the caller holds mu.
func (m *memStore) post(entry *models.Transaction) decimal.Decimal {
	entry.ID = m.id()
	entry.CreatedAt = time.Now()
	m.entries = append(m.entries, *entry)
	m.balances[entry.UserID] = m.balances[entry.UserID].Add(entry.Amount)
	return m.balances[entry.UserID]
}

// users

func (m *memStore) Create(_ context.Context, user *models.User) error {
	if user == nil {
		return pkgerrors.ErrNilUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TelegramID == user.TelegramID {
			return pkgerrors.ErrUserAlreadyExists
		}
	}
	user.ID = m.id()
	user.CreatedAt = time.Now()
	cp := *user
	m.users[user.ID] = &cp
	m.balances[user.ID] = decimal.Zero
	return nil
}

func (m *memStore) GetByID(_ context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetByTelegramID(_ context.Context, telegramID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (m *memStore) List(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.User
	for _, u := range m.users {
		if filter.ID != nil && u.ID != *filter.ID {
			continue
		}
		if filter.TelegramID != nil && u.TelegramID != *filter.TelegramID {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, telegramID int64, upd models.UserUpdate) (*models.User, error) {
	if upd.Empty() {
		return nil, pkgerrors.ErrInvalidInput
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.TelegramID != telegramID {
			continue
		}
		if upd.FirstName != nil {
			u.FirstName = *upd.FirstName
		}
		if upd.Phone != nil {
			u.Phone = *upd.Phone
		}
		cp := *u
		return &cp, nil
	}
	return nil, pkgerrors.ErrUserNotFound
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pkgerrors.ErrUserNotFound
	}
	delete(m.users, id)
	delete(m.balances, id)
	return nil
}

// ledger

type memLedger struct{ *memStore }

func (l memLedger) Post(_ context.Context, entry *models.Transaction, allowNegative bool) (decimal.Decimal, error) {
	if entry == nil {
		return decimal.Zero, pkgerrors.ErrNilTransaction
	}
	if entry.Type != models.TypeDeposit && entry.Type != models.TypeWithdrawal {
		return decimal.Zero, pkgerrors.ErrInvalidTransactionType
	}
	if !entry.Valid() {
		return decimal.Zero, pkgerrors.ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.users[entry.UserID]; !ok {
		return decimal.Zero, pkgerrors.ErrUserNotFound
	}
	if !allowNegative && l.balances[entry.UserID].Add(entry.Amount).IsNegative() {
		return decimal.Zero, pkgerrors.ErrInsufficientFunds
	}
	return l.post(entry), nil
}

func (l memLedger) GetBalance(_ context.Context, userID int64) (*models.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return &models.Balance{UserID: userID, Amount: l.balances[userID]}, nil
}

func (l memLedger) ListBalances(_ context.Context, filter models.BalanceFilter) ([]models.Balance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Balance
	for id, amount := range l.balances {
		if filter.NegativeOnly && !amount.IsNegative() {
			continue
		}
		out = append(out, models.Balance{UserID: id, Amount: amount})
	}
	return out, nil
}

func (l memLedger) ListTransactions(_ context.Context, userID int64) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Transaction
	for _, e := range l.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// subscriptions

type memSubs struct{ *memStore }

func (s memSubs) ListPlans(context.Context) ([]models.SubscriptionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SubscriptionPlan
	for _, p := range s.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (s memSubs) GetPlan(_ context.Context, id int64) (*models.SubscriptionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, pkgerrors.ErrSubscriptionNotFound
	}
	cp := *p
	return &cp, nil
}

func (s memSubs) CreatePlan(_ context.Context, plan *models.SubscriptionPlan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan.ID = s.id()
	cp := *plan
	s.plans[plan.ID] = &cp
	return nil
}

func (s memSubs) UpdatePlan(_ context.Context, id int64, upd models.PlanUpdate) (*models.SubscriptionPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, pkgerrors.ErrSubscriptionNotFound
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	cp := *p
	return &cp, nil
}

func (s memSubs) DeletePlan(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return pkgerrors.ErrSubscriptionNotFound
	}
	delete(s.plans, id)
	return nil
}

func (s memSubs) GetLatest(_ context.Context, userID, subscriptionID int64) (*models.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.subs[[2]int64{userID, subscriptionID}]
	if !ok {
		return nil, pkgerrors.ErrUserSubscriptionNotFound
	}
	cp := *us
	return &cp, nil
}

func (s memSubs) List(_ context.Context, filter models.UserSubscriptionFilter) ([]models.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UserSubscription
	for _, us := range s.subs {
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, us.Status) {
			continue
		}
		out = append(out, *us)
	}
	return out, nil
}

func (s memSubs) HasAny(_ context.Context, userID int64, statuses []models.SubscriptionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, us := range s.subs {
		if key[0] == userID && hasStatus(statuses, us.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (s memSubs) UpdateStatus(_ context.Context, userID, subscriptionID int64, status models.SubscriptionStatus) (*models.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	us, ok := s.subs[[2]int64{userID, subscriptionID}]
	if !ok {
		return nil, pkgerrors.ErrUserSubscriptionNotFound
	}
	us.Status = status
	cp := *us
	return &cp, nil
}

func (s memSubs) Activate(_ context.Context, p models.ActivationParams) (*models.ActivationOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	plan, ok := s.plans[p.SubscriptionID]
	if !ok {
		return nil, pkgerrors.ErrSubscriptionNotFound
	}
	key := [2]int64{p.UserID, p.SubscriptionID}
	if us, ok := s.subs[key]; ok && us.Status == models.SubscriptionActive {
		return nil, pkgerrors.ErrAlreadyActiveSubscription
	}
	balance := s.balances[p.UserID]
	if !p.NegativeAllowed && balance.LessThan(plan.Price) {
		return nil, pkgerrors.ErrInsufficientFunds
	}
	if plan.Price.IsPositive() {
		balance = s.post(models.NewWithdrawal(p.UserID, plan.Price))
	}
	us, ok := s.subs[key]
	if !ok {
		us = &models.UserSubscription{ID: s.id(), UserID: p.UserID, SubscriptionID: p.SubscriptionID}
		s.subs[key] = us
	}
	us.Start = p.Start
	us.Finish = p.Start.AddDate(0, 0, plan.Duration)
	us.Status = models.SubscriptionActive
	return &models.ActivationOutcome{Balance: balance, WentNegative: balance.IsNegative()}, nil
}

func hasStatus(statuses []models.SubscriptionStatus, status models.SubscriptionStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// goods

type memGoods struct{ *memStore }

func (g memGoods) List(context.Context) ([]models.Good, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.Good
	for _, good := range g.goods {
		if !good.Deleted {
			out = append(out, *good)
		}
	}
	return out, nil
}

func (g memGoods) GetByID(_ context.Context, id int64) (*models.Good, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	good, ok := g.goods[id]
	if !ok || good.Deleted {
		return nil, pkgerrors.ErrProductNotFound
	}
	cp := *good
	return &cp, nil
}

func (g memGoods) Create(_ context.Context, good *models.Good) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	good.ID = g.id()
	cp := *good
	g.goods[good.ID] = &cp
	return nil
}

func (g memGoods) Update(_ context.Context, id int64, upd models.GoodUpdate) (*models.Good, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	good, ok := g.goods[id]
	if !ok {
		return nil, pkgerrors.ErrProductNotFound
	}
	if upd.Stock != nil {
		stock := *upd.Stock
		good.Stock = &stock
	}
	cp := *good
	return &cp, nil
}

func (g memGoods) Delete(_ context.Context, id int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.goods[id]; !ok {
		return pkgerrors.ErrProductNotFound
	}
	delete(g.goods, id)
	return nil
}

func (g memGoods) Purchase(_ context.Context, p models.PurchaseParams) (*models.Purchase, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	good, ok := g.goods[p.GoodsID]
	if !ok || good.Deleted {
		return nil, pkgerrors.ErrProductNotFound
	}
	if good.Stock != nil && *good.Stock < p.Quantity {
		return nil, pkgerrors.ErrOutOfStock
	}
	total := good.Price.Mul(decimal.NewFromInt(int64(p.Quantity)))
	balance := g.balances[p.UserID]
	if balance.LessThan(total) {
		return nil, pkgerrors.ErrInsufficientFunds
	}
	if total.IsPositive() {
		balance = g.post(models.NewWithdrawal(p.UserID, total))
	}
	if good.Stock != nil {
		left := *good.Stock - p.Quantity
		good.Stock = &left
	}
	purchase := models.Purchase{
		ID:       g.id(),
		UserID:   p.UserID,
		GoodsID:  p.GoodsID,
		Quantity: p.Quantity,
		Amount:   total,
		Balance:  balance,
	}
	g.purchases = append(g.purchases, purchase)
	return &purchase, nil
}

func (g memGoods) ListPurchases(_ context.Context, userID int64) ([]models.Purchase, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []models.Purchase
	for _, p := range g.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

// orders

type memOrders struct{ *memStore }

func (o memOrders) Create(_ context.Context, order *models.Order) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.users[order.UserID]; !ok {
		return pkgerrors.ErrUserNotFound
	}
	order.Number = o.id()
	order.Status = models.OrderNew
	order.CreatedAt = time.Now()
	cp := *order
	o.orders[order.Number] = &cp
	return nil
}

func (o memOrders) GetByNumber(_ context.Context, number int64) (*models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[number]
	if !ok {
		return nil, pkgerrors.ErrOrderNotFound
	}
	cp := *order
	return &cp, nil
}

func (o memOrders) ListByUser(_ context.Context, userID int64) ([]models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []models.Order
	for _, order := range o.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (o memOrders) MarkPending(_ context.Context, number int64) (*models.Order, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[number]
	if !ok {
		return nil, pkgerrors.ErrOrderNotFound
	}
	if order.Status == models.OrderComplete {
		return nil, pkgerrors.ErrInvalidOrderStatus
	}
	order.Status = models.OrderPending
	cp := *order
	return &cp, nil
}

func (o memOrders) Complete(_ context.Context, number int64) (*models.OrderCompletion, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	order, ok := o.orders[number]
	if !ok {
		return nil, pkgerrors.ErrOrderNotFound
	}
	if order.Status == models.OrderComplete {
		return nil, pkgerrors.ErrOrderAlreadyCompleted
	}
	order.Status = models.OrderComplete
	entry := models.NewDeposit(order.UserID, order.Amount)
	balance := o.post(entry)
	return &models.OrderCompletion{Order: *order, Entry: *entry, Balance: balance}, nil
}

// calendar

type memCalendar struct{ *memStore }

func (c memCalendar) ListEvents(context.Context) ([]models.CalendarEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.CalendarEvent{}
	for _, e := range c.events {
		out = append(out, *e)
	}
	return out, nil
}

func (c memCalendar) CreateEvent(_ context.Context, event *models.CalendarEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	event.ID = c.id()
	cp := *event
	c.events[event.ID] = &cp
	return nil
}

func (c memCalendar) UpdateEvent(_ context.Context, event *models.CalendarEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[event.ID]; !ok {
		return pkgerrors.ErrEventNotFound
	}
	cp := *event
	c.events[event.ID] = &cp
	return nil
}

func (c memCalendar) DeleteEvent(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[id]; !ok {
		return pkgerrors.ErrEventNotFound
	}
	for _, a := range c.actions {
		if a.EventID == id {
			return pkgerrors.ErrConflict
		}
	}
	delete(c.events, id)
	return nil
}

// withEvent copies a and attaches its event; the caller holds mu.
func (c memCalendar) withEvent(a *models.CalendarAction) models.CalendarAction {
	cp := *a
	if e, ok := c.events[a.EventID]; ok {
		ev := *e
		cp.Event = &ev
	}
	return cp
}

func (c memCalendar) ListActions(_ context.Context, day string) ([]models.CalendarAction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.CalendarAction{}
	for _, a := range c.actions {
		if day != "" && a.Day != day {
			continue
		}
		out = append(out, c.withEvent(a))
	}
	return out, nil
}

func (c memCalendar) CreateAction(_ context.Context, action *models.CalendarAction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[action.EventID]; !ok {
		return pkgerrors.ErrEventNotFound
	}
	action.ID = c.id()
	cp := *action
	c.actions[action.ID] = &cp
	return nil
}

func (c memCalendar) SetPeriodic(_ context.Context, id int64, periodic bool) (*models.CalendarAction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.actions[id]
	if !ok {
		return nil, pkgerrors.ErrActionNotFound
	}
	a.Periodic = periodic
	cp := c.withEvent(a)
	return &cp, nil
}

func (c memCalendar) DeleteAction(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.actions[id]; !ok {
		return pkgerrors.ErrActionNotFound
	}
	for key := range c.records {
		if key[0] == id {
			return pkgerrors.ErrConflict
		}
	}
	delete(c.actions, id)
	return nil
}

func (c memCalendar) RollPeriodic(_ context.Context, now time.Time) (*models.Rollover, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	today, _ := time.Parse(models.DayLayout, now.Format(models.DayLayout))
	horizon := today.AddDate(0, 0, 14)
	cutoff := today.AddDate(0, 0, -3)

	rollover := &models.Rollover{}
	var due []*models.CalendarAction
	for _, a := range c.actions {
		day, _ := time.Parse(models.DayLayout, a.Day)
		if a.Periodic && !a.Dubbed && !day.After(horizon) {
			due = append(due, a)
		}
	}
	for _, a := range due {
		a.Dubbed = true
		day, _ := time.Parse(models.DayLayout, a.Day)
		id := c.id()
		c.actions[id] = &models.CalendarAction{
			ID:       id,
			Day:      day.AddDate(0, 0, 7).Format(models.DayLayout),
			Start:    a.Start,
			EventID:  a.EventID,
			Periodic: true,
		}
		rollover.Created++
	}
	for id, a := range c.actions {
		day, _ := time.Parse(models.DayLayout, a.Day)
		if day.After(cutoff) {
			continue
		}
		for key := range c.records {
			if key[0] == id {
				delete(c.records, key)
			}
		}
		delete(c.actions, id)
		rollover.Removed++
	}
	return rollover, nil
}

func (c memCalendar) ListRecordsByAction(_ context.Context, actionID int64) ([]models.CalendarRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.CalendarRecord{}
	for key, r := range c.records {
		if key[0] == actionID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (c memCalendar) ListRecordsByUser(_ context.Context, userID int64) ([]models.CalendarRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.CalendarRecord{}
	for key, r := range c.records {
		if key[1] == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (c memCalendar) Book(_ context.Context, actionID, userID int64) (*models.Booking, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[userID]; !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	a, ok := c.actions[actionID]
	if !ok {
		return nil, pkgerrors.ErrActionNotFound
	}
	key := [2]int64{actionID, userID}
	if _, ok := c.records[key]; ok {
		return nil, pkgerrors.ErrAlreadyBooked
	}
	event := c.events[a.EventID]
	if event.Capacity > 0 && a.Quantity >= event.Capacity {
		return nil, pkgerrors.ErrActionFull
	}
	booking := &models.Booking{Balance: c.balances[userID]}
	if booking.Balance.LessThan(event.Price) {
		return nil, pkgerrors.ErrInsufficientFunds
	}
	if event.Price.IsPositive() {
		booking.Entry = models.NewWithdrawal(userID, event.Price)
		booking.Balance = c.post(booking.Entry)
	}
	a.Quantity++
	booking.Record = models.CalendarRecord{ActionID: actionID, UserID: userID, Amount: event.Price, CreatedAt: time.Now()}
	rec := booking.Record
	c.records[key] = &rec
	return booking, nil
}

func (c memCalendar) Cancel(_ context.Context, actionID, userID int64) (*models.Booking, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.users[userID]; !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	key := [2]int64{actionID, userID}
	rec, ok := c.records[key]
	if !ok {
		return nil, pkgerrors.ErrRecordNotFound
	}
	delete(c.records, key)
	booking := &models.Booking{Record: *rec, Balance: c.balances[userID]}
	if rec.Amount.IsPositive() {
		booking.Entry = models.NewDeposit(userID, rec.Amount)
		booking.Balance = c.post(booking.Entry)
	}
	c.actions[actionID].Quantity--
	return booking, nil
}

// trainers

type memTrainers struct{ *memStore }

func (tr memTrainers) List(context.Context) ([]models.Trainer, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := []models.Trainer{}
	for _, t := range tr.trainers {
		if !t.Deleted {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (tr memTrainers) Create(_ context.Context, trainer *models.Trainer) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.trainers {
		if t.UserID == trainer.UserID {
			return pkgerrors.ErrConflict
		}
	}
	trainer.ID = tr.id()
	cp := *trainer
	tr.trainers[trainer.ID] = &cp
	return nil
}

func (tr memTrainers) Update(_ context.Context, userID int64, upd models.TrainerUpdate) (*models.Trainer, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.trainers {
		if t.UserID != userID || t.Deleted {
			continue
		}
		if upd.FirstName != nil {
			t.FirstName = *upd.FirstName
		}
		if upd.LastName != nil {
			t.LastName = *upd.LastName
		}
		if upd.Phone != nil {
			t.Phone = *upd.Phone
		}
		cp := *t
		return &cp, nil
	}
	return nil, pkgerrors.ErrTrainerNotFound
}

func (tr memTrainers) Delete(_ context.Context, userID int64) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	for _, t := range tr.trainers {
		if t.UserID == userID && !t.Deleted {
			t.Deleted = true
			return nil
		}
	}
	return pkgerrors.ErrTrainerNotFound
}

func (tr memTrainers) ListByUser(_ context.Context, userID int64) ([]models.UserTrainer, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := []models.UserTrainer{}
	for _, l := range tr.links {
		if l.UserID == userID {
			t := *tr.trainers[l.TrainerID]
			l.Trainer = &t
			out = append(out, l)
		}
	}
	return out, nil
}

func (tr memTrainers) Assign(_ context.Context, userID, trainerID int64) (*models.UserTrainer, error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.trainers[trainerID]; !ok {
		return nil, pkgerrors.ErrTrainerNotFound
	}
	for _, l := range tr.links {
		if l.UserID == userID && l.TrainerID == trainerID {
			return nil, pkgerrors.ErrConflict
		}
	}
	link := models.UserTrainer{ID: tr.id(), UserID: userID, TrainerID: trainerID, CreatedAt: time.Now()}
	tr.links = append(tr.links, link)
	return &link, nil
}

// fixture wires every service over one memStore and a miniredis instance.
type fixture struct {
	store    *memStore
	redis    redis.RedisClient
	balance  *balanceService
	subs     *subscriptionService
	goods    *goodsService
	users    *userService
	notes    *recordingNotifier
	gateway  *stubGateway
	payment  *paymentService
	calendar *calendarService
	trainers *trainerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store := newMemStore()
	notes := &recordingNotifier{}
	gateway := &stubGateway{}
	return &fixture{
		store:    store,
		redis:    client,
		balance:  NewBalanceService(store, memLedger{store}),
		subs:     NewSubscriptionService(store, memLedger{store}, memSubs{store}, client, time.Minute),
		goods:    NewGoodsService(store, memGoods{store}, client, time.Minute),
		users:    NewUserService(store),
		notes:    notes,
		gateway:  gateway,
		payment:  NewPaymentService(store, memOrders{store}, gateway, notes),
		calendar: NewCalendarService(store, memCalendar{store}),
		trainers: NewTrainerService(store, memTrainers{store}),
	}
}

func (f *fixture) register(t *testing.T, telegramID int64) *models.User {
	t.Helper()
	user := &models.User{TelegramID: telegramID, FirstName: "Ivan"}
	require.NoError(t, f.users.Register(context.Background(), user))
	return user
}

func (f *fixture) plan(t *testing.T, price string, days int) *models.SubscriptionPlan {
	t.Helper()
	plan := &models.SubscriptionPlan{Name: "Month", Price: decimal.RequireFromString(price), Duration: days}
	require.NoError(t, f.subs.CreatePlan(context.Background(), plan))
	return plan
}

// ledgerSum is the sum of all entries of a user.
func (f *fixture) ledgerSum(userID int64) decimal.Decimal {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	sum := decimal.Zero
	for _, e := range f.store.entries {
		if e.UserID == userID {
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

type recordingNotifier struct {
	mu     sync.Mutex
	sent   []models.Notification
	fails  error
	ctxErr error
}

func (n *recordingNotifier) Publish(ctx context.Context, note models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ctxErr = ctx.Err()
	if n.fails != nil {
		return n.fails
	}
	n.sent = append(n.sent, note)
	return nil
}

type stubGateway struct {
	calls []models.PaymentInit
	err   error
}

func (g *stubGateway) Init(_ context.Context, p models.PaymentInit) (*models.PaymentSession, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.calls = append(g.calls, p)
	return &models.PaymentSession{Success: true, PaymentID: "13660", PaymentURL: "https://pay.example/13660"}, nil
}
