// Package memdb is an in-memory stand-in for the ledger tables, used by use case tests.
//
// Runner serializes transactions and restores a snapshot when the callback fails, so
// tests can assert that a failed transaction left no trace. Repositories ignore the
// *sqlx.Tx they are bound to.
package memdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/cancellation"
	canceldto "github.com/fekuna/omnipos-ledger-service/internal/cancellation/dto"
	"github.com/fekuna/omnipos-ledger-service/internal/model"
	"github.com/fekuna/omnipos-ledger-service/internal/order"
	"github.com/fekuna/omnipos-ledger-service/internal/promotion"
	"github.com/fekuna/omnipos-ledger-service/internal/reward"
	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	stockdto "github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/jmoiron/sqlx"
)

// Operation names accepted by FailOn.
const (
	OpGetVariant          = "stock.GetVariantForUpdate"
	OpUpdateStock         = "stock.UpdateStock"
	OpInsertMovement      = "stock.InsertMovement"
	OpGetOrder            = "order.GetOrder"
	OpUpdateOrderStatus   = "order.UpdateStatus"
	OpSumRewards          = "reward.SumByOrder"
	OpApplyRewardDelta    = "reward.ApplyDelta"
	OpInsertRewardEntry   = "reward.InsertEntry"
	OpResetUserRedemption = "promotion.ResetUserRedemption"
	OpDecrementRedemption = "promotion.DecrementRedemption"
	OpUpdateDecision      = "cancellation.UpdateDecision"
	OpUpdateFinal         = "cancellation.UpdateFinal"
)

type state struct {
	Variants          map[string]model.VariantStock
	Movements         []model.StockMovement
	Orders            map[string]model.Order
	Requests          map[string]model.CancellationRequest
	Accounts          map[string]model.RewardPointsAccount
	Ledger            []model.RewardLedgerEntry
	Promotions        map[string]model.Promotion
	PromotionUsers    []model.PromotionUser
	PromotionProducts map[string][]string
}

type DB struct {
	mu    sync.Mutex
	state state
	fail  map[string]error
}

func New() *DB {
	return &DB{
		state: state{
			Variants:          map[string]model.VariantStock{},
			Orders:            map[string]model.Order{},
			Requests:          map[string]model.CancellationRequest{},
			Accounts:          map[string]model.RewardPointsAccount{},
			Promotions:        map[string]model.Promotion{},
			PromotionProducts: map[string][]string{},
		},
		fail: map[string]error{},
	}
}

// FailOn makes every later call of op return err.
func (db *DB) FailOn(op string, err error) {
	db.fail[op] = err
}

func (db *DB) failure(op string) error {
	return db.fail[op]
}

// Runner

type TxRunner struct {
	db *DB
}

func (db *DB) Runner() *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	snapshot := r.db.state.clone()
	if err := fn(nil); err != nil {
		r.db.state = snapshot
		return err
	}
	return nil
}

func (s state) clone() state {
	c := state{
		Variants:          make(map[string]model.VariantStock, len(s.Variants)),
		Movements:         append([]model.StockMovement(nil), s.Movements...),
		Orders:            make(map[string]model.Order, len(s.Orders)),
		Requests:          make(map[string]model.CancellationRequest, len(s.Requests)),
		Accounts:          make(map[string]model.RewardPointsAccount, len(s.Accounts)),
		Ledger:            append([]model.RewardLedgerEntry(nil), s.Ledger...),
		Promotions:        make(map[string]model.Promotion, len(s.Promotions)),
		PromotionUsers:    append([]model.PromotionUser(nil), s.PromotionUsers...),
		PromotionProducts: make(map[string][]string, len(s.PromotionProducts)),
	}
	for k, v := range s.Variants {
		c.Variants[k] = v
	}
	for k, v := range s.Orders {
		v.Items = append([]model.OrderItem(nil), v.Items...)
		c.Orders[k] = v
	}
	for k, v := range s.Requests {
		c.Requests[k] = v
	}
	for k, v := range s.Accounts {
		c.Accounts[k] = v
	}
	for k, v := range s.Promotions {
		c.Promotions[k] = v
	}
	for k, v := range s.PromotionProducts {
		c.PromotionProducts[k] = append([]string(nil), v...)
	}
	return c
}

// Seeding and inspection. Not safe to call while a transaction is running.

func (db *DB) PutVariant(v model.VariantStock) { db.state.Variants[v.ID] = v }

func (db *DB) Variant(id string) model.VariantStock { return db.state.Variants[id] }

func (db *DB) Movements() []model.StockMovement {
	return append([]model.StockMovement(nil), db.state.Movements...)
}

func (db *DB) PutOrder(o model.Order) { db.state.Orders[o.ID] = o }

func (db *DB) Order(id string) model.Order { return db.state.Orders[id] }

func (db *DB) PutRequest(r model.CancellationRequest) { db.state.Requests[r.ID] = r }

func (db *DB) Request(id string) model.CancellationRequest { return db.state.Requests[id] }

func (db *DB) PutAccount(a model.RewardPointsAccount) { db.state.Accounts[a.UserID] = a }

func (db *DB) Account(userID string) (model.RewardPointsAccount, bool) {
	a, ok := db.state.Accounts[userID]
	return a, ok
}

func (db *DB) AddLedgerEntry(e model.RewardLedgerEntry) { db.state.Ledger = append(db.state.Ledger, e) }

func (db *DB) Ledger() []model.RewardLedgerEntry {
	return append([]model.RewardLedgerEntry(nil), db.state.Ledger...)
}

func (db *DB) PutPromotion(p model.Promotion, productIDs ...string) {
	db.state.Promotions[p.ID] = p
	if len(productIDs) > 0 {
		db.state.PromotionProducts[p.ID] = append([]string(nil), productIDs...)
	}
}

func (db *DB) Promotion(id string) model.Promotion { return db.state.Promotions[id] }

func (db *DB) PutPromotionUser(pu model.PromotionUser) {
	db.state.PromotionUsers = append(db.state.PromotionUsers, pu)
}

func (db *DB) PromotionUser(promotionID, userID string) (model.PromotionUser, bool) {
	for _, pu := range db.state.PromotionUsers {
		if pu.PromotionID == promotionID && pu.UserID == userID {
			return pu, true
		}
	}
	return model.PromotionUser{}, false
}

// Stock

type StockRepo struct{ db *DB }

func (db *DB) StockRepo() *StockRepo { return &StockRepo{db: db} }

func (r *StockRepo) WithTx(tx *sqlx.Tx) stock.Repository { return r }

func (r *StockRepo) GetVariant(ctx context.Context, id string) (*model.VariantStock, error) {
	v, ok := r.db.state.Variants[id]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (r *StockRepo) GetVariantForUpdate(ctx context.Context, id string) (*model.VariantStock, error) {
	if err := r.db.failure(OpGetVariant); err != nil {
		return nil, err
	}
	return r.GetVariant(ctx, id)
}

func (r *StockRepo) ResolveVariant(ctx context.Context, productID, colorName, size string) (*model.VariantStock, error) {
	ids := make([]string, 0, len(r.db.state.Variants))
	for id := range r.db.state.Variants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		v := r.db.state.Variants[id]
		if v.ProductID == productID && v.ColorName == colorName && v.Size == size {
			return &v, nil
		}
	}
	return nil, nil
}

func (r *StockRepo) UpdateStock(ctx context.Context, variantID string, stock int, updatedAt time.Time) error {
	if err := r.db.failure(OpUpdateStock); err != nil {
		return err
	}
	v, ok := r.db.state.Variants[variantID]
	if !ok {
		return fmt.Errorf("failed to update stock: 0 rows affected")
	}
	if stock < 0 {
		return fmt.Errorf("check constraint violated: stock >= 0")
	}
	v.Stock = stock
	v.UpdatedAt = updatedAt
	r.db.state.Variants[variantID] = v
	return nil
}

func (r *StockRepo) ListLowStock(ctx context.Context, page, pageSize int) ([]model.VariantStock, int, error) {
	var out []model.VariantStock
	for _, v := range r.db.state.Variants {
		if v.Stock == 0 || v.Stock < v.MinStock {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stock != out[j].Stock {
			return out[i].Stock < out[j].Stock
		}
		return out[i].ID < out[j].ID
	})
	total := len(out)
	return paginate(out, page, pageSize), total, nil
}

func (r *StockRepo) InsertMovement(ctx context.Context, m *model.StockMovement) error {
	if err := r.db.failure(OpInsertMovement); err != nil {
		return err
	}
	if !m.Consistent() {
		return fmt.Errorf("check constraint violated: new_stock = old_stock + qty_change")
	}
	r.db.state.Movements = append(r.db.state.Movements, *m)
	return nil
}

func (r *StockRepo) ListMovements(ctx context.Context, f *stockdto.MovementFilters) ([]model.StockMovement, int, error) {
	var out []model.StockMovement
	for i := len(r.db.state.Movements) - 1; i >= 0; i-- {
		m := r.db.state.Movements[i]
		if f.VariantID != "" && m.VariantID != f.VariantID {
			continue
		}
		if f.ProductID != "" && r.db.state.Variants[m.VariantID].ProductID != f.ProductID {
			continue
		}
		if f.MovementType != "" && m.MovementType != f.MovementType {
			continue
		}
		if f.Reason != "" && m.Reason != f.Reason {
			continue
		}
		out = append(out, m)
	}
	total := len(out)
	return paginate(out, f.Page, f.PageSize), total, nil
}

// Orders

type OrderRepo struct{ db *DB }

func (db *DB) OrderRepo() *OrderRepo { return &OrderRepo{db: db} }

func (r *OrderRepo) WithTx(tx *sqlx.Tx) order.Repository { return r }

func (r *OrderRepo) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if err := r.db.failure(OpGetOrder); err != nil {
		return nil, err
	}
	o, ok := r.db.state.Orders[id]
	if !ok {
		return nil, nil
	}
	o.Items = append([]model.OrderItem(nil), o.Items...)
	return &o, nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status model.OrderStatus) error {
	if err := r.db.failure(OpUpdateOrderStatus); err != nil {
		return err
	}
	o, ok := r.db.state.Orders[id]
	if !ok {
		return fmt.Errorf("failed to update order status: 0 rows affected")
	}
	o.Status = status
	r.db.state.Orders[id] = o
	return nil
}

// Rewards

type RewardRepo struct{ db *DB }

func (db *DB) RewardRepo() *RewardRepo { return &RewardRepo{db: db} }

func (r *RewardRepo) WithTx(tx *sqlx.Tx) reward.Repository { return r }

func (r *RewardRepo) SumByOrder(ctx context.Context, orderID string) (int, int, error) {
	if err := r.db.failure(OpSumRewards); err != nil {
		return 0, 0, err
	}
	var earned, redeemed int
	for _, e := range r.db.state.Ledger {
		if e.RefOrderID == nil || *e.RefOrderID != orderID {
			continue
		}
		switch e.Type {
		case model.RewardEarn:
			earned += e.Points
		case model.RewardRedeem:
			redeemed += e.Points
		}
	}
	return earned, redeemed, nil
}

func (r *RewardRepo) InsertEntry(ctx context.Context, e *model.RewardLedgerEntry) error {
	if err := r.db.failure(OpInsertRewardEntry); err != nil {
		return err
	}
	r.db.state.Ledger = append(r.db.state.Ledger, *e)
	return nil
}

func (r *RewardRepo) ListEntries(ctx context.Context, userID string, page, pageSize int) ([]model.RewardLedgerEntry, int, error) {
	var out []model.RewardLedgerEntry
	for i := len(r.db.state.Ledger) - 1; i >= 0; i-- {
		if e := r.db.state.Ledger[i]; e.UserID == userID {
			out = append(out, e)
		}
	}
	total := len(out)
	return paginate(out, page, pageSize), total, nil
}

func (r *RewardRepo) EnsureAccount(ctx context.Context, userID string) error {
	if _, ok := r.db.state.Accounts[userID]; !ok {
		r.db.state.Accounts[userID] = model.RewardPointsAccount{UserID: userID}
	}
	return nil
}

func (r *RewardRepo) ApplyDelta(ctx context.Context, userID string, balanceDelta, accumulatedDelta int, updatedAt time.Time) error {
	if err := r.db.failure(OpApplyRewardDelta); err != nil {
		return err
	}
	a, ok := r.db.state.Accounts[userID]
	if !ok {
		return fmt.Errorf("failed to apply reward delta: 0 rows affected")
	}
	a.Balance += balanceDelta
	a.Accumulated += accumulatedDelta
	a.UpdatedAt = updatedAt
	r.db.state.Accounts[userID] = a
	return nil
}

func (r *RewardRepo) GetAccount(ctx context.Context, userID string) (*model.RewardPointsAccount, error) {
	a, ok := r.db.state.Accounts[userID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// Promotions

type PromotionRepo struct{ db *DB }

func (db *DB) PromotionRepo() *PromotionRepo { return &PromotionRepo{db: db} }

func (r *PromotionRepo) WithTx(tx *sqlx.Tx) promotion.Repository { return r }

func (r *PromotionRepo) ListRedeemedTargeted(ctx context.Context, userID string) ([]model.PromotionUser, error) {
	var out []model.PromotionUser
	for _, pu := range r.db.state.PromotionUsers {
		p, ok := r.db.state.Promotions[pu.PromotionID]
		if ok && pu.UserID == userID && pu.IsRedeemed && p.PromotionType == model.PromotionTargeted {
			out = append(out, pu)
		}
	}
	return out, nil
}

func (r *PromotionRepo) ResetUserRedemption(ctx context.Context, promotionID, userID string) error {
	if err := r.db.failure(OpResetUserRedemption); err != nil {
		return err
	}
	for i, pu := range r.db.state.PromotionUsers {
		if pu.PromotionID == promotionID && pu.UserID == userID {
			r.db.state.PromotionUsers[i].IsRedeemed = false
			r.db.state.PromotionUsers[i].RedeemedAt = nil
		}
	}
	return nil
}

func (r *PromotionRepo) ListCampaignsForOrder(ctx context.Context, orderID string) ([]string, error) {
	o, ok := r.db.state.Orders[orderID]
	if !ok {
		return nil, nil
	}
	products := map[string]bool{}
	for _, it := range o.Items {
		products[it.ProductID] = true
	}

	var ids []string
	for id, p := range r.db.state.Promotions {
		if p.PromotionType != model.PromotionCampaign {
			continue
		}
		for _, productID := range r.db.state.PromotionProducts[id] {
			if products[productID] {
				ids = append(ids, id)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *PromotionRepo) DecrementRedemption(ctx context.Context, promotionID string) (*model.Promotion, error) {
	if err := r.db.failure(OpDecrementRedemption); err != nil {
		return nil, err
	}
	p, ok := r.db.state.Promotions[promotionID]
	if !ok {
		return nil, nil
	}
	if p.RedemptionCount > 0 {
		p.RedemptionCount--
	}
	r.db.state.Promotions[promotionID] = p
	return &p, nil
}

// Cancellation requests

type CancellationRepo struct{ db *DB }

func (db *DB) CancellationRepo() *CancellationRepo { return &CancellationRepo{db: db} }

func (r *CancellationRepo) WithTx(tx *sqlx.Tx) cancellation.Repository { return r }

func (r *CancellationRepo) FindByID(ctx context.Context, id string) (*model.CancellationRequest, error) {
	c, ok := r.db.state.Requests[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *CancellationRepo) FindByIDForUpdate(ctx context.Context, id string) (*model.CancellationRequest, error) {
	return r.FindByID(ctx, id)
}

func (r *CancellationRepo) List(ctx context.Context, f *canceldto.ListFilters) ([]model.CancellationRequest, int, error) {
	var out []model.CancellationRequest
	for _, c := range r.db.state.Requests {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if f.Kind == canceldto.KindReturn && !c.HasProof() {
			continue
		}
		if f.Kind == canceldto.KindCancellation && c.HasProof() {
			continue
		}
		if f.RefundFinalStatus != "" && (!c.RefundFinalStatus.Valid || c.RefundFinalStatus.Status != f.RefundFinalStatus) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	return paginate(out, f.Page, f.PageSize), total, nil
}

func (r *CancellationRepo) UpdateDecision(ctx context.Context, u *canceldto.DecisionUpdate) (bool, error) {
	if err := r.db.failure(OpUpdateDecision); err != nil {
		return false, err
	}
	c, ok := r.db.state.Requests[u.ID]
	if !ok || c.Status != model.StatusPending {
		return false, nil
	}
	at := u.ProcessedAt
	c.Status = u.Status
	c.RefundFinalStatus = u.RefundFinalStatus
	c.AdminNote = u.AdminNote
	c.ProcessedBy = u.ProcessedBy
	c.ProcessedAt = &at
	r.db.state.Requests[u.ID] = c
	return true, nil
}

func (r *CancellationRepo) UpdateFinal(ctx context.Context, u *canceldto.FinalUpdate) (bool, error) {
	if err := r.db.failure(OpUpdateFinal); err != nil {
		return false, err
	}
	c, ok := r.db.state.Requests[u.ID]
	if !ok || c.Status != model.StatusApproved || !c.RefundFinalStatus.Open() {
		return false, nil
	}
	at := u.RefundFinalAt
	c.Status = u.Status
	c.RefundFinalStatus = model.NewNullRequestStatus(u.RefundFinalStatus)
	c.RefundFinalNote = u.RefundFinalNote
	c.RefundFinalAt = &at
	r.db.state.Requests[u.ID] = c
	return true, nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 {
		return items
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
