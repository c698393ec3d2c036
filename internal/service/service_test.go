package service

import (
	"errors"
	"testing"

	"github.com/efreitasn/bilateralexchange/internal/domain"
	"github.com/efreitasn/bilateralexchange/internal/registry"
	"github.com/efreitasn/bilateralexchange/internal/store"
)

const (
	contract = "contract"
	admin    = "admin"
)

type fixture struct {
	svc    *Service
	ledger *registry.Ledger
	store  *store.MemoryStore
}

// newFixture wires a Service over a memory store and a ledger holding one
// active marker administered by "asker", one scope in contract custody, and
// balances for "asker" and "bidder".
func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := registry.NewLedger(contract)
	l.PutMarker(domain.Marker{
		Address: "marker-addr", Denom: "mdenom", Status: domain.MarkerStatusActive,
		Permissions: []domain.AccessGrant{
			{Address: "asker", Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin, domain.MarkerAccessWithdraw}},
			{Address: contract, Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin, domain.MarkerAccessWithdraw}},
		},
		Holdings: domain.Coins{{Denom: "mdenom", Amount: 100}},
	})
	l.PutScope(domain.Scope{
		Address:           "scope-addr",
		Owners:            []domain.Party{{Address: contract, Role: domain.PartyRoleOwner}},
		ValueOwnerAddress: contract,
	})
	if err := l.Credit("asker", coins("base_1", 500)); err != nil {
		t.Fatalf("credit asker: %v", err)
	}
	if err := l.Credit("bidder", domain.Coins{{Denom: "nhash", Amount: 1000}, {Denom: "quote_1", Amount: 500}}); err != nil {
		t.Fatalf("credit bidder: %v", err)
	}

	st := store.NewMemoryStore()
	svc := New(st, l, l, nil)
	if _, err := svc.InitSettings(domain.Settings{Admin: admin, ContractAddress: contract}); err != nil {
		t.Fatalf("init settings: %v", err)
	}
	return &fixture{svc: svc, ledger: l, store: st}
}

func coins(denom string, amount uint64) domain.Coins {
	return domain.Coins{{Denom: denom, Amount: amount}}
}

func (f *fixture) createCoinAsk(t *testing.T, id string) {
	t.Helper()
	_, err := f.svc.CreateAsk(Caller{Sender: "asker", Funds: coins("base_1", 200)},
		CoinTradeAsk{ID: id, Quote: coins("quote_1", 100)}, nil)
	if err != nil {
		t.Fatalf("create ask %s: %v", id, err)
	}
}

func (f *fixture) createCoinBid(t *testing.T, id string, quote uint64) {
	t.Helper()
	_, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("quote_1", quote)},
		CoinTradeBid{ID: id, Base: coins("base_1", 200)}, nil)
	if err != nil {
		t.Fatalf("create bid %s: %v", id, err)
	}
}

func (f *fixture) balance(addr, denom string) uint64 {
	return f.ledger.Balance(addr).AmountOf(denom)
}

type failingSink struct{ err error }

func (s failingSink) Execute(string, domain.Coins, domain.Transfers) error { return s.err }

func TestService_CreateAsk_CoinTrade(t *testing.T) {
	f := newFixture(t)
	f.createCoinAsk(t, "ask-1")

	ask, err := f.svc.GetAsk("ask-1")
	if err != nil {
		t.Fatalf("get ask: %v", err)
	}
	col := ask.Collateral.(domain.CoinTradeAskCollateral)
	if !col.Base.Equal(coins("base_1", 200)) {
		t.Errorf("base = %s, want 200base_1", col.Base)
	}
	if ask.Owner != "asker" {
		t.Errorf("owner = %q, want asker", ask.Owner)
	}
	if got := f.balance(contract, "base_1"); got != 200 {
		t.Errorf("contract base_1 = %d, want 200", got)
	}
	if got := f.balance("asker", "base_1"); got != 300 {
		t.Errorf("asker base_1 = %d, want 300", got)
	}
}

func TestService_CreateAsk_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.createCoinAsk(t, "ask-1")

	_, err := f.svc.CreateAsk(Caller{Sender: "asker", Funds: coins("base_1", 50)},
		CoinTradeAsk{ID: "ask-1", Quote: coins("quote_1", 10)}, nil)
	if !errors.Is(err, domain.ErrAskAlreadyExists) {
		t.Fatalf("expected ErrAskAlreadyExists, got %v", err)
	}
	if got := f.balance("asker", "base_1"); got != 300 {
		t.Errorf("asker base_1 = %d, want 300 (charged once)", got)
	}
}

func TestService_CreateAsk_FundsRules(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		caller Caller
		req    AskRequest
	}{
		{"coin ask without funds", Caller{Sender: "asker"}, CoinTradeAsk{ID: "a", Quote: coins("quote_1", 1)}},
		{"marker ask with funds", Caller{Sender: "asker", Funds: coins("base_1", 1)},
			MarkerTradeAsk{ID: "a", MarkerDenom: "mdenom", QuotePerShare: coins("nhash", 1)}},
		{"scope ask with funds", Caller{Sender: "asker", Funds: coins("base_1", 1)},
			ScopeTradeAsk{ID: "a", ScopeAddress: "scope-addr", Quote: coins("nhash", 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAsk(tt.caller, tt.req, nil)
			if !errors.Is(err, domain.ErrInvalidFunds) {
				t.Fatalf("expected ErrInvalidFunds, got %v", err)
			}
		})
	}
}

func TestService_CreateAsk_ValidationCollectsEveryDefect(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateAsk(Caller{Sender: "asker", Funds: coins("base_1", 10)},
		CoinTradeAsk{ID: "ask-1", Quote: domain.Coins{{Denom: "", Amount: 0}}},
		&domain.RequestDescriptor{AttributeRequirement: &domain.AttributeRequirement{Type: domain.AttributeRequirementAll}})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(ve.Messages) < 2 {
		t.Errorf("expected several messages, got %v", ve.Messages)
	}
	if _, err := f.svc.GetAsk("ask-1"); !errors.Is(err, domain.ErrAskNotFound) {
		t.Errorf("invalid ask was stored: %v", err)
	}
	if got := f.balance("asker", "base_1"); got != 500 {
		t.Errorf("asker base_1 = %d, want 500", got)
	}
}

func TestService_CreateAsk_MarkerTradeTakesCustody(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateAsk(Caller{Sender: "asker"},
		MarkerTradeAsk{ID: "ask-m", MarkerDenom: "mdenom", QuotePerShare: coins("nhash", 2)}, nil)
	if err != nil {
		t.Fatalf("create marker ask: %v", err)
	}
	col := res.Ask.Collateral.(domain.MarkerTradeAskCollateral)
	if col.ShareCount != 100 {
		t.Errorf("share count = %d, want 100", col.ShareCount)
	}
	if col.MarkerAddress != "marker-addr" {
		t.Errorf("marker address = %q, want marker-addr", col.MarkerAddress)
	}
	if len(col.RemovedPermissions) != 1 || col.RemovedPermissions[0].Address != "asker" {
		t.Errorf("removed permissions = %+v, want the asker's grant", col.RemovedPermissions)
	}

	m, _ := f.ledger.GetMarkerByDenom("mdenom")
	if _, ok := m.GrantFor("asker"); ok {
		t.Error("asker still holds access to the marker")
	}
	if _, ok := m.GrantFor(contract); !ok {
		t.Error("contract lost access to the marker")
	}

	_, err = f.svc.CreateAsk(Caller{Sender: "asker"},
		MarkerTradeAsk{ID: "ask-m2", MarkerDenom: "mdenom", QuotePerShare: coins("nhash", 2)}, nil)
	if !errors.Is(err, domain.ErrCollateralInUse) {
		t.Fatalf("second ask on the marker: expected ErrCollateralInUse, got %v", err)
	}
}

func TestService_CreateAsk_MarkerPreconditions(t *testing.T) {
	tests := []struct {
		name   string
		marker domain.Marker
		want   error
	}{
		{
			name: "inactive marker",
			marker: domain.Marker{Address: "marker-addr", Denom: "mdenom", Status: domain.MarkerStatusCancelled,
				Permissions: []domain.AccessGrant{
					{Address: "asker", Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin}},
					{Address: contract, Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin}},
				},
				Holdings: coins("mdenom", 10)},
			want: domain.ErrInvalidExternalState,
		},
		{
			name: "sender without admin",
			marker: domain.Marker{Address: "marker-addr", Denom: "mdenom", Status: domain.MarkerStatusActive,
				Permissions: []domain.AccessGrant{
					{Address: "asker", Permissions: []domain.MarkerAccess{domain.MarkerAccessWithdraw}},
					{Address: contract, Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin}},
				},
				Holdings: coins("mdenom", 10)},
			want: domain.ErrUnauthorized,
		},
		{
			name: "contract without admin",
			marker: domain.Marker{Address: "marker-addr", Denom: "mdenom", Status: domain.MarkerStatusActive,
				Permissions: []domain.AccessGrant{
					{Address: "asker", Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin}},
				},
				Holdings: coins("mdenom", 10)},
			want: domain.ErrInvalidExternalState,
		},
		{
			name: "no own-denom holding",
			marker: domain.Marker{Address: "marker-addr", Denom: "mdenom", Status: domain.MarkerStatusActive,
				Permissions: []domain.AccessGrant{
					{Address: "asker", Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin}},
					{Address: contract, Permissions: []domain.MarkerAccess{domain.MarkerAccessAdmin}},
				},
				Holdings: coins("other", 10)},
			want: domain.ErrInvalidExternalState,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.ledger.PutMarker(tt.marker)
			_, err := f.svc.CreateAsk(Caller{Sender: "asker"},
				MarkerTradeAsk{ID: "ask-m", MarkerDenom: "mdenom", QuotePerShare: coins("nhash", 1)}, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_CreateAsk_ShareSalesShareCustody(t *testing.T) {
	f := newFixture(t)
	asker := Caller{Sender: "asker"}

	if _, err := f.svc.CreateAsk(asker, MarkerShareSaleAsk{
		ID: "sale-1", MarkerDenom: "mdenom", SharesToSell: 60,
		QuotePerShare: coins("nhash", 3), ShareSaleType: domain.MultipleTransactions(nil),
	}, nil); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	if _, err := f.svc.CreateAsk(asker, MarkerShareSaleAsk{
		ID: "sale-2", MarkerDenom: "mdenom", SharesToSell: 40,
		QuotePerShare: coins("nhash", 4), ShareSaleType: domain.SingleTransaction(),
	}, nil); err != nil {
		t.Fatalf("second sale: %v", err)
	}

	_, err := f.svc.CreateAsk(asker, MarkerShareSaleAsk{
		ID: "sale-3", MarkerDenom: "mdenom", SharesToSell: 1,
		QuotePerShare: coins("nhash", 4), ShareSaleType: domain.SingleTransaction(),
	}, nil)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("overlisting: expected ValidationError, got %v", err)
	}

	_, err = f.svc.CreateAsk(asker,
		MarkerTradeAsk{ID: "ask-m", MarkerDenom: "mdenom", QuotePerShare: coins("nhash", 2)}, nil)
	if err == nil {
		t.Fatal("marker trade on a marker under share sale should be rejected")
	}

	asks, err := f.svc.GetAsksByCollateralID("marker-addr")
	if err != nil {
		t.Fatalf("by collateral: %v", err)
	}
	if len(asks) != 2 {
		t.Fatalf("asks on marker = %d, want 2", len(asks))
	}
}

func TestService_CreateAsk_ScopeMustBeInCustody(t *testing.T) {
	f := newFixture(t)
	f.ledger.PutScope(domain.Scope{
		Address:           "scope-owned",
		Owners:            []domain.Party{{Address: "asker", Role: domain.PartyRoleOwner}},
		ValueOwnerAddress: "asker",
	})

	_, err := f.svc.CreateAsk(Caller{Sender: "asker"},
		ScopeTradeAsk{ID: "ask-sc", ScopeAddress: "scope-owned", Quote: coins("nhash", 100)}, nil)
	if !errors.Is(err, domain.ErrInvalidExternalState) {
		t.Fatalf("expected ErrInvalidExternalState, got %v", err)
	}

	if _, err := f.svc.CreateAsk(Caller{Sender: "asker"},
		ScopeTradeAsk{ID: "ask-sc", ScopeAddress: "scope-addr", Quote: coins("nhash", 100)}, nil); err != nil {
		t.Fatalf("scope in custody: %v", err)
	}
}

func TestService_CreateBid(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("nhash", 200)},
		MarkerTradeBid{ID: "bid-m", MarkerDenom: "mdenom"}, nil)
	if err != nil {
		t.Fatalf("create bid: %v", err)
	}
	col := res.Bid.Collateral.(domain.MarkerTradeBidCollateral)
	if col.MarkerAddress != "marker-addr" {
		t.Errorf("marker address = %q, want marker-addr", col.MarkerAddress)
	}
	if !col.Quote.Equal(coins("nhash", 200)) {
		t.Errorf("quote = %s, want 200nhash", col.Quote)
	}
	if got := f.balance("bidder", "nhash"); got != 800 {
		t.Errorf("bidder nhash = %d, want 800", got)
	}

	if _, err := f.svc.CreateBid(Caller{Sender: "bidder"},
		MarkerTradeBid{ID: "bid-2", MarkerDenom: "mdenom"}, nil); !errors.Is(err, domain.ErrInvalidFunds) {
		t.Errorf("bid without funds: expected ErrInvalidFunds, got %v", err)
	}
	if _, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("nhash", 1)},
		MarkerTradeBid{ID: "bid-m", MarkerDenom: "mdenom"}, nil); !errors.Is(err, domain.ErrBidAlreadyExists) {
		t.Errorf("duplicate bid: expected ErrBidAlreadyExists, got %v", err)
	}
	if _, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("nhash", 1)},
		MarkerTradeBid{ID: "bid-3", MarkerDenom: "missing"}, nil); !errors.Is(err, domain.ErrInvalidExternalState) {
		t.Errorf("unknown marker: expected ErrInvalidExternalState, got %v", err)
	}
}

func TestService_CreateBid_InsufficientBalanceRollsBack(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("nhash", 5000)},
		CoinTradeBid{ID: "bid-1", Base: coins("base_1", 200)}, nil)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if _, err := f.svc.GetBid("bid-1"); !errors.Is(err, domain.ErrBidNotFound) {
		t.Errorf("bid survived a failed transfer: %v", err)
	}
}

func TestService_SinkFailureRollsBack(t *testing.T) {
	st := store.NewMemoryStore()
	l := registry.NewLedger(contract)
	svc := New(st, l, failingSink{err: errors.New("host down")}, nil)
	if _, err := svc.InitSettings(domain.Settings{Admin: admin, ContractAddress: contract}); err != nil {
		t.Fatalf("init settings: %v", err)
	}

	_, err := svc.CreateAsk(Caller{Sender: "asker", Funds: coins("base_1", 10)},
		CoinTradeAsk{ID: "ask-1", Quote: coins("quote_1", 10)}, nil)
	if !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if _, err := st.GetAsk("ask-1"); !errors.Is(err, domain.ErrAskNotFound) {
		t.Errorf("ask survived a failed transfer: %v", err)
	}
	asks, err := st.AsksByCollateralID("ask-1")
	if err != nil {
		t.Fatalf("by collateral: %v", err)
	}
	if len(asks) != 0 {
		t.Errorf("collateral index still holds %d asks", len(asks))
	}
}

func TestService_UpdateAsk(t *testing.T) {
	f := newFixture(t)
	f.createCoinAsk(t, "ask-1")

	res, err := f.svc.UpdateAsk(Caller{Sender: "asker", Funds: coins("base_1", 50)},
		CoinTradeAsk{ID: "ask-1", Quote: coins("quote_1", 25)}, nil)
	if err != nil {
		t.Fatalf("update ask: %v", err)
	}
	col := res.Ask.Collateral.(domain.CoinTradeAskCollateral)
	if !col.Base.Equal(coins("base_1", 50)) || !col.Quote.Equal(coins("quote_1", 25)) {
		t.Errorf("collateral = %+v", col)
	}
	if got := f.balance("asker", "base_1"); got != 450 {
		t.Errorf("asker base_1 = %d, want 450 after refund", got)
	}
	if got := f.balance(contract, "base_1"); got != 50 {
		t.Errorf("contract base_1 = %d, want 50", got)
	}

	tests := []struct {
		name   string
		caller Caller
		req    AskRequest
		want   error
	}{
		{"not the owner", Caller{Sender: "bidder", Funds: coins("quote_1", 1)},
			CoinTradeAsk{ID: "ask-1", Quote: coins("quote_1", 1)}, domain.ErrUnauthorized},
		{"type change", Caller{Sender: "asker"},
			ScopeTradeAsk{ID: "ask-1", ScopeAddress: "scope-addr", Quote: coins("nhash", 1)}, domain.ErrInvalidUpdate},
		{"missing ask", Caller{Sender: "asker", Funds: coins("base_1", 1)},
			CoinTradeAsk{ID: "nope", Quote: coins("quote_1", 1)}, domain.ErrAskNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.UpdateAsk(tt.caller, tt.req, nil); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestService_UpdateAsk_ShareSaleTotalFrozenAfterFill(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreateAsk(Caller{Sender: "asker"}, MarkerShareSaleAsk{
		ID: "sale-1", MarkerDenom: "mdenom", SharesToSell: 50,
		QuotePerShare: coins("nhash", 3), ShareSaleType: domain.MultipleTransactions(nil),
	}, nil); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	res, err := f.svc.UpdateAsk(Caller{Sender: "asker"}, MarkerShareSaleAsk{
		ID: "sale-1", MarkerDenom: "mdenom", SharesToSell: 80,
		QuotePerShare: coins("nhash", 3), ShareSaleType: domain.MultipleTransactions(nil),
	}, nil)
	if err != nil {
		t.Fatalf("resize unfilled sale: %v", err)
	}
	if got := res.Ask.Collateral.(domain.MarkerShareSaleAskCollateral).RemainingSharesInSale; got != 80 {
		t.Errorf("remaining = %d, want 80", got)
	}

	if _, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("nhash", 30)},
		MarkerShareSaleBid{ID: "bid-1", MarkerDenom: "mdenom", ShareCount: 10}, nil); err != nil {
		t.Fatalf("create bid: %v", err)
	}
	if _, err := f.svc.ExecuteMatch(Caller{Sender: admin}, "sale-1", "bid-1", false); err != nil {
		t.Fatalf("partial fill: %v", err)
	}

	_, err = f.svc.UpdateAsk(Caller{Sender: "asker"}, MarkerShareSaleAsk{
		ID: "sale-1", MarkerDenom: "mdenom", SharesToSell: 60,
		QuotePerShare: coins("nhash", 3), ShareSaleType: domain.MultipleTransactions(nil),
	}, nil)
	if !errors.Is(err, domain.ErrInvalidUpdate) {
		t.Fatalf("resize filled sale: expected ErrInvalidUpdate, got %v", err)
	}
}

func TestService_UpdateAsk_ShareSaleTypeFrozenAfterFill(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.CreateAsk(Caller{Sender: "asker"}, MarkerShareSaleAsk{
		ID: "sale-1", MarkerDenom: "mdenom", SharesToSell: 100,
		QuotePerShare: coins("nhash", 1), ShareSaleType: domain.MultipleTransactions(nil),
	}, nil); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("nhash", 50)},
		MarkerShareSaleBid{ID: "bid-1", MarkerDenom: "mdenom", ShareCount: 50}, nil); err != nil {
		t.Fatalf("create bid: %v", err)
	}
	if _, err := f.svc.ExecuteMatch(Caller{Sender: admin}, "sale-1", "bid-1", false); err != nil {
		t.Fatalf("partial fill: %v", err)
	}

	threshold := uint64(60)
	for name, saleType := range map[string]domain.ShareSaleType{
		"single transaction": domain.SingleTransaction(),
		"raised threshold":   domain.MultipleTransactions(&threshold),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.UpdateAsk(Caller{Sender: "asker"}, MarkerShareSaleAsk{
				ID: "sale-1", MarkerDenom: "mdenom", SharesToSell: 100,
				QuotePerShare: coins("nhash", 1), ShareSaleType: saleType,
			}, nil)
			if !errors.Is(err, domain.ErrInvalidUpdate) {
				t.Fatalf("expected ErrInvalidUpdate, got %v", err)
			}
		})
	}

	res, err := f.svc.UpdateAsk(Caller{Sender: "asker"}, MarkerShareSaleAsk{
		ID: "sale-1", MarkerDenom: "mdenom", SharesToSell: 100,
		QuotePerShare: coins("nhash", 2), ShareSaleType: domain.MultipleTransactions(nil),
	}, nil)
	if err != nil {
		t.Fatalf("reprice filled sale: %v", err)
	}
	col := res.Ask.Collateral.(domain.MarkerShareSaleAskCollateral)
	if col.RemainingSharesInSale != 50 || !col.QuotePerShare.Equal(coins("nhash", 2)) {
		t.Errorf("collateral = %+v, want 50 remaining at 2nhash", col)
	}
}

func TestService_UpdateBid(t *testing.T) {
	f := newFixture(t)
	f.createCoinBid(t, "bid-1", 100)

	res, err := f.svc.UpdateBid(Caller{Sender: "bidder", Funds: coins("quote_1", 150)},
		CoinTradeBid{ID: "bid-1", Base: coins("base_1", 300)}, nil)
	if err != nil {
		t.Fatalf("update bid: %v", err)
	}
	if q := domain.BidQuote(res.Bid.Collateral); !q.Equal(coins("quote_1", 150)) {
		t.Errorf("quote = %s, want 150quote_1", q)
	}
	if got := f.balance("bidder", "quote_1"); got != 350 {
		t.Errorf("bidder quote_1 = %d, want 350", got)
	}

	if _, err := f.svc.CreateBid(Caller{Sender: "bidder", Funds: coins("nhash", 10)},
		ScopeTradeBid{ID: "bid-sc", ScopeAddress: "scope-addr"}, nil); err != nil {
		t.Fatalf("create scope bid: %v", err)
	}
	_, err = f.svc.UpdateBid(Caller{Sender: "bidder", Funds: coins("nhash", 10)},
		ScopeTradeBid{ID: "bid-sc", ScopeAddress: "other-scope"}, nil)
	if !errors.Is(err, domain.ErrInvalidUpdate) {
		t.Errorf("retarget scope: expected ErrInvalidUpdate, got %v", err)
	}
	_, err = f.svc.UpdateBid(Caller{Sender: "asker", Funds: coins("base_1", 10)},
		CoinTradeBid{ID: "bid-1", Base: coins("base_1", 1)}, nil)
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("foreign update: expected ErrUnauthorized, got %v", err)
	}
}

func TestService_CancelAsk(t *testing.T) {
	t.Run("coin trade refunds base", func(t *testing.T) {
		f := newFixture(t)
		f.createCoinAsk(t, "ask-1")
		res, err := f.svc.CancelAsk(Caller{Sender: "asker"}, "ask-1")
		if err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if len(res.Transfers) != 1 {
			t.Errorf("transfers = %d, want 1", len(res.Transfers))
		}
		if got := f.balance("asker", "base_1"); got != 500 {
			t.Errorf("asker base_1 = %d, want 500", got)
		}
	})

	t.Run("admin may cancel", func(t *testing.T) {
		f := newFixture(t)
		f.createCoinAsk(t, "ask-1")
		if _, err := f.svc.CancelAsk(Caller{Sender: admin}, "ask-1"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		if got := f.balance("asker", "base_1"); got != 500 {
			t.Errorf("asker base_1 = %d, want 500", got)
		}
	})

	t.Run("stranger may not cancel", func(t *testing.T) {
		f := newFixture(t)
		f.createCoinAsk(t, "ask-1")
		if _, err := f.svc.CancelAsk(Caller{Sender: "bidder"}, "ask-1"); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("funds are rejected", func(t *testing.T) {
		f := newFixture(t)
		f.createCoinAsk(t, "ask-1")
		_, err := f.svc.CancelAsk(Caller{Sender: "asker", Funds: coins("base_1", 1)}, "ask-1")
		if !errors.Is(err, domain.ErrInvalidFunds) {
			t.Fatalf("expected ErrInvalidFunds, got %v", err)
		}
	})

	t.Run("marker trade restores grants", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateAsk(Caller{Sender: "asker"},
			MarkerTradeAsk{ID: "ask-m", MarkerDenom: "mdenom", QuotePerShare: coins("nhash", 2)}, nil); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := f.svc.CancelAsk(Caller{Sender: "asker"}, "ask-m"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		m, _ := f.ledger.GetMarkerByDenom("mdenom")
		if g, ok := m.GrantFor("asker"); !ok || !g.Has(domain.MarkerAccessAdmin) {
			t.Errorf("asker grant not restored: %+v", m.Permissions)
		}
		if _, ok := m.GrantFor(contract); ok {
			t.Error("contract still holds access")
		}
	})

	t.Run("last share sale releases the marker", func(t *testing.T) {
		f := newFixture(t)
		for _, id := range []string{"sale-1", "sale-2"} {
			if _, err := f.svc.CreateAsk(Caller{Sender: "asker"}, MarkerShareSaleAsk{
				ID: id, MarkerDenom: "mdenom", SharesToSell: 10,
				QuotePerShare: coins("nhash", 1), ShareSaleType: domain.SingleTransaction(),
			}, nil); err != nil {
				t.Fatalf("create %s: %v", id, err)
			}
		}

		res, err := f.svc.CancelAsk(Caller{Sender: "asker"}, "sale-1")
		if err != nil {
			t.Fatalf("cancel first: %v", err)
		}
		if len(res.Transfers) != 0 {
			t.Errorf("first cancel transfers = %d, want 0", len(res.Transfers))
		}
		m, _ := f.ledger.GetMarkerByDenom("mdenom")
		if _, ok := m.GrantFor("asker"); ok {
			t.Error("marker released while another sale is open")
		}

		if _, err := f.svc.CancelAsk(Caller{Sender: "asker"}, "sale-2"); err != nil {
			t.Fatalf("cancel second: %v", err)
		}
		m, _ = f.ledger.GetMarkerByDenom("mdenom")
		if _, ok := m.GrantFor("asker"); !ok {
			t.Error("marker not released by the last sale")
		}
	})

	t.Run("scope returns to owner", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.svc.CreateAsk(Caller{Sender: "asker"},
			ScopeTradeAsk{ID: "ask-sc", ScopeAddress: "scope-addr", Quote: coins("nhash", 100)}, nil); err != nil {
			t.Fatalf("create: %v", err)
		}
		if _, err := f.svc.CancelAsk(Caller{Sender: "asker"}, "ask-sc"); err != nil {
			t.Fatalf("cancel: %v", err)
		}
		scope, _ := f.ledger.GetScope("scope-addr")
		if scope.ValueOwnerAddress != "asker" || len(scope.Owners) != 1 || scope.Owners[0].Address != "asker" {
			t.Errorf("scope = %+v, want owned by asker", scope)
		}
	})
}

func TestService_CancelBid(t *testing.T) {
	f := newFixture(t)
	f.createCoinBid(t, "bid-1", 100)

	if _, err := f.svc.CancelBid(Caller{Sender: "asker"}, "bid-1"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("stranger cancel: expected ErrUnauthorized, got %v", err)
	}
	if _, err := f.svc.CancelBid(Caller{Sender: "bidder"}, "bid-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.balance("bidder", "quote_1"); got != 500 {
		t.Errorf("bidder quote_1 = %d, want 500", got)
	}
	if _, err := f.svc.CancelBid(Caller{Sender: "bidder"}, "bid-1"); !errors.Is(err, domain.ErrBidNotFound) {
		t.Errorf("second cancel: expected ErrBidNotFound, got %v", err)
	}
}
