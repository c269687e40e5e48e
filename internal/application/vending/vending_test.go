package vending

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/juice-vending/internal/application"
	"github.com/Zhima-Mochi/juice-vending/internal/application/validation"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/cash"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/inventory"
	"github.com/Zhima-Mochi/juice-vending/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/juice-vending/internal/domain/outbox"
	"github.com/Zhima-Mochi/juice-vending/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/juice-vending/internal/observability"
	"github.com/shopspring/decimal"
)

type choiceReply struct {
	index int
	ok    bool
}

type scriptedPrompter struct {
	texts   []application.Reply
	choices []choiceReply
	asked   []string
	textErr error
}

func (p *scriptedPrompter) PromptText(_ context.Context, message string) (application.Reply, error) {
	p.asked = append(p.asked, message)
	if p.textErr != nil {
		return application.Reply{}, p.textErr
	}
	if len(p.texts) == 0 {
		return application.Cancelled, nil
	}
	r := p.texts[0]
	p.texts = p.texts[1:]
	return r, nil
}

func (p *scriptedPrompter) PromptChoice(_ context.Context, message string, _ []string) (int, bool, error) {
	p.asked = append(p.asked, message)
	if len(p.choices) == 0 {
		return 0, false, nil
	}
	c := p.choices[0]
	p.choices = p.choices[1:]
	return c.index, c.ok, nil
}

type recordingNotifier struct{ notices []string }

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.notices = append(n.notices, message)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domoutbox.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e domoutbox.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type fixedID struct{ next int }

func (g *fixedID) NewID() string {
	g.next++
	return "order-" + strconv.Itoa(g.next)
}

func answers(texts ...string) []application.Reply {
	out := make([]application.Reply, len(texts))
	for i, t := range texts {
		out[i] = application.Answer(t)
	}
	return out
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store     *memory.MachineStore
	prompter  *scriptedPrompter
	notifier  *recordingNotifier
	publisher *recordingPublisher
	coord     *Coordinator
}

// newFixture builds a machine with Apple Juice (70.00) and Orange Juice (60.00).
func newFixture(t *testing.T, appleStock, orangeStock int, opening string) *fixture {
	t.Helper()
	mk := func(id int, name, price string, stock int) *inventory.Product {
		slot, err := inventory.NewSlot(stock, dec(price))
		if err != nil {
			t.Fatalf("slot: %v", err)
		}
		p, err := inventory.NewProduct(id, name, slot)
		if err != nil {
			t.Fatalf("product: %v", err)
		}
		return p
	}
	vault, err := cash.NewVault(dec(opening))
	if err != nil {
		t.Fatalf("vault: %v", err)
	}
	store, err := memory.NewMachineStore([]*inventory.Product{
		mk(1, "Apple Juice", "70.00", appleStock),
		mk(2, "Orange Juice", "60.00", orangeStock),
	}, vault)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	f := &fixture{
		store:     store,
		prompter:  &scriptedPrompter{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
	}
	f.coord = NewCoordinator(store, f.prompter, f.notifier, f.publisher, &fixedID{}, "Php.", observability.Nop())
	return f
}

func (f *fixture) state(t *testing.T, id int) (int, decimal.Decimal) {
	t.Helper()
	p, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	v, _ := f.store.Vault(context.Background())
	return p.Slot.AvailableQuantity(), v.Balance()
}

func TestPurchaseSettlesSale(t *testing.T) {
	f := newFixture(t, 50, 50, "5000.00")
	f.prompter.texts = answers("3", "300")

	receipt, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !receipt.TotalCost.Equal(dec("210.00")) {
		t.Errorf("total cost = %s, want 210.00", receipt.TotalCost)
	}
	if !receipt.Change.Equal(dec("90.00")) {
		t.Errorf("change = %s, want 90.00", receipt.Change)
	}
	if receipt.RemainingStock != 47 {
		t.Errorf("remaining = %d, want 47", receipt.RemainingStock)
	}
	if !receipt.VaultBalance.Equal(dec("5210.00")) {
		t.Errorf("vault balance = %s, want 5210.00", receipt.VaultBalance)
	}
	if !receipt.ReportedBalance.Equal(dec("5120.00")) {
		t.Errorf("reported balance = %s, want 5120.00", receipt.ReportedBalance)
	}

	stock, balance := f.state(t, 1)
	if stock != 47 || !balance.Equal(dec("5210.00")) {
		t.Fatalf("store = (%d, %s), want (47, 5210.00)", stock, balance)
	}

	want := []string{"Your change is: Php. 90.00", "Current balance in register: Php. 5120.00"}
	if len(f.notifier.notices) != len(want) {
		t.Fatalf("notices = %v", f.notifier.notices)
	}
	for i := range want {
		if f.notifier.notices[i] != want[i] {
			t.Errorf("notice %d = %q, want %q", i, f.notifier.notices[i], want[i])
		}
	}

	if len(f.prompter.asked) != 2 {
		t.Fatalf("asked = %v", f.prompter.asked)
	}
	if !strings.Contains(f.prompter.asked[0], "1 | Apple Juice | 50 | Php. 70.00") {
		t.Errorf("quantity prompt = %q", f.prompter.asked[0])
	}
	if f.prompter.asked[1] != "Total cost to pay: Php. 210.00\nEnter amount to pay: Php." {
		t.Errorf("payment prompt = %q", f.prompter.asked[1])
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("events = %v", f.publisher.events)
	}
	evt, ok := f.publisher.events[0].(order.SaleSettledEvent)
	if !ok {
		t.Fatalf("unexpected event %T", f.publisher.events[0])
	}
	if evt.Quantity != 3 || evt.RemainingStock != 47 || !evt.Amount.Equal(dec("210")) {
		t.Errorf("unexpected event %+v", evt)
	}
}

func TestPurchaseOutOfStockAsksNothing(t *testing.T) {
	f := newFixture(t, 0, 50, "5000.00")

	if _, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 1}); !errors.Is(err, inventory.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if len(f.prompter.asked) != 0 {
		t.Fatalf("no prompt expected, asked %v", f.prompter.asked)
	}
	if len(f.publisher.events) != 0 {
		t.Fatalf("no event expected")
	}
}

func TestPurchaseUnknownProduct(t *testing.T) {
	f := newFixture(t, 5, 5, "5000.00")
	if _, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 5}); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("expected ErrUnknownProduct, got %v", err)
	}
}

func TestPurchaseCancellationLeavesMachineUnchanged(t *testing.T) {
	cases := []struct {
		name      string
		replies   []application.Reply
		wantStage order.Status
	}{
		{name: "at quantity", replies: []application.Reply{application.Cancelled}, wantStage: order.StatusAwaitingQuantity},
		{name: "after bad quantity", replies: []application.Reply{application.Answer("abc"), application.Cancelled}, wantStage: order.StatusAwaitingQuantity},
		{name: "at payment", replies: []application.Reply{application.Answer("2"), application.Cancelled}, wantStage: order.StatusAwaitingPayment},
		{name: "after low payment", replies: []application.Reply{application.Answer("2"), application.Answer("10"), application.Cancelled}, wantStage: order.StatusAwaitingPayment},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 10, 10, "5000.00")
			f.prompter.texts = tc.replies

			if _, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 2}); !errors.Is(err, validation.ErrCancelled) {
				t.Fatalf("expected ErrCancelled, got %v", err)
			}

			stock, balance := f.state(t, 2)
			if stock != 10 || !balance.Equal(dec("5000")) {
				t.Fatalf("store changed: (%d, %s)", stock, balance)
			}
			if len(f.publisher.events) != 1 {
				t.Fatalf("events = %v", f.publisher.events)
			}
			evt, ok := f.publisher.events[0].(order.PurchaseCancelledEvent)
			if !ok {
				t.Fatalf("unexpected event %T", f.publisher.events[0])
			}
			if evt.Stage != tc.wantStage {
				t.Fatalf("stage = %s, want %s", evt.Stage, tc.wantStage)
			}
		})
	}
}

func TestPurchaseRejectsPaymentTheRegisterCannotChange(t *testing.T) {
	f := newFixture(t, 50, 50, "50.00")
	f.prompter.texts = answers("3", "1000", "250")

	receipt, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !receipt.Tendered.Equal(dec("250")) || !receipt.Change.Equal(dec("40")) {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if f.notifier.notices[0] != "Insufficient cash in the register to give change of Php. 790.00. Please enter a different amount." {
		t.Fatalf("notices = %v", f.notifier.notices)
	}
	if !receipt.VaultBalance.Equal(dec("260.00")) {
		t.Fatalf("vault balance = %s, want 260.00", receipt.VaultBalance)
	}
}

func TestPurchaseSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t, 5, 5, "100.00")
	f.publisher.err = errors.New("bus down")
	f.prompter.texts = answers("1", "70")

	receipt, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 1})
	if err != nil {
		t.Fatalf("publish failure must not fail the sale: %v", err)
	}
	if receipt.RemainingStock != 4 {
		t.Fatalf("remaining = %d", receipt.RemainingStock)
	}
	stock, balance := f.state(t, 1)
	if stock != 4 || !balance.Equal(dec("170")) {
		t.Fatalf("store = (%d, %s)", stock, balance)
	}
}

func TestPurchaseInputFailurePropagates(t *testing.T) {
	f := newFixture(t, 5, 5, "100.00")
	boom := errors.New("tty gone")
	f.prompter.textErr = boom
	if _, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 1}); !errors.Is(err, boom) {
		t.Fatalf("expected input error, got %v", err)
	}
	stock, _ := f.state(t, 1)
	if stock != 5 {
		t.Fatalf("stock changed to %d", stock)
	}
}

func TestSelectLoopsUntilASaleSettles(t *testing.T) {
	f := newFixture(t, 0, 5, "5000.00")
	f.prompter.texts = []application.Reply{
		application.Answer("x"), // unparsable
		application.Answer("9"), // unknown
		application.Answer("1"), // sold out
		application.Answer("2"), // quantity prompt cancelled
		application.Cancelled,
		application.Answer("2"),
		application.Answer("2"),
		application.Answer("120"),
	}

	receipt, err := f.coord.Select(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if receipt.ProductID != 2 || receipt.Quantity != 2 {
		t.Fatalf("unexpected receipt %+v", receipt)
	}

	want := []string{
		invalidChoiceNotice,
		invalidChoiceNotice,
		outOfStockNotice,
		"Your change is: Php. 0.00",
		"Current balance in register: Php. 5120.00",
	}
	if len(f.notifier.notices) != len(want) {
		t.Fatalf("notices = %v", f.notifier.notices)
	}
	for i := range want {
		if f.notifier.notices[i] != want[i] {
			t.Errorf("notice %d = %q, want %q", i, f.notifier.notices[i], want[i])
		}
	}
	if !strings.Contains(f.prompter.asked[0], "1 | Apple Juice | 0") {
		t.Errorf("catalog = %q", f.prompter.asked[0])
	}
}

func TestSelectCatalogCancelled(t *testing.T) {
	f := newFixture(t, 5, 5, "5000.00")
	f.prompter.texts = []application.Reply{application.Cancelled}
	if _, err := f.coord.Select(context.Background()); !errors.Is(err, validation.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestSessionRunsRoundsUntilDeclined(t *testing.T) {
	f := newFixture(t, 5, 5, "5000.00")
	f.prompter.texts = []application.Reply{
		application.Answer("1"), application.Answer("1"), application.Answer("70"),
		application.Cancelled, // second round: catalog dismissed
	}
	f.prompter.choices = []choiceReply{{index: 0, ok: true}, {index: 1, ok: true}}

	s := NewSession(f.coord, f.prompter, f.notifier, nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	n := f.notifier.notices
	if n[0] != WelcomeNotice || n[len(n)-1] != FarewellNotice {
		t.Fatalf("notices = %v", n)
	}
	continues := 0
	for _, q := range f.prompter.asked {
		if q == ContinuePrompt {
			continues++
		}
	}
	if continues != 2 {
		t.Fatalf("continue asked %d times, want 2", continues)
	}
	stock, _ := f.state(t, 1)
	if stock != 4 {
		t.Fatalf("stock = %d, want 4", stock)
	}
}

func TestSessionEndsWhenContinuePromptDismissed(t *testing.T) {
	f := newFixture(t, 5, 5, "5000.00")
	f.prompter.texts = []application.Reply{application.Cancelled}

	s := NewSession(f.coord, f.prompter, f.notifier, nil)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := f.notifier.notices; len(got) != 2 || got[1] != FarewellNotice {
		t.Fatalf("notices = %v", got)
	}
}

func TestSessionStopsOnInputFailure(t *testing.T) {
	f := newFixture(t, 5, 5, "5000.00")
	boom := errors.New("read failed")
	f.prompter.textErr = boom

	s := NewSession(f.coord, f.prompter, f.notifier, nil)
	if err := s.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected input error, got %v", err)
	}
	for _, msg := range f.notifier.notices {
		if msg == FarewellNotice {
			t.Fatalf("farewell should not be shown after a failure")
		}
	}
}

func TestPurchaseOrderIDsStayDistinct(t *testing.T) {
	f := newFixture(t, 50, 50, "5000.00")
	for i := 0; i < 12; i++ {
		f.prompter.texts = append(f.prompter.texts, answers("1", "70")...)
	}

	seen := map[string]bool{}
	var last string
	for i := 0; i < 12; i++ {
		receipt, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 1})
		if err != nil {
			t.Fatalf("purchase %d: %v", i+1, err)
		}
		if seen[receipt.OrderID] {
			t.Fatalf("order id %q reused", receipt.OrderID)
		}
		seen[receipt.OrderID] = true
		last = receipt.OrderID
	}
	if last != "order-12" {
		t.Fatalf("last order id = %q, want order-12", last)
	}
}

func TestPurchaseRepromptsOnExtremeAmount(t *testing.T) {
	f := newFixture(t, 50, 50, "5000.00")
	f.prompter.texts = answers("3", "1e999999999", "300")

	receipt, err := f.coord.Execute(context.Background(), PurchaseCommand{ProductID: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !receipt.Tendered.Equal(dec("300")) {
		t.Fatalf("tendered = %s, want 300", receipt.Tendered)
	}
	if len(f.notifier.notices) == 0 || f.notifier.notices[0] != "Invalid input. Please enter a valid cash amount." {
		t.Fatalf("notices = %v", f.notifier.notices)
	}
}
