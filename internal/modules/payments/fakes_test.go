package payments

import (
	"context"
	"sync"

	"github.com/koushikdev2022/shphifyotm/internal/modules/sessions"
	"github.com/koushikdev2022/shphifyotm/internal/omt"
)

// fakeStore is an in-memory sessions.Store that counts writes so tests can
// assert "zero writes" properties.
type fakeStore struct {
	mu      sync.Mutex
	byID    map[string]*sessions.PaymentSession // keyed by shopify session id
	refunds []*sessions.RefundSession
	creds   map[string]sessions.ShopCredentials
	writes  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:  map[string]*sessions.PaymentSession{},
		creds: map[string]sessions.ShopCredentials{},
	}
}

func (f *fakeStore) CreatePaymentSession(_ context.Context, s *sessions.PaymentSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[s.ShopifySessionID]; ok {
		return sessions.ErrDuplicate
	}
	cp := *s
	f.byID[s.ShopifySessionID] = &cp
	f.writes++
	return nil
}

func (f *fakeStore) FindBySessionID(_ context.Context, id string) (sessions.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.byID[id]; ok {
		return *s, nil
	}
	return sessions.PaymentSession{}, sessions.ErrNotFound
}

func (f *fakeStore) FindByGatewayTransactionID(_ context.Context, txID string) (sessions.PaymentSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.OmtTransactionID != nil && *s.OmtTransactionID == txID {
			return *s, nil
		}
	}
	return sessions.PaymentSession{}, sessions.ErrNotFound
}

func (f *fakeStore) UpdateGatewayTransaction(_ context.Context, id, txID, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return sessions.ErrNotFound
	}
	s.OmtTransactionID = &txID
	s.OmtPaymentURL = &url
	s.Status = sessions.StatusProcessing
	f.writes++
	return nil
}

func (f *fakeStore) UpdateStatusIf(_ context.Context, txID string, from []sessions.Status, to sessions.Status, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.byID {
		if s.OmtTransactionID != nil && *s.OmtTransactionID == txID {
			for _, fs := range from {
				if s.Status == fs {
					s.Status = to
					if errMsg != nil {
						s.ErrorMessage = errMsg
					}
					f.writes++
					return nil
				}
			}
			return sessions.ErrConflict
		}
	}
	return sessions.ErrNotFound
}

func (f *fakeStore) RecordSessionError(_ context.Context, id, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return sessions.ErrNotFound
	}
	s.ErrorMessage = &msg
	f.writes++
	return nil
}

func (f *fakeStore) CreateRefund(_ context.Context, r *sessions.RefundSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.refunds {
		if existing.ShopifyRefundID == r.ShopifyRefundID {
			return sessions.ErrDuplicate
		}
	}
	cp := *r
	f.refunds = append(f.refunds, &cp)
	f.writes++
	return nil
}

func (f *fakeStore) FindShopCredentials(_ context.Context, shop string) (sessions.ShopCredentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.creds[shop]; ok && c.IsActive {
		return c, nil
	}
	return sessions.ShopCredentials{}, sessions.ErrNotFound
}

func (f *fakeStore) UpsertShopCredentials(_ context.Context, c *sessions.ShopCredentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creds[c.Shop] = *c
	f.writes++
	return nil
}

func (f *fakeStore) DeactivateShop(_ context.Context, shop string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.creds[shop]
	if !ok {
		return sessions.ErrNotFound
	}
	c.IsActive = false
	c.AccessToken = ""
	f.creds[shop] = c
	f.writes++
	return nil
}

func (f *fakeStore) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func (f *fakeStore) session(id string) sessions.PaymentSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

// setStatus seeds a session state directly, bypassing the Store surface.
func (f *fakeStore) setStatus(id string, status sessions.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[id].Status = status
}

// fakeGateway scripts OMT responses and counts every call.
type fakeGateway struct {
	mu    sync.Mutex
	calls int

	initiateResp omt.InitiatePaymentResponse
	initiateErr  error
	statusResp   omt.PaymentStatusResponse
	statusErr    error
	refundResp   omt.RefundResponse
	refundErr    error
	opResp       omt.OperationResponse
	opErr        error
}

func (g *fakeGateway) bump() {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *fakeGateway) InitiatePayment(context.Context, omt.InitiatePaymentRequest) (omt.InitiatePaymentResponse, error) {
	g.bump()
	return g.initiateResp, g.initiateErr
}

func (g *fakeGateway) PaymentStatus(context.Context, string) (omt.PaymentStatusResponse, error) {
	g.bump()
	return g.statusResp, g.statusErr
}

func (g *fakeGateway) Refund(context.Context, omt.RefundRequest) (omt.RefundResponse, error) {
	g.bump()
	return g.refundResp, g.refundErr
}

func (g *fakeGateway) Capture(context.Context, omt.CaptureRequest) (omt.OperationResponse, error) {
	g.bump()
	return g.opResp, g.opErr
}

func (g *fakeGateway) Void(context.Context, string) (omt.OperationResponse, error) {
	g.bump()
	return g.opResp, g.opErr
}

// fakeNotifier records resolve/reject invocations. onNotify, when set, runs
// before the counter moves so ordering tests can observe store state at
// notification time.
type fakeNotifier struct {
	mu            sync.Mutex
	resolved      []string
	rejected      []string
	resolvedRef   []string
	rejectedRef   []string
	redirectURL   string
	notifyErr     error
	onNotify      func()
	lastRejectMsg string
	lastShop      string
	lastToken     string
}

func (n *fakeNotifier) fire() {
	if n.onNotify != nil {
		n.onNotify()
	}
}

func (n *fakeNotifier) ResolvePayment(_ context.Context, shop, token, gid string) (string, error) {
	n.fire()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolved = append(n.resolved, gid)
	n.lastShop, n.lastToken = shop, token
	return n.redirectURL, n.notifyErr
}

func (n *fakeNotifier) RejectPayment(_ context.Context, shop, token, gid, reason string) error {
	n.fire()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejected = append(n.rejected, gid)
	n.lastRejectMsg = reason
	n.lastShop, n.lastToken = shop, token
	return n.notifyErr
}

func (n *fakeNotifier) ResolveRefund(_ context.Context, shop, token, gid string) error {
	n.fire()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resolvedRef = append(n.resolvedRef, gid)
	return n.notifyErr
}

func (n *fakeNotifier) RejectRefund(_ context.Context, shop, token, gid, reason string) error {
	n.fire()
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rejectedRef = append(n.rejectedRef, gid)
	n.lastRejectMsg = reason
	return n.notifyErr
}

func (n *fakeNotifier) totalCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.resolved) + len(n.rejected) + len(n.resolvedRef) + len(n.rejectedRef)
}
