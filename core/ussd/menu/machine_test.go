package menu

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/connectcare/ussd/core/config"
	"github.com/connectcare/ussd/core/ussd"
	"github.com/connectcare/ussd/core/ussd/backend"
	"github.com/connectcare/ussd/core/ussd/session"
)

// fakeBackend counts every call so tests can assert the auth gate
// blocks before any network activity.
type fakeBackend struct {
	calls int

	registerFn func(fullName, phone, password string) (backend.AuthResult, error)
	loginFn    func(phone, password string) (backend.AuthResult, error)
	consultsFn func(token string, patientID int64) ([]backend.Consultation, error)
	paymentsFn func(token string, patientID int64) ([]backend.Payment, error)
	createCFn  func(req backend.ConsultationRequest) (int64, error)
	createPFn  func(req backend.PaymentRequest) error
}

func (f *fakeBackend) RegisterPhone(_ context.Context, fullName, phone, password string) (backend.AuthResult, error) {
	f.calls++
	if f.registerFn == nil {
		return backend.AuthResult{}, errors.New("unexpected RegisterPhone call")
	}
	return f.registerFn(fullName, phone, password)
}

func (f *fakeBackend) LoginPhone(_ context.Context, phone, password string) (backend.AuthResult, error) {
	f.calls++
	if f.loginFn == nil {
		return backend.AuthResult{}, errors.New("unexpected LoginPhone call")
	}
	return f.loginFn(phone, password)
}

func (f *fakeBackend) PatientConsultations(_ context.Context, token string, patientID int64) ([]backend.Consultation, error) {
	f.calls++
	if f.consultsFn == nil {
		return nil, errors.New("unexpected PatientConsultations call")
	}
	return f.consultsFn(token, patientID)
}

func (f *fakeBackend) PatientPayments(_ context.Context, token string, patientID int64) ([]backend.Payment, error) {
	f.calls++
	if f.paymentsFn == nil {
		return nil, errors.New("unexpected PatientPayments call")
	}
	return f.paymentsFn(token, patientID)
}

func (f *fakeBackend) CreateConsultation(_ context.Context, token string, req backend.ConsultationRequest) (int64, error) {
	f.calls++
	if f.createCFn == nil {
		return 0, errors.New("unexpected CreateConsultation call")
	}
	return f.createCFn(req)
}

func (f *fakeBackend) CreatePayment(_ context.Context, token string, req backend.PaymentRequest) error {
	f.calls++
	if f.createPFn == nil {
		return errors.New("unexpected CreatePayment call")
	}
	return f.createPFn(req)
}

func testConfig(variant string) *coreconfig.Config {
	cfg := &coreconfig.Config{}
	cfg.USSD.Variant = variant
	cfg.USSD.CountryCode = "+250"
	cfg.USSD.SessionTTLSeconds = 3600
	cfg.USSD.ConsultationFee = 5000
	cfg.USSD.DefaultDoctorID = 1
	cfg.USSD.DoctorPhone = "+250 792041765"
	return cfg
}

func newCareMachine(bk Backend, store session.Manager) *Machine {
	m := New(testConfig(coreconfig.VariantCare), bk, store)
	m.now = func() time.Time { return time.Date(2025, 7, 20, 10, 0, 0, 0, time.UTC) }
	return m
}

func callback(text string) ussd.Request {
	return ussd.Request{
		SessionID:   "ATUid_42",
		ServiceCode: "*384*4040#",
		PhoneNumber: "0788123456",
		Text:        text,
	}
}

func loggedIn(t *testing.T, store session.Manager) {
	t.Helper()
	err := store.Save(context.Background(), "ATUid_42", session.Record{
		Token:    "t1",
		UserID:   7,
		UserName: "Jean",
	}, time.Hour)
	require.NoError(t, err)
}

func TestRootMenuIgnoresSessionState(t *testing.T) {
	store := session.NewMemoryManager()
	m := newCareMachine(&fakeBackend{}, store)

	reply := m.Handle(context.Background(), callback(""))
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "1. Kwiyandikisha")
	assert.Contains(t, reply.Text, "2. Kwinjira")

	loggedIn(t, store)
	again := m.Handle(context.Background(), callback(""))
	assert.Equal(t, reply, again)
}

func TestRegisterFlow(t *testing.T) {
	bk := &fakeBackend{
		registerFn: func(fullName, phone, password string) (backend.AuthResult, error) {
			assert.Equal(t, "Jean Bosco", fullName)
			assert.Equal(t, "+250788123456", phone)
			assert.Equal(t, "secret123", password)
			return backend.AuthResult{Token: "t1", User: backend.User{ID: 7, FullName: "Jean Bosco"}}, nil
		},
	}
	store := session.NewMemoryManager()
	m := newCareMachine(bk, store)

	step1 := m.Handle(context.Background(), callback("1"))
	assert.False(t, step1.End)
	assert.Equal(t, "CON Andika amazina yawe:", step1.Render())

	step2 := m.Handle(context.Background(), callback("1*Jean Bosco"))
	assert.False(t, step2.End)
	assert.Contains(t, step2.Text, "ijambo ry'ibanga")

	step3 := m.Handle(context.Background(), callback("1*Jean Bosco*secret123"))
	assert.True(t, step3.End)
	assert.Contains(t, step3.Text, "Jean Bosco")

	rec := store.Load(context.Background(), "ATUid_42")
	assert.Equal(t, session.Record{Token: "t1", UserID: 7, UserName: "Jean Bosco"}, rec)
}

func TestRegisterBackendRejected(t *testing.T) {
	bk := &fakeBackend{
		registerFn: func(_, _, _ string) (backend.AuthResult, error) {
			return backend.AuthResult{}, backend.ErrRejected
		},
	}
	store := session.NewMemoryManager()
	m := newCareMachine(bk, store)

	reply := m.Handle(context.Background(), callback("1*Jean*pw"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Kwiyandikisha byanze")
	// Failure paths never write to the store.
	assert.False(t, store.Load(context.Background(), "ATUid_42").Authenticated())
}

func TestLoginSuccessShowsHomeMenu(t *testing.T) {
	bk := &fakeBackend{
		loginFn: func(phone, password string) (backend.AuthResult, error) {
			assert.Equal(t, "+250788123456", phone)
			assert.Equal(t, "secret123", password)
			return backend.AuthResult{Token: "t1", User: backend.User{ID: 7, FullName: "Jean"}}, nil
		},
	}
	store := session.NewMemoryManager()
	m := newCareMachine(bk, store)

	reply := m.Handle(context.Background(), callback("2*secret123"))
	assert.False(t, reply.End)
	assert.Contains(t, reply.Text, "Jean")
	for _, option := range []string{"1.", "2.", "3.", "4."} {
		assert.Contains(t, reply.Text, option)
	}

	rec := store.Load(context.Background(), "ATUid_42")
	assert.Equal(t, session.Record{Token: "t1", UserID: 7, UserName: "Jean"}, rec)
}

func TestLoginFailure(t *testing.T) {
	bk := &fakeBackend{
		loginFn: func(_, _ string) (backend.AuthResult, error) {
			return backend.AuthResult{}, backend.ErrUnreachable
		},
	}
	m := newCareMachine(bk, session.NewMemoryManager())

	reply := m.Handle(context.Background(), callback("2*wrong"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Kwinjira byanze")
}

func TestAuthGateBlocksProtectedActions(t *testing.T) {
	for _, choice := range []string{"1", "2", "3", "4"} {
		t.Run("choice "+choice, func(t *testing.T) {
			bk := &fakeBackend{}
			m := newCareMachine(bk, session.NewMemoryManager())

			reply := m.Handle(context.Background(), callback("2*pw*"+choice))
			assert.True(t, reply.End)
			assert.Contains(t, reply.Text, "Ntabwo winjiye")
			assert.Zero(t, bk.calls)
		})
	}
}

func TestAuthGateBlocksBookingSubmit(t *testing.T) {
	bk := &fakeBackend{}
	m := newCareMachine(bk, session.NewMemoryManager())

	reply := m.Handle(context.Background(), callback("2*pw*1*22/07/2025"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Ntabwo winjiye")
	assert.Zero(t, bk.calls)
}

func TestBookingPromptAndSubmit(t *testing.T) {
	var gotConsultation backend.ConsultationRequest
	var gotPayment backend.PaymentRequest
	bk := &fakeBackend{
		createCFn: func(req backend.ConsultationRequest) (int64, error) {
			gotConsultation = req
			return 42, nil
		},
		createPFn: func(req backend.PaymentRequest) error {
			gotPayment = req
			return nil
		},
	}
	store := session.NewMemoryManager()
	loggedIn(t, store)
	m := newCareMachine(bk, store)

	prompt := m.Handle(context.Background(), callback("2*pw*1"))
	assert.False(t, prompt.End)
	assert.Contains(t, prompt.Text, "italiki")

	reply := m.Handle(context.Background(), callback("2*pw*1*22/07/2025"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Murakoze")

	assert.Equal(t, backend.ConsultationRequest{
		PatientID: 7,
		DoctorID:  1,
		Date:      "2025-07-22",
		Notes:     "Appointment booked through USSD",
		Status:    "pending",
	}, gotConsultation)

	assert.Equal(t, int64(7), gotPayment.PatientID)
	assert.Equal(t, int64(42), gotPayment.ConsultationID)
	assert.Equal(t, int64(5000), gotPayment.Amount)
	assert.Equal(t, "2025-07-22", gotPayment.Date)
	assert.Equal(t, "mobile_money", gotPayment.Method)
	assert.Equal(t, fmt.Sprintf("USSD-7-%d", m.now().Unix()), gotPayment.ReceiptNumber)
}

func TestBookingUnparseableDateFallsBackToToday(t *testing.T) {
	bk := &fakeBackend{
		createCFn: func(req backend.ConsultationRequest) (int64, error) {
			assert.Equal(t, "2025-07-20", req.Date)
			return 42, nil
		},
		createPFn: func(backend.PaymentRequest) error { return nil },
	}
	store := session.NewMemoryManager()
	loggedIn(t, store)
	m := newCareMachine(bk, store)

	reply := m.Handle(context.Background(), callback("2*pw*1*ejo"))
	assert.True(t, reply.End)
}

func TestBookingPaymentFailureReportsFullFailure(t *testing.T) {
	bk := &fakeBackend{
		createCFn: func(backend.ConsultationRequest) (int64, error) { return 42, nil },
		createPFn: func(backend.PaymentRequest) error { return backend.ErrRejected },
	}
	store := session.NewMemoryManager()
	loggedIn(t, store)
	m := newCareMachine(bk, store)

	reply := m.Handle(context.Background(), callback("2*pw*1*22/07/2025"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "byanze")
	assert.NotContains(t, reply.Text, "Murakoze")
}

func TestHistoryTopThree(t *testing.T) {
	bk := &fakeBackend{
		consultsFn: func(token string, patientID int64) ([]backend.Consultation, error) {
			assert.Equal(t, "t1", token)
			assert.Equal(t, int64(7), patientID)
			return []backend.Consultation{
				{Date: "2025-07-01", Status: "completed"},
				{Date: "2025-07-08", Status: "completed"},
				{Date: "2025-07-15", Status: "pending"},
				{Date: "2025-07-22", Status: "pending"},
			}, nil
		},
	}
	store := session.NewMemoryManager()
	loggedIn(t, store)
	m := newCareMachine(bk, store)

	reply := m.Handle(context.Background(), callback("2*pw*2"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "2025-07-01")
	assert.Contains(t, reply.Text, "2025-07-15")
	assert.NotContains(t, reply.Text, "2025-07-22")
}

func TestHistoryEmpty(t *testing.T) {
	bk := &fakeBackend{
		consultsFn: func(string, int64) ([]backend.Consultation, error) {
			return nil, nil
		},
	}
	store := session.NewMemoryManager()
	loggedIn(t, store)
	m := newCareMachine(bk, store)

	reply := m.Handle(context.Background(), callback("2*pw*2"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Nta rendez-vous")
}

func TestPaymentsListing(t *testing.T) {
	bk := &fakeBackend{
		paymentsFn: func(string, int64) ([]backend.Payment, error) {
			return []backend.Payment{
				{Date: "2025-07-01", Amount: "5000.00"},
			}, nil
		},
	}
	store := session.NewMemoryManager()
	loggedIn(t, store)
	m := newCareMachine(bk, store)

	reply := m.Handle(context.Background(), callback("2*pw*3"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "5000.00 RWF")
}

func TestLogoutClearsOwnSessionOnly(t *testing.T) {
	store := session.NewMemoryManager()
	loggedIn(t, store)
	err := store.Save(context.Background(), "other", session.Record{Token: "t2", UserID: 9}, time.Hour)
	require.NoError(t, err)
	m := newCareMachine(&fakeBackend{}, store)

	reply := m.Handle(context.Background(), callback("2*pw*4"))
	assert.True(t, reply.End)
	assert.Contains(t, reply.Text, "Wasohotse")

	assert.False(t, store.Load(context.Background(), "ATUid_42").Authenticated())
	assert.True(t, store.Load(context.Background(), "other").Authenticated())
}

func TestUnknownSelections(t *testing.T) {
	store := session.NewMemoryManager()
	loggedIn(t, store)
	m := newCareMachine(&fakeBackend{}, store)

	for _, text := range []string{"9", "2*pw*9", "2*pw*2*extra", "1*a*b*c"} {
		reply := m.Handle(context.Background(), callback(text))
		assert.True(t, reply.End, text)
		assert.Contains(t, reply.Text, "ntigishoboye kumenyekana", text)
	}
}

func TestInfoVariantFlow(t *testing.T) {
	m := New(testConfig(coreconfig.VariantInfo), &fakeBackend{}, session.NewMemoryManager())

	root := m.Handle(context.Background(), callback(""))
	assert.Equal(t, "CON Murakaza neza kuri ConnectCare\n1. Gusaba rendez-vous\n2. Guhamagara muganga\n3. Inama z'ubuzima", root.Render())

	name := m.Handle(context.Background(), callback("1"))
	assert.Equal(t, "CON Andika amazina yawe:", name.Render())

	date := m.Handle(context.Background(), callback("1*Jean"))
	assert.Equal(t, "CON Hitamo italiki yo kujya kwa muganga (urugero: 22/07/2025):", date.Render())

	done := m.Handle(context.Background(), callback("1*Jean*22/07/2025"))
	assert.Equal(t, "END Murakoze! Tuzakumenyesha igihe cya rendez-vous.", done.Render())

	call := m.Handle(context.Background(), callback("2"))
	assert.Equal(t, "END Hamagara muganga kuri: +250 792041765", call.Render())

	tips := m.Handle(context.Background(), callback("3"))
	assert.Equal(t, "END Fata amazi menshi, ruhuka neza kandi irinde stress!", tips.Render())

	unknown := m.Handle(context.Background(), callback("7"))
	assert.Equal(t, "END Icyo wahisemo ntigishoboye kumenyekana.", unknown.Render())
}

func TestParseFlexibleDate(t *testing.T) {
	got, ok := ParseFlexibleDate("22/07/2025")
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 7, 22, 0, 0, 0, 0, time.Local), got)

	_, ok = ParseFlexibleDate("")
	assert.False(t, ok)
	_, ok = ParseFlexibleDate("ejo")
	assert.False(t, ok)
}
