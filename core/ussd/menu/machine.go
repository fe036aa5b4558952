package menu

import (
	"context"
	"fmt"
	"strings"
	"time"

	"log/slog"

	coreconfig "github.com/connectcare/ussd/core/config"
	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/ussd"
	"github.com/connectcare/ussd/core/ussd/backend"
	"github.com/connectcare/ussd/core/ussd/phone"
	"github.com/connectcare/ussd/core/ussd/session"
)

// Menu state labels. They name the transition that produced a reply
// and key the callback metrics.
const (
	StateRoot             = "root"
	StateRegisterName     = "register.name"
	StateRegisterPassword = "register.password"
	StateRegisterSubmit   = "register.submit"
	StateLoginPassword    = "login.password"
	StateLoginSubmit      = "login.submit"
	StateHome             = "home"
	StateBookDate         = "book.date"
	StateBookSubmit       = "book.submit"
	StateHistory          = "history"
	StatePayments         = "payments"
	StateLogout           = "logout"
	StateStatic           = "static"
	StateUnknown          = "unknown"
)

const historyLimit = 3

// Backend is the slice of the REST client the menu needs.
type Backend interface {
	RegisterPhone(ctx context.Context, fullName, phone, password string) (backend.AuthResult, error)
	LoginPhone(ctx context.Context, phone, password string) (backend.AuthResult, error)
	PatientConsultations(ctx context.Context, token string, patientID int64) ([]backend.Consultation, error)
	PatientPayments(ctx context.Context, token string, patientID int64) ([]backend.Payment, error)
	CreateConsultation(ctx context.Context, token string, req backend.ConsultationRequest) (int64, error)
	CreatePayment(ctx context.Context, token string, req backend.PaymentRequest) error
}

// Machine resolves one navigation path into one reply. It keeps no
// state of its own between calls; everything cross-request lives in
// the session store.
type Machine struct {
	variant  Variant
	backend  Backend
	sessions session.Manager

	countryCode string
	sessionTTL  time.Duration
	fee         int64
	doctorID    int64

	now func() time.Time
}

// New builds a Machine for the configured variant.
func New(cfg *coreconfig.Config, bk Backend, sessions session.Manager) *Machine {
	return &Machine{
		variant:     VariantFor(cfg.USSD),
		backend:     bk,
		sessions:    sessions,
		countryCode: cfg.USSD.CountryCode,
		sessionTTL:  cfg.SessionTTL(),
		fee:         cfg.USSD.ConsultationFee,
		doctorID:    cfg.USSD.DefaultDoctorID,
		now:         time.Now,
	}
}

// Handle maps a callback to a reply. It never fails: every path,
// including backend and store failures, ends in a well-formed reply.
func (m *Machine) Handle(ctx context.Context, req ussd.Request) ussd.Reply {
	path := req.Path()
	if len(path) == 0 {
		return ussd.Continue(StateRoot, m.variant.Root)
	}
	if m.variant.Authenticated {
		return m.handleCare(ctx, req, path)
	}
	return m.handleInfo(req, path)
}

// handleInfo serves the informational tree: an anonymous booking
// request under "1" and static terminal branches for the rest.
func (m *Machine) handleInfo(req ussd.Request, path []string) ussd.Reply {
	if path[0] == "1" {
		switch len(path) {
		case 1:
			return ussd.Continue(StateRegisterName, m.variant.PromptName)
		case 2:
			return ussd.Continue(StateBookDate, m.variant.PromptDate)
		case 3:
			return ussd.Terminate(StateBookSubmit, m.variant.BookingOK)
		}
		return ussd.Failure(StateUnknown, m.variant.Unknown)
	}
	if len(path) == 1 {
		if text, ok := m.variant.Static[path[0]]; ok {
			return ussd.Terminate(StateStatic, text)
		}
	}
	return ussd.Failure(StateUnknown, m.variant.Unknown)
}

func (m *Machine) handleCare(ctx context.Context, req ussd.Request, path []string) ussd.Reply {
	switch path[0] {
	case "1":
		switch len(path) {
		case 1:
			return ussd.Continue(StateRegisterName, m.variant.PromptName)
		case 2:
			return ussd.Continue(StateRegisterPassword, m.variant.PromptPassword)
		case 3:
			return m.register(ctx, req, path[1], path[2])
		}
	case "2":
		switch len(path) {
		case 1:
			return ussd.Continue(StateLoginPassword, m.variant.PromptPassword)
		case 2:
			return m.login(ctx, req, path[1])
		case 3:
			return m.dispatch(ctx, req, path[2])
		case 4:
			if path[2] == "1" {
				return m.book(ctx, req, path[3])
			}
		}
	}
	return ussd.Failure(StateUnknown, m.variant.Unknown)
}

func (m *Machine) register(ctx context.Context, req ussd.Request, fullName, password string) ussd.Reply {
	msisdn := phone.Normalize(req.PhoneNumber, m.countryCode)
	res, err := m.backend.RegisterPhone(ctx, fullName, msisdn, password)
	if err != nil {
		return ussd.Failure(StateRegisterSubmit, m.variant.RegisterFail)
	}
	m.persist(ctx, req.SessionID, res)
	return ussd.Terminate(StateRegisterSubmit, fmt.Sprintf(m.variant.RegisterOK, res.User.FullName))
}

func (m *Machine) login(ctx context.Context, req ussd.Request, password string) ussd.Reply {
	msisdn := phone.Normalize(req.PhoneNumber, m.countryCode)
	res, err := m.backend.LoginPhone(ctx, msisdn, password)
	if err != nil {
		return ussd.Failure(StateLoginSubmit, m.variant.LoginFail)
	}
	m.persist(ctx, req.SessionID, res)
	return ussd.Continue(StateHome, fmt.Sprintf(m.variant.HomeGreeting, res.User.FullName))
}

// dispatch routes an authenticated home-menu choice. Every branch is
// gated on a stored credential; a stale or absent session terminates
// before any backend call.
func (m *Machine) dispatch(ctx context.Context, req ussd.Request, choice string) ussd.Reply {
	state := choiceState(choice)
	if state == StateUnknown {
		return ussd.Failure(StateUnknown, m.variant.Unknown)
	}
	rec := m.sessions.Load(ctx, req.SessionID)
	if !rec.Authenticated() {
		return ussd.Failure(state, m.variant.NotLoggedIn)
	}

	switch state {
	case StateBookDate:
		return ussd.Continue(StateBookDate, m.variant.PromptDate)
	case StateHistory:
		return m.history(ctx, rec)
	case StatePayments:
		return m.payments(ctx, rec)
	default:
		return m.logout(ctx, req.SessionID)
	}
}

func choiceState(choice string) string {
	switch choice {
	case "1":
		return StateBookDate
	case "2":
		return StateHistory
	case "3":
		return StatePayments
	case "4":
		return StateLogout
	}
	return StateUnknown
}

// book creates a consultation and its linked payment. Partial failure
// is reported as full failure; no compensation is attempted.
func (m *Machine) book(ctx context.Context, req ussd.Request, dateInput string) ussd.Reply {
	rec := m.sessions.Load(ctx, req.SessionID)
	if !rec.Authenticated() {
		return ussd.Failure(StateBookSubmit, m.variant.NotLoggedIn)
	}

	day := m.now()
	if parsed, ok := ParseFlexibleDate(dateInput); ok {
		day = parsed
	}
	date := day.Format("2006-01-02")

	consultationID, err := m.backend.CreateConsultation(ctx, rec.Token, backend.ConsultationRequest{
		PatientID: rec.UserID,
		DoctorID:  m.doctorID,
		Date:      date,
		Notes:     "Appointment booked through USSD",
		Status:    "pending",
	})
	if err != nil {
		return ussd.Failure(StateBookSubmit, m.variant.BookingFail)
	}

	err = m.backend.CreatePayment(ctx, rec.Token, backend.PaymentRequest{
		PatientID:      rec.UserID,
		ConsultationID: consultationID,
		Amount:         m.fee,
		Date:           date,
		Method:         "mobile_money",
		ReceiptNumber:  fmt.Sprintf("USSD-%d-%d", rec.UserID, m.now().Unix()),
	})
	if err != nil {
		// The consultation record stays behind in the backend. The
		// subscriber still sees a failure and may retry.
		logger.MENU.WarnContext(ctx, "booking payment failed after consultation created",
			slog.String("event", "menu.book"),
			slog.String("status", "fail"),
			slog.Int64("consultation_id", consultationID),
		)
		return ussd.Failure(StateBookSubmit, m.variant.BookingFail)
	}

	return ussd.Terminate(StateBookSubmit, m.variant.BookingOK)
}

func (m *Machine) history(ctx context.Context, rec session.Record) ussd.Reply {
	list, err := m.backend.PatientConsultations(ctx, rec.Token, rec.UserID)
	if err != nil {
		return ussd.Failure(StateHistory, m.variant.HistoryFail)
	}
	if len(list) == 0 {
		return ussd.Terminate(StateHistory, m.variant.HistoryEmpty)
	}
	lines := []string{m.variant.HistoryHeader}
	for i, c := range list {
		if i == historyLimit {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s - %s", i+1, c.Date, c.Status))
	}
	return ussd.Terminate(StateHistory, strings.Join(lines, "\n"))
}

func (m *Machine) payments(ctx context.Context, rec session.Record) ussd.Reply {
	list, err := m.backend.PatientPayments(ctx, rec.Token, rec.UserID)
	if err != nil {
		return ussd.Failure(StatePayments, m.variant.PaymentFail)
	}
	if len(list) == 0 {
		return ussd.Terminate(StatePayments, m.variant.PaymentEmpty)
	}
	lines := []string{m.variant.PaymentHeader}
	for i, p := range list {
		if i == historyLimit {
			break
		}
		lines = append(lines, fmt.Sprintf("%d. %s - %s RWF", i+1, p.Date, p.Amount.String()))
	}
	return ussd.Terminate(StatePayments, strings.Join(lines, "\n"))
}

func (m *Machine) logout(ctx context.Context, sessionID string) ussd.Reply {
	if err := m.sessions.Clear(ctx, sessionID); err != nil {
		logger.SESS.WarnContext(ctx, "session clear on logout failed",
			slog.String("event", "menu.logout"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	return ussd.Terminate(StateLogout, m.variant.LogoutDone)
}

// persist stores the issued credential under the gateway session id.
// A store failure is logged and swallowed; the subscriber's current
// reply already carries the outcome and the degraded store simply
// leaves them logged out on the next keystroke.
func (m *Machine) persist(ctx context.Context, sessionID string, res backend.AuthResult) {
	rec := session.Record{
		Token:    res.Token,
		UserID:   res.User.ID,
		UserName: res.User.FullName,
	}
	if err := m.sessions.Save(ctx, sessionID, rec, m.sessionTTL); err != nil {
		logger.SESS.WarnContext(ctx, "session save failed",
			slog.String("event", "menu.persist"),
			slog.String("status", "degraded"),
			slog.String("err", err.Error()),
		)
	}
}
