package menu

import (
	"fmt"

	coreconfig "github.com/connectcare/ussd/core/config"
)

// Variant holds the display texts for one menu layout. The state
// machine interprets the same navigation paths against whichever
// variant is configured; only the texts and the authenticated flow
// flag differ.
type Variant struct {
	Name string

	Root   string
	Static map[string]string

	// Authenticated enables the register/login/booking flow. When
	// false, every branch under Static terminates immediately.
	Authenticated bool

	PromptName     string
	PromptPassword string
	PromptDate     string

	RegisterOK   string // fmt verb: full name
	RegisterFail string
	LoginFail    string
	HomeGreeting string // fmt verb: display name

	BookingOK   string
	BookingFail string

	HistoryHeader string
	HistoryEmpty  string
	HistoryFail   string
	PaymentHeader string
	PaymentEmpty  string
	PaymentFail   string

	LogoutDone  string
	NotLoggedIn string
	Unknown     string
}

// CareVariant is the full telemedicine menu: account registration,
// login, consultation booking and history lookups.
func CareVariant(cfg coreconfig.USSDConfig) Variant {
	return Variant{
		Name:          coreconfig.VariantCare,
		Authenticated: true,
		Root: "Murakaza neza kuri ConnectCare\n" +
			"1. Kwiyandikisha\n" +
			"2. Kwinjira",
		PromptName:     "Andika amazina yawe:",
		PromptPassword: "Andika ijambo ry'ibanga:",
		PromptDate:     "Hitamo italiki yo kujya kwa muganga (urugero: 22/07/2025):",
		RegisterOK:     "Murakoze %s! Konti yawe yafunguwe.",
		RegisterFail:   "Kwiyandikisha byanze. Ongera ugerageze.",
		LoginFail:      "Kwinjira byanze. Ongera ugerageze.",
		HomeGreeting: "Murakaza neza %s!\n" +
			"1. Gusaba rendez-vous\n" +
			"2. Amateka ya rendez-vous\n" +
			"3. Amateka y'ubwishyu\n" +
			"4. Gusohoka",
		BookingOK:     "Murakoze! Tuzakumenyesha igihe cya rendez-vous.",
		BookingFail:   "Gusaba rendez-vous byanze. Ongera ugerageze.",
		HistoryHeader: "Rendez-vous zawe:",
		HistoryEmpty:  "Nta rendez-vous urafite.",
		HistoryFail:   "Amateka ya rendez-vous ntabwo abonetse. Ongera ugerageze.",
		PaymentHeader: "Ubwishyu bwawe:",
		PaymentEmpty:  "Nta bwishyu burabaho.",
		PaymentFail:   "Amateka y'ubwishyu ntabwo abonetse. Ongera ugerageze.",
		LogoutDone:    "Wasohotse neza. Murakoze gukoresha ConnectCare.",
		NotLoggedIn:   "Ntabwo winjiye. Banza winjire.",
		Unknown:       "Icyo wahisemo ntigishoboye kumenyekana.",
	}
}

// InfoVariant is the lightweight informational menu: it collects a
// booking request without an account and answers two static branches.
func InfoVariant(cfg coreconfig.USSDConfig) Variant {
	return Variant{
		Name: coreconfig.VariantInfo,
		Root: "Murakaza neza kuri ConnectCare\n" +
			"1. Gusaba rendez-vous\n" +
			"2. Guhamagara muganga\n" +
			"3. Inama z'ubuzima",
		Static: map[string]string{
			"2": fmt.Sprintf("Hamagara muganga kuri: %s", cfg.DoctorPhone),
			"3": "Fata amazi menshi, ruhuka neza kandi irinde stress!",
		},
		PromptName: "Andika amazina yawe:",
		PromptDate: "Hitamo italiki yo kujya kwa muganga (urugero: 22/07/2025):",
		BookingOK:  "Murakoze! Tuzakumenyesha igihe cya rendez-vous.",
		Unknown:    "Icyo wahisemo ntigishoboye kumenyekana.",
	}
}

// VariantFor resolves the configured variant name.
func VariantFor(cfg coreconfig.USSDConfig) Variant {
	if cfg.Variant == coreconfig.VariantInfo {
		return InfoVariant(cfg)
	}
	return CareVariant(cfg)
}
