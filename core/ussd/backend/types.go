package backend

import "encoding/json"

// User mirrors the user object returned by the auth endpoints.
type User struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
}

// AuthResult carries the credential issued on registration or login.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Consultation is one entry of a patient's consultation history.
type Consultation struct {
	ID         int64  `json:"id"`
	Date       string `json:"consultation_date"`
	Status     string `json:"status"`
	DoctorName string `json:"doctor_name"`
}

// Payment is one entry of a patient's payment history.
// Amount is a json.Number because the API serializes SQL decimals as strings.
type Payment struct {
	ID      int64       `json:"id"`
	Date    string      `json:"payment_date"`
	Amount  json.Number `json:"amount"`
	Receipt string      `json:"receipt_number"`
}

// ConsultationRequest is the payload for creating a consultation record.
type ConsultationRequest struct {
	PatientID    int64   `json:"patient_id"`
	DoctorID     int64   `json:"doctor_id"`
	Date         string  `json:"consultation_date"`
	Notes        string  `json:"notes"`
	Status       string  `json:"status"`
	Diagnosis    *string `json:"diagnosis"`
	Prescription *string `json:"prescription"`
}

// PaymentRequest is the payload for creating a payment record.
type PaymentRequest struct {
	PatientID      int64  `json:"patient_id"`
	ConsultationID int64  `json:"consultation_id"`
	Amount         int64  `json:"amount"`
	Date           string `json:"payment_date"`
	Method         string `json:"payment_method"`
	ReceiptNumber  string `json:"receipt_number"`
}
