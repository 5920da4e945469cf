package services

import (
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/skip2/go-qrcode"

	"github.com/yeremiapane/qr-dine/utils"
)

// PaymentInstruction is the payload a payer uses to complete a bank
// transfer: account details plus a transfer memo derived from the order,
// rendered both as a raw string and as a QR image.
type PaymentInstruction struct {
	AccountNumber string  `json:"account_number"`
	BankCode      string  `json:"bank_code"`
	AccountName   string  `json:"account_name"`
	Amount        float64 `json:"amount"`
	Content       string  `json:"content"`
	QRData        string  `json:"qr_data"`
	QRImage       string  `json:"qr_image"`
}

// PaymentInstructionProvider is the external collaborator that renders
// payment instructions for non-cash methods.
type PaymentInstructionProvider interface {
	Instructions(orderID uint, amount float64) (*PaymentInstruction, error)
}

// BankConfig holds the receiving account credentials.
type BankConfig struct {
	AccountNumber string
	BankCode      string
	AccountName   string
}

// BankTransferService renders banking/qr payment instructions from the
// configured receiving account.
type BankTransferService struct {
	config *BankConfig
}

var (
	bankTransferService *BankTransferService
	bankTransferOnce    sync.Once
)

// GetBankTransferService returns the env-configured singleton.
func GetBankTransferService() *BankTransferService {
	bankTransferOnce.Do(func() {
		bankTransferService = &BankTransferService{
			config: &BankConfig{
				AccountNumber: os.Getenv("BANK_ACCOUNT_NUMBER"),
				BankCode:      os.Getenv("BANK_CODE"),
				AccountName:   os.Getenv("BANK_ACCOUNT_NAME"),
			},
		}
	})
	return bankTransferService
}

// NewBankTransferService builds a provider from an explicit config (tests).
func NewBankTransferService(config *BankConfig) *BankTransferService {
	return &BankTransferService{config: config}
}

// ValidateConfig fails before any payment row is created when the receiving
// account is not configured.
func (s *BankTransferService) ValidateConfig() error {
	if s.config.AccountNumber == "" {
		return utils.NewMissingConfiguration("BANK_ACCOUNT_NUMBER")
	}
	if s.config.BankCode == "" {
		return utils.NewMissingConfiguration("BANK_CODE")
	}
	if s.config.AccountName == "" {
		return utils.NewMissingConfiguration("BANK_ACCOUNT_NAME")
	}
	return nil
}

func (s *BankTransferService) Instructions(orderID uint, amount float64) (*PaymentInstruction, error) {
	if err := s.ValidateConfig(); err != nil {
		return nil, err
	}

	content := fmt.Sprintf("QRDINE ORDER %d", orderID)
	qrData := fmt.Sprintf("%s|%s|%s|%.0f|%s",
		s.config.BankCode, s.config.AccountNumber, s.config.AccountName, amount, content)

	png, err := qrcode.Encode(qrData, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("encode payment qr: %w", err)
	}

	return &PaymentInstruction{
		AccountNumber: s.config.AccountNumber,
		BankCode:      s.config.BankCode,
		AccountName:   s.config.AccountName,
		Amount:        amount,
		Content:       content,
		QRData:        qrData,
		QRImage:       base64.StdEncoding.EncodeToString(png),
	}, nil
}
